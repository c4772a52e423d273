package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
	"github.com/orris-inc/autopay/internal/shared/utils"
)

const AdminTokenHeader = "X-Admin-Token"

type AdminTokenMiddleware struct {
	token  string
	logger logger.Interface
}

func NewAdminTokenMiddleware(token string, logger logger.Interface) *AdminTokenMiddleware {
	return &AdminTokenMiddleware{token: token, logger: logger}
}

// RequireAdminToken accepts the token from X-Admin-Token or a Bearer
// Authorization header. An empty configured token locks the admin API.
func (m *AdminTokenMiddleware) RequireAdminToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.token == "" {
			m.logger.Warnw("admin API called but no admin token is configured", "path", c.Request.URL.Path)
			utils.ErrorResponseWithError(c, errors.NewForbiddenError("admin API is disabled"))
			c.Abort()
			return
		}

		token := c.GetHeader(AdminTokenHeader)
		if token == "" {
			parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}

		if token == "" {
			utils.ErrorResponseWithError(c, errors.NewUnauthorizedError("missing admin token"))
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(m.token)) != 1 {
			m.logger.Warnw("invalid admin token", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			utils.ErrorResponseWithError(c, errors.NewUnauthorizedError("invalid admin token"))
			c.Abort()
			return
		}

		c.Next()
	}
}
