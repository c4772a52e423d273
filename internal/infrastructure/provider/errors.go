package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error is a non-2xx answer from the payment provider.
type Error struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("payment provider error %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("payment provider error %d (%s): %s", e.StatusCode, e.Code, e.Description)
}

// IsTransient reports whether repeating the same request may succeed.
func (e *Error) IsTransient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

func (e *Error) IsPermanent() bool {
	return !e.IsTransient()
}

// IsTransient reports whether err is worth retrying: 429, 5xx, timeouts and
// network failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.IsTransient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsPermanent reports whether the provider rejected the request outright.
func IsPermanent(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.IsPermanent()
}

// IsNotFound reports a 404 from the provider.
func IsNotFound(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.StatusCode == http.StatusNotFound
}
