package utils

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/autopay/internal/shared/errors"
)

func TestToSnake(t *testing.T) {
	assert.Equal(t, "external_id", toSnake("ExternalID"))
	assert.Equal(t, "plan_id", toSnake("PlanID"))
	assert.Equal(t, "with_refund", toSnake("WithRefund"))
	assert.Equal(t, "http_server", toSnake("HTTPServer"))
}

func TestBindError(t *testing.T) {
	type request struct {
		ExternalID string `validate:"required"`
		PlanID     uint   `validate:"gt=0"`
	}
	err := validator.New().Struct(request{})
	require.Error(t, err)

	bindErr := BindError(err)
	appErr := errors.GetAppError(bindErr)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrorTypeValidation, appErr.Type)
	assert.Contains(t, appErr.Details, "external_id is required")
	assert.Contains(t, appErr.Details, "plan_id must be greater than 0")

	assert.True(t, errors.IsValidationError(BindError(assert.AnError)))
}
