package dto

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capsPayload struct {
	Name     string `validate:"required"`
	PageSize int    `validate:"min=1,max=100"`
}

func TestValidationDetailsFromError(t *testing.T) {
	v := validator.New()

	t.Run("field errors become details", func(t *testing.T) {
		err := v.Struct(capsPayload{PageSize: 500})
		require.Error(t, err)

		details := ValidationDetailsFromError(err)
		require.Len(t, details, 2)
		assert.Equal(t, "name", details[0].Field)
		assert.Equal(t, "required", details[0].Rule)
		assert.Equal(t, "name is required", details[0].Message)
		assert.Equal(t, "pagesize", details[1].Field)
		assert.Equal(t, "max", details[1].Rule)
	})

	t.Run("plain errors fall back to raw message", func(t *testing.T) {
		details := ValidationDetailsFromError(errors.New("unexpected EOF"))
		require.Len(t, details, 1)
		assert.Equal(t, "unexpected EOF", details[0].Message)
	})
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-9", []ValidationDetail{
		{Field: "student_count", Rule: "min", Message: "student_count must be at least 0"},
	})
	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-9", resp.Error.RequestID)
	details := resp.Error.Details.([]ValidationDetail)
	assert.Equal(t, "student_count", details[0].Field)
}
