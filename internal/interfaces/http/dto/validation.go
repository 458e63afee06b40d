package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationDetail describes one failed field constraint
type ValidationDetail struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// NewValidationErrorResponse creates an error response carrying per-field
// validation details
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      ErrCodeValidation,
			Message:   message,
			RequestID: requestID,
			Details:   details,
		},
	}
}

// ValidationDetailsFromError converts a binding error into field-level
// details. Non-validator errors produce a single detail with the raw message.
func ValidationDetailsFromError(err error) []ValidationDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationDetail{{Field: "", Rule: "", Message: err.Error()}}
	}

	details := make([]ValidationDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, ValidationDetail{
			Field:   strings.ToLower(fe.Field()),
			Rule:    fe.Tag(),
			Message: validationMessage(fe),
		})
	}
	return details
}

func validationMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more", field, fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation rule %s", field, fe.Tag())
	}
}
