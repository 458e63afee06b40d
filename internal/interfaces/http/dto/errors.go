package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
	// ErrCodePlanNotFound is used when no subscription plan matches the request
	ErrCodePlanNotFound = "ERR_PLAN_NOT_FOUND"
	// ErrCodeAlreadyRenewed is used when a billing period was already renewed
	ErrCodeAlreadyRenewed = "ERR_ALREADY_RENEWED"
	// ErrCodePaymentRequired is used when an unpaid invoice blocks the operation
	ErrCodePaymentRequired = "ERR_PAYMENT_REQUIRED"
	// ErrCodeLedgerImmutable is used when mutating a finalized billing entry
	ErrCodeLedgerImmutable = "ERR_LEDGER_IMMUTABLE"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Resource governance error codes
const (
	// ErrCodeLimitExceeded is used when a tenant resource cap denies the request
	ErrCodeLimitExceeded = "ERR_LIMIT_EXCEEDED"
	// ErrCodeDataUnavailable is used when usage sources cannot be reached
	ErrCodeDataUnavailable = "ERR_DATA_UNAVAILABLE"
	// ErrCodeCheckDeferred is used when a limit check cannot run yet
	ErrCodeCheckDeferred = "ERR_CHECK_DEFERRED"
	// ErrCodeSweepInProgress is used when a health sweep is already running
	ErrCodeSweepInProgress = "ERR_SWEEP_IN_PROGRESS"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors
	ErrCodeInvalidState:    http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:    http.StatusUnprocessableEntity,
	ErrCodePlanNotFound:    http.StatusNotFound,
	ErrCodeAlreadyRenewed:  http.StatusConflict,
	ErrCodePaymentRequired: http.StatusPaymentRequired,
	ErrCodeLedgerImmutable: http.StatusConflict,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	// Resource governance
	ErrCodeLimitExceeded:   http.StatusTooManyRequests,
	ErrCodeDataUnavailable: http.StatusServiceUnavailable,
	ErrCodeCheckDeferred:   http.StatusServiceUnavailable,
	ErrCodeSweepInProgress: http.StatusConflict,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps raw domain error codes to the standardized codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,

	// billing domain codes
	"INVALID_TENANT":         ErrCodeInvalidInput,
	"INVALID_SUBSCRIPTION":   ErrCodeInvalidInput,
	"INVALID_INVOICE_NUMBER": ErrCodeInvalidInput,
	"INVALID_BILLING_REASON": ErrCodeInvalidInput,
	"INVALID_AMOUNT":         ErrCodeInvalidInput,
	"INVALID_PLAN_NAME":      ErrCodeInvalidInput,
	"INVALID_SORT_ORDER":     ErrCodeInvalidInput,
	"INVALID_THRESHOLD":      ErrCodeInvalidInput,
	"INVALID_PRICE":          ErrCodeInvalidInput,
}

// NormalizeErrorCode converts a raw domain error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
