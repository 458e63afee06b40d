package shared

// DomainError is a domain-level error with a stable machine-readable code.
// Sentinel instances compare by pointer identity, so errors.Is works without
// a custom Is method.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// ErrNotFound is returned by repositories when no row matches
var ErrNotFound = NewDomainError("NOT_FOUND", "Resource not found")
