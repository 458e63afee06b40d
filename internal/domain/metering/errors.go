package metering

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable is returned when a collaborator usage source cannot
	// be reached. Callers skip the cycle; they never treat it as zero usage.
	ErrDataUnavailable = errors.New("usage data source unavailable")

	// ErrCheckDeferred is returned when a usage refresh could not run; the
	// previously cached values remain in force
	ErrCheckDeferred = errors.New("usage refresh deferred, cached values remain valid")
)

// LimitExceededError carries the structured denial of a cap check so the
// caller can report exactly which cap was hit and by how much
type LimitExceededError struct {
	Kind    ResourceKind
	Current int64
	Limit   int64
}

// Error implements the error interface
func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit exceeded: current %d, limit %d", e.Kind.DisplayName(), e.Current, e.Limit)
}

// NewLimitExceededError creates a LimitExceededError from a denial decision
func NewLimitExceededError(decision LimitDecision) *LimitExceededError {
	return &LimitExceededError{
		Kind:    decision.Kind,
		Current: decision.Current,
		Limit:   decision.Limit,
	}
}
