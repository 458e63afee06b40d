package billing

import "errors"

var (
	// ErrPlanNotFound is returned when a plan cannot be resolved from the
	// catalog. Callers must not silently substitute another plan.
	ErrPlanNotFound = errors.New("subscription plan not found")

	// ErrAlreadyRenewed is returned when a renewal is attempted while an
	// unpaid renewal charge for the current period is still outstanding
	ErrAlreadyRenewed = errors.New("renewal already processed for this billing period")

	// ErrInvalidTransition is returned for a status change the state
	// machine does not permit
	ErrInvalidTransition = errors.New("subscription status transition not allowed")

	// ErrLedgerEntryImmutable is returned when an attempt is made to change
	// the amount or reason of an existing ledger entry
	ErrLedgerEntryImmutable = errors.New("ledger entry amount and reason are immutable")
)
