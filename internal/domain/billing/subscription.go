package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus represents the lifecycle state of a tenant subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// String returns the string representation of the status
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a known lifecycle state
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusSuspended,
		SubscriptionStatusExpired, SubscriptionStatusCancelled:
		return true
	}
	return false
}

// canTransitionTo encodes the monotonic status ladder. The only backward
// edge is expired -> active, taken by renewal.
func (s SubscriptionStatus) canTransitionTo(target SubscriptionStatus) bool {
	switch s {
	case SubscriptionStatusActive:
		return target == SubscriptionStatusSuspended ||
			target == SubscriptionStatusExpired ||
			target == SubscriptionStatusCancelled
	case SubscriptionStatusSuspended:
		return target == SubscriptionStatusExpired ||
			target == SubscriptionStatusCancelled
	case SubscriptionStatusExpired:
		return target == SubscriptionStatusActive ||
			target == SubscriptionStatusCancelled
	case SubscriptionStatusCancelled:
		return false
	}
	return false
}

// TenantSubscription is the subscription state machine, exactly one per
// tenant. It is mutated only through the methods below; every mutating
// method records the matching domain event on the aggregate.
type TenantSubscription struct {
	shared.TenantAggregateRoot
	PlanID                  uuid.UUID
	Status                  SubscriptionStatus
	PeriodStart             time.Time
	PeriodEnd               time.Time
	CurrentBillingAmount    decimal.Decimal
	IsPaid                  bool
	NextBillingDate         time.Time
	StudentCountAtLastCheck int
}

// NewTenantSubscription provisions a subscription on the given plan. The
// initial state is active with a one-month billing period starting now and
// nothing paid yet.
func NewTenantSubscription(tenantID uuid.UUID, plan *SubscriptionPlan) (*TenantSubscription, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}

	now := time.Now()
	periodEnd := now.AddDate(0, 1, 0)

	sub := &TenantSubscription{
		TenantAggregateRoot:  shared.NewTenantAggregateRoot(tenantID),
		PlanID:               plan.ID,
		Status:               SubscriptionStatusActive,
		PeriodStart:          now,
		PeriodEnd:            periodEnd,
		CurrentBillingAmount: plan.MonthlyBasePrice,
		IsPaid:               false,
		NextBillingDate:      periodEnd,
	}
	sub.AddDomainEvent(NewSubscriptionCreatedEvent(sub, plan))
	return sub, nil
}

// ChangePlan moves the subscription to a different tier. The billing period
// is untouched; the caller records the prorated charge in the ledger within
// the same transaction.
func (s *TenantSubscription) ChangePlan(newPlan *SubscriptionPlan) error {
	if newPlan == nil {
		return ErrPlanNotFound
	}
	if s.Status == SubscriptionStatusCancelled {
		return ErrInvalidTransition
	}
	oldPlanID := s.PlanID
	s.PlanID = newPlan.ID
	s.CurrentBillingAmount = newPlan.MonthlyBasePrice
	s.UpdatedAt = time.Now()
	s.AddDomainEvent(NewPlanChangedEvent(s, oldPlanID, newPlan))
	return nil
}

// RecordStudentCount stores the count observed by the last check
func (s *TenantSubscription) RecordStudentCount(count int) {
	s.StudentCountAtLastCheck = count
	s.UpdatedAt = time.Now()
}

// Renew advances the billing period by one month on the given plan. Valid
// only from active or expired. Renewal always produces a fresh unpaid
// charge; idempotency is deliberately not provided here, callers guard
// against double invocation.
func (s *TenantSubscription) Renew(plan *SubscriptionPlan) error {
	if plan == nil {
		return ErrPlanNotFound
	}
	if s.Status != SubscriptionStatusActive && s.Status != SubscriptionStatusExpired {
		return ErrInvalidTransition
	}

	s.PeriodStart = s.PeriodEnd
	s.PeriodEnd = s.PeriodEnd.AddDate(0, 1, 0)
	s.Status = SubscriptionStatusActive
	s.CurrentBillingAmount = plan.MonthlyBasePrice
	s.IsPaid = false
	s.NextBillingDate = s.PeriodEnd
	s.UpdatedAt = time.Now()
	s.AddDomainEvent(NewSubscriptionRenewedEvent(s, plan))
	return nil
}

// MarkPeriodPaid records that the current period's renewal charge has been
// settled. Called when the matching ledger entry is marked paid.
func (s *TenantSubscription) MarkPeriodPaid() {
	s.IsPaid = true
	s.UpdatedAt = time.Now()
}

// Suspend moves an active subscription to suspended (administrative action)
func (s *TenantSubscription) Suspend() error {
	return s.transition(SubscriptionStatusSuspended)
}

// MarkExpired moves the subscription to expired (explicit administrative
// action; the health monitor only flags expiry candidates)
func (s *TenantSubscription) MarkExpired() error {
	return s.transition(SubscriptionStatusExpired)
}

// Cancel terminates the subscription. Cancelled is a terminal state.
func (s *TenantSubscription) Cancel() error {
	return s.transition(SubscriptionStatusCancelled)
}

func (s *TenantSubscription) transition(target SubscriptionStatus) error {
	if !s.Status.canTransitionTo(target) {
		return ErrInvalidTransition
	}
	old := s.Status
	s.Status = target
	s.UpdatedAt = time.Now()
	s.AddDomainEvent(NewSubscriptionStatusChangedEvent(s, old, target))
	return nil
}

// IsRenewalDueWithin returns true if the next billing date falls inside the
// warning window
func (s *TenantSubscription) IsRenewalDueWithin(window time.Duration) bool {
	return time.Until(s.NextBillingDate) <= window
}

// IsExpiryCandidate returns true when the billing date has passed with the
// period still unpaid. The monitor surfaces this; it never flips the status
// itself.
func (s *TenantSubscription) IsExpiryCandidate(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && !s.IsPaid && now.After(s.NextBillingDate)
}

// RemainingPeriodFraction returns the unexpired share of the current billing
// period at the given instant, in [0, 1]
func (s *TenantSubscription) RemainingPeriodFraction(now time.Time) decimal.Decimal {
	total := s.PeriodEnd.Sub(s.PeriodStart)
	if total <= 0 {
		return decimal.Zero
	}
	remaining := s.PeriodEnd.Sub(now)
	if remaining <= 0 {
		return decimal.Zero
	}
	if remaining > total {
		remaining = total
	}
	return decimal.NewFromFloat(remaining.Hours()).Div(decimal.NewFromFloat(total.Hours()))
}

// ProratedPlanChangeAmount computes the charge for switching plans mid-period:
// the base-price difference scaled by the unexpired share of the period.
// Downgrades prorate to zero, never to a credit.
func (s *TenantSubscription) ProratedPlanChangeAmount(oldPlan, newPlan *SubscriptionPlan, now time.Time) decimal.Decimal {
	diff := newPlan.MonthlyBasePrice.Sub(oldPlan.MonthlyBasePrice)
	if !diff.IsPositive() {
		return decimal.Zero
	}
	return diff.Mul(s.RemainingPeriodFraction(now)).Round(2)
}
