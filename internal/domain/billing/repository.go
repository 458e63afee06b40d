package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/shared"
)

// PlanRepository defines persistence for subscription plans
type PlanRepository interface {
	// Save persists a new plan
	Save(ctx context.Context, plan *SubscriptionPlan) error

	// Update updates an existing plan
	Update(ctx context.Context, plan *SubscriptionPlan) error

	// FindByID retrieves a plan by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*SubscriptionPlan, error)

	// FindAll retrieves every plan, active or not, ordered by sort order
	FindAll(ctx context.Context) ([]*SubscriptionPlan, error)
}

// SubscriptionRepository defines persistence for tenant subscriptions
type SubscriptionRepository interface {
	// Save persists a new subscription
	Save(ctx context.Context, sub *TenantSubscription) error

	// Update updates an existing subscription
	Update(ctx context.Context, sub *TenantSubscription) error

	// FindByID retrieves a subscription by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*TenantSubscription, error)

	// FindByTenant retrieves the tenant's subscription (exactly one per tenant)
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*TenantSubscription, error)

	// FindAllActiveTenantIDs lists tenants with a non-cancelled subscription,
	// the population the health monitor sweeps
	FindAllActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// LedgerRepository defines persistence for the append-only billing history
type LedgerRepository interface {
	// Append persists a new ledger entry. Entries are never updated through
	// this method.
	Append(ctx context.Context, entry *BillingLedgerEntry) error

	// FindByID retrieves a ledger entry by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*BillingLedgerEntry, error)

	// FindBySubscription lists entries for a subscription ordered by billing
	// date descending
	FindBySubscription(ctx context.Context, subscriptionID uuid.UUID, filter shared.Filter) ([]*BillingLedgerEntry, int64, error)

	// AppendWithSubscription persists the entry and the updated subscription
	// as one atomic write. A charge never exists without the subscription
	// state that produced it, and vice versa.
	AppendWithSubscription(ctx context.Context, entry *BillingLedgerEntry, sub *TenantSubscription) error

	// HasUnpaidRenewal reports whether any renewal charge for the
	// subscription is still unpaid, the guard behind ErrAlreadyRenewed.
	// Matching is on payment state, not billing date, so the guard holds no
	// matter when within the period the renewal ran.
	HasUnpaidRenewal(ctx context.Context, subscriptionID uuid.UUID) (bool, error)

	// UpdatePayment persists the payment fields of an entry. Amount and
	// reason are never written back.
	UpdatePayment(ctx context.Context, entry *BillingLedgerEntry) error
}

// InvoiceSequencer claims the next value of the per-tenant serialized
// invoice counter for the month containing at. Implementations must be safe under
// concurrent claims for the same tenant.
type InvoiceSequencer interface {
	Next(ctx context.Context, tenantID uuid.UUID, at time.Time) (int64, error)
}
