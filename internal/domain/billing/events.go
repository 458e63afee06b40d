package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeSubscription = "TenantSubscription"
	AggregateTypeLedgerEntry  = "BillingLedgerEntry"
)

// Event type constants
const (
	EventTypeSubscriptionCreated       = "SubscriptionCreated"
	EventTypeSubscriptionRenewed       = "SubscriptionRenewed"
	EventTypeSubscriptionStatusChanged = "SubscriptionStatusChanged"
	EventTypePlanChanged               = "PlanChanged"
	EventTypeLedgerEntryCreated        = "LedgerEntryCreated"
	EventTypeLedgerEntryPaid           = "LedgerEntryPaid"
)

// SubscriptionCreatedEvent is published when a tenant subscription is
// provisioned
type SubscriptionCreatedEvent struct {
	shared.BaseDomainEvent
	PlanID      uuid.UUID `json:"plan_id"`
	PlanName    string    `json:"plan_name"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// NewSubscriptionCreatedEvent creates a new SubscriptionCreatedEvent
func NewSubscriptionCreatedEvent(sub *TenantSubscription, plan *SubscriptionPlan) *SubscriptionCreatedEvent {
	return &SubscriptionCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSubscriptionCreated, AggregateTypeSubscription, sub.ID, sub.TenantID),
		PlanID:          plan.ID,
		PlanName:        plan.Name,
		PeriodStart:     sub.PeriodStart,
		PeriodEnd:       sub.PeriodEnd,
	}
}

// SubscriptionRenewedEvent is published when a billing period is advanced
type SubscriptionRenewedEvent struct {
	shared.BaseDomainEvent
	PlanID          uuid.UUID `json:"plan_id"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	NextBillingDate time.Time `json:"next_billing_date"`
}

// NewSubscriptionRenewedEvent creates a new SubscriptionRenewedEvent
func NewSubscriptionRenewedEvent(sub *TenantSubscription, plan *SubscriptionPlan) *SubscriptionRenewedEvent {
	return &SubscriptionRenewedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSubscriptionRenewed, AggregateTypeSubscription, sub.ID, sub.TenantID),
		PlanID:          plan.ID,
		PeriodStart:     sub.PeriodStart,
		PeriodEnd:       sub.PeriodEnd,
		NextBillingDate: sub.NextBillingDate,
	}
}

// SubscriptionStatusChangedEvent is published on any status transition
type SubscriptionStatusChangedEvent struct {
	shared.BaseDomainEvent
	OldStatus SubscriptionStatus `json:"old_status"`
	NewStatus SubscriptionStatus `json:"new_status"`
}

// NewSubscriptionStatusChangedEvent creates a new SubscriptionStatusChangedEvent
func NewSubscriptionStatusChangedEvent(sub *TenantSubscription, oldStatus, newStatus SubscriptionStatus) *SubscriptionStatusChangedEvent {
	return &SubscriptionStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSubscriptionStatusChanged, AggregateTypeSubscription, sub.ID, sub.TenantID),
		OldStatus:       oldStatus,
		NewStatus:       newStatus,
	}
}

// PlanChangedEvent is published when a subscription moves to a different tier
type PlanChangedEvent struct {
	shared.BaseDomainEvent
	OldPlanID   uuid.UUID `json:"old_plan_id"`
	NewPlanID   uuid.UUID `json:"new_plan_id"`
	NewPlanName string    `json:"new_plan_name"`
}

// NewPlanChangedEvent creates a new PlanChangedEvent
func NewPlanChangedEvent(sub *TenantSubscription, oldPlanID uuid.UUID, newPlan *SubscriptionPlan) *PlanChangedEvent {
	return &PlanChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePlanChanged, AggregateTypeSubscription, sub.ID, sub.TenantID),
		OldPlanID:       oldPlanID,
		NewPlanID:       newPlan.ID,
		NewPlanName:     newPlan.Name,
	}
}

// LedgerEntryCreatedEvent is published when a charge is appended to the
// billing history
type LedgerEntryCreatedEvent struct {
	shared.BaseDomainEvent
	SubscriptionID uuid.UUID     `json:"subscription_id"`
	InvoiceNumber  string        `json:"invoice_number"`
	Amount         string        `json:"amount"`
	Reason         BillingReason `json:"reason"`
}

// NewLedgerEntryCreatedEvent creates a new LedgerEntryCreatedEvent
func NewLedgerEntryCreatedEvent(entry *BillingLedgerEntry) *LedgerEntryCreatedEvent {
	return &LedgerEntryCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerEntryCreated, AggregateTypeLedgerEntry, entry.ID, entry.TenantID),
		SubscriptionID:  entry.SubscriptionID,
		InvoiceNumber:   entry.InvoiceNumber,
		Amount:          entry.Amount.String(),
		Reason:          entry.Reason,
	}
}

// LedgerEntryPaidEvent is published when a charge is settled
type LedgerEntryPaidEvent struct {
	shared.BaseDomainEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	InvoiceNumber  string    `json:"invoice_number"`
	PaidAt         time.Time `json:"paid_at"`
}

// NewLedgerEntryPaidEvent creates a new LedgerEntryPaidEvent
func NewLedgerEntryPaidEvent(entry *BillingLedgerEntry) *LedgerEntryPaidEvent {
	paidAt := time.Now()
	if entry.PaidAt != nil {
		paidAt = *entry.PaidAt
	}
	return &LedgerEntryPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerEntryPaid, AggregateTypeLedgerEntry, entry.ID, entry.TenantID),
		SubscriptionID:  entry.SubscriptionID,
		InvoiceNumber:   entry.InvoiceNumber,
		PaidAt:          paidAt,
	}
}
