package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// BillingReason classifies a ledger charge
type BillingReason string

const (
	// BillingReasonRenewal is the recurring base charge for a new period
	BillingReasonRenewal BillingReason = "renewal"

	// BillingReasonOverage is a surcharge for exceeding the current plan's
	// included student threshold without a tier change
	BillingReasonOverage BillingReason = "overage"

	// BillingReasonPlanChange is the prorated charge for switching tiers
	// mid-period
	BillingReasonPlanChange BillingReason = "plan_change"

	// BillingReasonManual is an administrator-entered charge
	BillingReasonManual BillingReason = "manual"
)

// String returns the string representation of the reason
func (r BillingReason) String() string {
	return string(r)
}

// IsValid returns true if the reason is a known charge classification
func (r BillingReason) IsValid() bool {
	switch r {
	case BillingReasonRenewal, BillingReasonOverage, BillingReasonPlanChange, BillingReasonManual:
		return true
	}
	return false
}

// ParseBillingReason parses a string into a BillingReason
func ParseBillingReason(s string) (BillingReason, error) {
	r := BillingReason(s)
	if !r.IsValid() {
		return "", fmt.Errorf("invalid billing reason: %s", s)
	}
	return r, nil
}

// BillingLedgerEntry is one immutable charge in a subscription's append-only
// billing history. Amount and reason are fixed at creation; only the payment
// fields may change, and marking paid is a one-way transition.
type BillingLedgerEntry struct {
	shared.TenantAggregateRoot
	SubscriptionID uuid.UUID
	InvoiceNumber  string
	BillingDate    time.Time
	Amount         decimal.Decimal
	Reason         BillingReason
	Paid           bool
	PaymentNotes   string
	PaidAt         *time.Time
}

// NewBillingLedgerEntry creates a ledger charge for a subscription
func NewBillingLedgerEntry(
	sub *TenantSubscription,
	invoiceNumber string,
	amount decimal.Decimal,
	reason BillingReason,
) (*BillingLedgerEntry, error) {
	if sub == nil {
		return nil, shared.NewDomainError("INVALID_SUBSCRIPTION", "Subscription cannot be nil")
	}
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if !reason.IsValid() {
		return nil, shared.NewDomainError("INVALID_BILLING_REASON", "Invalid billing reason")
	}
	if amount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Charge amount cannot be negative")
	}

	entry := &BillingLedgerEntry{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(sub.TenantID),
		SubscriptionID:      sub.ID,
		InvoiceNumber:       invoiceNumber,
		BillingDate:         time.Now(),
		Amount:              amount,
		Reason:              reason,
		Paid:                false,
	}
	entry.AddDomainEvent(NewLedgerEntryCreatedEvent(entry))
	return entry, nil
}

// MarkPaid settles the charge. The transition is one-way: calling it on a
// paid entry is a no-op that preserves the original PaidAt.
func (e *BillingLedgerEntry) MarkPaid(notes string) {
	if e.Paid {
		return
	}
	now := time.Now()
	e.Paid = true
	e.PaidAt = &now
	e.PaymentNotes = notes
	e.UpdatedAt = now
	e.AddDomainEvent(NewLedgerEntryPaidEvent(e))
}

// IsOutstanding returns true for an unpaid charge
func (e *BillingLedgerEntry) IsOutstanding() bool {
	return !e.Paid
}

// FormatInvoiceNumber builds an invoice number from the per-tenant monthly
// sequence: INV-{YYYYMM}-{tenant prefix}-{sequence}. Sequences are claimed
// through a serialized per-tenant counter, so numbers are unique and
// monotonic within a tenant even under concurrent creation.
func FormatInvoiceNumber(tenantID uuid.UUID, at time.Time, seq int64) string {
	prefix := strings.ReplaceAll(tenantID.String(), "-", "")[:8]
	return fmt.Sprintf("INV-%s-%s-%06d", at.Format("200601"), prefix, seq)
}
