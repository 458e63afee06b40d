package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/billing"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StudentCountResult reports the billing consequence of a student-count
// update. TierChanged and ThresholdMet are mutually exclusive: when the count
// moves the tenant to a different tier only the plan change is billed, the
// overage path does not run.
type StudentCountResult struct {
	TierChanged  bool
	ThresholdMet bool
	NewPlan      *billing.SubscriptionPlan
	StudentCount int
	Entry        *billing.BillingLedgerEntry
}

// SubscriptionService drives the per-tenant subscription state machine and
// its append-only billing ledger. All mutating operations for one tenant are
// serialized through a keyed lock.
type SubscriptionService struct {
	planRepo   billing.PlanRepository
	subRepo    billing.SubscriptionRepository
	ledgerRepo billing.LedgerRepository
	sequencer  billing.InvoiceSequencer
	logger     *zap.Logger
	locks      *tenantLocks
}

// NewSubscriptionService creates a new SubscriptionService
func NewSubscriptionService(
	planRepo billing.PlanRepository,
	subRepo billing.SubscriptionRepository,
	ledgerRepo billing.LedgerRepository,
	sequencer billing.InvoiceSequencer,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		planRepo:   planRepo,
		subRepo:    subRepo,
		ledgerRepo: ledgerRepo,
		sequencer:  sequencer,
		logger:     logger,
		locks:      newTenantLocks(),
	}
}

// GetSubscription retrieves the tenant's subscription, provisioning one on
// the cheapest active plan on first access
func (s *SubscriptionService) GetSubscription(ctx context.Context, tenantID uuid.UUID) (*billing.TenantSubscription, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}

	sub, err := s.subRepo.FindByTenant(ctx, tenantID)
	if err == nil {
		return sub, nil
	}
	if err != shared.ErrNotFound {
		return nil, err
	}

	unlock := s.locks.Lock(tenantID)
	defer unlock()
	return s.getOrCreateLocked(ctx, tenantID)
}

// getOrCreateLocked loads or provisions the subscription. The caller must
// hold the tenant lock.
func (s *SubscriptionService) getOrCreateLocked(ctx context.Context, tenantID uuid.UUID) (*billing.TenantSubscription, error) {
	sub, err := s.subRepo.FindByTenant(ctx, tenantID)
	if err == nil {
		return sub, nil
	}
	if err != shared.ErrNotFound {
		return nil, err
	}

	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	plan := catalog.CheapestPlan()
	if plan == nil {
		return nil, billing.ErrPlanNotFound
	}

	sub, err = billing.NewTenantSubscription(tenantID, plan)
	if err != nil {
		return nil, err
	}
	if err := s.subRepo.Save(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("Provisioned subscription",
		zap.String("tenant_id", tenantID.String()),
		zap.String("plan", plan.Name))
	return sub, nil
}

// UpdateStudentCount re-evaluates the tenant's tier after a change in student
// count. A tier change records a prorated plan-change charge; staying on the
// same tier past its threshold records an overage charge. Never both.
func (s *SubscriptionService) UpdateStudentCount(ctx context.Context, tenantID uuid.UUID, count int) (*StudentCountResult, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if count < 0 {
		return nil, shared.NewDomainError("INVALID_COUNT", "Student count cannot be negative")
	}

	unlock := s.locks.Lock(tenantID)
	defer unlock()

	sub, err := s.getOrCreateLocked(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	currentPlan, err := catalog.ResolvePlan(sub.PlanID)
	if err != nil {
		return nil, err
	}
	targetPlan, err := catalog.FindPlanForStudentCount(count)
	if err != nil {
		return nil, err
	}

	sub.RecordStudentCount(count)
	result := &StudentCountResult{StudentCount: count, NewPlan: currentPlan}

	if targetPlan.ID != currentPlan.ID {
		result.TierChanged = true
		result.NewPlan = targetPlan

		amount := sub.ProratedPlanChangeAmount(currentPlan, targetPlan, time.Now())
		if err := sub.ChangePlan(targetPlan); err != nil {
			return nil, err
		}
		if amount.IsPositive() {
			entry, err := s.buildCharge(ctx, sub, amount, billing.BillingReasonPlanChange)
			if err != nil {
				return nil, err
			}
			result.Entry = entry
		}

		s.logger.Info("Plan tier changed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("old_plan", currentPlan.Name),
			zap.String("new_plan", targetPlan.Name),
			zap.Int("student_count", count))
	} else if !currentPlan.Covers(count) {
		result.ThresholdMet = true

		overage := currentPlan.OverageAmount(count)
		if overage.IsPositive() {
			entry, err := s.buildCharge(ctx, sub, overage, billing.BillingReasonOverage)
			if err != nil {
				return nil, err
			}
			result.Entry = entry
		}

		s.logger.Info("Student threshold exceeded",
			zap.String("tenant_id", tenantID.String()),
			zap.String("plan", currentPlan.Name),
			zap.Int("student_count", count),
			zap.Int("threshold", currentPlan.StudentThreshold))
	}

	if result.Entry != nil {
		if err := s.ledgerRepo.AppendWithSubscription(ctx, result.Entry, sub); err != nil {
			return nil, err
		}
	} else if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return result, nil
}

// ProcessRenewal advances the billing period one month and appends the
// renewal charge. Valid from active or expired. A renewal whose charge is
// still unpaid blocks further renewals until the charge is settled.
func (s *SubscriptionService) ProcessRenewal(ctx context.Context, tenantID uuid.UUID) (*billing.BillingLedgerEntry, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}

	unlock := s.locks.Lock(tenantID)
	defer unlock()

	sub, err := s.getOrCreateLocked(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if !sub.IsPaid {
		pending, err := s.ledgerRepo.HasUnpaidRenewal(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		if pending {
			return nil, billing.ErrAlreadyRenewed
		}
	}

	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := catalog.ResolvePlan(sub.PlanID)
	if err != nil {
		return nil, err
	}

	if err := sub.Renew(plan); err != nil {
		return nil, err
	}

	entry, err := s.buildCharge(ctx, sub, plan.MonthlyBasePrice, billing.BillingReasonRenewal)
	if err != nil {
		return nil, err
	}
	if err := s.ledgerRepo.AppendWithSubscription(ctx, entry, sub); err != nil {
		return nil, err
	}

	s.logger.Info("Subscription renewed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice", entry.InvoiceNumber),
		zap.Time("period_end", sub.PeriodEnd))
	return entry, nil
}

// MarkAsPaid settles a ledger entry. Calling it on an already-paid entry is a
// no-op that returns the entry unchanged. Settling a renewal charge also
// marks the subscription's current period as paid.
func (s *SubscriptionService) MarkAsPaid(ctx context.Context, entryID uuid.UUID, notes string) (*billing.BillingLedgerEntry, error) {
	entry, err := s.ledgerRepo.FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(entry.TenantID)
	defer unlock()

	if entry.Paid {
		return entry, nil
	}

	entry.MarkPaid(notes)
	if err := s.ledgerRepo.UpdatePayment(ctx, entry); err != nil {
		return nil, err
	}

	if entry.Reason == billing.BillingReasonRenewal {
		sub, err := s.subRepo.FindByTenant(ctx, entry.TenantID)
		if err != nil {
			return nil, err
		}
		sub.MarkPeriodPaid()
		if err := s.subRepo.Update(ctx, sub); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Ledger entry paid",
		zap.String("tenant_id", entry.TenantID.String()),
		zap.String("invoice", entry.InvoiceNumber),
		zap.String("reason", entry.Reason.String()))
	return entry, nil
}

// GetBillingHistory lists the tenant's ledger entries, newest first
func (s *SubscriptionService) GetBillingHistory(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (shared.Paginated[*billing.BillingLedgerEntry], error) {
	var empty shared.Paginated[*billing.BillingLedgerEntry]
	if tenantID == uuid.Nil {
		return empty, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	filter = filter.Normalize()

	sub, err := s.subRepo.FindByTenant(ctx, tenantID)
	if err != nil {
		if err == shared.ErrNotFound {
			return shared.NewPaginated[*billing.BillingLedgerEntry](nil, 0, filter.Page, filter.PageSize), nil
		}
		return empty, err
	}

	entries, total, err := s.ledgerRepo.FindBySubscription(ctx, sub.ID, filter)
	if err != nil {
		return empty, err
	}
	return shared.NewPaginated(entries, total, filter.Page, filter.PageSize), nil
}

// Suspend moves the tenant's subscription to suspended
func (s *SubscriptionService) Suspend(ctx context.Context, tenantID uuid.UUID) error {
	return s.applyTransition(ctx, tenantID, (*billing.TenantSubscription).Suspend)
}

// Expire moves the tenant's subscription to expired. The health monitor only
// flags expiry candidates; this call is the explicit administrative action.
func (s *SubscriptionService) Expire(ctx context.Context, tenantID uuid.UUID) error {
	return s.applyTransition(ctx, tenantID, (*billing.TenantSubscription).MarkExpired)
}

// Cancel terminates the tenant's subscription
func (s *SubscriptionService) Cancel(ctx context.Context, tenantID uuid.UUID) error {
	return s.applyTransition(ctx, tenantID, (*billing.TenantSubscription).Cancel)
}

func (s *SubscriptionService) applyTransition(ctx context.Context, tenantID uuid.UUID, transition func(*billing.TenantSubscription) error) error {
	if tenantID == uuid.Nil {
		return shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}

	unlock := s.locks.Lock(tenantID)
	defer unlock()

	sub, err := s.subRepo.FindByTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	old := sub.Status
	if err := transition(sub); err != nil {
		return err
	}
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return err
	}

	s.logger.Info("Subscription status changed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("from", old.String()),
		zap.String("to", sub.Status.String()))
	return nil
}

// buildCharge claims the next invoice number and constructs a ledger entry
// for the subscription. The caller holds the tenant lock and persists the
// entry together with the subscription through AppendWithSubscription; a
// sequence number claimed for a write that never commits is not reused.
func (s *SubscriptionService) buildCharge(ctx context.Context, sub *billing.TenantSubscription, amount decimal.Decimal, reason billing.BillingReason) (*billing.BillingLedgerEntry, error) {
	now := time.Now()
	seq, err := s.sequencer.Next(ctx, sub.TenantID, now)
	if err != nil {
		return nil, err
	}
	return billing.NewBillingLedgerEntry(sub, billing.FormatInvoiceNumber(sub.TenantID, now, seq), amount, reason)
}

func (s *SubscriptionService) loadCatalog(ctx context.Context) (*billing.PlanCatalog, error) {
	plans, err := s.planRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return billing.NewPlanCatalog(plans)
}
