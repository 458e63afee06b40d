package metering

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/billing"
	"github.com/schoolsaas/backend/internal/domain/metering"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HealthMonitorConfig contains configuration for HealthMonitorService
type HealthMonitorConfig struct {
	Workers              int
	TenantTimeout        time.Duration
	RenewalWarningWindow time.Duration
}

// DefaultHealthMonitorConfig returns default configuration
func DefaultHealthMonitorConfig() HealthMonitorConfig {
	return HealthMonitorConfig{
		Workers:              4,
		TenantTimeout:        30 * time.Second,
		RenewalWarningWindow: 30 * 24 * time.Hour,
	}
}

// SweepFailure records one tenant whose health check failed during a sweep
type SweepFailure struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Err      string    `json:"error"`
}

// SweepReport summarizes one sweep over the tenant population
type SweepReport struct {
	Processed  int            `json:"processed"`
	Failed     []SweepFailure `json:"failed,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// HealthMonitorService periodically sweeps every active tenant, refreshing
// the usage cache and raising alerts. Tenants are checked independently: one
// tenant's failure or timeout never stops the sweep, it is recorded in the
// report and the next tenant proceeds.
type HealthMonitorService struct {
	enforcer      *LimitEnforcerService
	subscriptions SubscriptionProvider
	subRepo       billing.SubscriptionRepository
	planRepo      billing.PlanRepository
	healthRepo    metering.HealthRepository
	audit         AuditRecorder
	logger        *zap.Logger
	config        HealthMonitorConfig
}

// NewHealthMonitorService creates a new HealthMonitorService
func NewHealthMonitorService(
	enforcer *LimitEnforcerService,
	subscriptions SubscriptionProvider,
	subRepo billing.SubscriptionRepository,
	planRepo billing.PlanRepository,
	healthRepo metering.HealthRepository,
	audit AuditRecorder,
	logger *zap.Logger,
	config HealthMonitorConfig,
) *HealthMonitorService {
	if config.Workers <= 0 {
		config.Workers = DefaultHealthMonitorConfig().Workers
	}
	if config.TenantTimeout <= 0 {
		config.TenantTimeout = DefaultHealthMonitorConfig().TenantTimeout
	}
	if config.RenewalWarningWindow <= 0 {
		config.RenewalWarningWindow = DefaultHealthMonitorConfig().RenewalWarningWindow
	}
	return &HealthMonitorService{
		enforcer:      enforcer,
		subscriptions: subscriptions,
		subRepo:       subRepo,
		planRepo:      planRepo,
		healthRepo:    healthRepo,
		audit:         audit,
		logger:        logger,
		config:        config,
	}
}

// CheckAllTenants sweeps every tenant with a non-cancelled subscription
// through a bounded worker pool. Each tenant runs under its own timeout; a
// timeout counts as data unavailable for that tenant and leaves its cache
// untouched.
func (s *HealthMonitorService) CheckAllTenants(ctx context.Context) (*SweepReport, error) {
	tenantIDs, err := s.subRepo.FindAllActiveTenantIDs(ctx)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{StartedAt: time.Now()}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.config.Workers)
	for _, tenantID := range tenantIDs {
		tenantID := tenantID
		g.Go(func() error {
			tenantCtx, cancel := context.WithTimeout(ctx, s.config.TenantTimeout)
			defer cancel()

			checkErr := s.checkTenant(tenantCtx, tenantID)

			mu.Lock()
			defer mu.Unlock()
			if checkErr != nil {
				report.Failed = append(report.Failed, SweepFailure{TenantID: tenantID, Err: checkErr.Error()})
			} else {
				report.Processed++
			}
			// failures are reported, never propagated, so the sweep runs
			// to completion
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now()
	s.logger.Info("Health sweep finished",
		zap.Int("tenants", len(tenantIDs)),
		zap.Int("processed", report.Processed),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

// checkTenant refreshes one tenant's usage and recomputes its health record
func (s *HealthMonitorService) checkTenant(ctx context.Context, tenantID uuid.UUID) error {
	health, err := s.getOrCreateHealth(ctx, tenantID)
	if err != nil {
		return err
	}

	if _, err := s.enforcer.UpdateUsage(ctx, tenantID); err != nil {
		health.RecordFailure(err)
		if updateErr := s.healthRepo.Update(ctx, health); updateErr != nil {
			s.logger.Warn("Failed to record health check failure",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(updateErr))
		}
		return err
	}

	limits, err := s.enforcer.GetLimits(ctx, tenantID)
	if err != nil {
		return err
	}
	health.RecordCheck(limits)

	for _, kind := range limits.OverCapKinds() {
		limit, _ := limits.CapValue(kind)
		health.RaiseAlert(metering.AlertOverCapacity, kind,
			"%s over capacity: %d of %d", kind.DisplayName(), limits.CurrentValue(kind), limit)
	}

	sub, err := s.subscriptions.GetSubscription(ctx, tenantID)
	if err != nil {
		return err
	}
	plan, err := s.planRepo.FindByID(ctx, sub.PlanID)
	if err != nil {
		return err
	}
	if !plan.Covers(int(limits.CurrentStudents)) {
		health.RaiseAlert(metering.AlertThresholdCrossed, metering.ResourceStudents,
			"%d students exceed the %s plan threshold of %d", limits.CurrentStudents, plan.Name, plan.StudentThreshold)
	}

	now := time.Now()
	if sub.IsExpiryCandidate(now) {
		health.RaiseAlert(metering.AlertExpiryCandidate, "",
			"billing period ended %s with the renewal unpaid", sub.NextBillingDate.Format("2006-01-02"))
		if s.audit != nil {
			s.audit.Record(AuditEvent{
				TenantID: tenantID,
				Action:   "subscription.expiry_candidate",
				Detail:   fmt.Sprintf("next billing date %s, unpaid", sub.NextBillingDate.Format(time.RFC3339)),
				At:       now,
			})
		}
	} else if sub.IsRenewalDueWithin(s.config.RenewalWarningWindow) {
		health.RaiseAlert(metering.AlertRenewalDue, "",
			"renewal due on %s", sub.NextBillingDate.Format("2006-01-02"))
	}

	return s.healthRepo.Update(ctx, health)
}

// GetHealthStatus retrieves the tenant's health record, provisioning an empty
// one on first access
func (s *HealthMonitorService) GetHealthStatus(ctx context.Context, tenantID uuid.UUID) (*metering.TenantHealth, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	return s.getOrCreateHealth(ctx, tenantID)
}

// ClearAlerts empties the tenant's alert list (operator action)
func (s *HealthMonitorService) ClearAlerts(ctx context.Context, tenantID uuid.UUID) error {
	health, err := s.getOrCreateHealth(ctx, tenantID)
	if err != nil {
		return err
	}
	health.ClearAlerts()
	if err := s.healthRepo.Update(ctx, health); err != nil {
		return err
	}

	s.logger.Info("Alerts cleared", zap.String("tenant_id", tenantID.String()))
	if s.audit != nil {
		s.audit.Record(AuditEvent{
			TenantID: tenantID,
			Action:   "health.alerts_cleared",
			At:       time.Now(),
		})
	}
	return nil
}

func (s *HealthMonitorService) getOrCreateHealth(ctx context.Context, tenantID uuid.UUID) (*metering.TenantHealth, error) {
	health, err := s.healthRepo.FindByTenant(ctx, tenantID)
	if err == nil {
		return health, nil
	}
	if err != shared.ErrNotFound {
		return nil, err
	}

	health, err = metering.NewTenantHealth(tenantID)
	if err != nil {
		return nil, err
	}
	if err := s.healthRepo.Save(ctx, health); err != nil {
		return nil, err
	}
	return health, nil
}
