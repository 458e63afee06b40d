package metering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/billing"
	"github.com/schoolsaas/backend/internal/domain/metering"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Per-tier default caps, scaled by the plan's sort order. Overridable per
// tenant through OverrideLimits.
const (
	baseStorageMBPerTier      = 1024
	baseUsersPerTier          = 25
	baseAPIPerMinutePerTier   = 120
	baseAPIPerHourPerTier     = 3600
	baseDatabaseSizeMBPerTier = 512
)

// SubscriptionProvider resolves a tenant's subscription, provisioning it on
// first access. Implemented by the billing application service.
type SubscriptionProvider interface {
	GetSubscription(ctx context.Context, tenantID uuid.UUID) (*billing.TenantSubscription, error)
}

// LimitEnforcerConfig contains configuration for LimitEnforcerService
type LimitEnforcerConfig struct {
	StalenessWindow time.Duration
}

// DefaultLimitEnforcerConfig returns default configuration
func DefaultLimitEnforcerConfig() LimitEnforcerConfig {
	return LimitEnforcerConfig{StalenessWindow: 5 * time.Minute}
}

// LimitEnforcerService answers cap checks from the cached per-tenant usage
// counters. Decisions are advisory: nothing is reserved and nothing is rolled
// back, the caller simply refuses the operation on a denial.
type LimitEnforcerService struct {
	limitRepo     metering.ResourceLimitRepository
	subscriptions SubscriptionProvider
	planRepo      billing.PlanRepository
	meter         *UsageMeterService
	audit         AuditRecorder
	logger        *zap.Logger
	config        LimitEnforcerConfig
}

// NewLimitEnforcerService creates a new LimitEnforcerService
func NewLimitEnforcerService(
	limitRepo metering.ResourceLimitRepository,
	subscriptions SubscriptionProvider,
	planRepo billing.PlanRepository,
	meter *UsageMeterService,
	audit AuditRecorder,
	logger *zap.Logger,
	config LimitEnforcerConfig,
) *LimitEnforcerService {
	return &LimitEnforcerService{
		limitRepo:     limitRepo,
		subscriptions: subscriptions,
		planRepo:      planRepo,
		meter:         meter,
		audit:         audit,
		logger:        logger,
		config:        config,
	}
}

// CheckAndReserve decides whether the tenant may consume requestedDelta more
// units of the resource. The decision reads the cached usage only; a stale
// cache still answers, the monitor refreshes it out of band.
func (s *LimitEnforcerService) CheckAndReserve(ctx context.Context, tenantID uuid.UUID, kind metering.ResourceKind, requestedDelta int64) (metering.LimitDecision, error) {
	var decision metering.LimitDecision
	if tenantID == uuid.Nil {
		return decision, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !kind.IsValid() {
		return decision, shared.NewDomainError("INVALID_RESOURCE_KIND", "Invalid resource kind")
	}
	if requestedDelta <= 0 {
		requestedDelta = 1
	}

	limits, err := s.getOrCreateLimits(ctx, tenantID)
	if err != nil {
		return decision, err
	}

	if limits.IsUsageStale(s.config.StalenessWindow, time.Now()) {
		s.logger.Debug("Answering limit check from stale cache",
			zap.String("tenant_id", tenantID.String()),
			zap.String("kind", kind.String()))
	}

	decision = limits.Check(kind, requestedDelta)
	if !decision.Allowed {
		s.logger.Info("Resource limit denied",
			zap.String("tenant_id", tenantID.String()),
			zap.String("kind", kind.String()),
			zap.Int64("current", decision.Current),
			zap.Int64("limit", decision.Limit),
			zap.Int64("requested", requestedDelta))
		if s.audit != nil {
			s.audit.Record(AuditEvent{
				TenantID: tenantID,
				Action:   "limit.denied",
				Detail:   fmt.Sprintf("%s: current %d, limit %d, requested %d", kind, decision.Current, decision.Limit, requestedDelta),
				At:       time.Now(),
			})
		}
	}
	return decision, nil
}

// UpdateUsage recomputes the tenant's usage and replaces the cached counters
// wholesale. When the meter cannot reach a source the refresh is skipped and
// ErrCheckDeferred is returned; the previously cached values stay in force.
func (s *LimitEnforcerService) UpdateUsage(ctx context.Context, tenantID uuid.UUID) (metering.UsageSnapshot, error) {
	snapshot, err := s.meter.ComputeUsage(ctx, tenantID)
	if err != nil {
		if errors.Is(err, metering.ErrDataUnavailable) {
			return snapshot, errors.Join(metering.ErrCheckDeferred, err)
		}
		return snapshot, err
	}

	limits, err := s.getOrCreateLimits(ctx, tenantID)
	if err != nil {
		return snapshot, err
	}

	limits.ReplaceUsage(snapshot)
	if err := s.limitRepo.ReplaceUsage(ctx, limits); err != nil {
		return snapshot, err
	}

	s.logger.Debug("Usage cache replaced",
		zap.String("tenant_id", tenantID.String()),
		zap.Int64("students", snapshot.StudentCount),
		zap.Int64("storage_bytes", snapshot.StorageBytes))
	return snapshot, nil
}

// OverrideLimits replaces the tenant's hard caps (administrative action)
func (s *LimitEnforcerService) OverrideLimits(ctx context.Context, tenantID uuid.UUID, caps metering.ResourceCaps) (*metering.TenantResourceLimit, error) {
	limits, err := s.getOrCreateLimits(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	limits.ReplaceCaps(caps)
	if err := s.limitRepo.ReplaceCaps(ctx, limits); err != nil {
		return nil, err
	}

	s.logger.Info("Resource caps overridden",
		zap.String("tenant_id", tenantID.String()),
		zap.Int64("max_storage_mb", caps.MaxStorageMB),
		zap.Int64("max_users", caps.MaxUsers))
	if s.audit != nil {
		s.audit.Record(AuditEvent{
			TenantID: tenantID,
			Action:   "limits.overridden",
			Detail:   fmt.Sprintf("storage %d MB, users %d, db %d MB", caps.MaxStorageMB, caps.MaxUsers, caps.MaxDatabaseSizeMB),
			At:       time.Now(),
		})
	}
	return limits, nil
}

// GetLimits retrieves the tenant's limit row, provisioning plan defaults on
// first access
func (s *LimitEnforcerService) GetLimits(ctx context.Context, tenantID uuid.UUID) (*metering.TenantResourceLimit, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	return s.getOrCreateLimits(ctx, tenantID)
}

// getOrCreateLimits loads the tenant's limit row, lazily seeding it with
// defaults derived from the tenant's current plan tier
func (s *LimitEnforcerService) getOrCreateLimits(ctx context.Context, tenantID uuid.UUID) (*metering.TenantResourceLimit, error) {
	limits, err := s.limitRepo.FindByTenant(ctx, tenantID)
	if err == nil {
		return limits, nil
	}
	if err != shared.ErrNotFound {
		return nil, err
	}

	sub, err := s.subscriptions.GetSubscription(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	plan, err := s.planRepo.FindByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	limits, err = metering.NewTenantResourceLimit(tenantID, defaultCapsForPlan(plan))
	if err != nil {
		return nil, err
	}
	if err := s.limitRepo.Save(ctx, limits); err != nil {
		return nil, err
	}

	s.logger.Info("Provisioned resource limits",
		zap.String("tenant_id", tenantID.String()),
		zap.String("plan", plan.Name))
	return limits, nil
}

func defaultCapsForPlan(plan *billing.SubscriptionPlan) metering.ResourceCaps {
	tier := int64(plan.SortOrder)
	if tier < 1 {
		tier = 1
	}
	return metering.ResourceCaps{
		MaxStorageMB:          baseStorageMBPerTier * tier,
		MaxUsers:              baseUsersPerTier * tier,
		MaxStudents:           nil, // student capacity is governed by the billing tier
		APIRateLimitPerMinute: baseAPIPerMinutePerTier * tier,
		APIRateLimitPerHour:   baseAPIPerHourPerTier * tier,
		MaxDatabaseSizeMB:     baseDatabaseSizeMBPerTier * tier,
	}
}
