package metering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/metering"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// UsageMeterService computes point-in-time usage snapshots from the
// collaborator data sources. It is strictly read-only; persisting the result
// is the enforcer's job.
type UsageMeterService struct {
	students StudentCounter
	users    UserCounter
	storage  StorageUsageProvider
	apiCalls APICallCounter
	dbSize   DatabaseSizeProvider
	logger   *zap.Logger
}

// NewUsageMeterService creates a new UsageMeterService
func NewUsageMeterService(
	students StudentCounter,
	users UserCounter,
	storage StorageUsageProvider,
	apiCalls APICallCounter,
	dbSize DatabaseSizeProvider,
	logger *zap.Logger,
) *UsageMeterService {
	return &UsageMeterService{
		students: students,
		users:    users,
		storage:  storage,
		apiCalls: apiCalls,
		dbSize:   dbSize,
		logger:   logger,
	}
}

// ComputeUsage gathers every counter for the tenant. Any source failure
// yields ErrDataUnavailable; a partial snapshot is never returned, so a dead
// source can never masquerade as zero usage.
func (s *UsageMeterService) ComputeUsage(ctx context.Context, tenantID uuid.UUID) (metering.UsageSnapshot, error) {
	var snapshot metering.UsageSnapshot
	if tenantID == uuid.Nil {
		return snapshot, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}

	students, err := s.students.CountStudents(ctx, tenantID)
	if err != nil {
		return snapshot, s.unavailable(tenantID, "students", err)
	}
	users, err := s.users.CountUsers(ctx, tenantID)
	if err != nil {
		return snapshot, s.unavailable(tenantID, "users", err)
	}
	storageBytes, err := s.storage.StorageBytes(ctx, tenantID)
	if err != nil {
		return snapshot, s.unavailable(tenantID, "storage", err)
	}
	perMinute, err := s.apiCalls.CallsLastMinute(ctx, tenantID)
	if err != nil {
		return snapshot, s.unavailable(tenantID, "api_calls", err)
	}
	perHour, err := s.apiCalls.CallsLastHour(ctx, tenantID)
	if err != nil {
		return snapshot, s.unavailable(tenantID, "api_calls", err)
	}
	dbBytes, err := s.dbSize.DatabaseSizeBytes(ctx, tenantID)
	if err != nil {
		return snapshot, s.unavailable(tenantID, "database_size", err)
	}

	snapshot = metering.UsageSnapshot{
		TenantID:           tenantID,
		StudentCount:       students,
		UserCount:          users,
		StorageBytes:       storageBytes,
		APICallsLastMinute: perMinute,
		APICallsLastHour:   perHour,
		DatabaseSizeBytes:  dbBytes,
		ComputedAt:         time.Now(),
	}
	return snapshot, nil
}

func (s *UsageMeterService) unavailable(tenantID uuid.UUID, source string, err error) error {
	s.logger.Warn("Usage source unavailable",
		zap.String("tenant_id", tenantID.String()),
		zap.String("source", source),
		zap.Error(err))
	return errors.Join(metering.ErrDataUnavailable, fmt.Errorf("%s source: %w", source, err))
}
