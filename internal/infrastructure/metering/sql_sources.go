// Package metering provides the infrastructure adapters behind the usage
// meter's data sources: SQL count queries, storage accounting, and the
// Redis-backed API call counter.
package metering

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	appmetering "github.com/schoolsaas/backend/internal/application/metering"
	"gorm.io/gorm"
)

// SQLUsageSource reads tenant usage counters straight from the operational
// tables with aggregate queries. It implements the student, user, storage,
// and database size sources.
type SQLUsageSource struct {
	db *gorm.DB
}

// NewSQLUsageSource creates a new SQL-backed usage source
func NewSQLUsageSource(db *gorm.DB) *SQLUsageSource {
	return &SQLUsageSource{db: db}
}

// CountStudents counts the tenant's enrolled student records
func (s *SQLUsageSource) CountStudents(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table("students").
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting students: %w", err)
	}
	return count, nil
}

// CountUsers counts the tenant's staff user accounts
func (s *SQLUsageSource) CountUsers(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table("users").
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// StorageBytes sums the byte sizes of the tenant's stored files
func (s *SQLUsageSource) StorageBytes(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Table("stored_files").
		Where("tenant_id = ?", tenantID).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("summing storage: %w", err)
	}
	return total, nil
}

// DatabaseSizeBytes measures the on-disk footprint of the tenant's schema.
// Tenants live in schemas named tenant_{first 8 hex of the id}; the size is
// the sum of every relation in that schema. On non-postgres databases the
// footprint is reported as zero, which leaves the database size cap inert.
func (s *SQLUsageSource) DatabaseSizeBytes(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	if s.db.Dialector.Name() != "postgres" {
		return 0, nil
	}

	schema := TenantSchemaName(tenantID)
	var total int64
	err := s.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(pg_total_relation_size(c.oid)), 0)
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = ?`, schema).Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("measuring schema %s: %w", schema, err)
	}
	return total, nil
}

// TenantSchemaName returns the postgres schema a tenant's data lives in
func TenantSchemaName(tenantID uuid.UUID) string {
	return "tenant_" + strings.ReplaceAll(tenantID.String(), "-", "")[:8]
}

// Interface checks
var (
	_ appmetering.StudentCounter       = (*SQLUsageSource)(nil)
	_ appmetering.UserCounter          = (*SQLUsageSource)(nil)
	_ appmetering.StorageUsageProvider = (*SQLUsageSource)(nil)
	_ appmetering.DatabaseSizeProvider = (*SQLUsageSource)(nil)
)
