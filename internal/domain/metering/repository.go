package metering

import (
	"context"

	"github.com/google/uuid"
)

// ResourceLimitRepository defines persistence for tenant resource limits
type ResourceLimitRepository interface {
	// Save persists a new limit row
	Save(ctx context.Context, limit *TenantResourceLimit) error

	// FindByTenant retrieves the tenant's limit row (exactly one per tenant)
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*TenantResourceLimit, error)

	// ReplaceUsage persists the cached usage fields in a single update so
	// the cache is replaced wholesale, never partially
	ReplaceUsage(ctx context.Context, limit *TenantResourceLimit) error

	// ReplaceCaps persists the hard-cap fields (administrative override)
	ReplaceCaps(ctx context.Context, limit *TenantResourceLimit) error
}

// HealthRepository defines persistence for tenant health records
type HealthRepository interface {
	// Save persists a new health record
	Save(ctx context.Context, health *TenantHealth) error

	// Update persists indicator and alert changes
	Update(ctx context.Context, health *TenantHealth) error

	// FindByTenant retrieves the tenant's health record
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*TenantHealth, error)
}
