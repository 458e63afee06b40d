package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/metering"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// TenantResourceLimitModel is the GORM model for tenant resource limits and
// their cached usage counters
type TenantResourceLimitModel struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`

	MaxStorageMB          int64  `gorm:"not null;default:0"`
	MaxUsers              int64  `gorm:"not null;default:0"`
	MaxStudents           *int64 `gorm:"default:null"`
	APIRateLimitPerMinute int64  `gorm:"not null;default:0"`
	APIRateLimitPerHour   int64  `gorm:"not null;default:0"`
	MaxDatabaseSizeMB     int64  `gorm:"not null;default:0"`

	CurrentStorageBytes      int64 `gorm:"not null;default:0"`
	CurrentUsers             int64 `gorm:"not null;default:0"`
	CurrentStudents          int64 `gorm:"not null;default:0"`
	APICallsLastMinute       int64 `gorm:"not null;default:0"`
	APICallsLastHour         int64 `gorm:"not null;default:0"`
	CurrentDatabaseSizeBytes int64 `gorm:"not null;default:0"`
	UsageRefreshedAt         *time.Time

	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (TenantResourceLimitModel) TableName() string {
	return "tenant_resource_limits"
}

// ToEntity converts the model to a domain entity
func (m *TenantResourceLimitModel) ToEntity() *metering.TenantResourceLimit {
	return &metering.TenantResourceLimit{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{
					ID:        m.ID,
					CreatedAt: m.CreatedAt,
					UpdatedAt: m.UpdatedAt,
				},
				Version: m.Version,
			},
			TenantID: m.TenantID,
		},
		Caps: metering.ResourceCaps{
			MaxStorageMB:          m.MaxStorageMB,
			MaxUsers:              m.MaxUsers,
			MaxStudents:           m.MaxStudents,
			APIRateLimitPerMinute: m.APIRateLimitPerMinute,
			APIRateLimitPerHour:   m.APIRateLimitPerHour,
			MaxDatabaseSizeMB:     m.MaxDatabaseSizeMB,
		},
		CurrentStorageBytes:      m.CurrentStorageBytes,
		CurrentUsers:             m.CurrentUsers,
		CurrentStudents:          m.CurrentStudents,
		APICallsLastMinute:       m.APICallsLastMinute,
		APICallsLastHour:         m.APICallsLastHour,
		CurrentDatabaseSizeBytes: m.CurrentDatabaseSizeBytes,
		UsageRefreshedAt:         m.UsageRefreshedAt,
	}
}

// TenantResourceLimitModelFromEntity creates a model from a domain entity
func TenantResourceLimitModelFromEntity(e *metering.TenantResourceLimit) *TenantResourceLimitModel {
	return &TenantResourceLimitModel{
		ID:                       e.ID,
		TenantID:                 e.TenantID,
		MaxStorageMB:             e.Caps.MaxStorageMB,
		MaxUsers:                 e.Caps.MaxUsers,
		MaxStudents:              e.Caps.MaxStudents,
		APIRateLimitPerMinute:    e.Caps.APIRateLimitPerMinute,
		APIRateLimitPerHour:      e.Caps.APIRateLimitPerHour,
		MaxDatabaseSizeMB:        e.Caps.MaxDatabaseSizeMB,
		CurrentStorageBytes:      e.CurrentStorageBytes,
		CurrentUsers:             e.CurrentUsers,
		CurrentStudents:          e.CurrentStudents,
		APICallsLastMinute:       e.APICallsLastMinute,
		APICallsLastHour:         e.APICallsLastHour,
		CurrentDatabaseSizeBytes: e.CurrentDatabaseSizeBytes,
		UsageRefreshedAt:         e.UsageRefreshedAt,
		Version:                  e.Version,
		CreatedAt:                e.CreatedAt,
		UpdatedAt:                e.UpdatedAt,
	}
}

// ResourceLimitRepository implements the metering.ResourceLimitRepository
// interface
type ResourceLimitRepository struct {
	db *gorm.DB
}

// NewResourceLimitRepository creates a new resource limit repository
func NewResourceLimitRepository(db *gorm.DB) *ResourceLimitRepository {
	return &ResourceLimitRepository{db: db}
}

// Save persists a new limit row
func (r *ResourceLimitRepository) Save(ctx context.Context, limit *metering.TenantResourceLimit) error {
	model := TenantResourceLimitModelFromEntity(limit)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByTenant retrieves the tenant's limit row
func (r *ResourceLimitRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*metering.TenantResourceLimit, error) {
	var model TenantResourceLimitModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ?", tenantID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// ReplaceUsage writes every cached usage counter in one UPDATE so readers
// never observe a half-replaced cache
func (r *ResourceLimitRepository) ReplaceUsage(ctx context.Context, limit *metering.TenantResourceLimit) error {
	result := r.db.WithContext(ctx).
		Model(&TenantResourceLimitModel{}).
		Where("tenant_id = ?", limit.TenantID).
		Updates(map[string]interface{}{
			"current_storage_bytes":       limit.CurrentStorageBytes,
			"current_users":               limit.CurrentUsers,
			"current_students":            limit.CurrentStudents,
			"api_calls_last_minute":       limit.APICallsLastMinute,
			"api_calls_last_hour":         limit.APICallsLastHour,
			"current_database_size_bytes": limit.CurrentDatabaseSizeBytes,
			"usage_refreshed_at":          limit.UsageRefreshedAt,
			"updated_at":                  limit.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ReplaceCaps writes the hard-cap fields in one UPDATE
func (r *ResourceLimitRepository) ReplaceCaps(ctx context.Context, limit *metering.TenantResourceLimit) error {
	result := r.db.WithContext(ctx).
		Model(&TenantResourceLimitModel{}).
		Where("tenant_id = ?", limit.TenantID).
		Updates(map[string]interface{}{
			"max_storage_mb":            limit.Caps.MaxStorageMB,
			"max_users":                 limit.Caps.MaxUsers,
			"max_students":              limit.Caps.MaxStudents,
			"api_rate_limit_per_minute": limit.Caps.APIRateLimitPerMinute,
			"api_rate_limit_per_hour":   limit.Caps.APIRateLimitPerHour,
			"max_database_size_mb":      limit.Caps.MaxDatabaseSizeMB,
			"updated_at":                limit.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure ResourceLimitRepository implements the interface
var _ metering.ResourceLimitRepository = (*ResourceLimitRepository)(nil)
