package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/metering"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// TenantHealthModel is the GORM model for tenant health records. The bounded
// alert list is stored as a JSON document; it is always read and written as
// a whole.
type TenantHealthModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	StoragePercent float64   `gorm:"not null;default:0"`
	UserCount      int64     `gorm:"not null;default:0"`
	UserLimit      int64     `gorm:"not null;default:0"`
	StudentCount   int64     `gorm:"not null;default:0"`
	LastCheckAt    *time.Time
	LastError      string    `gorm:"type:text"`
	Alerts         string    `gorm:"type:text;not null;default:'[]'"`
	Version        int       `gorm:"not null;default:1"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (TenantHealthModel) TableName() string {
	return "tenant_health_monitorings"
}

// ToEntity converts the model to a domain entity
func (m *TenantHealthModel) ToEntity() (*metering.TenantHealth, error) {
	var alerts []metering.HealthAlert
	if m.Alerts != "" {
		if err := json.Unmarshal([]byte(m.Alerts), &alerts); err != nil {
			return nil, err
		}
	}

	return &metering.TenantHealth{
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
		StoragePercent: m.StoragePercent,
		UserCount:      m.UserCount,
		UserLimit:      m.UserLimit,
		StudentCount:   m.StudentCount,
		LastCheckAt:    m.LastCheckAt,
		LastError:      m.LastError,
		Alerts:         alerts,
	}, nil
}

// TenantHealthModelFromEntity creates a model from a domain entity
func TenantHealthModelFromEntity(e *metering.TenantHealth) (*TenantHealthModel, error) {
	alerts := e.Alerts
	if alerts == nil {
		alerts = []metering.HealthAlert{}
	}
	raw, err := json.Marshal(alerts)
	if err != nil {
		return nil, err
	}

	return &TenantHealthModel{
		ID:             e.ID,
		TenantID:       e.TenantID,
		StoragePercent: e.StoragePercent,
		UserCount:      e.UserCount,
		UserLimit:      e.UserLimit,
		StudentCount:   e.StudentCount,
		LastCheckAt:    e.LastCheckAt,
		LastError:      e.LastError,
		Alerts:         string(raw),
		Version:        e.Version,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}, nil
}

// HealthRepository implements the metering.HealthRepository interface
type HealthRepository struct {
	db *gorm.DB
}

// NewHealthRepository creates a new health repository
func NewHealthRepository(db *gorm.DB) *HealthRepository {
	return &HealthRepository{db: db}
}

// Save persists a new health record
func (r *HealthRepository) Save(ctx context.Context, health *metering.TenantHealth) error {
	model, err := TenantHealthModelFromEntity(health)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists indicator and alert changes
func (r *HealthRepository) Update(ctx context.Context, health *metering.TenantHealth) error {
	model, err := TenantHealthModelFromEntity(health)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByTenant retrieves the tenant's health record
func (r *HealthRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*metering.TenantHealth, error) {
	var model TenantHealthModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ?", tenantID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity()
}

// Ensure HealthRepository implements the interface
var _ metering.HealthRepository = (*HealthRepository)(nil)
