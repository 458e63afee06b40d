package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditEventModel is the GORM model for governance audit trail entries
type AuditEventModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Action    string    `gorm:"type:varchar(60);not null;index"`
	Detail    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for the model
func (AuditEventModel) TableName() string {
	return "audit_events"
}

// AuditEventRepository stores audit trail entries
type AuditEventRepository struct {
	db *gorm.DB
}

// NewAuditEventRepository creates a new audit event repository
func NewAuditEventRepository(db *gorm.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

// Store persists one audit entry
func (r *AuditEventRepository) Store(ctx context.Context, tenantID uuid.UUID, action, detail string, at time.Time) error {
	return r.db.WithContext(ctx).Create(&AuditEventModel{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Action:    action,
		Detail:    detail,
		CreatedAt: at,
	}).Error
}

// FindByTenant lists a tenant's audit entries, newest first
func (r *AuditEventRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]AuditEventModel, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []AuditEventModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	return models, err
}
