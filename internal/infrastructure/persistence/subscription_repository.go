package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/billing"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TenantSubscriptionModel is the GORM model for tenant subscriptions
type TenantSubscriptionModel struct {
	ID                      uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID                uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	PlanID                  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Status                  string          `gorm:"type:varchar(20);not null;index"`
	PeriodStart             time.Time       `gorm:"not null"`
	PeriodEnd               time.Time       `gorm:"not null"`
	CurrentBillingAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IsPaid                  bool            `gorm:"not null;default:false"`
	NextBillingDate         time.Time       `gorm:"not null;index"`
	StudentCountAtLastCheck int             `gorm:"not null;default:0"`
	Version                 int             `gorm:"not null;default:1"`
	CreatedAt               time.Time       `gorm:"autoCreateTime"`
	UpdatedAt               time.Time       `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (TenantSubscriptionModel) TableName() string {
	return "tenant_subscriptions"
}

// ToEntity converts the model to a domain entity
func (m *TenantSubscriptionModel) ToEntity() *billing.TenantSubscription {
	return &billing.TenantSubscription{
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
		PlanID:                  m.PlanID,
		Status:                  billing.SubscriptionStatus(m.Status),
		PeriodStart:             m.PeriodStart,
		PeriodEnd:               m.PeriodEnd,
		CurrentBillingAmount:    m.CurrentBillingAmount,
		IsPaid:                  m.IsPaid,
		NextBillingDate:         m.NextBillingDate,
		StudentCountAtLastCheck: m.StudentCountAtLastCheck,
	}
}

// TenantSubscriptionModelFromEntity creates a model from a domain entity
func TenantSubscriptionModelFromEntity(e *billing.TenantSubscription) *TenantSubscriptionModel {
	return &TenantSubscriptionModel{
		ID:                      e.ID,
		TenantID:                e.TenantID,
		PlanID:                  e.PlanID,
		Status:                  string(e.Status),
		PeriodStart:             e.PeriodStart,
		PeriodEnd:               e.PeriodEnd,
		CurrentBillingAmount:    e.CurrentBillingAmount,
		IsPaid:                  e.IsPaid,
		NextBillingDate:         e.NextBillingDate,
		StudentCountAtLastCheck: e.StudentCountAtLastCheck,
		Version:                 e.Version,
		CreatedAt:               e.CreatedAt,
		UpdatedAt:               e.UpdatedAt,
	}
}

// SubscriptionRepository implements the billing.SubscriptionRepository interface
type SubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Save persists a new subscription
func (r *SubscriptionRepository) Save(ctx context.Context, sub *billing.TenantSubscription) error {
	model := TenantSubscriptionModelFromEntity(sub)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update updates an existing subscription
func (r *SubscriptionRepository) Update(ctx context.Context, sub *billing.TenantSubscription) error {
	model := TenantSubscriptionModelFromEntity(sub)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByID retrieves a subscription by its ID
func (r *SubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.TenantSubscription, error) {
	var model TenantSubscriptionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByTenant retrieves the tenant's subscription
func (r *SubscriptionRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*billing.TenantSubscription, error) {
	var model TenantSubscriptionModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ?", tenantID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindAllActiveTenantIDs lists tenants with a non-cancelled subscription
func (r *SubscriptionRepository) FindAllActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&TenantSubscriptionModel{}).
		Where("status <> ?", string(billing.SubscriptionStatusCancelled)).
		Order("created_at ASC").
		Pluck("tenant_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Ensure SubscriptionRepository implements the interface
var _ billing.SubscriptionRepository = (*SubscriptionRepository)(nil)
