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

// SubscriptionPlanModel is the GORM model for subscription plans
type SubscriptionPlanModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name             string          `gorm:"type:varchar(100);not null;uniqueIndex"`
	SortOrder        int             `gorm:"not null;index"`
	StudentThreshold int             `gorm:"not null"`
	MonthlyBasePrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	OverageUnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IsActive         bool            `gorm:"not null;default:true"`
	Version          int             `gorm:"not null;default:1"`
	CreatedAt        time.Time       `gorm:"autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (SubscriptionPlanModel) TableName() string {
	return "subscription_plans"
}

// ToEntity converts the model to a domain entity
func (m *SubscriptionPlanModel) ToEntity() *billing.SubscriptionPlan {
	return &billing.SubscriptionPlan{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		Name:             m.Name,
		SortOrder:        m.SortOrder,
		StudentThreshold: m.StudentThreshold,
		MonthlyBasePrice: m.MonthlyBasePrice,
		OverageUnitPrice: m.OverageUnitPrice,
		IsActive:         m.IsActive,
	}
}

// SubscriptionPlanModelFromEntity creates a model from a domain entity
func SubscriptionPlanModelFromEntity(e *billing.SubscriptionPlan) *SubscriptionPlanModel {
	return &SubscriptionPlanModel{
		ID:               e.ID,
		Name:             e.Name,
		SortOrder:        e.SortOrder,
		StudentThreshold: e.StudentThreshold,
		MonthlyBasePrice: e.MonthlyBasePrice,
		OverageUnitPrice: e.OverageUnitPrice,
		IsActive:         e.IsActive,
		Version:          e.Version,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

// PlanRepository implements the billing.PlanRepository interface
type PlanRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Save persists a new plan
func (r *PlanRepository) Save(ctx context.Context, plan *billing.SubscriptionPlan) error {
	model := SubscriptionPlanModelFromEntity(plan)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update updates an existing plan
func (r *PlanRepository) Update(ctx context.Context, plan *billing.SubscriptionPlan) error {
	model := SubscriptionPlanModelFromEntity(plan)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByID retrieves a plan by its ID
func (r *PlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.SubscriptionPlan, error) {
	var model SubscriptionPlanModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindAll retrieves every plan, active or not, ordered by sort order
func (r *PlanRepository) FindAll(ctx context.Context) ([]*billing.SubscriptionPlan, error) {
	var models []SubscriptionPlanModel
	err := r.db.WithContext(ctx).
		Order("sort_order ASC, monthly_base_price ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	plans := make([]*billing.SubscriptionPlan, len(models))
	for i := range models {
		plans[i] = models[i].ToEntity()
	}
	return plans, nil
}

// Ensure PlanRepository implements the interface
var _ billing.PlanRepository = (*PlanRepository)(nil)
