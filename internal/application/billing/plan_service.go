package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/billing"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreatePlanInput contains input for creating a subscription plan
type CreatePlanInput struct {
	Name             string
	SortOrder        int
	StudentThreshold int
	MonthlyBasePrice decimal.Decimal
	OverageUnitPrice decimal.Decimal
}

// PlanService manages the plan catalog (administrative operations)
type PlanService struct {
	planRepo billing.PlanRepository
	logger   *zap.Logger
}

// NewPlanService creates a new PlanService
func NewPlanService(planRepo billing.PlanRepository, logger *zap.Logger) *PlanService {
	return &PlanService{planRepo: planRepo, logger: logger}
}

// CreatePlan adds a new tier to the catalog
func (s *PlanService) CreatePlan(ctx context.Context, input CreatePlanInput) (*billing.SubscriptionPlan, error) {
	plan, err := billing.NewSubscriptionPlan(input.Name, input.SortOrder, input.StudentThreshold, input.MonthlyBasePrice, input.OverageUnitPrice)
	if err != nil {
		return nil, err
	}
	if err := s.planRepo.Save(ctx, plan); err != nil {
		return nil, err
	}

	s.logger.Info("Plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("name", plan.Name),
		zap.Int("student_threshold", plan.StudentThreshold))
	return plan, nil
}

// ListPlans returns every plan, active or not, in catalog order
func (s *PlanService) ListPlans(ctx context.Context) ([]*billing.SubscriptionPlan, error) {
	return s.planRepo.FindAll(ctx)
}

// SetPlanActive activates or deactivates a tier. Deactivation never touches
// subscriptions already on the plan; they keep resolving against it until
// their next tier change.
func (s *PlanService) SetPlanActive(ctx context.Context, planID uuid.UUID, active bool) (*billing.SubscriptionPlan, error) {
	if planID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PLAN", "Plan ID cannot be empty")
	}

	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if active {
		plan.Activate()
	} else {
		plan.Deactivate()
	}
	if err := s.planRepo.Update(ctx, plan); err != nil {
		return nil, err
	}

	s.logger.Info("Plan availability changed",
		zap.String("plan_id", plan.ID.String()),
		zap.Bool("active", plan.IsActive))
	return plan, nil
}
