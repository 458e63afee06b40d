package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	billingapp "github.com/schoolsaas/backend/internal/application/billing"
	"github.com/schoolsaas/backend/internal/domain/billing"
)

// PlanHandler handles plan catalog administration endpoints
type PlanHandler struct {
	BaseHandler
	plans *billingapp.PlanService
}

// NewPlanHandler creates a new PlanHandler
func NewPlanHandler(plans *billingapp.PlanService) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// CreatePlanRequest represents a request to create a plan tier
type CreatePlanRequest struct {
	Name             string `json:"name" binding:"required,min=1,max=100"`
	SortOrder        int    `json:"sort_order" binding:"min=0"`
	StudentThreshold int    `json:"student_threshold" binding:"min=0"`
	MonthlyBasePrice string `json:"monthly_base_price" binding:"required"`
	OverageUnitPrice string `json:"overage_unit_price" binding:"required"`
}

// SetPlanActiveRequest toggles a plan's catalog visibility
type SetPlanActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// PlanResponse represents a subscription plan tier
type PlanResponse struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	SortOrder        int       `json:"sort_order"`
	StudentThreshold int       `json:"student_threshold"`
	MonthlyBasePrice string    `json:"monthly_base_price"`
	OverageUnitPrice string    `json:"overage_unit_price"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toPlanResponse(plan *billing.SubscriptionPlan) PlanResponse {
	return PlanResponse{
		ID:               plan.ID,
		Name:             plan.Name,
		SortOrder:        plan.SortOrder,
		StudentThreshold: plan.StudentThreshold,
		MonthlyBasePrice: plan.MonthlyBasePrice.String(),
		OverageUnitPrice: plan.OverageUnitPrice.String(),
		IsActive:         plan.IsActive,
		CreatedAt:        plan.CreatedAt,
		UpdatedAt:        plan.UpdatedAt,
	}
}

// Create adds a new plan tier to the catalog
func (h *PlanHandler) Create(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	basePrice, err := decimal.NewFromString(req.MonthlyBasePrice)
	if err != nil {
		h.BadRequest(c, "Invalid monthly base price")
		return
	}
	overagePrice, err := decimal.NewFromString(req.OverageUnitPrice)
	if err != nil {
		h.BadRequest(c, "Invalid overage unit price")
		return
	}

	plan, err := h.plans.CreatePlan(c.Request.Context(), billingapp.CreatePlanInput{
		Name:             req.Name,
		SortOrder:        req.SortOrder,
		StudentThreshold: req.StudentThreshold,
		MonthlyBasePrice: basePrice,
		OverageUnitPrice: overagePrice,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toPlanResponse(plan))
}

// List returns all plan tiers ordered by their position in the ladder
func (h *PlanHandler) List(c *gin.Context) {
	plans, err := h.plans.ListPlans(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]PlanResponse, 0, len(plans))
	for _, p := range plans {
		resp = append(resp, toPlanResponse(p))
	}
	h.Success(c, resp)
}

// SetActive toggles whether a plan is visible to the catalog
func (h *PlanHandler) SetActive(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid plan ID")
		return
	}

	var req SetPlanActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	plan, err := h.plans.SetPlanActive(c.Request.Context(), planID, *req.Active)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPlanResponse(plan))
}
