package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	billingapp "github.com/schoolsaas/backend/internal/application/billing"
	"github.com/schoolsaas/backend/internal/domain/billing"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"github.com/schoolsaas/backend/internal/interfaces/http/dto"
)

// SubscriptionHandler handles subscription lifecycle and billing endpoints
type SubscriptionHandler struct {
	BaseHandler
	subscriptions *billingapp.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(subscriptions *billingapp.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// SubscriptionResponse represents a tenant subscription
type SubscriptionResponse struct {
	ID                      uuid.UUID `json:"id"`
	TenantID                uuid.UUID `json:"tenant_id"`
	PlanID                  uuid.UUID `json:"plan_id"`
	Status                  string    `json:"status"`
	PeriodStart             time.Time `json:"period_start"`
	PeriodEnd               time.Time `json:"period_end"`
	CurrentBillingAmount    string    `json:"current_billing_amount"`
	IsPaid                  bool      `json:"is_paid"`
	NextBillingDate         time.Time `json:"next_billing_date"`
	StudentCountAtLastCheck int       `json:"student_count_at_last_check"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// toSubscriptionResponse converts a domain subscription to its response form
func toSubscriptionResponse(sub *billing.TenantSubscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                      sub.ID,
		TenantID:                sub.TenantID,
		PlanID:                  sub.PlanID,
		Status:                  sub.Status.String(),
		PeriodStart:             sub.PeriodStart,
		PeriodEnd:               sub.PeriodEnd,
		CurrentBillingAmount:    sub.CurrentBillingAmount.String(),
		IsPaid:                  sub.IsPaid,
		NextBillingDate:         sub.NextBillingDate,
		StudentCountAtLastCheck: sub.StudentCountAtLastCheck,
		CreatedAt:               sub.CreatedAt,
		UpdatedAt:               sub.UpdatedAt,
	}
}

// LedgerEntryResponse represents one billing history charge
type LedgerEntryResponse struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	SubscriptionID uuid.UUID  `json:"subscription_id"`
	InvoiceNumber  string     `json:"invoice_number"`
	BillingDate    time.Time  `json:"billing_date"`
	Amount         string     `json:"amount"`
	Reason         string     `json:"reason"`
	Paid           bool       `json:"paid"`
	PaymentNotes   string     `json:"payment_notes,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
}

func toLedgerEntryResponse(entry *billing.BillingLedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:             entry.ID,
		TenantID:       entry.TenantID,
		SubscriptionID: entry.SubscriptionID,
		InvoiceNumber:  entry.InvoiceNumber,
		BillingDate:    entry.BillingDate,
		Amount:         entry.Amount.String(),
		Reason:         entry.Reason.String(),
		Paid:           entry.Paid,
		PaymentNotes:   entry.PaymentNotes,
		PaidAt:         entry.PaidAt,
	}
}

// UpdateStudentCountRequest carries the observed student count
type UpdateStudentCountRequest struct {
	StudentCount int `json:"student_count" binding:"min=0"`
}

// StudentCountResponse reports the billing consequence of a count update
type StudentCountResponse struct {
	TierChanged  bool                 `json:"tier_changed"`
	ThresholdMet bool                 `json:"threshold_met"`
	StudentCount int                  `json:"student_count"`
	NewPlan      *PlanResponse        `json:"new_plan,omitempty"`
	Entry        *LedgerEntryResponse `json:"entry,omitempty"`
}

// MarkPaidRequest carries optional settlement notes
type MarkPaidRequest struct {
	Notes string `json:"notes" binding:"max=500"`
}

// Get returns the tenant's subscription, provisioning one on first access
func (h *SubscriptionHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	sub, err := h.subscriptions.GetSubscription(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSubscriptionResponse(sub))
}

// UpdateStudentCount records a new student count and applies its billing
// consequence: a tier change when the count moves the tenant to a different
// plan, otherwise an overage charge when the threshold is exceeded
func (h *SubscriptionHandler) UpdateStudentCount(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req UpdateStudentCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.subscriptions.UpdateStudentCount(c.Request.Context(), tenantID, req.StudentCount)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := StudentCountResponse{
		TierChanged:  result.TierChanged,
		ThresholdMet: result.ThresholdMet,
		StudentCount: result.StudentCount,
	}
	if result.NewPlan != nil {
		plan := toPlanResponse(result.NewPlan)
		resp.NewPlan = &plan
	}
	if result.Entry != nil {
		entry := toLedgerEntryResponse(result.Entry)
		resp.Entry = &entry
	}
	h.Success(c, resp)
}

// Renew processes the subscription renewal for the current billing period
func (h *SubscriptionHandler) Renew(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	entry, err := h.subscriptions.ProcessRenewal(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toLedgerEntryResponse(entry))
}

// BillingHistory returns the tenant's billing ledger, newest first
func (h *SubscriptionHandler) BillingHistory(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
	}
	page, err := h.subscriptions.GetBillingHistory(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	entries := make([]LedgerEntryResponse, 0, len(page.Items))
	for _, e := range page.Items {
		entries = append(entries, toLedgerEntryResponse(e))
	}
	h.SuccessWithMeta(c, entries, page.Total, filter.Page, filter.PageSize)
}

// MarkPaid settles a billing ledger entry
func (h *SubscriptionHandler) MarkPaid(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid entry ID")
		return
	}

	var req MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	entry, err := h.subscriptions.MarkAsPaid(c.Request.Context(), entryID, req.Notes)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toLedgerEntryResponse(entry))
}

// Suspend moves the subscription to the suspended state
func (h *SubscriptionHandler) Suspend(c *gin.Context) {
	h.transition(c, h.subscriptions.Suspend)
}

// Expire moves the subscription to the expired state
func (h *SubscriptionHandler) Expire(c *gin.Context) {
	h.transition(c, h.subscriptions.Expire)
}

// Cancel moves the subscription to the cancelled terminal state
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	h.transition(c, h.subscriptions.Cancel)
}

func (h *SubscriptionHandler) transition(c *gin.Context, apply func(ctx context.Context, tenantID uuid.UUID) error) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	if err := apply(c.Request.Context(), tenantID); err != nil {
		h.HandleError(c, err)
		return
	}

	sub, err := h.subscriptions.GetSubscription(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSubscriptionResponse(sub))
}
