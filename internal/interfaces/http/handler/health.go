package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	meteringapp "github.com/schoolsaas/backend/internal/application/metering"
	"github.com/schoolsaas/backend/internal/domain/metering"
	"github.com/schoolsaas/backend/internal/infrastructure/scheduler"
	"github.com/schoolsaas/backend/internal/interfaces/http/dto"
)

// HealthHandler handles tenant health and sweep endpoints
type HealthHandler struct {
	BaseHandler
	monitor *meteringapp.HealthMonitorService
	trigger *scheduler.SweepTrigger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(monitor *meteringapp.HealthMonitorService, trigger *scheduler.SweepTrigger) *HealthHandler {
	return &HealthHandler{monitor: monitor, trigger: trigger}
}

// HealthAlertResponse is one entry in a tenant's alert list
type HealthAlertResponse struct {
	Kind     string    `json:"kind"`
	Resource string    `json:"resource,omitempty"`
	Message  string    `json:"message"`
	RaisedAt time.Time `json:"raised_at"`
}

// TenantHealthResponse represents a tenant's last-computed health indicators
type TenantHealthResponse struct {
	TenantID       uuid.UUID             `json:"tenant_id"`
	StoragePercent float64               `json:"storage_percent"`
	UserCount      int64                 `json:"user_count"`
	UserLimit      int64                 `json:"user_limit"`
	StudentCount   int64                 `json:"student_count"`
	LastCheckAt    *time.Time            `json:"last_check_at,omitempty"`
	LastError      string                `json:"last_error,omitempty"`
	Alerts         []HealthAlertResponse `json:"alerts"`
}

func toTenantHealthResponse(health *metering.TenantHealth) TenantHealthResponse {
	alerts := make([]HealthAlertResponse, 0, len(health.Alerts))
	for _, a := range health.Alerts {
		alerts = append(alerts, HealthAlertResponse{
			Kind:     a.Kind.String(),
			Resource: a.Resource.String(),
			Message:  a.Message,
			RaisedAt: a.RaisedAt,
		})
	}
	return TenantHealthResponse{
		TenantID:       health.TenantID,
		StoragePercent: health.StoragePercent,
		UserCount:      health.UserCount,
		UserLimit:      health.UserLimit,
		StudentCount:   health.StudentCount,
		LastCheckAt:    health.LastCheckAt,
		LastError:      health.LastError,
		Alerts:         alerts,
	}
}

// Get returns the tenant's health record
func (h *HealthHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	health, err := h.monitor.GetHealthStatus(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toTenantHealthResponse(health))
}

// ClearAlerts empties the tenant's alert list
func (h *HealthHandler) ClearAlerts(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	if err := h.monitor.ClearAlerts(c.Request.Context(), tenantID); err != nil {
		h.HandleError(c, err)
		return
	}

	health, err := h.monitor.GetHealthStatus(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toTenantHealthResponse(health))
}

// TriggerSweep runs a health sweep over every tenant immediately. A sweep
// already in flight is reported as a conflict rather than queued.
func (h *HealthHandler) TriggerSweep(c *gin.Context) {
	report, err := h.trigger.TriggerNow(c.Request.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrSweepInProgress) {
			h.Error(c, http.StatusConflict, dto.ErrCodeSweepInProgress, err.Error())
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
