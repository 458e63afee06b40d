package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	meteringapp "github.com/schoolsaas/backend/internal/application/metering"
	"github.com/schoolsaas/backend/internal/domain/metering"
)

// LimitsHandler handles resource limit and usage endpoints
type LimitsHandler struct {
	BaseHandler
	enforcer *meteringapp.LimitEnforcerService
}

// NewLimitsHandler creates a new LimitsHandler
func NewLimitsHandler(enforcer *meteringapp.LimitEnforcerService) *LimitsHandler {
	return &LimitsHandler{enforcer: enforcer}
}

// ResourceCapsRequest carries an administrative caps override. Zero or
// negative values disable the cap; max_students is nullable because student
// capacity is normally governed by the billing tier.
type ResourceCapsRequest struct {
	MaxStorageMB          int64  `json:"max_storage_mb"`
	MaxUsers              int64  `json:"max_users"`
	MaxStudents           *int64 `json:"max_students"`
	APIRateLimitPerMinute int64  `json:"api_rate_limit_per_minute"`
	APIRateLimitPerHour   int64  `json:"api_rate_limit_per_hour"`
	MaxDatabaseSizeMB     int64  `json:"max_database_size_mb"`
}

// CheckLimitRequest asks whether a tenant may consume more of a resource
type CheckLimitRequest struct {
	Kind           string `json:"kind" binding:"required"`
	RequestedDelta int64  `json:"requested_delta" binding:"min=0"`
}

// LimitDecisionResponse is the outcome of a cap check
type LimitDecisionResponse struct {
	Allowed bool   `json:"allowed"`
	Kind    string `json:"kind"`
	Current int64  `json:"current"`
	Limit   int64  `json:"limit,omitempty"`
}

// ResourceLimitResponse represents a tenant's caps and cached usage
type ResourceLimitResponse struct {
	TenantID              uuid.UUID  `json:"tenant_id"`
	MaxStorageMB          int64      `json:"max_storage_mb"`
	MaxUsers              int64      `json:"max_users"`
	MaxStudents           *int64     `json:"max_students"`
	APIRateLimitPerMinute int64      `json:"api_rate_limit_per_minute"`
	APIRateLimitPerHour   int64      `json:"api_rate_limit_per_hour"`
	MaxDatabaseSizeMB     int64      `json:"max_database_size_mb"`
	CurrentStorageBytes   int64      `json:"current_storage_bytes"`
	CurrentUsers          int64      `json:"current_users"`
	CurrentStudents       int64      `json:"current_students"`
	APICallsLastMinute    int64      `json:"api_calls_last_minute"`
	APICallsLastHour      int64      `json:"api_calls_last_hour"`
	CurrentDatabaseBytes  int64      `json:"current_database_size_bytes"`
	StoragePercent        float64    `json:"storage_percent"`
	UsageRefreshedAt      *time.Time `json:"usage_refreshed_at,omitempty"`
}

func toResourceLimitResponse(limits *metering.TenantResourceLimit) ResourceLimitResponse {
	return ResourceLimitResponse{
		TenantID:              limits.TenantID,
		MaxStorageMB:          limits.Caps.MaxStorageMB,
		MaxUsers:              limits.Caps.MaxUsers,
		MaxStudents:           limits.Caps.MaxStudents,
		APIRateLimitPerMinute: limits.Caps.APIRateLimitPerMinute,
		APIRateLimitPerHour:   limits.Caps.APIRateLimitPerHour,
		MaxDatabaseSizeMB:     limits.Caps.MaxDatabaseSizeMB,
		CurrentStorageBytes:   limits.CurrentStorageBytes,
		CurrentUsers:          limits.CurrentUsers,
		CurrentStudents:       limits.CurrentStudents,
		APICallsLastMinute:    limits.APICallsLastMinute,
		APICallsLastHour:      limits.APICallsLastHour,
		CurrentDatabaseBytes:  limits.CurrentDatabaseSizeBytes,
		StoragePercent:        limits.StorageUsagePercent(),
		UsageRefreshedAt:      limits.UsageRefreshedAt,
	}
}

// UsageSnapshotResponse is a freshly computed usage view
type UsageSnapshotResponse struct {
	TenantID           uuid.UUID `json:"tenant_id"`
	StudentCount       int64     `json:"student_count"`
	UserCount          int64     `json:"user_count"`
	StorageBytes       int64     `json:"storage_bytes"`
	APICallsLastMinute int64     `json:"api_calls_last_minute"`
	APICallsLastHour   int64     `json:"api_calls_last_hour"`
	DatabaseSizeBytes  int64     `json:"database_size_bytes"`
	ComputedAt         time.Time `json:"computed_at"`
}

// Get returns the tenant's resource limits, provisioning the row from the
// billing tier on first access
func (h *LimitsHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	limits, err := h.enforcer.GetLimits(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toResourceLimitResponse(limits))
}

// Override replaces the tenant's hard caps
func (h *LimitsHandler) Override(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req ResourceCapsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	limits, err := h.enforcer.OverrideLimits(c.Request.Context(), tenantID, metering.ResourceCaps{
		MaxStorageMB:          req.MaxStorageMB,
		MaxUsers:              req.MaxUsers,
		MaxStudents:           req.MaxStudents,
		APIRateLimitPerMinute: req.APIRateLimitPerMinute,
		APIRateLimitPerHour:   req.APIRateLimitPerHour,
		MaxDatabaseSizeMB:     req.MaxDatabaseSizeMB,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toResourceLimitResponse(limits))
}

// Check answers whether the tenant may consume more of a resource. A denial
// is reported in the response body, not as an error status, so callers can
// probe without tripping error handling.
func (h *LimitsHandler) Check(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CheckLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	kind := metering.ResourceKind(req.Kind)
	if !kind.IsValid() {
		h.BadRequest(c, "Unknown resource kind")
		return
	}

	decision, err := h.enforcer.CheckAndReserve(c.Request.Context(), tenantID, kind, req.RequestedDelta)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, LimitDecisionResponse{
		Allowed: decision.Allowed,
		Kind:    decision.Kind.String(),
		Current: decision.Current,
		Limit:   decision.Limit,
	})
}

// RefreshUsage recomputes the tenant's usage and replaces the cached
// counters wholesale
func (h *LimitsHandler) RefreshUsage(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	snapshot, err := h.enforcer.UpdateUsage(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, UsageSnapshotResponse{
		TenantID:           snapshot.TenantID,
		StudentCount:       snapshot.StudentCount,
		UserCount:          snapshot.UserCount,
		StorageBytes:       snapshot.StorageBytes,
		APICallsLastMinute: snapshot.APICallsLastMinute,
		APICallsLastHour:   snapshot.APICallsLastHour,
		DatabaseSizeBytes:  snapshot.DatabaseSizeBytes,
		ComputedAt:         snapshot.ComputedAt,
	})
}
