package handler

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the subscription lifecycle and billing endpoints
func (h *SubscriptionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	tenants := rg.Group("/tenants/:tenantId")
	{
		tenants.GET("/subscription", h.Get)
		tenants.POST("/subscription/student-count", h.UpdateStudentCount)
		tenants.POST("/subscription/renew", h.Renew)
		tenants.POST("/subscription/suspend", h.Suspend)
		tenants.POST("/subscription/expire", h.Expire)
		tenants.POST("/subscription/cancel", h.Cancel)
		tenants.GET("/billing-history", h.BillingHistory)
	}
	rg.POST("/billing/entries/:id/pay", h.MarkPaid)
}

// RegisterRoutes mounts the plan catalog administration endpoints
func (h *PlanHandler) RegisterRoutes(rg *gin.RouterGroup) {
	plans := rg.Group("/plans")
	{
		plans.POST("", h.Create)
		plans.GET("", h.List)
		plans.PATCH("/:id/active", h.SetActive)
	}
}

// RegisterRoutes mounts the resource limit and usage endpoints
func (h *LimitsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	tenants := rg.Group("/tenants/:tenantId")
	{
		tenants.GET("/limits", h.Get)
		tenants.PUT("/limits", h.Override)
		tenants.POST("/limits/check", h.Check)
		tenants.POST("/usage/refresh", h.RefreshUsage)
	}
}

// RegisterRoutes mounts the tenant health and sweep endpoints
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	tenants := rg.Group("/tenants/:tenantId")
	{
		tenants.GET("/health", h.Get)
		tenants.POST("/health/clear-alerts", h.ClearAlerts)
	}
	rg.POST("/admin/health/sweep", h.TriggerSweep)
}
