package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/schoolsaas/backend/internal/domain/metering"
	"github.com/schoolsaas/backend/internal/interfaces/http/dto"
)

// APICallObserver records one API call against a tenant's rate counters
type APICallObserver interface {
	Observe(ctx context.Context, tenantID uuid.UUID)
}

// RateChecker answers whether a tenant may make one more API call
type RateChecker interface {
	CheckAndReserve(ctx context.Context, tenantID uuid.UUID, kind metering.ResourceKind, requestedDelta int64) (metering.LimitDecision, error)
}

// UsageTrackingConfig holds configuration for the usage tracking middleware
type UsageTrackingConfig struct {
	// Observer counts every tenant-scoped request; required
	Observer APICallObserver
	// Checker enforces the per-minute API rate cap when set; nil disables
	// enforcement and the middleware only counts
	Checker RateChecker
	// SkipPaths are path prefixes that are neither counted nor enforced
	SkipPaths []string
}

// DefaultUsageTrackingSkipPaths lists paths excluded from usage tracking
func DefaultUsageTrackingSkipPaths() []string {
	return []string{"/health", "/ready", "/api/v1/admin"}
}

// UsageTracking returns middleware that counts tenant-scoped API calls and,
// when a checker is configured, rejects calls over the per-minute rate cap
// with a structured denial. Requests without a tenant path parameter pass
// through untouched. Counting is best effort and enforcement errors fail
// open so an unavailable counter store never takes the API down.
func UsageTracking(cfg UsageTrackingConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if strings.HasPrefix(path, skip) {
				c.Next()
				return
			}
		}

		tenantID, err := uuid.Parse(c.Param("tenantId"))
		if err != nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		if cfg.Checker != nil {
			decision, err := cfg.Checker.CheckAndReserve(ctx, tenantID, metering.ResourceAPIRatePerMinute, 1)
			if err == nil && !decision.Allowed {
				requestID := c.GetString(RequestIDKey)
				c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithDetails(
					dto.ErrCodeLimitExceeded,
					metering.NewLimitExceededError(decision).Error(),
					requestID,
					gin.H{
						"kind":    decision.Kind,
						"current": decision.Current,
						"limit":   decision.Limit,
					},
				))
				return
			}
		}

		if cfg.Observer != nil {
			cfg.Observer.Observe(ctx, tenantID)
		}

		c.Next()
	}
}
