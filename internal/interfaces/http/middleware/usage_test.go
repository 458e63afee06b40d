package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolsaas/backend/internal/domain/metering"
	"github.com/schoolsaas/backend/internal/interfaces/http/dto"
)

type recordingObserver struct {
	calls []uuid.UUID
}

func (r *recordingObserver) Observe(_ context.Context, tenantID uuid.UUID) {
	r.calls = append(r.calls, tenantID)
}

type stubRateChecker struct {
	decision metering.LimitDecision
	err      error
}

func (s *stubRateChecker) CheckAndReserve(_ context.Context, tenantID uuid.UUID, kind metering.ResourceKind, _ int64) (metering.LimitDecision, error) {
	d := s.decision
	d.Kind = kind
	return d, s.err
}

func usageRouter(cfg UsageTrackingConfig) *gin.Engine {
	router := gin.New()
	router.Use(UsageTracking(cfg))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/tenants/:tenantId/subscription", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func TestUsageTracking_CountsTenantCalls(t *testing.T) {
	observer := &recordingObserver{}
	router := usageRouter(UsageTrackingConfig{
		Observer:  observer,
		SkipPaths: DefaultUsageTrackingSkipPaths(),
	})

	tenantID := uuid.New()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tenants/"+tenantID.String()+"/subscription", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, observer.calls, 1)
	assert.Equal(t, tenantID, observer.calls[0])
}

func TestUsageTracking_SkipsConfiguredPaths(t *testing.T) {
	observer := &recordingObserver{}
	router := usageRouter(UsageTrackingConfig{
		Observer:  observer,
		SkipPaths: DefaultUsageTrackingSkipPaths(),
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, observer.calls)
}

func TestUsageTracking_MalformedTenantPassesThrough(t *testing.T) {
	observer := &recordingObserver{}
	router := usageRouter(UsageTrackingConfig{Observer: observer})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tenants/not-a-uuid/subscription", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, observer.calls)
}

func TestUsageTracking_DeniesOverRateCap(t *testing.T) {
	observer := &recordingObserver{}
	checker := &stubRateChecker{
		decision: metering.LimitDecision{Allowed: false, Current: 120, Limit: 120},
	}
	router := usageRouter(UsageTrackingConfig{Observer: observer, Checker: checker})

	tenantID := uuid.New()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tenants/"+tenantID.String()+"/subscription", nil))

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Empty(t, observer.calls)

	var body dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, dto.ErrCodeLimitExceeded, body.Error.Code)

	details, ok := body.Error.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(metering.ResourceAPIRatePerMinute), details["kind"])
	assert.InDelta(t, 120, details["current"], 0.01)
	assert.InDelta(t, 120, details["limit"], 0.01)
}

func TestUsageTracking_CheckerErrorFailsOpen(t *testing.T) {
	observer := &recordingObserver{}
	checker := &stubRateChecker{err: errors.New("counter store down")}
	router := usageRouter(UsageTrackingConfig{Observer: observer, Checker: checker})

	tenantID := uuid.New()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tenants/"+tenantID.String()+"/subscription", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, observer.calls, 1)
}
