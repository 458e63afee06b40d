package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	billingapp "github.com/schoolsaas/backend/internal/application/billing"
	meteringapp "github.com/schoolsaas/backend/internal/application/metering"
	"github.com/schoolsaas/backend/internal/domain/billing"
	"github.com/schoolsaas/backend/internal/domain/metering"
	"github.com/schoolsaas/backend/internal/domain/shared"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Mock repositories

type mockPlanRepository struct {
	mock.Mock
}

func (m *mockPlanRepository) Save(ctx context.Context, plan *billing.SubscriptionPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *mockPlanRepository) Update(ctx context.Context, plan *billing.SubscriptionPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *mockPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.SubscriptionPlan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.SubscriptionPlan), args.Error(1)
}

func (m *mockPlanRepository) FindAll(ctx context.Context) ([]*billing.SubscriptionPlan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.SubscriptionPlan), args.Error(1)
}

type mockSubscriptionRepository struct {
	mock.Mock
}

func (m *mockSubscriptionRepository) Save(ctx context.Context, sub *billing.TenantSubscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *mockSubscriptionRepository) Update(ctx context.Context, sub *billing.TenantSubscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *mockSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.TenantSubscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.TenantSubscription), args.Error(1)
}

func (m *mockSubscriptionRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*billing.TenantSubscription, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.TenantSubscription), args.Error(1)
}

func (m *mockSubscriptionRepository) FindAllActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type mockLedgerRepository struct {
	mock.Mock
}

func (m *mockLedgerRepository) Append(ctx context.Context, entry *billing.BillingLedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockLedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.BillingLedgerEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.BillingLedgerEntry), args.Error(1)
}

func (m *mockLedgerRepository) FindBySubscription(ctx context.Context, subscriptionID uuid.UUID, filter shared.Filter) ([]*billing.BillingLedgerEntry, int64, error) {
	args := m.Called(ctx, subscriptionID, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*billing.BillingLedgerEntry), args.Get(1).(int64), args.Error(2)
}

func (m *mockLedgerRepository) AppendWithSubscription(ctx context.Context, entry *billing.BillingLedgerEntry, sub *billing.TenantSubscription) error {
	args := m.Called(ctx, entry, sub)
	return args.Error(0)
}

func (m *mockLedgerRepository) HasUnpaidRenewal(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	args := m.Called(ctx, subscriptionID)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedgerRepository) UpdatePayment(ctx context.Context, entry *billing.BillingLedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type mockInvoiceSequencer struct {
	mock.Mock
}

func (m *mockInvoiceSequencer) Next(ctx context.Context, tenantID uuid.UUID, at time.Time) (int64, error) {
	args := m.Called(ctx, tenantID, at)
	return args.Get(0).(int64), args.Error(1)
}

type mockResourceLimitRepository struct {
	mock.Mock
}

func (m *mockResourceLimitRepository) Save(ctx context.Context, limit *metering.TenantResourceLimit) error {
	args := m.Called(ctx, limit)
	return args.Error(0)
}

func (m *mockResourceLimitRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*metering.TenantResourceLimit, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*metering.TenantResourceLimit), args.Error(1)
}

func (m *mockResourceLimitRepository) ReplaceUsage(ctx context.Context, limit *metering.TenantResourceLimit) error {
	args := m.Called(ctx, limit)
	return args.Error(0)
}

func (m *mockResourceLimitRepository) ReplaceCaps(ctx context.Context, limit *metering.TenantResourceLimit) error {
	args := m.Called(ctx, limit)
	return args.Error(0)
}

type mockHealthRepository struct {
	mock.Mock
}

func (m *mockHealthRepository) Save(ctx context.Context, health *metering.TenantHealth) error {
	args := m.Called(ctx, health)
	return args.Error(0)
}

func (m *mockHealthRepository) Update(ctx context.Context, health *metering.TenantHealth) error {
	args := m.Called(ctx, health)
	return args.Error(0)
}

func (m *mockHealthRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*metering.TenantHealth, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*metering.TenantHealth), args.Error(1)
}

// Stub usage sources returning fixed values

type stubSources struct {
	students int64
	users    int64
	storage  int64
	perMin   int64
	perHour  int64
	dbSize   int64
}

func (s *stubSources) CountStudents(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.students, nil
}

func (s *stubSources) CountUsers(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.users, nil
}

func (s *stubSources) StorageBytes(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.storage, nil
}

func (s *stubSources) CallsLastMinute(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.perMin, nil
}

func (s *stubSources) CallsLastHour(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.perHour, nil
}

func (s *stubSources) DatabaseSizeBytes(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.dbSize, nil
}

type noopAudit struct{}

func (noopAudit) Record(event meteringapp.AuditEvent) {}

// Fixtures

func testPlan(t *testing.T, name string, sortOrder, threshold int, basePrice string) *billing.SubscriptionPlan {
	t.Helper()
	plan, err := billing.NewSubscriptionPlan(
		name, sortOrder, threshold,
		decimal.RequireFromString(basePrice),
		decimal.RequireFromString("2"),
	)
	require.NoError(t, err)
	return plan
}

func testSubscription(t *testing.T, tenantID uuid.UUID, plan *billing.SubscriptionPlan) *billing.TenantSubscription {
	t.Helper()
	sub, err := billing.NewTenantSubscription(tenantID, plan)
	require.NoError(t, err)
	sub.ClearDomainEvents()
	return sub
}

type subscriptionFixture struct {
	planRepo   *mockPlanRepository
	subRepo    *mockSubscriptionRepository
	ledgerRepo *mockLedgerRepository
	sequencer  *mockInvoiceSequencer
	handler    *SubscriptionHandler
}

func newSubscriptionFixture(t *testing.T) *subscriptionFixture {
	t.Helper()
	f := &subscriptionFixture{
		planRepo:   new(mockPlanRepository),
		subRepo:    new(mockSubscriptionRepository),
		ledgerRepo: new(mockLedgerRepository),
		sequencer:  new(mockInvoiceSequencer),
	}
	service := billingapp.NewSubscriptionService(f.planRepo, f.subRepo, f.ledgerRepo, f.sequencer, zap.NewNop())
	f.handler = NewSubscriptionHandler(service)
	return f
}

type limitsFixture struct {
	limitRepo *mockResourceLimitRepository
	subRepo   *mockSubscriptionRepository
	planRepo  *mockPlanRepository
	sources   *stubSources
	handler   *LimitsHandler
}

func newLimitsFixture(t *testing.T) *limitsFixture {
	t.Helper()
	f := &limitsFixture{
		limitRepo: new(mockResourceLimitRepository),
		subRepo:   new(mockSubscriptionRepository),
		planRepo:  new(mockPlanRepository),
		sources:   &stubSources{},
	}
	ledgerRepo := new(mockLedgerRepository)
	sequencer := new(mockInvoiceSequencer)
	subscriptions := billingapp.NewSubscriptionService(f.planRepo, f.subRepo, ledgerRepo, sequencer, zap.NewNop())
	meter := meteringapp.NewUsageMeterService(f.sources, f.sources, f.sources, f.sources, f.sources, zap.NewNop())
	enforcer := meteringapp.NewLimitEnforcerService(
		f.limitRepo, subscriptions, f.planRepo, meter, noopAudit{},
		zap.NewNop(), meteringapp.DefaultLimitEnforcerConfig(),
	)
	f.handler = NewLimitsHandler(enforcer)
	return f
}

// HTTP helpers

func performRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func newRouter(registrar interface{ RegisterRoutes(rg *gin.RouterGroup) }) *gin.Engine {
	engine := gin.New()
	registrar.RegisterRoutes(engine.Group("/api/v1"))
	return engine
}
