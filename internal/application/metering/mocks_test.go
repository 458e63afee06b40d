package metering

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/billing"
	"github.com/schoolsaas/backend/internal/domain/metering"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// stubSources implements every usage source with overridable functions.
// Unset functions return zero.
type stubSources struct {
	students  func(ctx context.Context, tenantID uuid.UUID) (int64, error)
	users     func(ctx context.Context, tenantID uuid.UUID) (int64, error)
	storage   func(ctx context.Context, tenantID uuid.UUID) (int64, error)
	perMinute func(ctx context.Context, tenantID uuid.UUID) (int64, error)
	perHour   func(ctx context.Context, tenantID uuid.UUID) (int64, error)
	dbSize    func(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

func (s *stubSources) CountStudents(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.call(s.students, ctx, tenantID)
}

func (s *stubSources) CountUsers(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.call(s.users, ctx, tenantID)
}

func (s *stubSources) StorageBytes(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.call(s.storage, ctx, tenantID)
}

func (s *stubSources) CallsLastMinute(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.call(s.perMinute, ctx, tenantID)
}

func (s *stubSources) CallsLastHour(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.call(s.perHour, ctx, tenantID)
}

func (s *stubSources) DatabaseSizeBytes(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.call(s.dbSize, ctx, tenantID)
}

func (s *stubSources) call(f func(ctx context.Context, tenantID uuid.UUID) (int64, error), ctx context.Context, tenantID uuid.UUID) (int64, error) {
	if f == nil {
		return 0, nil
	}
	return f(ctx, tenantID)
}

// memLimitRepo is a mutex-guarded in-memory ResourceLimitRepository; the
// health sweep hits it from several workers at once
type memLimitRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*metering.TenantResourceLimit
}

func newMemLimitRepo() *memLimitRepo {
	return &memLimitRepo{rows: make(map[uuid.UUID]*metering.TenantResourceLimit)}
}

func (r *memLimitRepo) Save(ctx context.Context, limit *metering.TenantResourceLimit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[limit.TenantID] = limit
	return nil
}

func (r *memLimitRepo) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*metering.TenantResourceLimit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[tenantID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return row, nil
}

func (r *memLimitRepo) ReplaceUsage(ctx context.Context, limit *metering.TenantResourceLimit) error {
	return r.Save(ctx, limit)
}

func (r *memLimitRepo) ReplaceCaps(ctx context.Context, limit *metering.TenantResourceLimit) error {
	return r.Save(ctx, limit)
}

// memHealthRepo is a mutex-guarded in-memory HealthRepository
type memHealthRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*metering.TenantHealth
}

func newMemHealthRepo() *memHealthRepo {
	return &memHealthRepo{rows: make(map[uuid.UUID]*metering.TenantHealth)}
}

func (r *memHealthRepo) Save(ctx context.Context, health *metering.TenantHealth) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[health.TenantID] = health
	return nil
}

func (r *memHealthRepo) Update(ctx context.Context, health *metering.TenantHealth) error {
	return r.Save(ctx, health)
}

func (r *memHealthRepo) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*metering.TenantHealth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[tenantID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return row, nil
}

// memAuditRecorder collects audit events for assertions
type memAuditRecorder struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (r *memAuditRecorder) Record(event AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *memAuditRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

type mockSubscriptionProvider struct {
	mock.Mock
}

func (m *mockSubscriptionProvider) GetSubscription(ctx context.Context, tenantID uuid.UUID) (*billing.TenantSubscription, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.TenantSubscription), args.Error(1)
}

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
