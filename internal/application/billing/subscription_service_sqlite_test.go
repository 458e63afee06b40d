package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/billing"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"github.com/schoolsaas/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLite-compatible shadows of the persistence models, sharing their table
// names so the real repositories run against an in-memory store.

type planRowSQLite struct {
	ID               string `gorm:"primaryKey"`
	Name             string `gorm:"not null;uniqueIndex"`
	SortOrder        int    `gorm:"not null;index"`
	StudentThreshold int    `gorm:"not null"`
	MonthlyBasePrice string `gorm:"not null"`
	OverageUnitPrice string `gorm:"not null"`
	IsActive         bool   `gorm:"not null;default:true"`
	Version          int    `gorm:"not null;default:1"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (planRowSQLite) TableName() string { return "subscription_plans" }

type subscriptionRowSQLite struct {
	ID                      string    `gorm:"primaryKey"`
	TenantID                string    `gorm:"not null;uniqueIndex"`
	PlanID                  string    `gorm:"not null;index"`
	Status                  string    `gorm:"not null;index"`
	PeriodStart             time.Time `gorm:"not null"`
	PeriodEnd               time.Time `gorm:"not null"`
	CurrentBillingAmount    string    `gorm:"not null"`
	IsPaid                  bool      `gorm:"not null;default:false"`
	NextBillingDate         time.Time `gorm:"not null;index"`
	StudentCountAtLastCheck int       `gorm:"not null;default:0"`
	Version                 int       `gorm:"not null;default:1"`
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (subscriptionRowSQLite) TableName() string { return "tenant_subscriptions" }

type ledgerRowSQLite struct {
	ID             string    `gorm:"primaryKey"`
	TenantID       string    `gorm:"not null;index"`
	SubscriptionID string    `gorm:"not null;index"`
	InvoiceNumber  string    `gorm:"not null;uniqueIndex"`
	BillingDate    time.Time `gorm:"not null;index"`
	Amount         string    `gorm:"not null"`
	Reason         string    `gorm:"not null"`
	Paid           bool      `gorm:"not null;default:false"`
	PaymentNotes   string
	PaidAt         *time.Time
	Version        int `gorm:"not null;default:1"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ledgerRowSQLite) TableName() string { return "subscription_billing_histories" }

type sequenceRowSQLite struct {
	ID        string `gorm:"primaryKey"`
	TenantID  string `gorm:"not null;uniqueIndex:idx_invoice_seq_tenant_month"`
	YearMonth string `gorm:"not null;uniqueIndex:idx_invoice_seq_tenant_month"`
	LastValue int64  `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (sequenceRowSQLite) TableName() string { return "invoice_sequences" }

func newStoreBackedService(t *testing.T) *SubscriptionService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&planRowSQLite{},
		&subscriptionRowSQLite{},
		&ledgerRowSQLite{},
		&sequenceRowSQLite{},
	))

	planRepo := persistence.NewPlanRepository(db)
	ctx := context.Background()
	basic := testPlan(t, "Basic", 1, 100, "49")
	standard := testPlan(t, "Standard", 2, 500, "149")
	require.NoError(t, planRepo.Save(ctx, basic))
	require.NoError(t, planRepo.Save(ctx, standard))

	return NewSubscriptionService(
		planRepo,
		persistence.NewSubscriptionRepository(db),
		persistence.NewLedgerRepository(db),
		persistence.NewInvoiceSequenceRepository(db),
		zap.NewNop(),
	)
}

func TestSubscriptionService_RenewalLifecycleAgainstStore(t *testing.T) {
	ctx := context.Background()
	service := newStoreBackedService(t)
	tenantID := uuid.New()

	first, err := service.ProcessRenewal(ctx, tenantID)
	require.NoError(t, err)
	assert.False(t, first.Paid)

	// an immediate re-run, well before the new period ends, must see the
	// unpaid charge and refuse to mint a second one
	_, err = service.ProcessRenewal(ctx, tenantID)
	require.ErrorIs(t, err, billing.ErrAlreadyRenewed)

	page, err := service.GetBillingHistory(ctx, tenantID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total, "blocked renewal leaves no charge behind")

	paid, err := service.MarkAsPaid(ctx, first.ID, "wire ref 112")
	require.NoError(t, err)
	assert.True(t, paid.Paid)

	second, err := service.ProcessRenewal(ctx, tenantID)
	require.NoError(t, err)
	assert.NotEqual(t, first.InvoiceNumber, second.InvoiceNumber)

	sub, err := service.GetSubscription(ctx, tenantID)
	require.NoError(t, err)
	assert.False(t, sub.IsPaid)

	page, err = service.GetBillingHistory(ctx, tenantID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
}

func TestSubscriptionService_StudentCountAgainstStore(t *testing.T) {
	ctx := context.Background()
	service := newStoreBackedService(t)
	tenantID := uuid.New()

	result, err := service.UpdateStudentCount(ctx, tenantID, 180)
	require.NoError(t, err)
	require.True(t, result.TierChanged)
	assert.Equal(t, "Standard", result.NewPlan.Name)
	require.NotNil(t, result.Entry)

	// both sides of the atomic write are visible afterwards
	sub, err := service.GetSubscription(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, result.NewPlan.ID, sub.PlanID)
	assert.Equal(t, 180, sub.StudentCountAtLastCheck)

	page, err := service.GetBillingHistory(ctx, tenantID, shared.DefaultFilter())
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, billing.BillingReasonPlanChange, page.Items[0].Reason)
}
