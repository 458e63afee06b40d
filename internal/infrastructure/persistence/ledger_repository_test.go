package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/billing"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// BillingHistoryModelSQLite is a SQLite-compatible version of
// BillingHistoryModel for testing
type BillingHistoryModelSQLite struct {
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

func (BillingHistoryModelSQLite) TableName() string {
	return "subscription_billing_histories"
}

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&BillingHistoryModelSQLite{}))
	return db
}

func makeEntry(t *testing.T, sub *billing.TenantSubscription, seq int64, reason billing.BillingReason) *billing.BillingLedgerEntry {
	t.Helper()
	entry, err := billing.NewBillingLedgerEntry(sub,
		billing.FormatInvoiceNumber(sub.TenantID, time.Now(), seq),
		decimal.RequireFromString("99"), reason)
	require.NoError(t, err)
	return entry
}

func TestLedgerRepository_AppendAndFind(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	sub := makeSubscription(t, uuid.New())
	entry := makeEntry(t, sub, 1, billing.BillingReasonRenewal)
	require.NoError(t, repo.Append(ctx, entry))

	found, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.InvoiceNumber, found.InvoiceNumber)
	assert.Equal(t, billing.BillingReasonRenewal, found.Reason)
	assert.True(t, found.Amount.Equal(decimal.RequireFromString("99")))
	assert.False(t, found.Paid)
}

func TestLedgerRepository_FindBySubscription(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	sub := makeSubscription(t, uuid.New())
	for i := int64(1); i <= 25; i++ {
		entry := makeEntry(t, sub, i, billing.BillingReasonRenewal)
		entry.BillingDate = time.Now().Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Append(ctx, entry))
	}

	t.Run("paginates newest first", func(t *testing.T) {
		entries, total, err := repo.FindBySubscription(ctx, sub.ID, shared.DefaultFilter())
		require.NoError(t, err)

		assert.Equal(t, int64(25), total)
		require.Len(t, entries, 20)
		assert.True(t, entries[0].BillingDate.After(entries[1].BillingDate))
	})

	t.Run("second page holds the remainder", func(t *testing.T) {
		filter := shared.Filter{Page: 2, PageSize: 20}
		entries, total, err := repo.FindBySubscription(ctx, sub.ID, filter)
		require.NoError(t, err)

		assert.Equal(t, int64(25), total)
		assert.Len(t, entries, 5)
	})

	t.Run("other subscriptions are invisible", func(t *testing.T) {
		entries, total, err := repo.FindBySubscription(ctx, uuid.New(), shared.DefaultFilter())
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, entries)
	})
}

func TestLedgerRepository_HasUnpaidRenewal(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	sub := makeSubscription(t, uuid.New())

	t.Run("false on empty ledger", func(t *testing.T) {
		pending, err := repo.HasUnpaidRenewal(ctx, sub.ID)
		require.NoError(t, err)
		assert.False(t, pending)
	})

	t.Run("true with an unpaid renewal", func(t *testing.T) {
		entry := makeEntry(t, sub, 1, billing.BillingReasonRenewal)
		// a renewal processed early bills before the advanced period starts;
		// the charge must still block
		entry.BillingDate = sub.PeriodStart.Add(-time.Minute)
		require.NoError(t, repo.Append(ctx, entry))

		pending, err := repo.HasUnpaidRenewal(ctx, sub.ID)
		require.NoError(t, err)
		assert.True(t, pending)
	})

	t.Run("false once the renewal is paid", func(t *testing.T) {
		var model BillingHistoryModelSQLite
		require.NoError(t, db.First(&model, "reason = ?", "renewal").Error)
		now := time.Now()
		require.NoError(t, db.Model(&model).Updates(map[string]interface{}{"paid": true, "paid_at": now}).Error)

		pending, err := repo.HasUnpaidRenewal(ctx, sub.ID)
		require.NoError(t, err)
		assert.False(t, pending)
	})

	t.Run("unpaid overage does not count", func(t *testing.T) {
		entry := makeEntry(t, sub, 2, billing.BillingReasonOverage)
		require.NoError(t, repo.Append(ctx, entry))

		pending, err := repo.HasUnpaidRenewal(ctx, sub.ID)
		require.NoError(t, err)
		assert.False(t, pending)
	})
}

func TestLedgerRepository_AppendWithSubscription(t *testing.T) {
	db := setupLedgerTestDB(t)
	require.NoError(t, db.AutoMigrate(&TenantSubscriptionModelSQLite{}))
	ledgerRepo := NewLedgerRepository(db)
	subRepo := NewSubscriptionRepository(db)
	ctx := context.Background()

	sub := makeSubscription(t, uuid.New())
	require.NoError(t, subRepo.Save(ctx, sub))

	t.Run("commits entry and subscription together", func(t *testing.T) {
		sub.RecordStudentCount(42)
		entry := makeEntry(t, sub, 1, billing.BillingReasonOverage)

		require.NoError(t, ledgerRepo.AppendWithSubscription(ctx, entry, sub))

		found, err := ledgerRepo.FindByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, entry.InvoiceNumber, found.InvoiceNumber)

		stored, err := subRepo.FindByTenant(ctx, sub.TenantID)
		require.NoError(t, err)
		assert.Equal(t, 42, stored.StudentCountAtLastCheck)
	})

	t.Run("failed entry insert rolls back the subscription", func(t *testing.T) {
		sub.RecordStudentCount(99)
		// reusing invoice number 1 violates the unique index
		dup := makeEntry(t, sub, 1, billing.BillingReasonOverage)

		err := ledgerRepo.AppendWithSubscription(ctx, dup, sub)
		require.Error(t, err)

		stored, err := subRepo.FindByTenant(ctx, sub.TenantID)
		require.NoError(t, err)
		assert.Equal(t, 42, stored.StudentCountAtLastCheck, "subscription keeps its last committed state")

		_, err = ledgerRepo.FindByID(ctx, dup.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestLedgerRepository_UpdatePayment(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	sub := makeSubscription(t, uuid.New())
	entry := makeEntry(t, sub, 1, billing.BillingReasonRenewal)
	require.NoError(t, repo.Append(ctx, entry))

	t.Run("persists payment fields only", func(t *testing.T) {
		entry.MarkPaid("bank transfer")
		// a buggy caller mutating the amount must not leak into the table
		entry.Amount = decimal.RequireFromString("1")

		require.NoError(t, repo.UpdatePayment(ctx, entry))

		found, err := repo.FindByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.True(t, found.Paid)
		assert.Equal(t, "bank transfer", found.PaymentNotes)
		require.NotNil(t, found.PaidAt)
		assert.True(t, found.Amount.Equal(decimal.RequireFromString("99")), "amount is never written back")
	})

	t.Run("unknown entry yields not found", func(t *testing.T) {
		ghost := makeEntry(t, sub, 99, billing.BillingReasonManual)
		ghost.MarkPaid("")
		assert.ErrorIs(t, repo.UpdatePayment(ctx, ghost), shared.ErrNotFound)
	})
}
