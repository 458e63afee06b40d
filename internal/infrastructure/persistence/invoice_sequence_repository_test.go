package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// InvoiceSequenceModelSQLite is a SQLite-compatible version of
// InvoiceSequenceModel for testing
type InvoiceSequenceModelSQLite struct {
	ID        string `gorm:"primaryKey"`
	TenantID  string `gorm:"not null;uniqueIndex:idx_invoice_seq_tenant_month"`
	YearMonth string `gorm:"not null;uniqueIndex:idx_invoice_seq_tenant_month"`
	LastValue int64  `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (InvoiceSequenceModelSQLite) TableName() string {
	return "invoice_sequences"
}

func setupSequenceTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&InvoiceSequenceModelSQLite{}))
	return db
}

func TestInvoiceSequenceRepository_Next(t *testing.T) {
	db := setupSequenceTestDB(t)
	repo := NewInvoiceSequenceRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	march := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("counts up within a tenant month", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			got, err := repo.Next(ctx, tenantID, march)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("a new month restarts at one", func(t *testing.T) {
		april := march.AddDate(0, 1, 0)
		got, err := repo.Next(ctx, tenantID, april)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)

		// the march counter keeps its own position
		got, err = repo.Next(ctx, tenantID, march)
		require.NoError(t, err)
		assert.Equal(t, int64(4), got)
	})

	t.Run("tenants do not share counters", func(t *testing.T) {
		got, err := repo.Next(ctx, uuid.New(), march)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)
	})
}
