package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/billing"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceSequenceModel is the GORM model for per-tenant monthly invoice
// counters
type InvoiceSequenceModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_invoice_seq_tenant_month"`
	YearMonth string    `gorm:"type:varchar(6);not null;uniqueIndex:idx_invoice_seq_tenant_month"`
	LastValue int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (InvoiceSequenceModel) TableName() string {
	return "invoice_sequences"
}

// InvoiceSequenceRepository claims invoice numbers from per-tenant monthly
// counter rows. Claims run inside a transaction holding a row lock, so
// concurrent claims for the same tenant serialize and every number is
// handed out exactly once.
type InvoiceSequenceRepository struct {
	db *gorm.DB
}

// NewInvoiceSequenceRepository creates a new invoice sequence repository
func NewInvoiceSequenceRepository(db *gorm.DB) *InvoiceSequenceRepository {
	return &InvoiceSequenceRepository{db: db}
}

// Next claims the next sequence value for the tenant's month
func (r *InvoiceSequenceRepository) Next(ctx context.Context, tenantID uuid.UUID, at time.Time) (int64, error) {
	yearMonth := at.Format("200601")
	var next int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("tenant_id = ? AND year_month = ?", tenantID, yearMonth)
		// sqlite has no FOR UPDATE; its single-writer lock serializes claims
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var row InvoiceSequenceModel
		err := query.First(&row).Error
		if err == gorm.ErrRecordNotFound {
			row = InvoiceSequenceModel{
				ID:        uuid.New(),
				TenantID:  tenantID,
				YearMonth: yearMonth,
				LastValue: 1,
			}
			next = 1
			return tx.Create(&row).Error
		}
		if err != nil {
			return err
		}

		next = row.LastValue + 1
		return tx.Model(&InvoiceSequenceModel{}).
			Where("id = ?", row.ID).
			Update("last_value", next).Error
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Ensure InvoiceSequenceRepository implements the interface
var _ billing.InvoiceSequencer = (*InvoiceSequenceRepository)(nil)
