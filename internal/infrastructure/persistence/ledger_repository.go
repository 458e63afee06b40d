package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/billing"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BillingHistoryModel is the GORM model for the append-only billing ledger
type BillingHistoryModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	SubscriptionID uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceNumber  string          `gorm:"type:varchar(40);not null;uniqueIndex"`
	BillingDate    time.Time       `gorm:"not null;index"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Reason         string          `gorm:"type:varchar(20);not null"`
	Paid           bool            `gorm:"not null;default:false"`
	PaymentNotes   string          `gorm:"type:text"`
	PaidAt         *time.Time
	Version        int       `gorm:"not null;default:1"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (BillingHistoryModel) TableName() string {
	return "subscription_billing_histories"
}

// ToEntity converts the model to a domain entity
func (m *BillingHistoryModel) ToEntity() *billing.BillingLedgerEntry {
	return &billing.BillingLedgerEntry{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{
					ID:        m.ID,
					CreatedAt: m.CreatedAt,
					UpdatedAt: m.UpdatedAt,
				},
				Version: m.Version,
			},
			TenantID: m.TenantID,
		},
		SubscriptionID: m.SubscriptionID,
		InvoiceNumber:  m.InvoiceNumber,
		BillingDate:    m.BillingDate,
		Amount:         m.Amount,
		Reason:         billing.BillingReason(m.Reason),
		Paid:           m.Paid,
		PaymentNotes:   m.PaymentNotes,
		PaidAt:         m.PaidAt,
	}
}

// BillingHistoryModelFromEntity creates a model from a domain entity
func BillingHistoryModelFromEntity(e *billing.BillingLedgerEntry) *BillingHistoryModel {
	return &BillingHistoryModel{
		ID:             e.ID,
		TenantID:       e.TenantID,
		SubscriptionID: e.SubscriptionID,
		InvoiceNumber:  e.InvoiceNumber,
		BillingDate:    e.BillingDate,
		Amount:         e.Amount,
		Reason:         string(e.Reason),
		Paid:           e.Paid,
		PaymentNotes:   e.PaymentNotes,
		PaidAt:         e.PaidAt,
		Version:        e.Version,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// LedgerRepository implements the billing.LedgerRepository interface
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append persists a new ledger entry
func (r *LedgerRepository) Append(ctx context.Context, entry *billing.BillingLedgerEntry) error {
	model := BillingHistoryModelFromEntity(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByID retrieves a ledger entry by its ID
func (r *LedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.BillingLedgerEntry, error) {
	var model BillingHistoryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindBySubscription lists entries for a subscription, newest first
func (r *LedgerRepository) FindBySubscription(ctx context.Context, subscriptionID uuid.UUID, filter shared.Filter) ([]*billing.BillingLedgerEntry, int64, error) {
	filter = filter.Normalize()

	query := r.db.WithContext(ctx).
		Model(&BillingHistoryModel{}).
		Where("subscription_id = ?", subscriptionID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []BillingHistoryModel
	err := query.
		Order("billing_date DESC, created_at DESC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	entries := make([]*billing.BillingLedgerEntry, len(models))
	for i := range models {
		entries[i] = models[i].ToEntity()
	}
	return entries, total, nil
}

// AppendWithSubscription persists the entry and the updated subscription in
// one transaction. When either write fails neither row is committed.
func (r *LedgerRepository) AppendWithSubscription(ctx context.Context, entry *billing.BillingLedgerEntry, sub *billing.TenantSubscription) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(BillingHistoryModelFromEntity(entry)).Error; err != nil {
			return err
		}
		return tx.Save(TenantSubscriptionModelFromEntity(sub)).Error
	})
}

// HasUnpaidRenewal reports whether any renewal charge for the subscription
// is still unpaid
func (r *LedgerRepository) HasUnpaidRenewal(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&BillingHistoryModel{}).
		Where("subscription_id = ?", subscriptionID).
		Where("reason = ?", string(billing.BillingReasonRenewal)).
		Where("paid = ?", false).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdatePayment persists only the payment fields of an entry
func (r *LedgerRepository) UpdatePayment(ctx context.Context, entry *billing.BillingLedgerEntry) error {
	result := r.db.WithContext(ctx).
		Model(&BillingHistoryModel{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"paid":          entry.Paid,
			"payment_notes": entry.PaymentNotes,
			"paid_at":       entry.PaidAt,
			"updated_at":    entry.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure LedgerRepository implements the interface
var _ billing.LedgerRepository = (*LedgerRepository)(nil)
