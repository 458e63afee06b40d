package shared

import (
	"github.com/google/uuid"
)

// BaseAggregateRoot provides identity, optimistic-lock version and pending
// domain events for aggregate roots. Events accumulate on the aggregate
// until the owning service drains them after a successful save.
type BaseAggregateRoot struct {
	BaseEntity
	Version      int           `gorm:"not null;default:1"`
	domainEvents []DomainEvent `gorm:"-"`
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: NewBaseEntity(),
		Version:    1,
	}
}

// AddDomainEvent records a domain event for later publication
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents drops the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// TenantAggregateRoot extends BaseAggregateRoot with multi-tenant support.
// Every engine-owned aggregate except SubscriptionPlan is scoped to exactly
// one tenant.
type TenantAggregateRoot struct {
	BaseAggregateRoot
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// NewTenantAggregateRoot creates a new tenant-scoped aggregate root
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	return TenantAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		TenantID:          tenantID,
	}
}
