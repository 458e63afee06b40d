package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity provides the identity and timestamp fields shared by every
// persisted domain object. Aggregates bump UpdatedAt themselves when state
// changes.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity creates a new base entity with a generated ID
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
