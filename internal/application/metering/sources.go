package metering

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Collaborator data sources the usage meter reads. Each is implemented by an
// adapter in infrastructure/metering; the meter itself never touches tenant
// tables directly.

// StudentCounter counts a tenant's student records
type StudentCounter interface {
	CountStudents(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// UserCounter counts a tenant's staff user accounts
type UserCounter interface {
	CountUsers(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// StorageUsageProvider reports a tenant's file storage consumption
type StorageUsageProvider interface {
	StorageBytes(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// APICallCounter reports a tenant's API call volume over sliding windows
type APICallCounter interface {
	CallsLastMinute(ctx context.Context, tenantID uuid.UUID) (int64, error)
	CallsLastHour(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// DatabaseSizeProvider reports a tenant's database footprint
type DatabaseSizeProvider interface {
	DatabaseSizeBytes(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// AuditEvent is one governance action worth an audit trail entry
type AuditEvent struct {
	TenantID uuid.UUID
	Action   string
	Detail   string
	At       time.Time
}

// AuditRecorder accepts audit events fire-and-forget. Implementations must
// never block the caller; dropping events under pressure is acceptable.
type AuditRecorder interface {
	Record(event AuditEvent)
}
