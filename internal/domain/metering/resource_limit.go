package metering

import (
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/shared"
)

const bytesPerMB = int64(1024 * 1024)

// ResourceCaps holds the hard caps applied to one tenant. Zero or negative
// values mean the cap is not enforced; MaxStudents is nullable because
// student capacity is usually governed by the billing tier instead.
type ResourceCaps struct {
	MaxStorageMB          int64
	MaxUsers              int64
	MaxStudents           *int64
	APIRateLimitPerMinute int64
	APIRateLimitPerHour   int64
	MaxDatabaseSizeMB     int64
}

// TenantResourceLimit holds a tenant's hard resource caps together with the
// cached usage counters the enforcer reads on its hot path. The cached
// fields are only ever replaced wholesale from a fresh UsageSnapshot, never
// patched field by field.
type TenantResourceLimit struct {
	shared.TenantAggregateRoot
	Caps ResourceCaps

	CurrentStorageBytes      int64
	CurrentUsers             int64
	CurrentStudents          int64
	APICallsLastMinute       int64
	APICallsLastHour         int64
	CurrentDatabaseSizeBytes int64
	UsageRefreshedAt         *time.Time
}

// NewTenantResourceLimit creates the limit row for a tenant with the given
// caps and no usage recorded yet
func NewTenantResourceLimit(tenantID uuid.UUID, caps ResourceCaps) (*TenantResourceLimit, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	return &TenantResourceLimit{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Caps:                caps,
	}, nil
}

// ReplaceUsage overwrites every cached usage counter from the snapshot and
// timestamps the refresh. Partial updates are not provided so the cache can
// never drift out of internal consistency.
func (l *TenantResourceLimit) ReplaceUsage(snapshot UsageSnapshot) {
	now := time.Now()
	l.CurrentStorageBytes = snapshot.StorageBytes
	l.CurrentUsers = snapshot.UserCount
	l.CurrentStudents = snapshot.StudentCount
	l.APICallsLastMinute = snapshot.APICallsLastMinute
	l.APICallsLastHour = snapshot.APICallsLastHour
	l.CurrentDatabaseSizeBytes = snapshot.DatabaseSizeBytes
	l.UsageRefreshedAt = &now
	l.UpdatedAt = now
}

// ReplaceCaps overwrites the hard caps (administrative override)
func (l *TenantResourceLimit) ReplaceCaps(caps ResourceCaps) {
	l.Caps = caps
	l.UpdatedAt = time.Now()
}

// IsUsageStale reports whether the cached usage is older than the window.
// A row that has never been refreshed is stale.
func (l *TenantResourceLimit) IsUsageStale(window time.Duration, now time.Time) bool {
	if l.UsageRefreshedAt == nil {
		return true
	}
	return now.Sub(*l.UsageRefreshedAt) > window
}

// CurrentValue returns the cached usage counter for a resource kind, in the
// cap's unit (MB for storage kinds, counts otherwise)
func (l *TenantResourceLimit) CurrentValue(kind ResourceKind) int64 {
	switch kind {
	case ResourceStudents:
		return l.CurrentStudents
	case ResourceUsers:
		return l.CurrentUsers
	case ResourceStorage:
		return l.CurrentStorageBytes / bytesPerMB
	case ResourceAPIRatePerMinute:
		return l.APICallsLastMinute
	case ResourceAPIRatePerHour:
		return l.APICallsLastHour
	case ResourceDatabaseSize:
		return l.CurrentDatabaseSizeBytes / bytesPerMB
	default:
		return 0
	}
}

// CapValue returns the configured cap for a resource kind and whether it is
// enforced
func (l *TenantResourceLimit) CapValue(kind ResourceKind) (int64, bool) {
	switch kind {
	case ResourceStudents:
		if l.Caps.MaxStudents == nil {
			return 0, false
		}
		return *l.Caps.MaxStudents, *l.Caps.MaxStudents > 0
	case ResourceUsers:
		return l.Caps.MaxUsers, l.Caps.MaxUsers > 0
	case ResourceStorage:
		return l.Caps.MaxStorageMB, l.Caps.MaxStorageMB > 0
	case ResourceAPIRatePerMinute:
		return l.Caps.APIRateLimitPerMinute, l.Caps.APIRateLimitPerMinute > 0
	case ResourceAPIRatePerHour:
		return l.Caps.APIRateLimitPerHour, l.Caps.APIRateLimitPerHour > 0
	case ResourceDatabaseSize:
		return l.Caps.MaxDatabaseSizeMB, l.Caps.MaxDatabaseSizeMB > 0
	default:
		return 0, false
	}
}

// Check decides whether admitting requestedDelta more units of the resource
// would stay within the cap. The decision is made on the cached usage; it is
// advisory, the enforcer performs no reservation or rollback.
func (l *TenantResourceLimit) Check(kind ResourceKind, requestedDelta int64) LimitDecision {
	current := l.CurrentValue(kind)
	limit, enforced := l.CapValue(kind)
	if !enforced {
		return Allow(kind, current)
	}
	if current+requestedDelta > limit {
		return Deny(kind, current, limit)
	}
	return Allow(kind, current)
}

// OverCapKinds returns every resource kind whose cached usage already
// exceeds its cap
func (l *TenantResourceLimit) OverCapKinds() []ResourceKind {
	var over []ResourceKind
	for _, kind := range AllResourceKinds() {
		limit, enforced := l.CapValue(kind)
		if enforced && l.CurrentValue(kind) > limit {
			over = append(over, kind)
		}
	}
	return over
}

// StorageUsagePercent returns cached storage consumption as a percentage of
// the cap, or 0 when the cap is not enforced
func (l *TenantResourceLimit) StorageUsagePercent() float64 {
	if l.Caps.MaxStorageMB <= 0 {
		return 0
	}
	return float64(l.CurrentStorageBytes) / float64(l.Caps.MaxStorageMB*bytesPerMB) * 100
}

// LimitDecision is the structured outcome of a cap check. A denial names the
// specific kind that was exceeded together with the cached usage and cap
// values so callers can explain the rejection.
type LimitDecision struct {
	Allowed bool
	Kind    ResourceKind
	Current int64
	Limit   int64
}

// Allow builds an admitting decision
func Allow(kind ResourceKind, current int64) LimitDecision {
	return LimitDecision{Allowed: true, Kind: kind, Current: current}
}

// Deny builds a rejecting decision
func Deny(kind ResourceKind, current, limit int64) LimitDecision {
	return LimitDecision{Allowed: false, Kind: kind, Current: current, Limit: limit}
}
