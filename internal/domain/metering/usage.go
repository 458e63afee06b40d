package metering

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResourceKind identifies a governed resource
type ResourceKind string

const (
	// ResourceStudents is the number of student records
	ResourceStudents ResourceKind = "students"

	// ResourceUsers is the number of staff user accounts
	ResourceUsers ResourceKind = "users"

	// ResourceStorage is file storage consumption in bytes
	ResourceStorage ResourceKind = "storage"

	// ResourceAPIRatePerMinute is the API call rate over the last minute
	ResourceAPIRatePerMinute ResourceKind = "api_rate_minute"

	// ResourceAPIRatePerHour is the API call rate over the last hour
	ResourceAPIRatePerHour ResourceKind = "api_rate_hour"

	// ResourceDatabaseSize is the tenant database footprint in bytes
	ResourceDatabaseSize ResourceKind = "database_size"
)

// String returns the string representation of the resource kind
func (k ResourceKind) String() string {
	return string(k)
}

// IsValid returns true if the kind is a governed resource
func (k ResourceKind) IsValid() bool {
	switch k {
	case ResourceStudents, ResourceUsers, ResourceStorage,
		ResourceAPIRatePerMinute, ResourceAPIRatePerHour, ResourceDatabaseSize:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the resource kind
func (k ResourceKind) DisplayName() string {
	switch k {
	case ResourceStudents:
		return "Students"
	case ResourceUsers:
		return "Users"
	case ResourceStorage:
		return "Storage"
	case ResourceAPIRatePerMinute:
		return "API Calls (per minute)"
	case ResourceAPIRatePerHour:
		return "API Calls (per hour)"
	case ResourceDatabaseSize:
		return "Database Size"
	default:
		return string(k)
	}
}

// ParseResourceKind parses a string into a ResourceKind
func ParseResourceKind(s string) (ResourceKind, error) {
	k := ResourceKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("invalid resource kind: %s", s)
	}
	return k, nil
}

// AllResourceKinds returns every governed resource kind
func AllResourceKinds() []ResourceKind {
	return []ResourceKind{
		ResourceStudents,
		ResourceUsers,
		ResourceStorage,
		ResourceAPIRatePerMinute,
		ResourceAPIRatePerHour,
		ResourceDatabaseSize,
	}
}

// UsageSnapshot is a point-in-time view of one tenant's consumption,
// computed by the usage meter from collaborator data sources. It carries no
// identity and never mutates anything.
type UsageSnapshot struct {
	TenantID           uuid.UUID
	StudentCount       int64
	UserCount          int64
	StorageBytes       int64
	APICallsLastMinute int64
	APICallsLastHour   int64
	DatabaseSizeBytes  int64
	ComputedAt         time.Time
}

// Value returns the snapshot counter for the given resource kind
func (s UsageSnapshot) Value(kind ResourceKind) int64 {
	switch kind {
	case ResourceStudents:
		return s.StudentCount
	case ResourceUsers:
		return s.UserCount
	case ResourceStorage:
		return s.StorageBytes
	case ResourceAPIRatePerMinute:
		return s.APICallsLastMinute
	case ResourceAPIRatePerHour:
		return s.APICallsLastHour
	case ResourceDatabaseSize:
		return s.DatabaseSizeBytes
	default:
		return 0
	}
}

// FormatBytes formats a byte count into a human-readable string
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
