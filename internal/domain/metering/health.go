package metering

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/shared"
)

// MaxAlerts bounds the per-tenant alert list; the oldest alerts are dropped
// once the bound is reached
const MaxAlerts = 50

// AlertKind classifies a health alert
type AlertKind string

const (
	// AlertOverCapacity is raised when cached usage exceeds a hard cap
	AlertOverCapacity AlertKind = "over_capacity"

	// AlertThresholdCrossed is raised when the student count exceeds the
	// current plan's included threshold
	AlertThresholdCrossed AlertKind = "threshold_crossed"

	// AlertRenewalDue is raised when the next billing date falls inside the
	// warning window
	AlertRenewalDue AlertKind = "renewal_due"

	// AlertExpiryCandidate is raised when the billing date has passed with
	// the period unpaid; the status change itself stays an operator action
	AlertExpiryCandidate AlertKind = "expiry_candidate"
)

// String returns the string representation of the alert kind
func (k AlertKind) String() string {
	return string(k)
}

// IsValid returns true if the kind is a known alert classification
func (k AlertKind) IsValid() bool {
	switch k {
	case AlertOverCapacity, AlertThresholdCrossed, AlertRenewalDue, AlertExpiryCandidate:
		return true
	}
	return false
}

// HealthAlert is one entry in a tenant's alert list
type HealthAlert struct {
	Kind     AlertKind    `json:"kind"`
	Resource ResourceKind `json:"resource,omitempty"`
	Message  string       `json:"message"`
	RaisedAt time.Time    `json:"raised_at"`
}

// TenantHealth stores the last-computed health indicators for a tenant plus
// the bounded alert list. It is initialized lazily on the first health check
// and alerts accumulate until an operator clears them.
type TenantHealth struct {
	shared.TenantAggregateRoot
	StoragePercent float64
	UserCount      int64
	UserLimit      int64
	StudentCount   int64
	LastCheckAt    *time.Time
	LastError      string
	Alerts         []HealthAlert
}

// NewTenantHealth initializes the health record for a tenant
func NewTenantHealth(tenantID uuid.UUID) (*TenantHealth, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	return &TenantHealth{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Alerts:              make([]HealthAlert, 0),
	}, nil
}

// RecordCheck stores the indicators computed by a successful health check
// and clears any previous error marker
func (h *TenantHealth) RecordCheck(limits *TenantResourceLimit) {
	now := time.Now()
	h.StoragePercent = limits.StorageUsagePercent()
	h.UserCount = limits.CurrentUsers
	h.UserLimit = limits.Caps.MaxUsers
	h.StudentCount = limits.CurrentStudents
	h.LastCheckAt = &now
	h.LastError = ""
	h.UpdatedAt = now
}

// RecordFailure marks the health record with the error from a failed check.
// Indicators keep their previous values.
func (h *TenantHealth) RecordFailure(err error) {
	now := time.Now()
	h.LastCheckAt = &now
	h.LastError = err.Error()
	h.UpdatedAt = now
}

// RaiseAlert appends an alert, dropping the oldest entries beyond the bound.
// Duplicate alerts of the same kind and resource raised since the last clear
// are suppressed.
func (h *TenantHealth) RaiseAlert(kind AlertKind, resource ResourceKind, format string, args ...any) {
	for _, a := range h.Alerts {
		if a.Kind == kind && a.Resource == resource {
			return
		}
	}
	h.Alerts = append(h.Alerts, HealthAlert{
		Kind:     kind,
		Resource: resource,
		Message:  fmt.Sprintf(format, args...),
		RaisedAt: time.Now(),
	})
	if len(h.Alerts) > MaxAlerts {
		h.Alerts = h.Alerts[len(h.Alerts)-MaxAlerts:]
	}
	h.UpdatedAt = time.Now()
}

// ClearAlerts empties the alert list (operator action, never automatic)
func (h *TenantHealth) ClearAlerts() {
	h.Alerts = h.Alerts[:0]
	h.UpdatedAt = time.Now()
}

// HasAlerts returns true if any alert is outstanding
func (h *TenantHealth) HasAlerts() bool {
	return len(h.Alerts) > 0
}
