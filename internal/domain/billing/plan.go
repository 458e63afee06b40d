package billing

import (
	"time"

	"github.com/schoolsaas/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// SubscriptionPlan describes one subscription tier. Plans are global
// reference data shared by all tenants; the engine reads them but never
// mutates them outside administrative operations.
type SubscriptionPlan struct {
	shared.BaseAggregateRoot
	Name             string          // Display name, e.g. "Basic"
	SortOrder        int             // Position in the tier ladder, ascending
	StudentThreshold int             // Included student count for this tier
	OverageUnitPrice decimal.Decimal // Price per student above the threshold
	MonthlyBasePrice decimal.Decimal // Monthly base price
	IsActive         bool            // Inactive plans are invisible to the catalog
}

// NewSubscriptionPlan creates a new plan tier
func NewSubscriptionPlan(name string, sortOrder, studentThreshold int, basePrice, overagePrice decimal.Decimal) (*SubscriptionPlan, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_PLAN_NAME", "Plan name cannot be empty")
	}
	if sortOrder < 0 {
		return nil, shared.NewDomainError("INVALID_SORT_ORDER", "Sort order cannot be negative")
	}
	if studentThreshold < 0 {
		return nil, shared.NewDomainError("INVALID_THRESHOLD", "Student threshold cannot be negative")
	}
	if basePrice.IsNegative() || overagePrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Plan prices cannot be negative")
	}

	return &SubscriptionPlan{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		SortOrder:         sortOrder,
		StudentThreshold:  studentThreshold,
		OverageUnitPrice:  overagePrice,
		MonthlyBasePrice:  basePrice,
		IsActive:          true,
	}, nil
}

// Covers returns true if the plan's included threshold accommodates the
// given student count
func (p *SubscriptionPlan) Covers(studentCount int) bool {
	return studentCount <= p.StudentThreshold
}

// OverageUnits returns how many students exceed the included threshold
func (p *SubscriptionPlan) OverageUnits(studentCount int) int {
	if studentCount <= p.StudentThreshold {
		return 0
	}
	return studentCount - p.StudentThreshold
}

// OverageAmount returns the surcharge for the given student count
func (p *SubscriptionPlan) OverageAmount(studentCount int) decimal.Decimal {
	units := p.OverageUnits(studentCount)
	if units == 0 {
		return decimal.Zero
	}
	return p.OverageUnitPrice.Mul(decimal.NewFromInt(int64(units)))
}

// Deactivate retires the plan from the catalog. Existing subscriptions keep
// referencing it until the next tier change.
func (p *SubscriptionPlan) Deactivate() {
	p.IsActive = false
	p.UpdatedAt = time.Now()
}

// Activate returns the plan to the catalog
func (p *SubscriptionPlan) Activate() {
	p.IsActive = true
	p.UpdatedAt = time.Now()
}

// PlanComparison is the result of ordering two plans by tier
type PlanComparison int

const (
	PlanLower  PlanComparison = -1
	PlanEqual  PlanComparison = 0
	PlanHigher PlanComparison = 1
)

// ComparePlans orders plan a relative to plan b by sort order
func ComparePlans(a, b *SubscriptionPlan) PlanComparison {
	switch {
	case a.SortOrder < b.SortOrder:
		return PlanLower
	case a.SortOrder > b.SortOrder:
		return PlanHigher
	default:
		return PlanEqual
	}
}
