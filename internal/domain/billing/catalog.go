package billing

import (
	"sort"

	"github.com/google/uuid"
)

// PlanCatalog is a point-in-time ordered view over the active subscription
// plans. It is loaded once per operation; a plan deactivated mid-operation
// stays resolvable through the snapshot so in-flight work never crashes on a
// vanished tier.
type PlanCatalog struct {
	plans []*SubscriptionPlan // sorted by SortOrder asc, ties by cheaper base price
	byID  map[uuid.UUID]*SubscriptionPlan
}

// NewPlanCatalog builds a catalog from the given plans. Inactive plans are
// kept resolvable by ID but excluded from tier lookups.
func NewPlanCatalog(plans []*SubscriptionPlan) (*PlanCatalog, error) {
	byID := make(map[uuid.UUID]*SubscriptionPlan, len(plans))
	active := make([]*SubscriptionPlan, 0, len(plans))
	for _, p := range plans {
		byID[p.ID] = p
		if p.IsActive {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return nil, ErrPlanNotFound
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].SortOrder != active[j].SortOrder {
			return active[i].SortOrder < active[j].SortOrder
		}
		// Equal thresholds resolve to the cheaper plan, so the cheaper one
		// must sort first.
		return active[i].MonthlyBasePrice.LessThan(active[j].MonthlyBasePrice)
	})

	return &PlanCatalog{plans: active, byID: byID}, nil
}

// FindPlanForStudentCount returns the lowest tier whose included threshold
// accommodates n students. When two qualifying plans share a threshold the
// cheaper one wins. If no tier is large enough the highest tier is the
// ceiling.
func (c *PlanCatalog) FindPlanForStudentCount(n int) (*SubscriptionPlan, error) {
	if len(c.plans) == 0 {
		return nil, ErrPlanNotFound
	}

	var best *SubscriptionPlan
	for _, p := range c.plans {
		if !p.Covers(n) {
			continue
		}
		if best == nil || betterFit(p, best) {
			best = p
		}
	}
	if best != nil {
		return best, nil
	}
	// No tier is big enough; the highest tier is the ceiling.
	return c.HighestPlan(), nil
}

// betterFit reports whether candidate should replace current as the lookup
// result: lower sort order wins, equal thresholds prefer the cheaper plan.
func betterFit(candidate, current *SubscriptionPlan) bool {
	if candidate.SortOrder != current.SortOrder {
		return candidate.SortOrder < current.SortOrder
	}
	if candidate.StudentThreshold == current.StudentThreshold {
		return candidate.MonthlyBasePrice.LessThan(current.MonthlyBasePrice)
	}
	return false
}

// ResolvePlan returns the plan with the given ID, including plans that were
// deactivated after the catalog snapshot was taken.
func (c *PlanCatalog) ResolvePlan(id uuid.UUID) (*SubscriptionPlan, error) {
	if p, ok := c.byID[id]; ok {
		return p, nil
	}
	return nil, ErrPlanNotFound
}

// CheapestPlan returns the lowest tier, used when lazily provisioning a
// subscription for a tenant that has none.
func (c *PlanCatalog) CheapestPlan() *SubscriptionPlan {
	return c.plans[0]
}

// HighestPlan returns the ceiling tier
func (c *PlanCatalog) HighestPlan() *SubscriptionPlan {
	return c.plans[len(c.plans)-1]
}

// ActivePlans returns the ordered active tiers
func (c *PlanCatalog) ActivePlans() []*SubscriptionPlan {
	return c.plans
}
