package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlan(t *testing.T, name string, sortOrder, threshold int, base string) *SubscriptionPlan {
	t.Helper()
	plan, err := NewSubscriptionPlan(name, sortOrder, threshold, decimal.RequireFromString(base), decimal.RequireFromString("2"))
	require.NoError(t, err)
	return plan
}

func TestNewSubscriptionPlan(t *testing.T) {
	t.Run("creates valid plan", func(t *testing.T) {
		plan, err := NewSubscriptionPlan("Basic", 1, 100, decimal.NewFromInt(99), decimal.NewFromInt(2))

		require.NoError(t, err)
		assert.Equal(t, "Basic", plan.Name)
		assert.Equal(t, 1, plan.SortOrder)
		assert.Equal(t, 100, plan.StudentThreshold)
		assert.True(t, plan.IsActive)
	})

	t.Run("fails with empty name", func(t *testing.T) {
		plan, err := NewSubscriptionPlan("", 1, 100, decimal.NewFromInt(99), decimal.NewFromInt(2))

		assert.Error(t, err)
		assert.Nil(t, plan)
	})

	t.Run("fails with negative threshold", func(t *testing.T) {
		plan, err := NewSubscriptionPlan("Basic", 1, -1, decimal.NewFromInt(99), decimal.NewFromInt(2))

		assert.Error(t, err)
		assert.Nil(t, plan)
	})

	t.Run("fails with negative price", func(t *testing.T) {
		plan, err := NewSubscriptionPlan("Basic", 1, 100, decimal.NewFromInt(-1), decimal.NewFromInt(2))

		assert.Error(t, err)
		assert.Nil(t, plan)
	})
}

func TestSubscriptionPlan_Overage(t *testing.T) {
	plan := newPlan(t, "Basic", 1, 100, "99")

	t.Run("no overage within threshold", func(t *testing.T) {
		assert.Equal(t, 0, plan.OverageUnits(100))
		assert.True(t, plan.OverageAmount(80).IsZero())
	})

	t.Run("overage above threshold", func(t *testing.T) {
		assert.Equal(t, 20, plan.OverageUnits(120))
		assert.True(t, plan.OverageAmount(120).Equal(decimal.NewFromInt(40)))
	})
}

func TestComparePlans(t *testing.T) {
	basic := newPlan(t, "Basic", 1, 100, "99")
	standard := newPlan(t, "Standard", 2, 300, "199")

	assert.Equal(t, PlanLower, ComparePlans(basic, standard))
	assert.Equal(t, PlanHigher, ComparePlans(standard, basic))
	assert.Equal(t, PlanEqual, ComparePlans(basic, basic))
}

func TestPlanCatalog_FindPlanForStudentCount(t *testing.T) {
	basic := newPlan(t, "Basic", 1, 100, "99")
	standard := newPlan(t, "Standard", 2, 300, "199")
	premium := newPlan(t, "Premium", 3, 1000, "499")

	catalog, err := NewPlanCatalog([]*SubscriptionPlan{premium, basic, standard})
	require.NoError(t, err)

	t.Run("returns lowest qualifying tier", func(t *testing.T) {
		cases := []struct {
			count int
			want  string
		}{
			{0, "Basic"},
			{100, "Basic"},
			{101, "Standard"},
			{300, "Standard"},
			{301, "Premium"},
			{1000, "Premium"},
		}
		for _, tc := range cases {
			plan, err := catalog.FindPlanForStudentCount(tc.count)
			require.NoError(t, err)
			assert.Equal(t, tc.want, plan.Name, "count=%d", tc.count)
		}
	})

	t.Run("minimality: no lower qualifying tier exists", func(t *testing.T) {
		for n := 0; n <= 1000; n += 7 {
			plan, err := catalog.FindPlanForStudentCount(n)
			require.NoError(t, err)
			require.GreaterOrEqual(t, plan.StudentThreshold, n)
			for _, other := range catalog.ActivePlans() {
				if other.SortOrder < plan.SortOrder {
					assert.Less(t, other.StudentThreshold, n,
						"plan %s should not qualify below %s for count %d", other.Name, plan.Name, n)
				}
			}
		}
	})

	t.Run("highest tier is the ceiling", func(t *testing.T) {
		plan, err := catalog.FindPlanForStudentCount(50000)
		require.NoError(t, err)
		assert.Equal(t, "Premium", plan.Name)
		assert.Equal(t, catalog.HighestPlan(), plan)
	})

	t.Run("equal thresholds prefer the cheaper plan", func(t *testing.T) {
		cheap := newPlan(t, "Basic Lite", 1, 100, "79")
		tied, err := NewPlanCatalog([]*SubscriptionPlan{basic, cheap, standard})
		require.NoError(t, err)

		plan, err := tied.FindPlanForStudentCount(50)
		require.NoError(t, err)
		assert.Equal(t, "Basic Lite", plan.Name)
	})

	t.Run("ignores inactive plans in lookup", func(t *testing.T) {
		basic2 := newPlan(t, "Basic", 1, 100, "99")
		basic2.Deactivate()
		c, err := NewPlanCatalog([]*SubscriptionPlan{basic2, standard, premium})
		require.NoError(t, err)

		plan, err := c.FindPlanForStudentCount(50)
		require.NoError(t, err)
		assert.Equal(t, "Standard", plan.Name)
	})

	t.Run("fails with no active plans", func(t *testing.T) {
		dead := newPlan(t, "Basic", 1, 100, "99")
		dead.Deactivate()
		_, err := NewPlanCatalog([]*SubscriptionPlan{dead})
		assert.ErrorIs(t, err, ErrPlanNotFound)
	})
}

func TestPlanCatalog_ResolvePlan(t *testing.T) {
	basic := newPlan(t, "Basic", 1, 100, "99")
	standard := newPlan(t, "Standard", 2, 300, "199")
	catalog, err := NewPlanCatalog([]*SubscriptionPlan{basic, standard})
	require.NoError(t, err)

	t.Run("resolves deactivated plan from snapshot", func(t *testing.T) {
		basic.Deactivate()
		plan, err := catalog.ResolvePlan(basic.ID)
		require.NoError(t, err)
		assert.Equal(t, "Basic", plan.Name)
	})

	t.Run("unknown plan id fails", func(t *testing.T) {
		unknown := newPlan(t, "Ghost", 9, 1, "1")
		_, err := catalog.ResolvePlan(unknown.ID)
		assert.ErrorIs(t, err, ErrPlanNotFound)
	})
}
