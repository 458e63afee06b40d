package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/schoolsaas/backend/internal/domain/billing"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SubscriptionPlanModelSQLite is a SQLite-compatible version of
// SubscriptionPlanModel for testing
type SubscriptionPlanModelSQLite struct {
	ID               string `gorm:"primaryKey"`
	Name             string `gorm:"not null;uniqueIndex"`
	SortOrder        int    `gorm:"not null;index"`
	StudentThreshold int    `gorm:"not null"`
	MonthlyBasePrice string `gorm:"not null"`
	OverageUnitPrice string `gorm:"not null"`
	IsActive         bool   `gorm:"not null;default:true"`
	Version          int    `gorm:"not null;default:1"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (SubscriptionPlanModelSQLite) TableName() string {
	return "subscription_plans"
}

func setupPlanTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&SubscriptionPlanModelSQLite{}))
	return db
}

func makePlan(t *testing.T, name string, sortOrder, threshold int, basePrice string) *billing.SubscriptionPlan {
	t.Helper()
	plan, err := billing.NewSubscriptionPlan(name, sortOrder, threshold,
		decimal.RequireFromString(basePrice), decimal.RequireFromString("2"))
	require.NoError(t, err)
	return plan
}

func TestPlanRepository_SaveAndFind(t *testing.T) {
	db := setupPlanTestDB(t)
	repo := NewPlanRepository(db)
	ctx := context.Background()

	t.Run("round-trips a plan", func(t *testing.T) {
		plan := makePlan(t, "Basic", 1, 100, "99")

		require.NoError(t, repo.Save(ctx, plan))

		found, err := repo.FindByID(ctx, plan.ID)
		require.NoError(t, err)
		assert.Equal(t, plan.ID, found.ID)
		assert.Equal(t, "Basic", found.Name)
		assert.Equal(t, 100, found.StudentThreshold)
		assert.True(t, found.MonthlyBasePrice.Equal(decimal.RequireFromString("99")))
		assert.True(t, found.IsActive)
	})

	t.Run("missing plan yields not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestPlanRepository_FindAll(t *testing.T) {
	db := setupPlanTestDB(t)
	repo := NewPlanRepository(db)
	ctx := context.Background()

	premium := makePlan(t, "Premium", 3, 2000, "799")
	basic := makePlan(t, "Basic", 1, 100, "99")
	standard := makePlan(t, "Standard", 2, 500, "299")
	for _, p := range []*billing.SubscriptionPlan{premium, basic, standard} {
		require.NoError(t, repo.Save(ctx, p))
	}

	plans, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, "Basic", plans[0].Name)
	assert.Equal(t, "Standard", plans[1].Name)
	assert.Equal(t, "Premium", plans[2].Name)
}

func TestPlanRepository_Update(t *testing.T) {
	db := setupPlanTestDB(t)
	repo := NewPlanRepository(db)
	ctx := context.Background()

	plan := makePlan(t, "Basic", 1, 100, "99")
	require.NoError(t, repo.Save(ctx, plan))

	plan.Deactivate()
	require.NoError(t, repo.Update(ctx, plan))

	found, err := repo.FindByID(ctx, plan.ID)
	require.NoError(t, err)
	assert.False(t, found.IsActive)
}
