package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/schoolsaas/backend/internal/domain/billing"
	"github.com/schoolsaas/backend/internal/infrastructure/config"
	"github.com/schoolsaas/backend/internal/infrastructure/logger"
	"github.com/schoolsaas/backend/internal/infrastructure/persistence"
)

type seedPlan struct {
	name             string
	sortOrder        int
	studentThreshold int
	monthlyBasePrice string
	overageUnitPrice string
}

// defaultPlans is the catalog seeded into a fresh installation. Tiers are
// ordered by sort order; the cheapest becomes the lazy-provisioning default.
var defaultPlans = []seedPlan{
	{name: "Basic", sortOrder: 1, studentThreshold: 100, monthlyBasePrice: "49", overageUnitPrice: "2"},
	{name: "Standard", sortOrder: 2, studentThreshold: 300, monthlyBasePrice: "149", overageUnitPrice: "1.5"},
	{name: "Premium", sortOrder: 3, studentThreshold: 1000, monthlyBasePrice: "399", overageUnitPrice: "1"},
}

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	switch command {
	case "up":
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
		log.Info("Migration completed")
	case "seed":
		if err := seedCatalog(context.Background(), db, log); err != nil {
			log.Fatal("Seeding failed", zap.Error(err))
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// seedCatalog inserts the default plan catalog. A non-empty catalog is left
// untouched so reruns never duplicate or overwrite operator changes.
func seedCatalog(ctx context.Context, db *persistence.Database, log *zap.Logger) error {
	planRepo := persistence.NewPlanRepository(db.DB)

	existing, err := planRepo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("reading plan catalog: %w", err)
	}
	if len(existing) > 0 {
		log.Info("Plan catalog already seeded", zap.Int("plans", len(existing)))
		return nil
	}

	for _, sp := range defaultPlans {
		basePrice, err := decimal.NewFromString(sp.monthlyBasePrice)
		if err != nil {
			return fmt.Errorf("parsing base price for %s: %w", sp.name, err)
		}
		overagePrice, err := decimal.NewFromString(sp.overageUnitPrice)
		if err != nil {
			return fmt.Errorf("parsing overage price for %s: %w", sp.name, err)
		}

		plan, err := billing.NewSubscriptionPlan(sp.name, sp.sortOrder, sp.studentThreshold, basePrice, overagePrice)
		if err != nil {
			return fmt.Errorf("building plan %s: %w", sp.name, err)
		}
		if err := planRepo.Save(ctx, plan); err != nil {
			return fmt.Errorf("saving plan %s: %w", sp.name, err)
		}
		log.Info("Seeded plan",
			zap.String("name", sp.name),
			zap.Int("sort_order", sp.sortOrder),
			zap.Int("student_threshold", sp.studentThreshold),
		)
	}
	return nil
}

func printUsage() {
	fmt.Println(`Usage: migrate [flags] <command>

Commands:
  up      Create or update the engine's tables
  seed    Insert the default plan catalog (no-op when plans exist)

Flags:
  -log-level string   Log level (debug, info, warn, error) (default "info")`)
}
