package persistence

import (
	"fmt"
	"time"

	"github.com/schoolsaas/backend/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

// NewDatabase creates a new database connection with the given configuration
func NewDatabase(cfg *config.DatabaseConfig) (*Database, error) {
	return newDatabaseWithLogLevel(cfg, logger.Silent)
}

// NewDatabaseWithLogger creates a new database connection with custom logger settings
func NewDatabaseWithLogger(cfg *config.DatabaseConfig, logLevel logger.LogLevel) (*Database, error) {
	return openDatabase(cfg, logger.Default.LogMode(logLevel))
}

// NewDatabaseWithCustomLogger creates a new database connection using the
// provided GORM logger implementation
func NewDatabaseWithCustomLogger(cfg *config.DatabaseConfig, gormLogger logger.Interface) (*Database, error) {
	return openDatabase(cfg, gormLogger)
}

func newDatabaseWithLogLevel(cfg *config.DatabaseConfig, logLevel logger.LogLevel) (*Database, error) {
	return openDatabase(cfg, logger.Default.LogMode(logLevel))
}

func openDatabase(cfg *config.DatabaseConfig, gormLogger logger.Interface) (*Database, error) {
	dsn := cfg.DSN()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Transaction executes a function within a database transaction
func (d *Database) Transaction(fn func(tx *gorm.DB) error) error {
	return d.DB.Transaction(fn)
}

// AutoMigrate creates or updates the engine's tables
func (d *Database) AutoMigrate() error {
	return d.DB.AutoMigrate(
		&SubscriptionPlanModel{},
		&TenantSubscriptionModel{},
		&BillingHistoryModel{},
		&InvoiceSequenceModel{},
		&TenantResourceLimitModel{},
		&TenantHealthModel{},
		&AuditEventModel{},
	)
}
