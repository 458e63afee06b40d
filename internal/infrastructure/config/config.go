package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Monitor   MonitorConfig
	Limits    LimitsConfig
	Audit     AuditConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// MonitorConfig holds health sweep configuration
type MonitorConfig struct {
	Enabled              bool
	CronSchedule         string        // cron spec for the periodic sweep
	Workers              int           // concurrent tenants per sweep
	TenantTimeout        time.Duration // per-tenant check deadline
	RenewalWarningWindow time.Duration // how early to flag an upcoming renewal
}

// LimitsConfig holds resource limit enforcement configuration
type LimitsConfig struct {
	StalenessWindow time.Duration // cached usage older than this is logged as stale
}

// AuditConfig holds the audit trail recorder configuration
type AuditConfig struct {
	Enabled    bool
	BufferSize int // pending events before the recorder starts dropping
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SAAS_ prefix (e.g., SAAS_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("SAAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Monitor: MonitorConfig{
			Enabled:              v.GetBool("monitor.enabled"),
			CronSchedule:         v.GetString("monitor.cron_schedule"),
			Workers:              v.GetInt("monitor.workers"),
			TenantTimeout:        v.GetDuration("monitor.tenant_timeout"),
			RenewalWarningWindow: v.GetDuration("monitor.renewal_warning_window"),
		},
		Limits: LimitsConfig{
			StalenessWindow: v.GetDuration("limits.staleness_window"),
		},
		Audit: AuditConfig{
			Enabled:    v.GetBool("audit.enabled"),
			BufferSize: v.GetInt("audit.buffer_size"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "schoolsaas-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "schoolsaas"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	// NOTE: CORS origins are intentionally not given a default fallback to "*".
	// An empty list means no cross-origin requests are allowed until explicitly
	// configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID"}
	}
	if cfg.Monitor.CronSchedule == "" {
		cfg.Monitor.CronSchedule = "@every 15m"
	}
	if cfg.Monitor.Workers == 0 {
		cfg.Monitor.Workers = 4
	}
	if cfg.Monitor.TenantTimeout == 0 {
		cfg.Monitor.TenantTimeout = 30 * time.Second
	}
	if cfg.Monitor.RenewalWarningWindow == 0 {
		cfg.Monitor.RenewalWarningWindow = 30 * 24 * time.Hour
	}
	if cfg.Limits.StalenessWindow == 0 {
		cfg.Limits.StalenessWindow = 5 * time.Minute
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = 256
	}
	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0 // 100% in development
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "schoolsaas-backend"
	}
	// Note: Insecure defaults to false for safety (TLS enabled by default)
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Monitor.Workers < 1 {
		return fmt.Errorf("monitor.workers must be at least 1")
	}
	if c.Monitor.TenantTimeout < time.Second {
		return fmt.Errorf("monitor.tenant_timeout must be at least 1s")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		// CORS must not use wildcard with credentials
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	// Validate telemetry configuration (all environments)
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
