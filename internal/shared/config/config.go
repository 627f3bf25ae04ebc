package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	YNAB      YNABConfig
	Sync      SyncConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
	Log       LogConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
	CORSOrigins  []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type YNABConfig struct {
	AccessToken     string
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerHour int
}

type SyncConfig struct {
	BudgetIDs         []string
	BudgetConcurrency int
	CollectionTimeout time.Duration
	// MonthTimeout is granted per month to the month detail calls of a
	// months fetch when that outlasts CollectionTimeout.
	MonthTimeout time.Duration
	PruneAfter   time.Duration
}

type SchedulerConfig struct {
	Enabled      bool
	Interval     time.Duration
	RunOnStartup bool
	QueueSize    int
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	MetricsPort  string
}

type LogConfig struct {
	Level  string
	Format string
}

type AuthConfig struct {
	// APIKeyHash is a bcrypt hash; empty disables API key checks.
	APIKeyHash string
}

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the configuration for the sync process. The upstream access
// token is required.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if cfg.YNAB.AccessToken == "" {
		return nil, fmt.Errorf("YNAB_ACCESS_TOKEN is required")
	}
	return cfg, nil
}

// LoadAPI reads the configuration for the read API, which never talks to
// the upstream service.
func LoadAPI() (*Config, error) {
	return load()
}

func load() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	requestTimeout, err := getDurationEnv("YNAB_REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	requestsPerHour, err := getIntEnv("YNAB_REQUESTS_PER_HOUR", 200)
	if err != nil {
		return nil, err
	}

	budgetConcurrency, err := getIntEnv("SYNC_BUDGET_CONCURRENCY", 1)
	if err != nil {
		return nil, err
	}
	collectionTimeout, err := getDurationEnv("SYNC_COLLECTION_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	monthTimeout, err := getDurationEnv("SYNC_MONTH_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	pruneAfter, err := getDurationEnv("SYNC_PRUNE_AFTER", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}

	schedulerInterval, err := getDurationEnv("SCHEDULER_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	schedulerQueueSize, err := getIntEnv("SCHEDULER_QUEUE_SIZE", 1)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8000"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: getListEnv("ALLOWED_HOSTS"),
			CORSOrigins:  getListEnv("CORS_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "ynab"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		YNAB: YNABConfig{
			AccessToken:     getEnv("YNAB_ACCESS_TOKEN", getEnv("YNAB_PERSONAL_ACCESS_TOKEN", "")),
			BaseURL:         getEnv("YNAB_BASE_URL", "https://api.ynab.com/v1"),
			RequestTimeout:  requestTimeout,
			RequestsPerHour: requestsPerHour,
		},
		Sync: SyncConfig{
			BudgetIDs:         getListEnv("YNAB_BUDGET_IDS"),
			BudgetConcurrency: budgetConcurrency,
			CollectionTimeout: collectionTimeout,
			MonthTimeout:      monthTimeout,
			PruneAfter:        pruneAfter,
		},
		Scheduler: SchedulerConfig{
			Enabled:      getBoolEnv("SCHEDULER_ENABLED", true),
			Interval:     schedulerInterval,
			RunOnStartup: getBoolEnv("SCHEDULER_RUN_ON_STARTUP", true),
			QueueSize:    schedulerQueueSize,
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "ynab-mirror"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9090"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "console")),
		},
		Auth: AuthConfig{
			APIKeyHash: getEnv("API_KEY_HASH", ""),
		},
	}

	if cfg.Database.URL == "" && cfg.Database.DBName == "" {
		return nil, fmt.Errorf("DATABASE_URL or DB_NAME is required")
	}
	if cfg.YNAB.RequestsPerHour < 0 {
		return nil, fmt.Errorf("YNAB_REQUESTS_PER_HOUR must not be negative")
	}
	if cfg.Sync.BudgetConcurrency < 1 {
		return nil, fmt.Errorf("SYNC_BUDGET_CONCURRENCY must be at least 1")
	}
	if cfg.Scheduler.Interval <= 0 {
		return nil, fmt.Errorf("SCHEDULER_INTERVAL must be positive")
	}
	if cfg.Scheduler.QueueSize < 1 {
		return nil, fmt.Errorf("SCHEDULER_QUEUE_SIZE must be at least 1")
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return nil, fmt.Errorf("LOG_FORMAT must be console or json, got %q", cfg.Log.Format)
	}

	return cfg, nil
}

// ConnectionString returns DATABASE_URL when set, otherwise a keyword/value
// DSN assembled from the DB_* parts.
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// getListEnv splits a comma-separated variable, dropping blanks.
func getListEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
