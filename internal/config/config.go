package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	StoreDriver         string        `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURL         string        `envconfig:"DATABASE_URL"`
	DatabaseMaxConns    int32         `envconfig:"DATABASE_MAX_CONNS" default:"5"`
	DatabaseMinConns    int32         `envconfig:"DATABASE_MIN_CONNS" default:"1"`
	DatabaseMaxConnLife time.Duration `envconfig:"DATABASE_MAX_CONN_LIFE" default:"1h"`

	TradesCollection      string `envconfig:"TRADES_COLLECTION" default:"trades"`
	MatchesCollection     string `envconfig:"MATCHES_COLLECTION" default:"realized_matches"`
	PerformanceCollection string `envconfig:"PERFORMANCE_COLLECTION" default:"period_performance"`

	StoreMaxRetries int           `envconfig:"STORE_MAX_RETRIES" default:"3"`
	StoreRetryBase  time.Duration `envconfig:"STORE_RETRY_BASE" default:"500ms"`
	StoreRateLimit  float64       `envconfig:"STORE_RATE_LIMIT" default:"0"`
	StoreRateBurst  int           `envconfig:"STORE_RATE_BURST" default:"1"`

	PageSize       int           `envconfig:"PAGE_SIZE" default:"100"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"60s"`
	RunTimeout     time.Duration `envconfig:"RUN_TIMEOUT" default:"0"`
	PeriodWindow   time.Duration `envconfig:"PERIOD_WINDOW" default:"0"`
	OversoldPolicy string        `envconfig:"OVERSOLD_POLICY" default:"stop"`

	RedisURL      string        `envconfig:"REDIS_URL"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"1m"`
	DedupCacheTTL time.Duration `envconfig:"DEDUP_CACHE_TTL" default:"24h"`

	APIHost         string        `envconfig:"API_HOST" default:"0.0.0.0"`
	APIPort         string        `envconfig:"API_PORT" default:"8000"`
	APIReadTimeout  time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	APIWriteTimeout time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"10s"`
	AdminUser       string        `envconfig:"ADMIN_USER" default:"admin"`
	AdminPassword   string        `envconfig:"ADMIN_PASSWORD"`

	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"true"`
	TracingEnabled bool `envconfig:"TRACING_ENABLED" default:"false"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

// FatalConfigError means the process cannot start: required store identifiers
// or credentials are absent or unusable.
type FatalConfigError struct {
	Problems []string
	Err      error
}

func (e *FatalConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *FatalConfigError) Unwrap() error {
	return e.Err
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &FatalConfigError{Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var problems []string

	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required for the postgres store")
		}
		if c.DatabaseMaxConns < 1 {
			problems = append(problems, "DATABASE_MAX_CONNS must be >= 1")
		}
		if c.DatabaseMinConns > c.DatabaseMaxConns {
			problems = append(problems, fmt.Sprintf("DATABASE_MIN_CONNS (%d) cannot exceed DATABASE_MAX_CONNS (%d)", c.DatabaseMinConns, c.DatabaseMaxConns))
		}
	case DriverMemory:
	default:
		problems = append(problems, fmt.Sprintf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StoreDriver))
	}

	if strings.TrimSpace(c.TradesCollection) == "" {
		problems = append(problems, "TRADES_COLLECTION is required")
	}
	if strings.TrimSpace(c.MatchesCollection) == "" {
		problems = append(problems, "MATCHES_COLLECTION is required")
	}
	if strings.TrimSpace(c.PerformanceCollection) == "" {
		problems = append(problems, "PERFORMANCE_COLLECTION is required")
	}
	if c.PageSize < 1 {
		problems = append(problems, "PAGE_SIZE must be >= 1")
	}
	if c.PollInterval <= 0 {
		problems = append(problems, "POLL_INTERVAL must be positive")
	}
	c.OversoldPolicy = strings.ToLower(strings.TrimSpace(c.OversoldPolicy))
	if c.OversoldPolicy != "stop" && c.OversoldPolicy != "halt" {
		problems = append(problems, fmt.Sprintf("OVERSOLD_POLICY must be \"stop\" or \"halt\", got %q", c.OversoldPolicy))
	}
	if c.PeriodWindow < 0 {
		problems = append(problems, "PERIOD_WINDOW must be >= 0")
	}
	if c.StoreMaxRetries < 0 {
		problems = append(problems, "STORE_MAX_RETRIES must be >= 0")
	}
	if c.StoreRateLimit < 0 {
		problems = append(problems, "STORE_RATE_LIMIT must be >= 0")
	}

	if len(problems) > 0 {
		return &FatalConfigError{Problems: problems}
	}
	return nil
}

// IsFatal reports whether err is a FatalConfigError.
func IsFatal(err error) bool {
	var fatal *FatalConfigError
	return errors.As(err, &fatal)
}
