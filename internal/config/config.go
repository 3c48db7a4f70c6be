package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers understood by NewDatabase and the service wiring.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	StoreDriver    string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`
	Port           string `env:"PORT" envDefault:"8080"`
	PrometheusPort string `env:"PROMETHEUS_PORT" envDefault:"9090"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"text"`

	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"168h"`

	// Optional delivery channels. Empty values disable them.
	TelegramToken string `env:"TELEGRAM_TOKEN"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisChannel  string `env:"REDIS_CHANNEL" envDefault:"wishpool.notifications"`

	DispatchInterval    time.Duration `env:"DISPATCH_INTERVAL" envDefault:"5s"`
	DispatchBatch       int           `env:"DISPATCH_BATCH" envDefault:"50"`
	DispatchMaxAttempts int           `env:"DISPATCH_MAX_ATTEMPTS" envDefault:"5"`
	CommitMaxAttempts   int           `env:"COMMIT_MAX_ATTEMPTS" envDefault:"3"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return parse(env.Options{})
}

// Parse builds a Config from an explicit environment instead of the process
// one.
func Parse(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverSQLite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required for %s store", c.StoreDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.DispatchBatch <= 0 {
		return fmt.Errorf("DISPATCH_BATCH must be positive")
	}
	if c.DispatchMaxAttempts <= 0 {
		return fmt.Errorf("DISPATCH_MAX_ATTEMPTS must be positive")
	}
	if c.CommitMaxAttempts <= 0 {
		return fmt.Errorf("COMMIT_MAX_ATTEMPTS must be positive")
	}
	return nil
}
