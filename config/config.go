package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"colorgame/database"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Store backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	// HTTP configuration
	HTTPAddr   string `env:"HTTP_ADDR" envDefault:":5000"`
	AdminToken string `env:"ADMIN_TOKEN"`

	// Store configuration
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseName string `env:"DATABASE_NAME"`

	// Game configuration
	StartingBalance         decimal.Decimal `env:"STARTING_BALANCE" envDefault:"0"`
	RoundDuration           time.Duration   `env:"ROUND_DURATION" envDefault:"180s"`
	LockWindow              time.Duration   `env:"LOCK_WINDOW" envDefault:"30s"`
	Cooldown                time.Duration   `env:"COOLDOWN" envDefault:"30s"`
	SettlementRetryInterval time.Duration   `env:"SETTLEMENT_RETRY_INTERVAL" envDefault:"0s"`
	ObserverBufferSize      int             `env:"OBSERVER_BUFFER_SIZE" envDefault:"16"`

	// NATS configuration; empty servers disables publishing
	NATSServers       string `env:"NATS_SERVERS"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"colorgame"`

	// Discord announcements; both must be set to enable
	DiscordToken     string `env:"DISCORD_TOKEN"`
	DiscordChannelID string `env:"DISCORD_CHANNEL_ID"`

	// Metrics
	OTelEnabled        bool          `env:"OTEL_ENABLED" envDefault:"false"`
	OTelExporterType   string        `env:"OTEL_EXPORTER_TYPE" envDefault:"console"`
	OTelOTLPEndpoint   string        `env:"OTEL_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTelExportInterval time.Duration `env:"OTEL_EXPORT_INTERVAL" envDefault:"30s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = Load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// Load reads an optional .env file, then the environment, and validates the result
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects configurations the round lifecycle cannot run with
func (c *Config) Validate() error {
	switch {
	case c.RoundDuration <= 0:
		return fmt.Errorf("ROUND_DURATION must be positive")
	case c.LockWindow < 0:
		return fmt.Errorf("LOCK_WINDOW cannot be negative")
	case c.LockWindow >= c.RoundDuration:
		return fmt.Errorf("LOCK_WINDOW (%s) must be shorter than ROUND_DURATION (%s)", c.LockWindow, c.RoundDuration)
	case c.Cooldown <= 0:
		return fmt.Errorf("COOLDOWN must be positive")
	case c.SettlementRetryInterval < 0:
		return fmt.Errorf("SETTLEMENT_RETRY_INTERVAL cannot be negative")
	case c.StartingBalance.IsNegative():
		return fmt.Errorf("STARTING_BALANCE cannot be negative")
	case c.ObserverBufferSize < 1:
		return fmt.Errorf("OBSERVER_BUFFER_SIZE must be at least 1")
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	return nil
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// NATSEnabled reports whether lifecycle and domain events are published to NATS
func (c *Config) NATSEnabled() bool {
	return c.NATSServers != ""
}

// DiscordEnabled reports whether settled rounds are announced on Discord
func (c *Config) DiscordEnabled() bool {
	return c.DiscordToken != "" && c.DiscordChannelID != ""
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a config with the default timings and the memory store
func NewTestConfig() *Config {
	return &Config{
		HTTPAddr:           ":0",
		StoreBackend:       BackendMemory,
		StartingBalance:    decimal.NewFromInt(1000),
		RoundDuration:      180 * time.Second,
		LockWindow:         30 * time.Second,
		Cooldown:           30 * time.Second,
		ObserverBufferSize: 16,
		NATSSubjectPrefix:  "colorgame",
		OTelExporterType:   "none",
		LogLevel:           "debug",
		LogFormat:          "text",
		Environment:        "test",
	}
}
