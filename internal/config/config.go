// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Tracing
	OTLPEndpoint string // OTLP gRPC endpoint (optional, tracing disabled if not set)

	// Market economics (all amounts in the native smallest unit, 6 decimals)
	MinStake        uint64
	RegistrationFee uint64
	WindowBlocks    uint64 // heights between submission and resolution eligibility

	// Height source
	GenesisTime   time.Time
	BlockInterval time.Duration

	// Platform accounts
	EscrowAddr   string // holds staked funds and unclaimed rewards
	TreasuryAddr string // receives oracle registration fees

	// Security
	AdminSecret  string // gates oracle revocation and faucet endpoints
	RateLimitRPM int
}

// Defaults
const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultMinStake        = 1_000_000  // 1.0 in smallest units
	DefaultRegistrationFee = 10_000_000 // 10.0 in smallest units
	DefaultWindowBlocks    = 1008
	DefaultBlockInterval   = 10 * time.Minute
	DefaultRateLimit       = 100
	DefaultEscrowAddr      = "0x0000000000000000000000000000000000000e5c"
	DefaultTreasuryAddr    = "0x000000000000000000000000000000000000f3e5"
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", DefaultPort),
		Env:             getEnv("ENV", DefaultEnv),
		LogLevel:        getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:     os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MinStake:        getEnvUint64("MIN_STAKE", DefaultMinStake),
		RegistrationFee: getEnvUint64("REGISTRATION_FEE", DefaultRegistrationFee),
		WindowBlocks:    getEnvUint64("WINDOW_BLOCKS", DefaultWindowBlocks),
		BlockInterval:   getEnvDuration("BLOCK_INTERVAL", DefaultBlockInterval),
		EscrowAddr:      getEnv("ESCROW_ADDR", DefaultEscrowAddr),
		TreasuryAddr:    getEnv("TREASURY_ADDR", DefaultTreasuryAddr),
		AdminSecret:     os.Getenv("ADMIN_SECRET"),
		RateLimitRPM:    int(getEnvUint64("RATE_LIMIT_RPM", DefaultRateLimit)),
	}

	// Genesis defaults to process start rounded down to the block interval,
	// so height 0 is "now" on a fresh dev instance.
	if raw := os.Getenv("GENESIS_TIME"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("GENESIS_TIME must be RFC3339: %w", err)
		}
		cfg.GenesisTime = t
	} else {
		cfg.GenesisTime = time.Now().Truncate(cfg.BlockInterval)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.MinStake == 0 {
		return fmt.Errorf("MIN_STAKE must be positive")
	}
	if c.RegistrationFee == 0 {
		return fmt.Errorf("REGISTRATION_FEE must be positive")
	}
	if c.WindowBlocks == 0 {
		return fmt.Errorf("WINDOW_BLOCKS must be positive")
	}
	if c.BlockInterval <= 0 {
		return fmt.Errorf("BLOCK_INTERVAL must be positive")
	}
	if c.EscrowAddr == "" || c.TreasuryAddr == "" {
		return fmt.Errorf("ESCROW_ADDR and TREASURY_ADDR are required")
	}
	if c.EscrowAddr == c.TreasuryAddr {
		return fmt.Errorf("ESCROW_ADDR and TREASURY_ADDR must differ")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseUint(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
