// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for all databases (always absolute)
	RiskConfigPath string // Path to the YAML risk envelope; empty falls back to defaults
	LogLevel       string
	Port           int
	DevMode        bool

	Symbols        []string
	TickInterval   time.Duration
	Workers        int
	Staleness      time.Duration
	InitialEquity  float64
	AuditRetention time.Duration

	Envelope domain.RiskEnvelope
}

// Load reads configuration from environment variables and the risk envelope
// from its YAML file
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ENGINE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		RiskConfigPath: getEnv("RISK_CONFIG_PATH", ""),
		Port:           getEnvAsInt("ENGINE_PORT", 8001),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Symbols:        getEnvAsList("ENGINE_SYMBOLS", []string{"BTCUSDT", "ETHUSDT"}),
		TickInterval:   getEnvAsDuration("ENGINE_TICK_INTERVAL", time.Second),
		Workers:        getEnvAsInt("ENGINE_WORKERS", 8),
		Staleness:      getEnvAsDuration("ENGINE_SNAPSHOT_STALENESS", 5*time.Second),
		InitialEquity:  getEnvAsFloat("ENGINE_INITIAL_EQUITY", 10000),
		AuditRetention: getEnvAsDuration("AUDIT_RETENTION", 30*24*time.Hour),
	}

	envelope, err := loadEnvelope(cfg.RiskConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Envelope = envelope

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol required")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.InitialEquity <= 0 {
		return fmt.Errorf("initial equity must be positive")
	}
	return c.Envelope.Validate()
}

// loadEnvelope reads the risk envelope from YAML. With no path configured a
// conservative default envelope is used so the engine never runs uncapped.
func loadEnvelope(path string) (domain.RiskEnvelope, error) {
	if path == "" {
		return defaultEnvelope(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RiskEnvelope{}, fmt.Errorf("failed to read risk config %s: %w", path, err)
	}
	var envelope domain.RiskEnvelope
	if err := yaml.Unmarshal(data, &envelope); err != nil {
		return domain.RiskEnvelope{}, fmt.Errorf("failed to parse risk config %s: %w", path, err)
	}
	if err := envelope.Validate(); err != nil {
		return domain.RiskEnvelope{}, fmt.Errorf("invalid risk config %s: %w", path, err)
	}
	return envelope, nil
}

func defaultEnvelope() domain.RiskEnvelope {
	return domain.RiskEnvelope{
		MaxRiskPerTrade:      0.01,
		MaxAccountExposure:   2.0,
		MaxSymbolExposure:    0.5,
		MinLiquidationBuffer: 0.15,
		MaxEffectiveLeverage: 3.0,
		HardExposureCeiling:  3.0,
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
