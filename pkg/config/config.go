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
	Database      DatabaseConfig
	Inbox         InboxConfig
	Catalog       CatalogConfig
	Maintenance   MaintenanceConfig
	Observability ObservabilityConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// InboxConfig describes where pricelist files arrive and where processed
// files are archived. Files are expected under inbox/<supplier>/.
type InboxConfig struct {
	Path         string
	ArchivePath  string
	PollInterval time.Duration
}

type CatalogConfig struct {
	IndexPath string
}

type MaintenanceConfig struct {
	PruneSchedule  string
	PruneAfter     time.Duration
	MaxSuccessRate float64
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// Load reads configuration from the environment, after folding in a .env
// file when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "pricelens-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Inbox: InboxConfig{
			Path:         getEnv("INBOX_PATH", "./inbox"),
			ArchivePath:  getEnv("ARCHIVE_PATH", "./archive"),
			PollInterval: getEnvAsDuration("INBOX_POLL_INTERVAL", 30*time.Second),
		},
		Catalog: CatalogConfig{
			IndexPath: getEnv("CATALOG_INDEX_PATH", ""),
		},
		Maintenance: MaintenanceConfig{
			PruneSchedule:  getEnv("PRUNE_SCHEDULE", "0 3 * * *"),
			PruneAfter:     getEnvAsDuration("PRUNE_AFTER", 90*24*time.Hour),
			MaxSuccessRate: getEnvAsFloat("PRUNE_MAX_SUCCESS_RATE", 0.2),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	if cfg.Inbox.Path == cfg.Inbox.ArchivePath {
		return nil, fmt.Errorf("INBOX_PATH and ARCHIVE_PATH must differ, both are %q", cfg.Inbox.Path)
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
