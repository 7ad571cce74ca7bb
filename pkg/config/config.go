// pkg/config/config.go
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

// Supported source and target drivers
const (
	DriverPostgres  = "postgres"
	DriverSnowflake = "snowflake"
	DriverSQLite    = "sqlite"
)

// Config represents the application configuration
type Config struct {
	// Database connections
	SourceDriver string
	TargetDriver string
	Source       *PostgresConfig  // set when SourceDriver is postgres
	Snowflake    *SnowflakeConfig // set when SourceDriver is snowflake
	Target       *PostgresConfig  // set when TargetDriver is postgres
	SQLite       *SQLiteConfig    // set when TargetDriver is sqlite

	// Non-database sources
	Sources *SourceConfig

	// Cleaning thresholds
	Cleaning CleaningConfig

	// Transfer settings
	Entities       []string
	ChunkSize      int
	RetryAttempts  int
	RetryDelay     time.Duration
	WorkerPoolSize int

	// Logging
	LogLevel  string
	LogFormat string

	// Runtime
	MetricsAddr  string
	CronSchedule string
}

// CleaningConfig holds the minimum support thresholds of the categorical
// columns and the optional card length rules
type CleaningConfig struct {
	CardProviderSupport int
	StoreTypeSupport    int
	CategorySupport     int
	TimePeriodSupport   int
	CardLengthSupport   int
	CardLengths         map[string][]int
}

// LoadConfig loads configuration from a .env file, environment variables
// and the YAML credential files they point at
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		SourceDriver: strings.ToLower(getEnv("SOURCE_DRIVER", DriverPostgres)),
		TargetDriver: strings.ToLower(getEnv("TARGET_DRIVER", DriverPostgres)),

		Cleaning: CleaningConfig{
			CardProviderSupport: getEnvAsInt("CARD_PROVIDER_SUPPORT", 12),
			StoreTypeSupport:    getEnvAsInt("STORE_TYPE_SUPPORT", 4),
			CategorySupport:     getEnvAsInt("CATEGORY_SUPPORT", 1),
			TimePeriodSupport:   getEnvAsInt("TIME_PERIOD_SUPPORT", 15),
			CardLengthSupport:   getEnvAsInt("CARD_LENGTH_SUPPORT", 0),
		},

		Entities:       getEnvAsStringSlice("ENTITIES", nil),
		ChunkSize:      getEnvAsInt("CHUNK_SIZE", 5000),
		RetryAttempts:  getEnvAsInt("RETRY_ATTEMPTS", 3),
		RetryDelay:     time.Duration(getEnvAsInt("RETRY_DELAY_MS", 1000)) * time.Millisecond,
		WorkerPoolSize: getEnvAsInt("WORKER_POOL_SIZE", 0), // 0 means use runtime.NumCPU()
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		MetricsAddr:    getEnv("METRICS_ADDR", ""),
		CronSchedule:   getEnv("CRON_SCHEDULE", ""),
	}

	var err error
	switch cfg.SourceDriver {
	case DriverPostgres:
		cfg.Source, err = LoadSourceCredentials(getEnv("DB_CREDS_FILE", "yaml_files/db_creds.yaml"))
		if err != nil {
			return nil, fmt.Errorf("failed to load source database configuration: %w", err)
		}
	case DriverSnowflake:
		cfg.Snowflake, err = LoadSnowflakeConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load Snowflake configuration: %w", err)
		}
	}

	switch cfg.TargetDriver {
	case DriverPostgres:
		cfg.Target, err = LoadTargetCredentials(getEnv("LOCAL_DB_CREDS_FILE", "yaml_files/local_db_creds.yaml"))
		if err != nil {
			return nil, fmt.Errorf("failed to load target database configuration: %w", err)
		}
	case DriverSQLite:
		cfg.SQLite = LoadSQLiteConfig()
	}

	cfg.Sources, err = LoadSourceConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load source configuration: %w", err)
	}

	if path := getEnv("CARD_LENGTHS_FILE", ""); path != "" {
		cfg.Cleaning.CardLengths, err = LoadCardLengths(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load card lengths: %w", err)
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	switch c.SourceDriver {
	case DriverPostgres:
		if c.Source == nil {
			return errors.New("source database configuration is required")
		}
	case DriverSnowflake:
		if c.Snowflake == nil {
			return errors.New("snowflake configuration is required")
		}
	default:
		return fmt.Errorf("unsupported source driver %q", c.SourceDriver)
	}

	switch c.TargetDriver {
	case DriverPostgres:
		if c.Target == nil {
			return errors.New("target database configuration is required")
		}
	case DriverSQLite:
		if c.SQLite == nil || c.SQLite.Path == "" {
			return errors.New("sqlite path is required")
		}
	default:
		return fmt.Errorf("unsupported target driver %q", c.TargetDriver)
	}

	if c.Sources == nil {
		return errors.New("source configuration is required")
	}

	if c.ChunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}

	if c.RetryAttempts < 0 {
		return errors.New("retry attempts cannot be negative")
	}

	thresholds := map[string]int{
		"CARD_PROVIDER_SUPPORT": c.Cleaning.CardProviderSupport,
		"STORE_TYPE_SUPPORT":    c.Cleaning.StoreTypeSupport,
		"CATEGORY_SUPPORT":      c.Cleaning.CategorySupport,
		"TIME_PERIOD_SUPPORT":   c.Cleaning.TimePeriodSupport,
		"CARD_LENGTH_SUPPORT":   c.Cleaning.CardLengthSupport,
	}
	for name, v := range thresholds {
		if v < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsStringSlice parses a comma separated list, ignoring blanks
func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}
	return result
}
