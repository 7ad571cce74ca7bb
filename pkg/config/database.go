// pkg/config/database.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"
	"gopkg.in/yaml.v3"
)

// SnowflakeConfig holds Snowflake connection parameters for the warehouse
// copy of the legacy tables
type SnowflakeConfig struct {
	User          string
	Password      string
	Account       string
	Warehouse     string
	Database      string // Default: SALES_DATA
	Schema        string // Default: PUBLIC
	Role          string
	Authenticator gosnowflake.AuthType

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Query timeout
	QueryTimeout time.Duration
}

// PostgresConfig holds PostgreSQL connection parameters
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Statement timeout
	StatementTimeout time.Duration
}

// SQLiteConfig holds the local SQLite sink settings
type SQLiteConfig struct {
	Path string
}

// sourceCredentials mirrors db_creds.yaml
type sourceCredentials struct {
	Host     string `yaml:"RDS_HOST"`
	Password string `yaml:"RDS_PASSWORD"`
	User     string `yaml:"RDS_USER"`
	Database string `yaml:"RDS_DATABASE"`
	Port     int    `yaml:"RDS_PORT"`
}

// targetCredentials mirrors local_db_creds.yaml
type targetCredentials struct {
	Host         string `yaml:"HOST"`
	Password     string `yaml:"PASSWORD"`
	User         string `yaml:"USER"`
	Database     string `yaml:"DATABASE"`
	Port         int    `yaml:"PORT"`
	DatabaseType string `yaml:"DATABASE_TYPE"`
	DBAPI        string `yaml:"DBAPI"`
}

// LoadSourceCredentials reads the source database credentials file
func LoadSourceCredentials(path string) (*PostgresConfig, error) {
	var creds sourceCredentials
	if err := readYAML(path, &creds); err != nil {
		return nil, err
	}

	if creds.Host == "" || creds.User == "" || creds.Database == "" {
		return nil, fmt.Errorf("%s: RDS_HOST, RDS_USER and RDS_DATABASE are required", path)
	}
	if creds.Port == 0 {
		creds.Port = 5432
	}

	cfg := &PostgresConfig{
		Host:     creds.Host,
		Port:     creds.Port,
		User:     creds.User,
		Password: creds.Password,
		Database: creds.Database,
		SSLMode:  getEnv("SOURCE_SSLMODE", "require"),
	}
	applyPostgresPool(cfg, "SOURCE")
	return cfg, nil
}

// LoadTargetCredentials reads the target database credentials file
func LoadTargetCredentials(path string) (*PostgresConfig, error) {
	var creds targetCredentials
	if err := readYAML(path, &creds); err != nil {
		return nil, err
	}

	if creds.DatabaseType != "" && !strings.HasPrefix(strings.ToLower(creds.DatabaseType), "postgres") {
		return nil, fmt.Errorf("%s: unsupported DATABASE_TYPE %q", path, creds.DatabaseType)
	}
	if creds.User == "" || creds.Database == "" {
		return nil, fmt.Errorf("%s: USER and DATABASE are required", path)
	}
	if creds.Host == "" {
		creds.Host = "localhost"
	}
	if creds.Port == 0 {
		creds.Port = 5432
	}

	cfg := &PostgresConfig{
		Host:     creds.Host,
		Port:     creds.Port,
		User:     creds.User,
		Password: creds.Password,
		Database: creds.Database,
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
	applyPostgresPool(cfg, "POSTGRES")
	return cfg, nil
}

func applyPostgresPool(cfg *PostgresConfig, prefix string) {
	cfg.MaxOpenConns = getEnvAsInt(prefix+"_MAX_OPEN_CONNS", 25)
	cfg.MaxIdleConns = getEnvAsInt(prefix+"_MAX_IDLE_CONNS", 10)
	cfg.ConnMaxLifetime = time.Duration(getEnvAsInt(prefix+"_CONN_MAX_LIFETIME_SECONDS", 1800)) * time.Second
	cfg.ConnMaxIdleTime = time.Duration(getEnvAsInt(prefix+"_CONN_MAX_IDLE_TIME_SECONDS", 600)) * time.Second
	cfg.StatementTimeout = time.Duration(getEnvAsInt(prefix+"_STATEMENT_TIMEOUT_SECONDS", 300)) * time.Second
}

// LoadSnowflakeConfig loads Snowflake configuration from environment variables
func LoadSnowflakeConfig() (*SnowflakeConfig, error) {
	user := os.Getenv("SNOWFLAKE_USER")
	if user == "" {
		return nil, errors.New("SNOWFLAKE_USER environment variable is required")
	}

	password := os.Getenv("SNOWFLAKE_PASSWORD")
	if password == "" {
		return nil, errors.New("SNOWFLAKE_PASSWORD environment variable is required")
	}

	account := os.Getenv("SNOWFLAKE_ACCOUNT")
	if account == "" {
		return nil, errors.New("SNOWFLAKE_ACCOUNT environment variable is required")
	}

	warehouse := os.Getenv("SNOWFLAKE_WAREHOUSE")
	if warehouse == "" {
		return nil, errors.New("SNOWFLAKE_WAREHOUSE environment variable is required")
	}

	cfg := &SnowflakeConfig{
		User:          user,
		Password:      password,
		Account:       account,
		Warehouse:     warehouse,
		Database:      getEnv("SNOWFLAKE_DATABASE", "SALES_DATA"),
		Schema:        getEnv("SNOWFLAKE_SCHEMA", "PUBLIC"),
		Role:          getEnv("SNOWFLAKE_ROLE", ""),
		Authenticator: parseAuthenticator(getEnv("SNOWFLAKE_AUTHENTICATOR", "snowflake")),

		MaxOpenConns:    getEnvAsInt("SNOWFLAKE_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("SNOWFLAKE_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: time.Duration(getEnvAsInt("SNOWFLAKE_CONN_MAX_LIFETIME_SECONDS", 600)) * time.Second,
		ConnMaxIdleTime: time.Duration(getEnvAsInt("SNOWFLAKE_CONN_MAX_IDLE_TIME_SECONDS", 300)) * time.Second,
		QueryTimeout:    time.Duration(getEnvAsInt("SNOWFLAKE_QUERY_TIMEOUT_SECONDS", 300)) * time.Second,
	}

	return cfg, nil
}

func parseAuthenticator(s string) gosnowflake.AuthType {
	switch s {
	case "oauth":
		return gosnowflake.AuthTypeOAuth
	case "externalbrowser":
		return gosnowflake.AuthTypeExternalBrowser
	case "username_password_mfa":
		return gosnowflake.AuthTypeUsernamePasswordMFA
	case "jwt":
		return gosnowflake.AuthTypeJwt
	case "okta":
		return gosnowflake.AuthTypeOkta
	default:
		return gosnowflake.AuthTypeSnowflake
	}
}

// LoadSQLiteConfig loads the SQLite sink configuration
func LoadSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{Path: getEnv("SQLITE_PATH", "sales_data.sqlite")}
}

// ConnectionString returns a formatted PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}

// DSN returns the SQLite data source name with foreign keys and a busy
// timeout enabled
func (c *SQLiteConfig) DSN() string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", c.Path)
}

func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
