// pkg/connector/sqlite.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteDriver is the modernc.org/sqlite database/sql driver name
const SQLiteDriver = "sqlite"

func init() {
	sqlx.BindDriver(SQLiteDriver, sqlx.QUESTION)
}

// SQLiteConnector is a local single-file sink
type SQLiteConnector struct {
	db     *sqlx.DB
	dsn    string
	logger *zap.Logger
}

// NewSQLiteConnector opens the SQLite database at dsn. SQLite allows one
// writer, so the pool is limited to a single connection.
func NewSQLiteConnector(ctx context.Context, dsn string, logger *zap.Logger) (*SQLiteConnector, error) {
	logger = logger.Named("sqlite-connector")
	logger.Info("Opening SQLite database", zap.String("dsn", dsn))

	db, err := sqlx.Open(SQLiteDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	ApplyConnectionSettings(db, 1, 1, 0, 0)

	if err := PingWithTimeout(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	return &SQLiteConnector{db: db, dsn: dsn, logger: logger}, nil
}

// DB returns the underlying database connection
func (c *SQLiteConnector) DB() *sqlx.DB {
	return c.db
}

// Driver returns the database/sql driver name
func (c *SQLiteConnector) Driver() string {
	return SQLiteDriver
}

// Validate checks the database file is writable
func (c *SQLiteConnector) Validate(ctx context.Context) error {
	var version string
	if err := c.db.GetContext(ctx, &version, "SELECT sqlite_version()"); err != nil {
		return fmt.Errorf("failed to query SQLite version: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, "CREATE TEMP TABLE _permission_check (id INTEGER)"); err != nil {
		return fmt.Errorf("permission validation failed: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, "DROP TABLE _permission_check"); err != nil {
		return fmt.Errorf("permission validation failed: %w", err)
	}

	c.logger.Info("SQLite connection validated", zap.String("version", version))
	return nil
}

// ListTables returns the user tables of the database
func (c *SQLiteConnector) ListTables(ctx context.Context) ([]string, error) {
	tables, err := selectStrings(ctx, c.db,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list SQLite tables: %w", err)
	}
	return tables, nil
}

// ExecWithTimeout executes a statement with a timeout
func (c *SQLiteConnector) ExecWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (sql.Result, error) {
	return execWithTimeout(ctx, c.db, query, timeout, args...)
}

// Close closes the database
func (c *SQLiteConnector) Close() error {
	c.logger.Info("Closing SQLite database")
	return c.db.Close()
}
