// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/config"
)

// ConnectorFactory creates database connectors
type ConnectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.Config, logger *zap.Logger) *ConnectorFactory {
	return &ConnectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSourceConnector connects to the database holding the legacy user
// and order tables
func (f *ConnectorFactory) CreateSourceConnector(ctx context.Context) (DatabaseConnector, error) {
	f.logger.Info("Creating source connector", zap.String("driver", f.cfg.SourceDriver))

	switch f.cfg.SourceDriver {
	case config.DriverPostgres:
		conn, err := NewPostgresConnector(ctx, f.cfg.Source, PgxDriver, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create source PostgreSQL connector: %w", err)
		}
		return conn, nil
	case config.DriverSnowflake:
		conn, err := NewSnowflakeConnector(ctx, f.cfg.Snowflake, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Snowflake connector: %w", err)
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("unsupported source driver %q", f.cfg.SourceDriver)
	}
}

// CreateTargetConnector connects to the database the clean tables are
// loaded into
func (f *ConnectorFactory) CreateTargetConnector(ctx context.Context) (DatabaseConnector, error) {
	f.logger.Info("Creating target connector", zap.String("driver", f.cfg.TargetDriver))

	switch f.cfg.TargetDriver {
	case config.DriverPostgres:
		conn, err := NewPostgresConnector(ctx, f.cfg.Target, PqDriver, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create target PostgreSQL connector: %w", err)
		}
		return conn, nil
	case config.DriverSQLite:
		conn, err := NewSQLiteConnector(ctx, f.cfg.SQLite.DSN(), f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite connector: %w", err)
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("unsupported target driver %q", f.cfg.TargetDriver)
	}
}

// CreateAllConnectors creates the source and target connectors
func (f *ConnectorFactory) CreateAllConnectors(ctx context.Context) (DatabaseConnector, DatabaseConnector, error) {
	source, err := f.CreateSourceConnector(ctx)
	if err != nil {
		return nil, nil, err
	}

	target, err := f.CreateTargetConnector(ctx)
	if err != nil {
		source.Close() // Clean up the source connection if the target fails
		return nil, nil, err
	}

	return source, target, nil
}
