package connector

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/config"
)

func TestSQLiteConnector(t *testing.T) {
	ctx := context.Background()
	conn, err := NewSQLiteConnector(ctx, "file:"+filepath.Join(t.TempDir(), "t.sqlite"), zap.NewNop())
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, SQLiteDriver, conn.Driver())
	require.NoError(t, conn.Validate(ctx))

	_, err = conn.ExecWithTimeout(ctx, "CREATE TABLE dim_users (id INTEGER)", time.Second)
	require.NoError(t, err)
	_, err = conn.ExecWithTimeout(ctx, "CREATE TABLE orders_table (id INTEGER)", time.Second)
	require.NoError(t, err)

	tables, err := conn.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dim_users", "orders_table"}, tables)

	// sqlite is registered with question mark bind vars
	assert.Equal(t, "SELECT ? , ?", conn.DB().Rebind("SELECT ? , ?"))

	assert.Equal(t, 1, conn.DB().Stats().MaxOpenConnections)
}

func TestFactoryCreatesSQLiteTarget(t *testing.T) {
	cfg := &config.Config{
		TargetDriver: config.DriverSQLite,
		SQLite:       &config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "sink.sqlite")},
	}
	f := NewConnectorFactory(cfg, zap.NewNop())

	target, err := f.CreateTargetConnector(context.Background())
	require.NoError(t, err)
	defer target.Close()
	assert.Equal(t, SQLiteDriver, target.Driver())

	cfg.TargetDriver = "csv"
	_, err = f.CreateTargetConnector(context.Background())
	assert.Error(t, err)

	cfg.SourceDriver = "mysql"
	_, err = f.CreateSourceConnector(context.Background())
	assert.Error(t, err)
}
