package loader

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/connector"
	"github.com/David-Botos/sales-ingress/pkg/converter"
	"github.com/David-Botos/sales-ingress/pkg/model"
)

func newSQLiteLoader(t *testing.T) (*Loader, connector.DatabaseConnector) {
	t.Helper()
	conn, err := connector.NewSQLiteConnector(context.Background(),
		"file:"+filepath.Join(t.TempDir(), "sink.sqlite"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	conv := converter.NewTypeConverter(zap.NewNop(), converter.DialectSQLite)
	return NewLoader(conn, conv, zap.NewNop()), conn
}

func ordersTable(t *testing.T, n int) *model.Table {
	t.Helper()
	codes := make([]model.Value, n)
	qty := make([]model.Value, n)
	for i := 0; i < n; i++ {
		codes[i] = model.Text("WEB-1388012W")
		qty[i] = model.Int(int64(i))
	}
	tbl := model.NewTable("orders_table")
	require.NoError(t, tbl.AddColumn("store_code", model.KindText, codes))
	require.NoError(t, tbl.AddColumn("product_quantity", model.KindInt, qty))
	return tbl
}

func TestReplaceCreatesAndLoads(t *testing.T) {
	ctx := context.Background()
	l, conn := newSQLiteLoader(t)
	l.WithBatchSize(3)

	n, err := l.Replace(ctx, ordersTable(t, 7), "orders_table")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	count, err := l.RowCount(ctx, "orders_table")
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)

	var total int64
	require.NoError(t, conn.DB().Get(&total, "SELECT SUM(product_quantity) FROM orders_table"))
	assert.Equal(t, int64(21), total)
}

func TestReplaceOverwritesPreviousLoad(t *testing.T) {
	ctx := context.Background()
	l, _ := newSQLiteLoader(t)

	_, err := l.Replace(ctx, ordersTable(t, 10), "orders_table")
	require.NoError(t, err)
	_, err = l.Replace(ctx, ordersTable(t, 2), "orders_table")
	require.NoError(t, err)

	count, err := l.RowCount(ctx, "orders_table")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestReplaceStoresTypedValues(t *testing.T) {
	ctx := context.Background()
	l, conn := newSQLiteLoader(t)

	tbl := model.NewTable("dim_products")
	require.NoError(t, tbl.AddColumn("EAN", model.KindText, []model.Value{model.Text("7425710935115")}))
	require.NoError(t, tbl.AddColumn("still_available", model.KindBool, []model.Value{model.Bool(true)}))
	require.NoError(t, tbl.AddColumn("weight_kg", model.KindFloat, []model.Value{model.Missing()}))
	require.NoError(t, tbl.AddColumn("date_added", model.KindTimestamp,
		[]model.Value{model.Timestamp(time.Date(2005, 12, 2, 0, 0, 0, 0, time.UTC))}))

	_, err := l.Replace(ctx, tbl, "dim_products")
	require.NoError(t, err)

	var row struct {
		EAN            string   `db:"EAN"`
		StillAvailable int64    `db:"still_available"`
		WeightKg       *float64 `db:"weight_kg"`
		DateAdded      string   `db:"date_added"`
	}
	require.NoError(t, conn.DB().Get(&row, `SELECT "EAN", still_available, weight_kg, date_added FROM dim_products`))
	assert.Equal(t, "7425710935115", row.EAN)
	assert.Equal(t, int64(1), row.StillAvailable)
	assert.Nil(t, row.WeightKg)
	assert.Equal(t, "2005-12-02", row.DateAdded)
}

func TestReplaceRejectsPendingValues(t *testing.T) {
	l, _ := newSQLiteLoader(t)

	tbl := model.NewTable("bad")
	require.NoError(t, tbl.AddColumn("x", model.KindText, []model.Value{model.Raw("unchecked")}))

	_, err := l.Replace(context.Background(), tbl, "bad")
	assert.Error(t, err)
}

func TestRecordRuns(t *testing.T) {
	ctx := context.Background()
	l, conn := newSQLiteLoader(t)
	require.NoError(t, l.EnsureRunsTable(ctx))
	require.NoError(t, l.EnsureRunsTable(ctx))

	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	runs := []model.CleaningRun{
		{RunID: "r1", Entity: "user", Source: "legacy_users", TargetTable: "dim_users",
			RowsIn: 10, RowsOut: 8, RowsDropped: 2, RowsLoaded: 8, StartedAt: start, FinishedAt: start.Add(time.Second)},
		{RunID: "r1", Entity: "order", Source: "orders_table", TargetTable: "orders_table",
			RowsIn: 5, RowsOut: 5, RowsLoaded: 5, StartedAt: start, FinishedAt: start.Add(time.Second)},
	}
	require.NoError(t, l.RecordRuns(ctx, runs))
	require.NoError(t, l.RecordRuns(ctx, nil))

	var dropped []int64
	require.NoError(t, conn.DB().Select(&dropped, "SELECT rows_dropped FROM ingress_runs ORDER BY entity"))
	assert.Equal(t, []int64{0, 2}, dropped)
}

func TestDetermineBatchSize(t *testing.T) {
	l := &Loader{batchSize: 500}
	assert.Equal(t, 500, l.determineBatchSize(10))
	assert.Equal(t, sqliteMaxVariables/100, l.determineBatchSize(100))
	assert.Equal(t, 500, l.determineBatchSize(0))
}
