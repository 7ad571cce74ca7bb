package transfer

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/cleaner"
	"github.com/David-Botos/sales-ingress/pkg/config"
	"github.com/David-Botos/sales-ingress/pkg/connector"
	"github.com/David-Botos/sales-ingress/pkg/converter"
	"github.com/David-Botos/sales-ingress/pkg/extractor"
	"github.com/David-Botos/sales-ingress/pkg/loader"
	"github.com/David-Botos/sales-ingress/pkg/model"
)

const (
	uuidA = "a1b2c3d4-e5f6-7890-abcd-ef1234567890"
	uuidB = "0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0"
)

// fakeExtractor serves a fixed table, failing the first calls with errs
type fakeExtractor struct {
	mu     sync.Mutex
	source string
	table  *model.Table
	errs   []error
	calls  int
}

func (f *fakeExtractor) Source() string { return f.source }

func (f *fakeExtractor) Extract(ctx context.Context) (*model.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.table.Clone(), nil
}

func rawTable(t *testing.T, header []string, rows ...[]string) *model.Table {
	t.Helper()
	tbl, err := model.NewTableFromRecords("raw", header, rows)
	require.NoError(t, err)
	return tbl
}

func rawEvents(t *testing.T) *model.Table {
	return rawTable(t, []string{"timestamp", "month", "year", "day", "time_period", "date_uuid"},
		[]string{"22:00:06", "9", "2012", "19", "Evening", uuidA},
		[]string{"09:03:51", "2", "1997", "05", "Morning", uuidB},
		[]string{"NULL", "NULL", "NULL", "NULL", "NULL", "NULL"},
	)
}

func rawOrders(t *testing.T) *model.Table {
	return rawTable(t,
		[]string{"level_0", "index", "date_uuid", "first_name", "last_name", "user_uuid", "card_number", "store_code", "product_code", "1", "product_quantity"},
		[]string{"0", "0", uuidA, "Ann", "Lee", uuidB, "4971858637664481", "BL-8387506C", "R7-3126933h", "", "3"},
		[]string{"1", "1", uuidB, "", "", uuidA, "30060773296197", "WEB-1388012W", "C2-7287916l", "", "many"},
	)
}

func newTestPipeline(t *testing.T, extractors map[string]extractor.Extractor) (*Pipeline, connector.DatabaseConnector) {
	t.Helper()
	conn := newSQLiteTarget(t)
	conv := converter.NewTypeConverter(zap.NewNop(), converter.DialectSQLite)
	l := loader.NewLoader(conn, conv, zap.NewNop())

	metrics, err := NewMetrics(prometheus.NewRegistry(), zap.NewNop())
	require.NoError(t, err)

	p := NewPipeline(extractors, cleaner.NewRegistry(cleaner.Options{}), l,
		NewVerifier(conn, l.Schema(), zap.NewNop()), metrics, zap.NewNop()).
		WithWorkerCount(2).
		WithRetryDelay(0)
	return p, conn
}

func countRows(t *testing.T, conn connector.DatabaseConnector, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.DB().Get(&n, "SELECT COUNT(*) FROM "+converter.QuoteIdentifier(table)))
	return n
}

func TestPipelineRunLoadsEntities(t *testing.T) {
	p, conn := newTestPipeline(t, map[string]extractor.Extractor{
		cleaner.EntityOrder: &fakeExtractor{source: "orders_table", table: rawOrders(t)},
		cleaner.EntityEvent: &fakeExtractor{source: "date_details.json", table: rawEvents(t)},
	})

	summary, err := p.Run(context.Background(), []string{cleaner.EntityEvent, cleaner.EntityOrder})
	require.NoError(t, err)
	require.NoError(t, summary.Err())

	assert.ElementsMatch(t, []string{cleaner.EntityOrder, cleaner.EntityEvent}, summary.SuccessfulEntities)
	assert.Equal(t, 5, summary.TotalRowsIn)
	assert.Equal(t, 2, summary.TotalRowsDropped)
	assert.Equal(t, int64(3), summary.TotalRowsLoaded)
	for _, r := range summary.Results {
		assert.Empty(t, r.Warnings, r.Entity)
	}

	assert.Equal(t, int64(1), countRows(t, conn, "orders_table"))
	assert.Equal(t, int64(2), countRows(t, conn, "dim_date_times"))
	assert.Equal(t, int64(2), countRows(t, conn, loader.RunsTable))

	var dropped int64
	require.NoError(t, conn.DB().Get(&dropped, "SELECT SUM(rows_dropped) FROM ingress_runs"))
	assert.Equal(t, int64(2), dropped)

	assert.Contains(t, p.GenerateReport(), "- event -> dim_date_times: 3 in, 1 dropped, 2 loaded")
}

func TestPipelineContinuesPastFailedEntity(t *testing.T) {
	p, conn := newTestPipeline(t, map[string]extractor.Extractor{
		cleaner.EntityOrder: &fakeExtractor{source: "orders_table", errs: []error{errors.New("relation does not exist")}},
		cleaner.EntityEvent: &fakeExtractor{source: "date_details.json", table: rawEvents(t)},
	})

	summary, err := p.Run(context.Background(), []string{cleaner.EntityOrder, cleaner.EntityEvent})
	require.NoError(t, err)

	assert.Equal(t, []string{cleaner.EntityEvent}, summary.SuccessfulEntities)
	require.Contains(t, summary.FailedEntities, cleaner.EntityOrder)
	assert.False(t, summary.Aborted)
	assert.Error(t, summary.Err())
	assert.Equal(t, 1, summary.ErrorCategories[ErrorCategoryExtraction])

	var loaded int64
	require.NoError(t, conn.DB().Get(&loaded, "SELECT rows_loaded FROM ingress_runs WHERE entity = ?", cleaner.EntityOrder))
	assert.Equal(t, int64(0), loaded)
	assert.Equal(t, int64(2), countRows(t, conn, "dim_date_times"))
}

func TestPipelineRetriesTemporaryFailure(t *testing.T) {
	events := &fakeExtractor{
		source: "date_details.json",
		table:  rawEvents(t),
		errs:   []error{&extractor.StatusError{URL: "date_details.json", StatusCode: http.StatusServiceUnavailable}},
	}
	p, _ := newTestPipeline(t, map[string]extractor.Extractor{cleaner.EntityEvent: events})

	summary, err := p.Run(context.Background(), []string{cleaner.EntityEvent})
	require.NoError(t, err)
	require.NoError(t, summary.Err())

	require.Len(t, summary.Results, 1)
	result := summary.Results[0]
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.RetryCount)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, 2, events.calls)
}

func TestPipelineAbortSkipsRemainingEntities(t *testing.T) {
	// No source for users: a configuration error aborts the run
	p, conn := newTestPipeline(t, map[string]extractor.Extractor{
		cleaner.EntityEvent: &fakeExtractor{source: "date_details.json", table: rawEvents(t)},
	})
	p.WithWorkerCount(1)

	summary, err := p.Run(context.Background(), []string{cleaner.EntityUser, cleaner.EntityEvent})
	require.NoError(t, err)

	assert.True(t, summary.Aborted)
	assert.Contains(t, summary.FailedEntities, cleaner.EntityUser)
	assert.Equal(t, []string{cleaner.EntityEvent}, summary.SkippedEntities)
	assert.Equal(t, int64(1), countRows(t, conn, loader.RunsTable))

	err = summary.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aborted")
}

func TestPipelineRejectsUnknownEntity(t *testing.T) {
	p, _ := newTestPipeline(t, nil)

	_, err := p.Run(context.Background(), []string{"refunds"})
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestResolveEntitiesKeepsPipelineOrder(t *testing.T) {
	p, _ := newTestPipeline(t, nil)

	entities, err := p.resolveEntities([]string{cleaner.EntityEvent, cleaner.EntityUser, cleaner.EntityProduct})
	require.NoError(t, err)
	assert.Equal(t, []string{cleaner.EntityUser, cleaner.EntityProduct, cleaner.EntityEvent}, entities)

	entities, err = p.resolveEntities(nil)
	require.NoError(t, err)
	assert.Len(t, entities, 6)
}

func TestBuildExtractors(t *testing.T) {
	cfg := &config.Config{
		RetryAttempts: 2,
		Sources: &config.SourceConfig{
			CardPDFURL:          "https://example.com/card_details.pdf",
			StoresCountURL:      "https://example.com/number_stores",
			StoreDetailsURL:     "https://example.com/store_details",
			EventsURL:           "https://example.com/date_details.json",
			ProductsBucket:      "data-handling-public",
			ProductsKey:         "products.csv",
			S3Endpoint:          "s3.amazonaws.com",
			S3Region:            "eu-west-1",
			S3UseSSL:            true,
			StoreAPIRate:        5,
			StoreAPIConcurrency: 2,
		},
	}

	extractors, err := BuildExtractors(cfg, newSQLiteTarget(t), zap.NewNop())
	require.NoError(t, err)
	require.Len(t, extractors, 6)

	for _, entity := range cleaner.NewRegistry(cleaner.DefaultOptions()).Entities() {
		assert.Contains(t, extractors, entity)
		_, ok := TargetFor(entity)
		assert.True(t, ok, entity)
	}
	assert.Equal(t, SourceUsersTable, extractors[cleaner.EntityUser].Source())
	assert.Equal(t, "s3://data-handling-public/products.csv", extractors[cleaner.EntityProduct].Source())
	assert.Equal(t, "https://example.com/store_details", extractors[cleaner.EntityStore].Source())
}

func TestCleanerOptions(t *testing.T) {
	opts := CleanerOptions(config.CleaningConfig{
		CardProviderSupport: 3,
		TimePeriodSupport:   7,
		CardLengths:         map[string][]int{"VISA 16 digit": {16}},
	})
	assert.Equal(t, 3, opts.CardProviderSupport)
	assert.Equal(t, 7, opts.TimePeriodSupport)
	assert.Equal(t, []int{16}, opts.CardLengths["VISA 16 digit"])
	assert.NotNil(t, opts.ParseDate)
	assert.NotNil(t, opts.ParseWeight)
}
