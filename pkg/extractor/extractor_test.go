package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/connector"
	"github.com/David-Botos/sales-ingress/pkg/model"
)

var noRetry = RetryPolicy{}

func columnStrings(t *testing.T, tbl *model.Table, name string) []string {
	t.Helper()
	col, ok := tbl.Column(name)
	require.True(t, ok, "column %s", name)
	out := make([]string, len(col.Values))
	for i, v := range col.Values {
		if v.IsMissing() {
			out[i] = "<missing>"
			continue
		}
		out[i] = v.String()
	}
	return out
}

func TestStoreAPIExtractor(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("x-api-key") != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch {
		case r.URL.Path == "/number_stores":
			fmt.Fprint(w, `{"statusCode": 200, "number_stores": 3}`)
		case strings.HasPrefix(r.URL.Path, "/store_details/"):
			n := strings.TrimPrefix(r.URL.Path, "/store_details/")
			fmt.Fprintf(w, `{"index": %s, "store_code": "BP-%s", "staff_numbers": "1%s", "lat": null}`, n, n, n)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	e := NewStoreAPIExtractor(StoreAPIConfig{
		CountURL:    srv.URL + "/number_stores",
		DetailsURL:  srv.URL + "/store_details",
		Headers:     map[string]string{"x-api-key": "secret"},
		RateLimit:   1000,
		Concurrency: 2,
	}, srv.Client(), noRetry, zap.NewNop())

	tbl, err := e.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"index", "lat", "staff_numbers", "store_code"}, tbl.ColumnNames())
	assert.Equal(t, []string{"BP-0", "BP-1", "BP-2"}, columnStrings(t, tbl, "store_code"))
	assert.Equal(t, []string{"0", "1", "2"}, columnStrings(t, tbl, "index"))
	assert.Equal(t, []string{"<missing>", "<missing>", "<missing>"}, columnStrings(t, tbl, "lat"))
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestStoreAPIExtractorForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	e := NewStoreAPIExtractor(StoreAPIConfig{CountURL: srv.URL, DetailsURL: srv.URL},
		srv.Client(), RetryPolicy{Attempts: 3, Delay: time.Millisecond}, zap.NewNop())
	_, err := e.Extract(context.Background())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.False(t, IsTemporary(err))
}

func TestJSONExtractorRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{
			"timestamp": {"0": "22:00:06", "1": "17:47:11", "10": "10:00:00"},
			"month": {"1": "1", "0": "9", "10": "NULL"},
			"year": {"0": 2012, "1": 1998}
		}`)
	}))
	defer srv.Close()

	e := NewJSONExtractor(srv.URL, srv.Client(), RetryPolicy{Attempts: 2, Delay: time.Millisecond}, zap.NewNop())
	tbl, err := e.Extract(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"timestamp", "month", "year"}, tbl.ColumnNames())
	assert.Equal(t, []string{"22:00:06", "17:47:11", "10:00:00"}, columnStrings(t, tbl, "timestamp"))
	assert.Equal(t, []string{"9", "1", "NULL"}, columnStrings(t, tbl, "month"))
	assert.Equal(t, []string{"2012", "1998", "<missing>"}, columnStrings(t, tbl, "year"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestParseColumnJSONRejectsBadIndex(t *testing.T) {
	_, err := parseColumnJSON("x", []byte(`{"a": {"zero": 1}}`))
	assert.Error(t, err)

	_, err = parseColumnJSON("x", []byte(`[1, 2]`))
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	doc := ",product_name,product_price,weight\n" +
		"0,FurReal Dazzlin' Dimples,£39.99,1.6kg\n" +
		"1,Tiffany Lamp,£99.99,\n" +
		"2,short\n"

	tbl, err := readCSV("products.csv", strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"Unnamed: 0", "product_name", "product_price", "weight"}, tbl.ColumnNames())
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"1.6kg", "<missing>", "<missing>"}, columnStrings(t, tbl, "weight"))

	_, err = readCSV("empty.csv", strings.NewReader(""))
	assert.Error(t, err)
}

func TestMergeFragments(t *testing.T) {
	texts := pdf.TextHorizontal{
		{X: 120, W: 20, FontSize: 8, S: "12/24"},
		{X: 10, W: 30, FontSize: 8, S: "4971858637664481"},
		{X: 200, W: 10, FontSize: 8, S: "VISA"},
		{X: 213, W: 4, FontSize: 8, S: "16"},
		{X: 217, W: 10, FontSize: 8, S: "digit"},
	}
	cells := mergeFragments(texts)
	require.Len(t, cells, 3)
	assert.Equal(t, "4971858637664481", cells[0].S)
	assert.Equal(t, "12/24", cells[1].S)
	assert.Equal(t, "VISA 16digit", cells[2].S)
	assert.Equal(t, 200.0, cells[2].X)
}

func TestParseTableLines(t *testing.T) {
	header := []textCell{{10, "card_number"}, {100, "expiry_date"}, {200, "card_provider"}, {300, "date_payment_confirmed"}}
	lines := [][]textCell{
		{{5, "page title"}},
		header,
		{{10, "30060773296197"}, {100, "09/26"}, {200, "Diners Club / Carte Blanche"}, {300, "2015-11-25"}},
		{{10, "NULL"}, {100, "NULL"}, {200, "NULL"}, {300, "NULL"}},
		header,
		{{10, "4971858637664481"}, {101, "09/23"}, {300, "2001-06-18"}},
	}

	tbl, err := parseTableLines("card_details", CardColumns, lines)
	require.NoError(t, err)
	assert.Equal(t, CardColumns, tbl.ColumnNames())
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"30060773296197", "NULL", "4971858637664481"}, columnStrings(t, tbl, "card_number"))
	assert.Equal(t, []string{"Diners Club / Carte Blanche", "NULL", "<missing>"}, columnStrings(t, tbl, "card_provider"))
	assert.Equal(t, []string{"09/26", "NULL", "09/23"}, columnStrings(t, tbl, "expiry_date"))

	_, err = parseTableLines("card_details", CardColumns, [][]textCell{{{0, "no header here"}}})
	assert.Error(t, err)
}

func TestTableExtractor(t *testing.T) {
	ctx := context.Background()
	conn, err := connector.NewSQLiteConnector(ctx, "file:"+filepath.Join(t.TempDir(), "src.sqlite"), zap.NewNop())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.DB().Exec(`CREATE TABLE legacy_users ("index" INTEGER, first_name TEXT, join_date TEXT)`)
	require.NoError(t, err)
	_, err = conn.DB().Exec(`INSERT INTO legacy_users VALUES (0, 'Sigfried', '2016-10-23'), (1, NULL, 'NULL')`)
	require.NoError(t, err)

	e := NewTableExtractor(conn, "legacy_users", noRetry, zap.NewNop())
	assert.Equal(t, "legacy_users", e.Source())

	tables, err := e.ListTables(ctx)
	require.NoError(t, err)
	assert.Contains(t, tables, "legacy_users")

	tbl, err := e.Extract(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"index", "first_name", "join_date"}, tbl.ColumnNames())
	assert.Equal(t, []string{"0", "1"}, columnStrings(t, tbl, "index"))
	assert.Equal(t, []string{"Sigfried", "<missing>"}, columnStrings(t, tbl, "first_name"))
	assert.Equal(t, []string{"2016-10-23", "NULL"}, columnStrings(t, tbl, "join_date"))

	_, err = NewTableExtractor(conn, "missing_table", noRetry, zap.NewNop()).Extract(ctx)
	assert.Error(t, err)
}

func TestIsTemporary(t *testing.T) {
	assert.False(t, IsTemporary(nil))
	assert.False(t, IsTemporary(context.Canceled))
	assert.True(t, IsTemporary(context.DeadlineExceeded))
	assert.True(t, IsTemporary(&StatusError{StatusCode: 502}))
	assert.True(t, IsTemporary(&StatusError{StatusCode: 429}))
	assert.False(t, IsTemporary(&StatusError{StatusCode: 404}))
	assert.True(t, IsTemporary(fmt.Errorf("wrapped: %w", errors.New("read: connection reset by peer"))))
	assert.False(t, IsTemporary(errors.New("syntax error")))
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), RetryPolicy{Attempts: 5}, zap.NewNop(), "x", func() error {
		calls++
		return errors.New("permanent")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = withRetry(context.Background(), RetryPolicy{Attempts: 2}, zap.NewNop(), "x", func() error {
		calls++
		return &StatusError{StatusCode: 500}
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}
