// pkg/extractor/events.go
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// JSONExtractor reads a column oriented JSON document of the form
// {"column": {"0": value, "1": value}, ...}
type JSONExtractor struct {
	url    string
	client *http.Client
	retry  RetryPolicy
	logger *zap.Logger
}

// NewJSONExtractor creates an extractor for the document at url
func NewJSONExtractor(url string, client *http.Client, retry RetryPolicy, logger *zap.Logger) *JSONExtractor {
	return &JSONExtractor{
		url:    url,
		client: client,
		retry:  retry,
		logger: logger.Named("json-extractor"),
	}
}

// Source returns the document URL
func (e *JSONExtractor) Source() string {
	return e.url
}

// Extract downloads the document and pivots it into rows
func (e *JSONExtractor) Extract(ctx context.Context) (*model.Table, error) {
	var body []byte
	err := withRetry(ctx, e.retry, e.logger, e.url, func() error {
		var err error
		body, err = httpGet(ctx, e.client, e.url, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", e.url, err)
	}

	t, err := parseColumnJSON("date_details", body)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Read JSON document",
		zap.String("url", e.url),
		zap.Int("columns", t.Width()),
		zap.Int("rows", t.Len()))
	return t, nil
}

// parseColumnJSON keeps the document's column order. Rows are ordered by
// their numeric index; a row absent from a column is missing there.
func parseColumnJSON(name string, data []byte) (*model.Table, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("expected a JSON object of columns")
	}

	var columns []string
	cells := make(map[string]map[string]interface{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read column name: %w", err)
		}
		col, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}

		var values map[string]interface{}
		if err := dec.Decode(&values); err != nil {
			return nil, fmt.Errorf("failed to decode column %q: %w", col, err)
		}
		if _, dup := cells[col]; !dup {
			columns = append(columns, col)
		}
		cells[col] = values
	}

	indexSet := make(map[string]int)
	for _, values := range cells {
		for k := range values {
			if _, seen := indexSet[k]; seen {
				continue
			}
			n, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("row index %q is not a number", k)
			}
			indexSet[k] = n
		}
	}
	keys := make([]string, 0, len(indexSet))
	for k := range indexSet {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return indexSet[keys[a]] < indexSet[keys[b]] })

	records := make([]map[string]interface{}, len(keys))
	for r, k := range keys {
		rec := make(map[string]interface{}, len(columns))
		for _, col := range columns {
			if v, ok := cells[col][k]; ok {
				rec[col] = v
			}
		}
		records[r] = rec
	}
	return tableFromRecords(name, columns, records)
}
