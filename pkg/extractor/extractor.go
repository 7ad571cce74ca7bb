// pkg/extractor/extractor.go
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// Extractor fetches one raw dataset and returns it as a table of
// pending text cells
type Extractor interface {
	// Source describes where the data comes from, for logs and audit
	Source() string

	// Extract reads the full dataset
	Extract(ctx context.Context) (*model.Table, error)
}

// RetryPolicy bounds how often a failed fetch is attempted again
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// StatusError is returned for non-2xx HTTP responses
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Temporary reports whether the status is worth retrying
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsTemporary reports whether err is a transient source failure
func IsTemporary(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) && temp.Temporary() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout")
}

// withRetry runs fn until it succeeds, fails permanently or the policy is
// exhausted
func withRetry(ctx context.Context, policy RetryPolicy, logger *zap.Logger, what string, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= policy.Attempts || !IsTemporary(err) {
			return err
		}

		logger.Warn("Retrying after source error",
			zap.String("source", what),
			zap.Int("retry", attempt+1),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Delay * time.Duration(attempt+1)):
		}
	}
}

// httpGet reads the body of a GET request, failing on non-2xx statuses
func httpGet(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// cellValue turns a loosely typed source value into a pending text cell.
// nil and empty strings are missing.
func cellValue(v interface{}) model.Value {
	if v == nil {
		return model.Missing()
	}
	if t, ok := v.(time.Time); ok {
		return model.Raw(model.FormatTime(t))
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		s = fmt.Sprint(v)
	}
	if s == "" {
		return model.Missing()
	}
	return model.Raw(s)
}

// tableFromRecords builds a table from row maps, using columns as the
// column order
func tableFromRecords(name string, columns []string, records []map[string]interface{}) (*model.Table, error) {
	t := model.NewTable(name)
	for _, col := range columns {
		values := make([]model.Value, len(records))
		for r, rec := range records {
			values[r] = cellValue(rec[col])
		}
		if err := t.AddColumn(col, model.KindText, values); err != nil {
			return nil, err
		}
	}
	return t, nil
}
