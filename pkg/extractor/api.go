// pkg/extractor/api.go
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// StoreAPIConfig configures the store details API
type StoreAPIConfig struct {
	CountURL    string
	DetailsURL  string // the store number is appended as a path segment
	Headers     map[string]string
	RateLimit   float64 // requests per second
	Concurrency int
}

// StoreAPIExtractor asks the API how many stores exist and then fetches
// the details of each one
type StoreAPIExtractor struct {
	cfg     StoreAPIConfig
	client  *http.Client
	limiter *rate.Limiter
	retry   RetryPolicy
	logger  *zap.Logger
}

// NewStoreAPIExtractor creates a rate limited store API extractor
func NewStoreAPIExtractor(cfg StoreAPIConfig, client *http.Client, retry RetryPolicy, logger *zap.Logger) *StoreAPIExtractor {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	burst := cfg.Concurrency
	return &StoreAPIExtractor{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		retry:   retry,
		logger:  logger.Named("store-api-extractor"),
	}
}

// Source returns the details endpoint
func (e *StoreAPIExtractor) Source() string {
	return e.cfg.DetailsURL
}

// NumberOfStores returns the store count reported by the API
func (e *StoreAPIExtractor) NumberOfStores(ctx context.Context) (int, error) {
	var payload struct {
		NumberStores int `json:"number_stores"`
	}
	if err := e.getJSON(ctx, e.cfg.CountURL, &payload); err != nil {
		return 0, fmt.Errorf("failed to get number of stores: %w", err)
	}
	if payload.NumberStores < 0 {
		return 0, fmt.Errorf("API reported a negative number of stores: %d", payload.NumberStores)
	}
	return payload.NumberStores, nil
}

// Extract fetches every store's details, one request per store number
func (e *StoreAPIExtractor) Extract(ctx context.Context) (*model.Table, error) {
	n, err := e.NumberOfStores(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Info("Fetching store details", zap.Int("stores", n))

	records := make([]map[string]interface{}, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			url := strings.TrimSuffix(e.cfg.DetailsURL, "/") + "/" + strconv.Itoa(i)
			var rec map[string]interface{}
			if err := e.getJSON(gctx, url, &rec); err != nil {
				return fmt.Errorf("store %d: %w", i, err)
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch store details: %w", err)
	}

	return tableFromRecords("store_details", recordColumns(records), records)
}

// getJSON performs a rate limited GET with retries and decodes the body
func (e *StoreAPIExtractor) getJSON(ctx context.Context, url string, out interface{}) error {
	return withRetry(ctx, e.retry, e.logger, url, func() error {
		if err := e.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		body, err := httpGet(ctx, e.client, url, e.cfg.Headers)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode %s: %w", url, err)
		}
		return nil
	})
}

// recordColumns returns the union of the record keys, sorted
func recordColumns(records []map[string]interface{}) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)
	return columns
}
