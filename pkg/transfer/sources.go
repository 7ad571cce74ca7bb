// pkg/transfer/sources.go
package transfer

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/cleaner"
	"github.com/David-Botos/sales-ingress/pkg/config"
	"github.com/David-Botos/sales-ingress/pkg/connector"
	"github.com/David-Botos/sales-ingress/pkg/extractor"
)

// Source tables read from the relational source
const (
	SourceUsersTable  = "legacy_users"
	SourceOrdersTable = "orders_table"
)

// EntityTarget names where an entity is loaded and the column expected
// to identify its rows
type EntityTarget struct {
	Table     string
	KeyColumn string
}

var entityTargets = map[string]EntityTarget{
	cleaner.EntityUser:    {Table: "dim_users", KeyColumn: "user_uuid"},
	cleaner.EntityCard:    {Table: "dim_card_details", KeyColumn: "card_number"},
	cleaner.EntityStore:   {Table: "dim_store_details", KeyColumn: "store_code"},
	cleaner.EntityProduct: {Table: "dim_products", KeyColumn: "product_code"},
	cleaner.EntityOrder:   {Table: "orders_table"},
	cleaner.EntityEvent:   {Table: "dim_date_times", KeyColumn: "date_uuid"},
}

// TargetFor returns the load target of an entity
func TargetFor(entity string) (EntityTarget, bool) {
	t, ok := entityTargets[entity]
	return t, ok
}

// CleanerOptions builds the cleaner thresholds from the configuration
func CleanerOptions(cfg config.CleaningConfig) cleaner.Options {
	opts := cleaner.DefaultOptions()
	opts.CardProviderSupport = cfg.CardProviderSupport
	opts.StoreTypeSupport = cfg.StoreTypeSupport
	opts.CategorySupport = cfg.CategorySupport
	opts.TimePeriodSupport = cfg.TimePeriodSupport
	opts.CardLengths = cfg.CardLengths
	opts.CardLengthSupport = cfg.CardLengthSupport
	return opts
}

// BuildExtractors creates the extractor of every entity
func BuildExtractors(cfg *config.Config, source connector.DatabaseConnector, logger *zap.Logger) (map[string]extractor.Extractor, error) {
	retry := extractor.RetryPolicy{Attempts: cfg.RetryAttempts, Delay: cfg.RetryDelay}
	src := cfg.Sources
	client := &http.Client{Timeout: src.HTTPTimeout}

	products, err := extractor.NewS3Extractor(extractor.ObjectStoreConfig{
		Endpoint:        src.S3Endpoint,
		Region:          src.S3Region,
		UseSSL:          src.S3UseSSL,
		AccessKeyID:     src.AWSAccessKeyID,
		SecretAccessKey: src.AWSSecretAccessKey,
		Bucket:          src.ProductsBucket,
		Key:             src.ProductsKey,
	}, retry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create products extractor: %w", err)
	}

	return map[string]extractor.Extractor{
		cleaner.EntityUser: extractor.NewTableExtractor(source, SourceUsersTable, retry, logger),
		cleaner.EntityCard: extractor.NewPDFExtractor(src.CardPDFURL, client, retry, logger),
		cleaner.EntityStore: extractor.NewStoreAPIExtractor(extractor.StoreAPIConfig{
			CountURL:    src.StoresCountURL,
			DetailsURL:  src.StoreDetailsURL,
			Headers:     src.APIHeaders,
			RateLimit:   src.StoreAPIRate,
			Concurrency: src.StoreAPIConcurrency,
		}, client, retry, logger),
		cleaner.EntityProduct: products,
		cleaner.EntityOrder:   extractor.NewTableExtractor(source, SourceOrdersTable, retry, logger),
		cleaner.EntityEvent:   extractor.NewJSONExtractor(src.EventsURL, client, retry, logger),
	}, nil
}
