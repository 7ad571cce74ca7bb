// pkg/config/sources.go
package config

import (
	"fmt"
	"time"
)

// SourceConfig locates the non-relational sources
type SourceConfig struct {
	CardPDFURL      string
	StoresCountURL  string
	StoreDetailsURL string // store number is appended as the last path segment
	EventsURL       string

	ProductsBucket     string
	ProductsKey        string
	S3Endpoint         string
	S3Region           string
	S3UseSSL           bool
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	APIHeaders          map[string]string // sent with every store API request
	StoreAPIRate        float64           // requests per second
	StoreAPIConcurrency int
	HTTPTimeout         time.Duration
}

// LoadSourceConfig loads source locations from the environment and the
// API key file
func LoadSourceConfig() (*SourceConfig, error) {
	cfg := &SourceConfig{
		CardPDFURL:      getEnv("CARD_PDF_URL", "https://data-handling-public.s3.eu-west-1.amazonaws.com/card_details.pdf"),
		StoresCountURL:  getEnv("STORES_COUNT_URL", "https://aqj7u5id95.execute-api.eu-west-1.amazonaws.com/prod/number_stores"),
		StoreDetailsURL: getEnv("STORE_DETAILS_URL", "https://aqj7u5id95.execute-api.eu-west-1.amazonaws.com/prod/store_details"),
		EventsURL:       getEnv("EVENTS_URL", "https://data-handling-public.s3.eu-west-1.amazonaws.com/date_details.json"),

		ProductsBucket:     getEnv("PRODUCTS_BUCKET", "data-handling-public"),
		ProductsKey:        getEnv("PRODUCTS_KEY", "products.csv"),
		S3Endpoint:         getEnv("S3_ENDPOINT", "s3.amazonaws.com"),
		S3Region:           getEnv("S3_REGION", "eu-west-1"),
		S3UseSSL:           getEnvAsBool("S3_USE_SSL", true),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),

		StoreAPIRate:        getEnvAsFloat("STORE_API_RPS", 10),
		StoreAPIConcurrency: getEnvAsInt("STORE_API_CONCURRENCY", 8),
		HTTPTimeout:         time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
	}

	if path := getEnv("API_KEYS_FILE", "yaml_files/api_keys.yaml"); path != "" {
		headers, err := LoadAPIHeaders(path)
		if err != nil {
			return nil, err
		}
		cfg.APIHeaders = headers
	}

	if cfg.StoreAPIRate <= 0 {
		return nil, fmt.Errorf("STORE_API_RPS must be positive, got %v", cfg.StoreAPIRate)
	}
	if cfg.StoreAPIConcurrency <= 0 {
		cfg.StoreAPIConcurrency = 1
	}

	return cfg, nil
}

// LoadAPIHeaders reads the header name to value mapping sent to the
// store API
func LoadAPIHeaders(path string) (map[string]string, error) {
	headers := make(map[string]string)
	if err := readYAML(path, &headers); err != nil {
		return nil, err
	}
	return headers, nil
}

// LoadCardLengths reads the provider to accepted card number lengths
// mapping
func LoadCardLengths(path string) (map[string][]int, error) {
	lengths := make(map[string][]int)
	if err := readYAML(path, &lengths); err != nil {
		return nil, err
	}
	for provider, ls := range lengths {
		for _, l := range ls {
			if l <= 0 {
				return nil, fmt.Errorf("%s: provider %q has non-positive length %d", path, provider, l)
			}
		}
	}
	return lengths, nil
}
