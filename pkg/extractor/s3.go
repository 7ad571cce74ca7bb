// pkg/extractor/s3.go
package extractor

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// ObjectStoreConfig locates a CSV object in S3 compatible storage
type ObjectStoreConfig struct {
	Endpoint        string
	Region          string
	UseSSL          bool
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Key             string
}

// S3Extractor reads a CSV object from object storage
type S3Extractor struct {
	cfg    ObjectStoreConfig
	client *minio.Client
	retry  RetryPolicy
	logger *zap.Logger
}

// NewS3Extractor creates a minio client for the endpoint. Without keys
// requests are sent unsigned, which public buckets accept.
func NewS3Extractor(cfg ObjectStoreConfig, retry RetryPolicy, logger *zap.Logger) (*S3Extractor, error) {
	creds := credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	if cfg.AccessKeyID == "" {
		creds = credentials.NewStatic("", "", "", credentials.SignatureAnonymous)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &S3Extractor{
		cfg:    cfg,
		client: client,
		retry:  retry,
		logger: logger.Named("s3-extractor"),
	}, nil
}

// Source returns the s3 URI of the object
func (e *S3Extractor) Source() string {
	return fmt.Sprintf("s3://%s/%s", e.cfg.Bucket, e.cfg.Key)
}

// Extract downloads and parses the CSV object
func (e *S3Extractor) Extract(ctx context.Context) (*model.Table, error) {
	var t *model.Table
	err := withRetry(ctx, e.retry, e.logger, e.Source(), func() error {
		obj, err := e.client.GetObject(ctx, e.cfg.Bucket, e.cfg.Key, minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		defer obj.Close()

		t, err = readCSV(e.cfg.Key, obj)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", e.Source(), err)
	}

	e.logger.Info("Read object",
		zap.String("source", e.Source()),
		zap.Int("columns", t.Width()),
		zap.Int("rows", t.Len()))
	return t, nil
}

// readCSV parses a CSV document with a header line. Blank header names,
// left by exported row indexes, are named "Unnamed: <position>".
func readCSV(name string, r io.Reader) (*model.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV %s is empty", name)
	}

	header := records[0]
	for i, h := range header {
		if h == "" {
			header[i] = fmt.Sprintf("Unnamed: %d", i)
		}
	}

	rows := records[1:]
	for i, rec := range rows {
		if len(rec) < len(header) {
			padded := make([]string, len(header))
			copy(padded, rec)
			rows[i] = padded
		}
	}
	return model.NewTableFromRecords(name, header, rows)
}
