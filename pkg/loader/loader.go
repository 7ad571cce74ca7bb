// pkg/loader/loader.go
package loader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/connector"
	"github.com/David-Botos/sales-ingress/pkg/converter"
	"github.com/David-Botos/sales-ingress/pkg/model"
)

// sqliteMaxVariables is the default bound parameter limit of SQLite
const sqliteMaxVariables = 32766

// Loader writes clean tables into the target database, replacing any
// existing table of the same name
type Loader struct {
	target    connector.DatabaseConnector
	converter *converter.TypeConverter
	schema    string
	batchSize int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewLoader creates a loader for the target connector. Postgres targets
// load into the public schema.
func NewLoader(target connector.DatabaseConnector, typeConverter *converter.TypeConverter, logger *zap.Logger) *Loader {
	schema := ""
	if typeConverter.Dialect() == converter.DialectPostgres {
		schema = "public"
	}
	return &Loader{
		target:    target,
		converter: typeConverter,
		schema:    schema,
		batchSize: 500,
		timeout:   10 * time.Minute,
		logger:    logger.Named("loader"),
	}
}

// WithSchema sets the target schema
func (l *Loader) WithSchema(schema string) *Loader {
	l.schema = schema
	return l
}

// WithBatchSize sets the number of rows per INSERT statement
func (l *Loader) WithBatchSize(batchSize int) *Loader {
	if batchSize > 0 {
		l.batchSize = batchSize
	}
	return l
}

// Schema returns the target schema, empty for the default one
func (l *Loader) Schema() string {
	return l.schema
}

// Replace drops the target table if it exists, recreates it from the
// clean table's columns and bulk loads every row in one transaction.
// It returns the number of rows written.
func (l *Loader) Replace(ctx context.Context, t *model.Table, table string) (int64, error) {
	meta := l.converter.Describe(t, l.schema, table)
	columnDefs, err := l.converter.GenerateColumnDefinitions(meta)
	if err != nil {
		return 0, fmt.Errorf("failed to generate column definitions: %w", err)
	}

	loadCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	tx, err := l.target.DB().BeginTxx(loadCtx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				l.logger.Error("Failed to rollback transaction",
					zap.String("table", meta.FullName()),
					zap.Error(rbErr))
			}
		}
	}()

	quoted := converter.QuoteTable(meta)
	if _, err = tx.ExecContext(loadCtx, "DROP TABLE IF EXISTS "+quoted); err != nil {
		return 0, fmt.Errorf("failed to drop table %s: %w", meta.FullName(), err)
	}

	createTableQuery := fmt.Sprintf("CREATE TABLE %s (%s)", quoted, strings.Join(columnDefs, ", "))
	if _, err = tx.ExecContext(loadCtx, createTableQuery); err != nil {
		return 0, fmt.Errorf("failed to create table %s: %w", meta.FullName(), err)
	}

	var written int64
	if l.converter.Dialect() == converter.DialectPostgres {
		written, err = l.copyRows(loadCtx, tx, meta, t)
	} else {
		written, err = l.insertRows(loadCtx, tx, meta, t)
	}
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	l.logger.Info("Replaced target table",
		zap.String("table", meta.FullName()),
		zap.Int("columns", len(meta.Columns)),
		zap.Int64("rows", written))

	return written, nil
}

// copyRows streams the rows through COPY FROM STDIN
func (l *Loader) copyRows(ctx context.Context, tx *sqlx.Tx, meta *model.TableMetadata, t *model.Table) (int64, error) {
	copySQL := pq.CopyIn(meta.Table, meta.ColumnNames()...)
	if meta.Schema != "" {
		copySQL = pq.CopyInSchema(meta.Schema, meta.Table, meta.ColumnNames()...)
	}

	stmt, err := tx.PrepareContext(ctx, copySQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare COPY statement: %w", err)
	}
	defer stmt.Close()

	var written int64
	for r := 0; r < t.Len(); r++ {
		args, err := l.converter.ConvertRow(t, r)
		if err != nil {
			return written, fmt.Errorf("failed to convert row: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return written, fmt.Errorf("failed to copy row %d: %w", r, err)
		}
		written++
	}

	// An argument-less Exec flushes the COPY buffer
	if _, err := stmt.ExecContext(ctx); err != nil {
		return written, fmt.Errorf("failed to flush COPY: %w", err)
	}
	return written, nil
}

// insertRows writes multi-row INSERT statements of at most batchSize rows
func (l *Loader) insertRows(ctx context.Context, tx *sqlx.Tx, meta *model.TableMetadata, t *model.Table) (int64, error) {
	width := len(meta.Columns)
	batchSize := l.determineBatchSize(width)

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", converter.QuoteTable(meta), converter.QuoteColumns(meta.ColumnNames()))

	var written int64
	for start := 0; start < t.Len(); start += batchSize {
		end := start + batchSize
		if end > t.Len() {
			end = t.Len()
		}

		tuples := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*width)
		for r := start; r < end; r++ {
			row, err := l.converter.ConvertRow(t, r)
			if err != nil {
				return written, fmt.Errorf("failed to convert row: %w", err)
			}
			tuples = append(tuples, placeholder)
			args = append(args, row...)
		}

		query := tx.Rebind(prefix + strings.Join(tuples, ", "))
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return written, fmt.Errorf("failed to insert rows %d-%d: %w", start, end-1, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = int64(end - start)
		}
		written += n

		l.logger.Debug("Inserted batch",
			zap.String("table", meta.FullName()),
			zap.Int("from", start),
			zap.Int("to", end-1))
	}
	return written, nil
}

// determineBatchSize keeps a batch under the bound parameter limit
func (l *Loader) determineBatchSize(width int) int {
	if width == 0 {
		return l.batchSize
	}
	limit := sqliteMaxVariables / width
	if limit < 1 {
		limit = 1
	}
	if l.batchSize < limit {
		return l.batchSize
	}
	return limit
}

// RowCount returns the number of rows currently in a target table
func (l *Loader) RowCount(ctx context.Context, table string) (int64, error) {
	meta := &model.TableMetadata{Schema: l.schema, Table: table}
	query := "SELECT COUNT(*) FROM " + converter.QuoteTable(meta)

	var count int64
	if err := l.target.DB().GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", meta.FullName(), err)
	}
	return count, nil
}
