// pkg/extractor/rds.go
package extractor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/connector"
	"github.com/David-Botos/sales-ingress/pkg/converter"
	"github.com/David-Botos/sales-ingress/pkg/model"
)

// TableExtractor reads a whole table from the source database
type TableExtractor struct {
	conn   connector.DatabaseConnector
	table  string
	retry  RetryPolicy
	logger *zap.Logger
}

// NewTableExtractor creates an extractor for table
func NewTableExtractor(conn connector.DatabaseConnector, table string, retry RetryPolicy, logger *zap.Logger) *TableExtractor {
	return &TableExtractor{
		conn:   conn,
		table:  table,
		retry:  retry,
		logger: logger.Named("table-extractor"),
	}
}

// Source returns the table name
func (e *TableExtractor) Source() string {
	return e.table
}

// ListTables lists the tables of the source database
func (e *TableExtractor) ListTables(ctx context.Context) ([]string, error) {
	return e.conn.ListTables(ctx)
}

// Extract reads every row of the table. Cells are rendered as text
// whatever their database type.
func (e *TableExtractor) Extract(ctx context.Context) (*model.Table, error) {
	var t *model.Table
	err := withRetry(ctx, e.retry, e.logger, e.table, func() error {
		var err error
		t, err = e.readTable(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", e.table, err)
	}
	return t, nil
}

func (e *TableExtractor) readTable(ctx context.Context) (*model.Table, error) {
	query := "SELECT * FROM " + converter.QuoteIdentifier(e.table)

	rows, err := e.conn.DB().QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	if types, err := rows.ColumnTypes(); err == nil {
		for _, ct := range types {
			e.logger.Debug("Source column",
				zap.String("table", e.table),
				zap.String("column", ct.Name()),
				zap.String("databaseType", ct.DatabaseTypeName()),
				zap.String("kind", converter.KindForDatabaseType(ct.DatabaseTypeName()).String()))
		}
	}

	var records []map[string]interface{}
	for rows.Next() {
		row := make(map[string]interface{}, len(columns))
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	e.logger.Info("Read source table",
		zap.String("table", e.table),
		zap.Int("columns", len(columns)),
		zap.Int("rows", len(records)))

	return tableFromRecords(e.table, columns, records)
}
