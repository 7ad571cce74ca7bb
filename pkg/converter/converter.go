// pkg/converter/converter.go
package converter

import (
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// Dialect selects the SQL flavour of the target database
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DialectForDriver maps a database/sql driver name to its dialect
func DialectForDriver(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("no SQL dialect for driver %q", driver)
	}
}

// TypeConverter handles mapping and conversion of data types and values
type TypeConverter struct {
	logger  *zap.Logger
	dialect Dialect
	config  TypeConverterConfig
	loc     *time.Location
}

// TypeConverterConfig provides configuration options for type conversion
type TypeConverterConfig struct {
	// Store timestamps without a clock part as DATE (postgres only)
	DateOnlyAsDate bool
	// Timezone timestamps are converted to before loading
	DefaultTimezone string
}

// DefaultConfig returns the default configuration
func DefaultConfig() TypeConverterConfig {
	return TypeConverterConfig{
		DateOnlyAsDate:  true,
		DefaultTimezone: "UTC",
	}
}

// NewTypeConverter creates a new TypeConverter with default configuration
func NewTypeConverter(logger *zap.Logger, dialect Dialect) *TypeConverter {
	return NewTypeConverterWithConfig(logger, dialect, DefaultConfig())
}

// NewTypeConverterWithConfig creates a TypeConverter with custom configuration
func NewTypeConverterWithConfig(logger *zap.Logger, dialect Dialect, config TypeConverterConfig) *TypeConverter {
	c := &TypeConverter{
		logger:  logger,
		dialect: dialect,
		config:  config,
	}
	if config.DefaultTimezone != "" {
		loc, err := time.LoadLocation(config.DefaultTimezone)
		if err != nil {
			logger.Warn("Unknown timezone, keeping timestamps as parsed",
				zap.String("timezone", config.DefaultTimezone),
				zap.Error(err))
		} else {
			c.loc = loc
		}
	}
	return c
}

// Dialect returns the converter's SQL dialect
func (c *TypeConverter) Dialect() Dialect {
	return c.dialect
}

// SQLType returns the column type used for kind
func (c *TypeConverter) SQLType(kind model.Kind) string {
	if c.dialect == DialectSQLite {
		switch kind {
		case model.KindInt, model.KindBool:
			return "INTEGER"
		case model.KindFloat:
			return "REAL"
		default:
			return "TEXT"
		}
	}

	switch kind {
	case model.KindInt:
		return "BIGINT"
	case model.KindFloat:
		return "DOUBLE PRECISION"
	case model.KindBool:
		return "BOOLEAN"
	case model.KindTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// Describe builds the target metadata of a clean table, filling in SQL
// types. Timestamp columns without any clock part become DATE when
// configured to.
func (c *TypeConverter) Describe(t *model.Table, schema, table string) *model.TableMetadata {
	meta := model.MetadataFor(t, schema, table)
	for i := range meta.Columns {
		col := &meta.Columns[i]
		col.SQLType = c.SQLType(col.Kind)

		if c.dialect == DialectPostgres && c.config.DateOnlyAsDate && col.Kind == model.KindTimestamp {
			if data, ok := t.Column(col.Name); ok && isDateOnly(data) {
				col.SQLType = "DATE"
			}
		}
	}
	return meta
}

// GenerateColumnDefinitions creates column definitions for CREATE TABLE
func (c *TypeConverter) GenerateColumnDefinitions(metadata *model.TableMetadata) ([]string, error) {
	definitions := make([]string, 0, len(metadata.Columns))

	for _, col := range metadata.Columns {
		sqlType := col.SQLType
		if sqlType == "" {
			sqlType = c.SQLType(col.Kind)
		}

		nullability := "NULL"
		if col.IsPrimaryKey || !col.Nullable {
			nullability = "NOT NULL"
		}

		definitions = append(definitions, fmt.Sprintf("%s %s %s", QuoteIdentifier(col.Name), sqlType, nullability))
	}

	if len(definitions) == 0 {
		return nil, fmt.Errorf("table %s has no columns", metadata.FullName())
	}
	return definitions, nil
}

// QuoteIdentifier quotes and escapes an identifier. Case is preserved.
func QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

// QuoteTable quotes a possibly schema qualified table name
func QuoteTable(metadata *model.TableMetadata) string {
	if metadata.Schema == "" {
		return QuoteIdentifier(metadata.Table)
	}
	return QuoteIdentifier(metadata.Schema) + "." + QuoteIdentifier(metadata.Table)
}

// QuoteColumns quotes each column name and joins them with commas
func QuoteColumns(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

func isDateOnly(col *model.Column) bool {
	seen := false
	for _, v := range col.Values {
		if v.IsMissing() {
			continue
		}
		t := v.TimeValue()
		if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
			return false
		}
		seen = true
	}
	return seen
}
