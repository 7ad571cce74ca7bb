// pkg/model/metadata.go
package model

import "strings"

// TableMetadata describes the target table a cleaned dataset is loaded into
type TableMetadata struct {
	Schema      string           // Target schema name (empty for the default schema)
	Table       string           // Target table name
	Columns     []ColumnMetadata // Column definitions in load order
	PrimaryKeys []string         // Primary key column names, if any
}

// ColumnMetadata represents a target column
type ColumnMetadata struct {
	Name         string // Column name
	Kind         Kind   // Semantic type of the cleaned column
	SQLType      string // Mapped SQL type, filled by the converter
	Nullable     bool   // Whether column allows NULL values
	IsPrimaryKey bool   // Whether column is part of primary key
}

// MetadataFor derives target metadata from a cleaned table. A column is
// nullable only if the table actually holds missing cells in it.
func MetadataFor(t *Table, schema, table string) *TableMetadata {
	meta := &TableMetadata{
		Schema:  schema,
		Table:   table,
		Columns: make([]ColumnMetadata, 0, t.Width()),
	}
	for _, c := range t.Columns() {
		meta.Columns = append(meta.Columns, ColumnMetadata{
			Name:     c.Name,
			Kind:     c.Kind,
			Nullable: c.MissingCount() > 0,
		})
	}
	return meta
}

// FullName returns schema.table, or just the table without a schema
func (tm *TableMetadata) FullName() string {
	if tm.Schema == "" {
		return tm.Table
	}
	return tm.Schema + "." + tm.Table
}

// ColumnNames returns the column names in load order
func (tm *TableMetadata) ColumnNames() []string {
	names := make([]string, len(tm.Columns))
	for i, c := range tm.Columns {
		names[i] = c.Name
	}
	return names
}

// GetColumnByName returns a column by name (case-insensitive)
// Returns nil if column not found
func (tm *TableMetadata) GetColumnByName(name string) *ColumnMetadata {
	normalizedName := normalizeColumnName(name)
	for i, col := range tm.Columns {
		if normalizeColumnName(col.Name) == normalizedName {
			return &tm.Columns[i]
		}
	}
	return nil
}

func normalizeColumnName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
