package converter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

func cleanTable(t *testing.T) *model.Table {
	t.Helper()
	tbl := model.NewTable("dim_products")
	require.NoError(t, tbl.AddColumn("EAN", model.KindText, []model.Value{model.Text("123"), model.Text("456")}))
	require.NoError(t, tbl.AddColumn("weight_kg", model.KindFloat, []model.Value{model.Float(1.2), model.Missing()}))
	require.NoError(t, tbl.AddColumn("still_available", model.KindBool, []model.Value{model.Bool(true), model.Bool(false)}))
	require.NoError(t, tbl.AddColumn("date_added", model.KindTimestamp, []model.Value{
		model.Timestamp(time.Date(2018, 10, 22, 0, 0, 0, 0, time.UTC)),
		model.Timestamp(time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC)),
	}))
	require.NoError(t, tbl.AddColumn("quantity", model.KindInt, []model.Value{model.Int(3), model.Int(4)}))
	return tbl
}

func TestDescribeAndColumnDefinitions(t *testing.T) {
	c := NewTypeConverter(zap.NewNop(), DialectPostgres)
	meta := c.Describe(cleanTable(t), "public", "dim_products")

	defs, err := c.GenerateColumnDefinitions(meta)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`"EAN" TEXT NOT NULL`,
		`"weight_kg" DOUBLE PRECISION NULL`,
		`"still_available" BOOLEAN NOT NULL`,
		`"date_added" DATE NOT NULL`,
		`"quantity" BIGINT NOT NULL`,
	}, defs)
	assert.Equal(t, `"public"."dim_products"`, QuoteTable(meta))
	assert.Equal(t, `"EAN", "weight_kg"`, QuoteColumns([]string{"EAN", "weight_kg"}))

	lite := NewTypeConverter(zap.NewNop(), DialectSQLite)
	defs, err = lite.GenerateColumnDefinitions(lite.Describe(cleanTable(t), "", "dim_products"))
	require.NoError(t, err)
	assert.Equal(t, `"still_available" INTEGER NOT NULL`, defs[2])
	assert.Equal(t, `"date_added" TEXT NOT NULL`, defs[3])

	_, err = c.GenerateColumnDefinitions(&model.TableMetadata{Table: "empty"})
	assert.Error(t, err)
}

func TestConvertRow(t *testing.T) {
	tbl := cleanTable(t)

	pg := NewTypeConverter(zap.NewNop(), DialectPostgres)
	row, err := pg.ConvertRow(tbl, 1)
	require.NoError(t, err)
	assert.Equal(t, "456", row[0])
	assert.Nil(t, row[1])
	assert.Equal(t, false, row[2])
	assert.IsType(t, time.Time{}, row[3])
	assert.Equal(t, int64(4), row[4])

	lite := NewTypeConverter(zap.NewNop(), DialectSQLite)
	row, err = lite.ConvertRow(tbl, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), row[2])
	assert.Equal(t, "2018-10-22", row[3])

	_, err = pg.ConvertValue(model.Raw("pending"), "x")
	assert.Error(t, err)
}

func TestDialectForDriver(t *testing.T) {
	d, err := DialectForDriver("pgx")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d)

	d, err = DialectForDriver("sqlite")
	require.NoError(t, err)
	assert.Equal(t, DialectSQLite, d)

	_, err = DialectForDriver("snowflake")
	assert.Error(t, err)
}

func TestKindForDatabaseType(t *testing.T) {
	tests := map[string]model.Kind{
		"INT8":          model.KindInt,
		"NUMBER(38,0)":  model.KindInt,
		"NUMBER(10,2)":  model.KindFloat,
		"NUMERIC":       model.KindFloat,
		"FLOAT8":        model.KindFloat,
		"bool":          model.KindBool,
		"TIMESTAMP_NTZ": model.KindTimestamp,
		"DATE":          model.KindTimestamp,
		"VARCHAR(255)":  model.KindText,
		"UUID":          model.KindText,
	}
	for in, want := range tests {
		assert.Equal(t, want, KindForDatabaseType(in), in)
	}
}
