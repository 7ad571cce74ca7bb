// pkg/converter/values.go
package converter

import (
	"fmt"
	"time"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// ConvertValue converts a clean cell into a driver argument for the
// target dialect. Missing cells become NULL.
func (c *TypeConverter) ConvertValue(v model.Value, colName string) (interface{}, error) {
	if v.IsMissing() {
		return nil, nil
	}
	if !v.IsValid() {
		return nil, fmt.Errorf("column %s holds an unvalidated value %q", colName, v.String())
	}

	switch v.Kind() {
	case model.KindInt:
		return v.IntValue(), nil
	case model.KindFloat:
		return v.FloatValue(), nil
	case model.KindBool:
		return c.convertBool(v.BoolValue()), nil
	case model.KindTimestamp:
		return c.convertTimestamp(v.TimeValue()), nil
	case model.KindText:
		return v.String(), nil
	default:
		return nil, fmt.Errorf("column %s has unsupported kind %s", colName, v.Kind())
	}
}

// ConvertRow converts row r of t into driver arguments in column order
func (c *TypeConverter) ConvertRow(t *model.Table, r int) ([]interface{}, error) {
	cols := t.Columns()
	out := make([]interface{}, len(cols))
	for i, col := range cols {
		arg, err := c.ConvertValue(col.Values[r], col.Name)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r, err)
		}
		out[i] = arg
	}
	return out, nil
}

func (c *TypeConverter) convertBool(b bool) interface{} {
	if c.dialect == DialectSQLite {
		if b {
			return int64(1)
		}
		return int64(0)
	}
	return b
}

func (c *TypeConverter) convertTimestamp(t time.Time) interface{} {
	if c.loc != nil {
		t = t.In(c.loc)
	}
	if c.dialect == DialectSQLite {
		return model.FormatTime(t)
	}
	return t
}
