// pkg/converter/mapping.go
package converter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// Patterns for type extraction
var precisionScalePattern = regexp.MustCompile(`(?:NUMBER|NUMERIC|DECIMAL)\((\d+)(?:,\s*(\d+))?\)`)

// getBaseType extracts the base type from a complex type definition
func getBaseType(fullType string) string {
	parts := strings.Split(fullType, "(")
	return strings.TrimSpace(parts[0])
}

// KindForDatabaseType maps a source column type, as reported by
// sql.ColumnType.DatabaseTypeName, to the kind its values most likely
// carry. Unknown types map to text.
func KindForDatabaseType(dbType string) model.Kind {
	dbType = strings.ToUpper(strings.TrimSpace(dbType))

	switch getBaseType(dbType) {
	case "INT", "INT2", "INT4", "INT8", "INTEGER", "SMALLINT", "BIGINT", "SERIAL", "BIGSERIAL":
		return model.KindInt
	case "FLOAT", "FLOAT4", "FLOAT8", "REAL", "DOUBLE", "DOUBLE PRECISION", "FIXED":
		return model.KindFloat
	case "NUMBER", "NUMERIC", "DECIMAL":
		return numberKind(dbType)
	case "BOOL", "BOOLEAN":
		return model.KindBool
	case "DATE", "TIMESTAMP", "TIMESTAMPTZ", "TIMESTAMP_NTZ", "TIMESTAMP_TZ", "TIMESTAMP_LTZ",
		"TIMESTAMP WITH TIME ZONE", "TIMESTAMP WITHOUT TIME ZONE", "DATETIME":
		return model.KindTimestamp
	default:
		return model.KindText
	}
}

// numberKind treats NUMBER(p, 0) as an integer and anything with a scale,
// or no precision at all, as a float
func numberKind(fullType string) model.Kind {
	matches := precisionScalePattern.FindStringSubmatch(fullType)
	if len(matches) < 2 {
		return model.KindFloat
	}

	scale := 0
	if len(matches) > 2 && matches[2] != "" {
		var err error
		scale, err = strconv.Atoi(matches[2])
		if err != nil {
			return model.KindFloat
		}
	}

	if scale == 0 {
		return model.KindInt
	}
	return model.KindFloat
}
