// pkg/cleaner/store.go
package cleaner

import (
	"github.com/David-Botos/sales-ingress/pkg/model"
)

// WebPortal is the online store type, accepted however rarely it occurs
const WebPortal = "Web Portal"

var storeSchema = schema{
	{"store_code", model.KindText, false},
	{"store_type", model.KindText, true},
	{"staff_numbers", model.KindInt, false},
	{"locality", model.KindText, false},
	{"address", model.KindText, false},
	{"country_code", model.KindText, false},
	{"continent", model.KindText, false},
	{"longitude", model.KindFloat, false},
	{"latitude", model.KindFloat, false},
	{"opening_date", model.KindTimestamp, false},
}

// StoreCleaner cleans store details fetched from the stores API
type StoreCleaner struct {
	parseDate DateParser
	support   int
}

// NewStoreCleaner creates a store cleaner that keeps store types seen at
// least support times
func NewStoreCleaner(parseDate DateParser, support int) *StoreCleaner {
	return &StoreCleaner{parseDate: parseDate, support: support}
}

func (c *StoreCleaner) Entity() string { return EntityStore }

// Clean drops the sparse lat column, filters rare store types and repairs
// staff numbers and continents
func (c *StoreCleaner) Clean(raw *model.Table) (*model.Table, int) {
	work := raw.Clone()
	work.DropColumns("lat", "index")

	var types model.FrequencyTable
	if col, ok := raw.Column("store_type"); ok {
		types = model.CountValues(col)
	}

	apply(work, "store_type", keepIf(func(s string) bool {
		return s == WebPortal || types.AtLeast(s, c.support)
	}))
	apply(work, "staff_numbers",
		removePattern(nonDigits),
		keepIf(isAllDigits),
	)
	apply(work, "opening_date", parseDate(c.parseDate))
	apply(work, "continent", replaceAll("ee", ""))
	apply(work, "longitude", parseFloat)
	apply(work, "latitude", parseFloat)

	return finalize(work, raw.Len(), storeSchema)
}
