// pkg/cleaner/product.go
package cleaner

import (
	"regexp"
	"strings"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

var productSchema = schema{
	{"product_name", model.KindText, true},
	{"product_price", model.KindFloat, true},
	{"weight_kg", model.KindFloat, true},
	{"category", model.KindText, true},
	{"EAN", model.KindText, true},
	{"date_added", model.KindTimestamp, true},
	{"uuid", model.KindText, true},
	{"still_available", model.KindBool, true},
	{"product_code", model.KindText, true},
}

var productCodePattern = regexp.MustCompile(`^[A-Za-z]\d-[A-Za-z0-9]+$`)

// Availability labels used by the product export. The misspelling is the
// source's.
const (
	labelRemoved        = "Removed"
	labelStillAvailable = "Still_avaliable"
)

// ProductCleaner cleans the products CSV
type ProductCleaner struct {
	parseDate   DateParser
	parseWeight WeightParser
	support     int
}

// NewProductCleaner creates a product cleaner that keeps categories seen
// more than support times
func NewProductCleaner(parseDate DateParser, parseWeight WeightParser, support int) *ProductCleaner {
	return &ProductCleaner{parseDate: parseDate, parseWeight: parseWeight, support: support}
}

func (c *ProductCleaner) Entity() string { return EntityProduct }

// Clean normalises weights to kilograms, strips the currency from prices
// and validates the categorical and identifier columns
func (c *ProductCleaner) Clean(raw *model.Table) (*model.Table, int) {
	work := raw.Clone()
	work.DropColumns("Unnamed: 0", "index")
	work.RenameColumn("weight", "weight_kg")
	work.RenameColumn("removed", "still_available")

	var categories model.FrequencyTable
	if col, ok := raw.Column("category"); ok {
		categories = model.CountValues(col)
	}

	apply(work, "weight_kg", c.normalizeWeight)
	apply(work, "product_price",
		replaceAll("£", ""),
		parseFloat,
	)
	apply(work, "category", keepIf(func(s string) bool {
		return categories.Above(s, c.support)
	}))
	apply(work, "EAN", keepIf(isAllDigits))
	apply(work, "date_added", parseDate(c.parseDate))
	apply(work, "uuid", keepIf(isCanonicalUUID))
	apply(work, "still_available", availability)
	apply(work, "product_code", keepMatching(productCodePattern))

	return finalize(work, raw.Len(), productSchema)
}

func (c *ProductCleaner) normalizeWeight(v model.Value) model.Value {
	if v.IsValid() && v.Kind() == model.KindFloat {
		return v
	}
	kg, ok := c.parseWeight(v.String())
	if !ok {
		return model.Missing()
	}
	return model.Float(kg)
}

// availability maps the export's labels to a boolean, true meaning the
// product is still on sale
func availability(v model.Value) model.Value {
	if v.IsValid() && v.Kind() == model.KindBool {
		return v
	}
	switch strings.TrimSpace(v.String()) {
	case labelRemoved:
		return model.Bool(false)
	case labelStillAvailable:
		return model.Bool(true)
	default:
		return model.Missing()
	}
}
