// pkg/cleaner/order.go
package cleaner

import (
	"github.com/David-Botos/sales-ingress/pkg/model"
)

var orderSchema = schema{
	{"date_uuid", model.KindText, true},
	{"user_uuid", model.KindText, true},
	{"card_number", model.KindText, true},
	{"store_code", model.KindText, true},
	{"product_code", model.KindText, true},
	{"product_quantity", model.KindInt, true},
}

// orderEchoColumns are positional and personal columns carried over from
// the source export
var orderEchoColumns = []string{"level_0", "index", "first_name", "last_name", "1"}

// OrderCleaner cleans the orders fact table
type OrderCleaner struct{}

// NewOrderCleaner creates an order cleaner
func NewOrderCleaner() *OrderCleaner {
	return &OrderCleaner{}
}

func (c *OrderCleaner) Entity() string { return EntityOrder }

// Clean removes echo columns and casts identifiers to text
func (c *OrderCleaner) Clean(raw *model.Table) (*model.Table, int) {
	work := raw.Clone()
	work.DropColumns(orderEchoColumns...)
	return finalize(work, raw.Len(), orderSchema)
}
