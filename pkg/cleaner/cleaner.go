// pkg/cleaner/cleaner.go
package cleaner

import (
	"time"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// Entity names, one per cleaner
const (
	EntityUser    = "user"
	EntityCard    = "card"
	EntityStore   = "store"
	EntityProduct = "product"
	EntityOrder   = "order"
	EntityEvent   = "event"
)

// Cleaner turns a raw table snapshot into a clean one. Implementations
// never modify raw and report how many rows they dropped.
type Cleaner interface {
	Entity() string
	Clean(raw *model.Table) (*model.Table, int)
}

// DateParser interprets free-form text as a timestamp, reporting false
// instead of failing
type DateParser func(s string) (time.Time, bool)

// WeightParser converts a weight expression to kilograms, reporting
// false when it cannot
type WeightParser func(s string) (float64, bool)

// Options carries the per-entity thresholds and the shared parsers
type Options struct {
	CardProviderSupport int // card_provider kept when count > this
	StoreTypeSupport    int // store_type kept when count >= this
	CategorySupport     int // category kept when count > this
	TimePeriodSupport   int // time_period kept when count > this

	// CardLengths maps a provider to its accepted card number lengths.
	// When nil and CardLengthSupport is positive the accepted lengths are
	// derived from the data instead. Both unset disables the length check.
	CardLengths       map[string][]int
	CardLengthSupport int

	ParseDate   DateParser
	ParseWeight WeightParser
}

// DefaultOptions returns the thresholds observed on the sales datasets
func DefaultOptions() Options {
	return Options{
		CardProviderSupport: 12,
		StoreTypeSupport:    4,
		CategorySupport:     1,
		TimePeriodSupport:   15,
		ParseDate:           SafeParse,
		ParseWeight:         NormalizeWeight,
	}
}

func (o Options) withDefaults() Options {
	if o.ParseDate == nil {
		o.ParseDate = SafeParse
	}
	if o.ParseWeight == nil {
		o.ParseWeight = NormalizeWeight
	}
	return o
}

// Registry holds one cleaner per entity
type Registry struct {
	cleaners map[string]Cleaner
	order    []string
}

// NewRegistry builds all six entity cleaners from opts
func NewRegistry(opts Options) *Registry {
	opts = opts.withDefaults()

	r := &Registry{cleaners: make(map[string]Cleaner)}
	r.register(NewUserCleaner(opts.ParseDate))
	r.register(NewCardCleaner(opts))
	r.register(NewStoreCleaner(opts.ParseDate, opts.StoreTypeSupport))
	r.register(NewProductCleaner(opts.ParseDate, opts.ParseWeight, opts.CategorySupport))
	r.register(NewOrderCleaner())
	r.register(NewEventCleaner(opts.ParseDate, opts.TimePeriodSupport))
	return r
}

func (r *Registry) register(c Cleaner) {
	r.cleaners[c.Entity()] = c
	r.order = append(r.order, c.Entity())
}

// Get returns the cleaner for an entity
func (r *Registry) Get(entity string) (Cleaner, bool) {
	c, ok := r.cleaners[entity]
	return c, ok
}

// Entities returns the registered entity names in pipeline order
func (r *Registry) Entities() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// columnSpec is one canonical output column
type columnSpec struct {
	name     string
	kind     model.Kind
	required bool
}

// schema is the canonical column list of an entity, in output order
type schema []columnSpec

func (s schema) names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.name
	}
	return out
}

// finalize projects the working table to the canonical columns, casts
// every column to its kind and drops rows with a missing required field
func finalize(work *model.Table, rowsIn int, s schema) (*model.Table, int) {
	out := work.Project(s.names())

	for _, spec := range s {
		col, _ := out.Column(spec.name)
		for i, v := range col.Values {
			col.Values[i] = v.As(spec.kind)
		}
		col.Kind = spec.kind
	}

	clean := out.Filter(func(r int) bool {
		for _, spec := range s {
			if !spec.required {
				continue
			}
			col, _ := out.Column(spec.name)
			if col.Values[r].IsMissing() {
				return false
			}
		}
		return true
	})

	return clean, rowsIn - clean.Len()
}
