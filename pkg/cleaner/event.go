// pkg/cleaner/event.go
package cleaner

import (
	"fmt"
	"regexp"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

var eventSchema = schema{
	{"timestamp", model.KindText, true},
	{"day", model.KindInt, true},
	{"month", model.KindInt, true},
	{"year", model.KindInt, true},
	{"time_period", model.KindText, true},
	{"date_uuid", model.KindText, true},
	{"date", model.KindTimestamp, true},
}

var (
	clockPattern = regexp.MustCompile(`\d{2}:\d{2}:\d{2}`)
	dayPattern   = regexp.MustCompile(`^\d{1,2}$`)
	yearPattern  = regexp.MustCompile(`^\d{4}$`)
)

// EventCleaner cleans the sale event time dimension
type EventCleaner struct {
	parseDate DateParser
	support   int
}

// NewEventCleaner creates an event cleaner that keeps time periods seen
// more than support times
func NewEventCleaner(parseDate DateParser, support int) *EventCleaner {
	return &EventCleaner{parseDate: parseDate, support: support}
}

func (c *EventCleaner) Entity() string { return EntityEvent }

// Clean validates the clock, calendar and period fields and derives a
// single date timestamp from them
func (c *EventCleaner) Clean(raw *model.Table) (*model.Table, int) {
	work := raw.Clone()

	var periods model.FrequencyTable
	if col, ok := raw.Column("time_period"); ok {
		periods = model.CountValues(col)
	}

	apply(work, "timestamp", keepMatching(clockPattern))
	apply(work, "day", keepIf(func(s string) bool {
		return dayPattern.MatchString(s) && intInRange(s, 1, 31)
	}))
	apply(work, "month", keepIf(func(s string) bool {
		return dayPattern.MatchString(s) && intInRange(s, 1, 12)
	}))
	apply(work, "year", keepMatching(yearPattern))
	apply(work, "time_period", keepIf(func(s string) bool {
		return periods.Above(s, c.support)
	}))
	apply(work, "date_uuid", keepIf(isCanonicalUUID))

	work.DropColumns("date")
	_ = work.AddColumn("date", model.KindTimestamp, c.deriveDates(work))

	return finalize(work, raw.Len(), eventSchema)
}

// deriveDates combines year, month, day and timestamp into one timestamp
// per row
func (c *EventCleaner) deriveDates(work *model.Table) []model.Value {
	out := make([]model.Value, work.Len())
	parts := make([]*model.Column, 0, 4)
	for _, name := range []string{"year", "month", "day", "timestamp"} {
		col, ok := work.Column(name)
		if !ok {
			return out
		}
		parts = append(parts, col)
	}

	for r := range out {
		year, month, day, clock := parts[0].Values[r], parts[1].Values[r], parts[2].Values[r], parts[3].Values[r]
		if year.IsMissing() || month.IsMissing() || day.IsMissing() || clock.IsMissing() {
			continue
		}
		t, ok := c.parseDate(fmt.Sprintf("%s-%s-%s %s", year, month, day, clock))
		if !ok {
			continue
		}
		out[r] = model.Timestamp(t)
	}
	return out
}
