// pkg/cleaner/operations.go
package cleaner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// op rewrites or invalidates a single present value. Returning
// model.Missing() flags the row for the final drop.
type op func(v model.Value) model.Value

// apply runs each op over the present cells of a column. Columns the
// table lacks are left alone; finalize synthesises them as missing.
func apply(t *model.Table, column string, ops ...op) {
	col, ok := t.Column(column)
	if !ok {
		return
	}
	for i, v := range col.Values {
		for _, fn := range ops {
			if v.IsMissing() {
				break
			}
			v = fn(v)
		}
		col.Values[i] = v
	}
}

// maskRows sets column to missing on every row where invalid returns true
func maskRows(t *model.Table, column string, invalid func(row int) bool) {
	col, ok := t.Column(column)
	if !ok {
		return
	}
	for i := range col.Values {
		if !col.Values[i].IsMissing() && invalid(i) {
			col.Values[i] = model.Missing()
		}
	}
}

// withText replaces the text of v while keeping its state
func withText(v model.Value, s string) model.Value {
	if v.IsValid() {
		return model.Text(s)
	}
	return model.Raw(s)
}

// replaceExact rewrites a value that equals from
func replaceExact(from, to string) op {
	return func(v model.Value) model.Value {
		if v.String() == from {
			return withText(v, to)
		}
		return v
	}
}

// replaceAll rewrites every occurrence of old inside the value
func replaceAll(old, new string) op {
	return func(v model.Value) model.Value {
		s := v.String()
		if !strings.Contains(s, old) {
			return v
		}
		return withText(v, strings.ReplaceAll(s, old, new))
	}
}

// removePattern deletes every match of re from the value
func removePattern(re *regexp.Regexp) op {
	return func(v model.Value) model.Value {
		s := v.String()
		if !re.MatchString(s) {
			return v
		}
		return withText(v, re.ReplaceAllString(s, ""))
	}
}

// keepIf invalidates values failing pred
func keepIf(pred func(s string) bool) op {
	return func(v model.Value) model.Value {
		if !pred(v.String()) {
			return model.Missing()
		}
		return v
	}
}

// keepMatching invalidates values with no match for re
func keepMatching(re *regexp.Regexp) op {
	return keepIf(re.MatchString)
}

// parseDate converts text to a timestamp, keeping values that already are one
func parseDate(parse DateParser) op {
	return func(v model.Value) model.Value {
		if v.IsValid() && v.Kind() == model.KindTimestamp {
			return v
		}
		t, ok := parse(v.String())
		if !ok {
			return model.Missing()
		}
		return model.Timestamp(t)
	}
}

// parseFloat converts text to a float, keeping values that already are one
func parseFloat(v model.Value) model.Value {
	if v.IsValid() && v.Kind() == model.KindFloat {
		return v
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
	if err != nil {
		return model.Missing()
	}
	return model.Float(f)
}

var (
	nonDigits = regexp.MustCompile(`\D`)
	allDigits = regexp.MustCompile(`^\d+$`)
)

func isAllDigits(s string) bool {
	return allDigits.MatchString(s)
}

// isCanonicalUUID accepts only the 8-4-4-4-12 hexadecimal form
func isCanonicalUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// intInRange reports whether s is an integer within [lo, hi]
func intInRange(s string, lo, hi int64) bool {
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return false
	}
	return i >= lo && i <= hi
}
