// pkg/model/table.go
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the semantic type tag carried by every column
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTimestamp
)

// String returns the name of the kind
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	case KindTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// State describes where a cell is in the cleaning lifecycle
type State uint8

const (
	// StateMissing marks an absent or unrepairable value
	StateMissing State = iota
	// StatePending marks raw source text that has not been validated yet
	StatePending
	// StateValid marks a typed value in canonical form
	StateValid
)

// Canonical text layouts used when rendering and re-reading timestamps
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Value is a single cell. The zero Value is missing.
type Value struct {
	state State
	kind  Kind
	text  string
	i     int64
	f     float64
	b     bool
	t     time.Time
}

// Missing returns the missing-value marker
func Missing() Value {
	return Value{}
}

// Raw wraps untyped source text awaiting repair
func Raw(s string) Value {
	return Value{state: StatePending, kind: KindText, text: s}
}

// Text returns a valid text value
func Text(s string) Value {
	return Value{state: StateValid, kind: KindText, text: s}
}

// Int returns a valid integer value
func Int(i int64) Value {
	return Value{state: StateValid, kind: KindInt, i: i}
}

// Float returns a valid floating point value
func Float(f float64) Value {
	return Value{state: StateValid, kind: KindFloat, f: f}
}

// Bool returns a valid boolean value
func Bool(b bool) Value {
	return Value{state: StateValid, kind: KindBool, b: b}
}

// Timestamp returns a valid timestamp value
func Timestamp(t time.Time) Value {
	return Value{state: StateValid, kind: KindTimestamp, t: t}
}

func (v Value) State() State    { return v.state }
func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsMissing() bool { return v.state == StateMissing }
func (v Value) IsPending() bool { return v.state == StatePending }
func (v Value) IsValid() bool   { return v.state == StateValid }

// IntValue returns the integer payload (zero unless Kind is KindInt)
func (v Value) IntValue() int64 { return v.i }

// FloatValue returns the float payload (zero unless Kind is KindFloat)
func (v Value) FloatValue() float64 { return v.f }

// BoolValue returns the boolean payload (false unless Kind is KindBool)
func (v Value) BoolValue() bool { return v.b }

// TimeValue returns the timestamp payload (zero unless Kind is KindTimestamp)
func (v Value) TimeValue() time.Time { return v.t }

// String renders the value as text. Missing values render as "".
func (v Value) String() string {
	if v.state == StateMissing {
		return ""
	}
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTimestamp:
		return FormatTime(v.t)
	default:
		return v.text
	}
}

// Interface returns the Go representation of the value, nil when missing
func (v Value) Interface() interface{} {
	if v.state == StateMissing {
		return nil
	}
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindTimestamp:
		return v.t
	default:
		return v.text
	}
}

// Equal reports whether two values have the same state, kind and payload
func (v Value) Equal(o Value) bool {
	if v.state != o.state {
		return false
	}
	if v.state == StateMissing {
		return true
	}
	if v.kind != o.kind {
		return false
	}
	if v.kind == KindTimestamp {
		return v.t.Equal(o.t)
	}
	return v.String() == o.String()
}

// As casts the value to kind k. Anything that cannot be represented
// in k comes back missing.
func (v Value) As(k Kind) Value {
	if v.state == StateMissing {
		return v
	}
	if v.state == StateValid && v.kind == k {
		return v
	}

	s := strings.TrimSpace(v.String())
	switch k {
	case KindText:
		return Text(v.String())
	case KindInt:
		if v.kind == KindFloat && v.state == StateValid {
			if v.f != float64(int64(v.f)) {
				return Missing()
			}
			return Int(int64(v.f))
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Missing()
		}
		return Int(i)
	case KindFloat:
		if v.kind == KindInt && v.state == StateValid {
			return Float(float64(v.i))
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Missing()
		}
		return Float(f)
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Missing()
		}
		return Bool(b)
	case KindTimestamp:
		t, ok := ParseCanonicalTime(s)
		if !ok {
			return Missing()
		}
		return Timestamp(t)
	default:
		return Missing()
	}
}

// FormatTime renders dates without a clock part as DateLayout
func FormatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(DateLayout)
	}
	return t.Format(DateTimeLayout)
}

// ParseCanonicalTime reads back the layouts produced by FormatTime
func ParseCanonicalTime(s string) (time.Time, bool) {
	for _, layout := range []string{DateTimeLayout, DateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Column is a named, typed sequence of cells
type Column struct {
	Name   string
	Kind   Kind
	Values []Value
}

// MissingCount returns the number of missing cells
func (c *Column) MissingCount() int {
	n := 0
	for _, v := range c.Values {
		if v.IsMissing() {
			n++
		}
	}
	return n
}

// Table is an ordered set of equally long columns. Row order is the
// source insertion order.
type Table struct {
	Name    string
	columns []*Column
	index   map[string]int
	rows    int
}

// NewTable creates an empty table
func NewTable(name string) *Table {
	return &Table{
		Name:  name,
		index: make(map[string]int),
	}
}

// NewTableFromRecords builds a table of raw text cells from a header and
// string records. Empty cells become missing.
func NewTableFromRecords(name string, header []string, records [][]string) (*Table, error) {
	t := NewTable(name)
	for i, h := range header {
		values := make([]Value, len(records))
		for r, rec := range records {
			if i >= len(rec) {
				return nil, fmt.Errorf("record %d has %d fields, header has %d", r, len(rec), len(header))
			}
			if rec[i] == "" {
				values[r] = Missing()
			} else {
				values[r] = Raw(rec[i])
			}
		}
		if err := t.AddColumn(h, KindText, values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddColumn appends a column. All columns must have the same length.
func (t *Table) AddColumn(name string, kind Kind, values []Value) error {
	if _, exists := t.index[name]; exists {
		return fmt.Errorf("column %q already exists in table %s", name, t.Name)
	}
	if len(t.columns) > 0 && len(values) != t.rows {
		return fmt.Errorf("column %q has %d rows, table %s has %d", name, len(values), t.Name, t.rows)
	}
	t.index[name] = len(t.columns)
	t.columns = append(t.columns, &Column{Name: name, Kind: kind, Values: values})
	t.rows = len(values)
	return nil
}

// Column looks up a column by name
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// HasColumn reports whether the table has a column called name
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Columns returns the columns in order
func (t *Table) Columns() []*Column {
	return t.columns
}

// ColumnNames returns the column names in order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of rows
func (t *Table) Len() int {
	return t.rows
}

// Width returns the number of columns
func (t *Table) Width() int {
	return len(t.columns)
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	out := NewTable(t.Name)
	for _, c := range t.columns {
		values := make([]Value, len(c.Values))
		copy(values, c.Values)
		_ = out.AddColumn(c.Name, c.Kind, values)
	}
	out.rows = t.rows
	return out
}

// DropColumns removes the named columns that exist and returns how many were removed
func (t *Table) DropColumns(names ...string) int {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	kept := t.columns[:0]
	removed := 0
	for _, c := range t.columns {
		if drop[c.Name] {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	t.columns = kept
	t.reindex()
	if len(t.columns) == 0 {
		t.rows = 0
	}
	return removed
}

// RenameColumn renames a column, returning false if it does not exist
// or the new name is taken
func (t *Table) RenameColumn(from, to string) bool {
	i, ok := t.index[from]
	if !ok {
		return false
	}
	if _, taken := t.index[to]; taken {
		return false
	}
	t.columns[i].Name = to
	t.reindex()
	return true
}

// Project returns a new table holding the named columns in the given order.
// Names the table lacks are synthesised as all-missing text columns.
func (t *Table) Project(names []string) *Table {
	out := NewTable(t.Name)
	for _, n := range names {
		if c, ok := t.Column(n); ok {
			values := make([]Value, len(c.Values))
			copy(values, c.Values)
			_ = out.AddColumn(n, c.Kind, values)
			continue
		}
		_ = out.AddColumn(n, KindText, make([]Value, t.rows))
	}
	out.rows = t.rows
	return out
}

// Filter returns a new table with the rows for which keep returns true
func (t *Table) Filter(keep func(row int) bool) *Table {
	rows := make([]int, 0, t.rows)
	for r := 0; r < t.rows; r++ {
		if keep(r) {
			rows = append(rows, r)
		}
	}

	out := NewTable(t.Name)
	for _, c := range t.columns {
		values := make([]Value, len(rows))
		for i, r := range rows {
			values[i] = c.Values[r]
		}
		_ = out.AddColumn(c.Name, c.Kind, values)
	}
	out.rows = len(rows)
	return out
}

// Row returns the cells of row r keyed by column name
func (t *Table) Row(r int) map[string]Value {
	row := make(map[string]Value, len(t.columns))
	for _, c := range t.columns {
		row[c.Name] = c.Values[r]
	}
	return row
}

// RowValues returns the Go values of row r in column order
func (t *Table) RowValues(r int) []interface{} {
	out := make([]interface{}, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Values[r].Interface()
	}
	return out
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.columns))
	for i, c := range t.columns {
		t.index[c.Name] = i
	}
}
