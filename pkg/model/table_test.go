package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueStates(t *testing.T) {
	assert.True(t, Missing().IsMissing())
	assert.True(t, Value{}.IsMissing())
	assert.True(t, Raw("x").IsPending())
	assert.True(t, Text("x").IsValid())

	// missing is distinct from empty text and zero
	assert.False(t, Missing().Equal(Text("")))
	assert.False(t, Missing().Equal(Int(0)))
	assert.Nil(t, Missing().Interface())
}

func TestValueAs(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		kind Kind
		want Value
	}{
		{"raw to int", Raw(" 42 "), KindInt, Int(42)},
		{"raw to bad int", Raw("4x2"), KindInt, Missing()},
		{"raw to float", Raw("1.25"), KindFloat, Float(1.25)},
		{"int to float", Int(3), KindFloat, Float(3)},
		{"whole float to int", Float(7), KindInt, Int(7)},
		{"fractional float to int", Float(7.5), KindInt, Missing()},
		{"raw to bool", Raw("true"), KindBool, Bool(true)},
		{"raw to text", Raw("abc"), KindText, Text("abc")},
		{"missing stays missing", Missing(), KindInt, Missing()},
		{"date text to timestamp", Raw("2001-02-03"), KindTimestamp, Timestamp(time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC))},
		{"garbage to timestamp", Raw("soon"), KindTimestamp, Missing()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.As(tt.kind)
			assert.True(t, tt.want.Equal(got), "want %v (%v), got %v (%v)", tt.want, tt.want.State(), got, got.State())
		})
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	date := Timestamp(time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "1999-12-31", date.String())
	assert.True(t, date.Equal(Raw(date.String()).As(KindTimestamp)))

	clock := Timestamp(time.Date(2012, 9, 19, 22, 0, 6, 0, time.UTC))
	assert.Equal(t, "2012-09-19 22:00:06", clock.String())
	assert.True(t, clock.Equal(Raw(clock.String()).As(KindTimestamp)))
}

func TestNewTableFromRecords(t *testing.T) {
	tbl, err := NewTableFromRecords("people",
		[]string{"name", "age"},
		[][]string{{"ann", "31"}, {"bob", ""}},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"name", "age"}, tbl.ColumnNames())

	age, ok := tbl.Column("age")
	require.True(t, ok)
	assert.True(t, age.Values[0].IsPending())
	assert.True(t, age.Values[1].IsMissing())
	assert.Equal(t, 1, age.MissingCount())

	_, err = NewTableFromRecords("short", []string{"a", "b"}, [][]string{{"1"}})
	assert.Error(t, err)
}

func TestTableColumnOperations(t *testing.T) {
	tbl := NewTable("t")
	require.NoError(t, tbl.AddColumn("a", KindText, []Value{Raw("1"), Raw("2"), Raw("3")}))
	require.NoError(t, tbl.AddColumn("b", KindText, []Value{Raw("x"), Raw("y"), Raw("z")}))
	assert.Error(t, tbl.AddColumn("c", KindText, []Value{Raw("short")}))
	assert.Error(t, tbl.AddColumn("a", KindText, []Value{Raw("1"), Raw("2"), Raw("3")}))

	clone := tbl.Clone()
	clone.columns[0].Values[0] = Raw("changed")
	a, _ := tbl.Column("a")
	assert.Equal(t, "1", a.Values[0].String(), "clone must not share cells")

	assert.True(t, tbl.RenameColumn("b", "bee"))
	assert.False(t, tbl.RenameColumn("missing", "x"))
	assert.False(t, tbl.RenameColumn("a", "bee"))

	assert.Equal(t, 1, tbl.DropColumns("bee", "nope"))
	assert.Equal(t, []string{"a"}, tbl.ColumnNames())

	projected := clone.Project([]string{"b", "new", "a"})
	assert.Equal(t, []string{"b", "new", "a"}, projected.ColumnNames())
	newCol, _ := projected.Column("new")
	assert.Equal(t, 3, newCol.MissingCount())
}

func TestTableFilter(t *testing.T) {
	tbl := NewTable("t")
	require.NoError(t, tbl.AddColumn("n", KindInt, []Value{Int(1), Int(2), Int(3), Int(4)}))

	even := tbl.Filter(func(r int) bool { return r%2 == 1 })
	assert.Equal(t, 2, even.Len())
	assert.Equal(t, 4, tbl.Len(), "source table must not change")
	assert.Equal(t, []interface{}{int64(2)}, even.RowValues(0))
	assert.Equal(t, Int(4), even.Row(1)["n"])
}

func TestFrequencyTable(t *testing.T) {
	col := &Column{Name: "c", Values: []Value{Raw("a"), Raw("a"), Raw("b"), Missing(), Raw("a")}}
	ft := CountValues(col)

	assert.Equal(t, 3, ft.Count("a"))
	assert.Equal(t, 1, ft.Count("b"))
	assert.Equal(t, 0, ft.Count(""))
	assert.Equal(t, 2, ft.Len())
	assert.Equal(t, 4, ft.Total())
	assert.True(t, ft.Above("a", 2))
	assert.False(t, ft.Above("a", 3))
	assert.True(t, ft.AtLeast("a", 3))
}

func TestMetadataFor(t *testing.T) {
	tbl := NewTable("t")
	require.NoError(t, tbl.AddColumn("id", KindInt, []Value{Int(1), Int(2)}))
	require.NoError(t, tbl.AddColumn("Note", KindText, []Value{Text("x"), Missing()}))

	meta := MetadataFor(tbl, "public", "dim_t")
	assert.Equal(t, "public.dim_t", meta.FullName())
	assert.Equal(t, []string{"id", "Note"}, meta.ColumnNames())
	assert.False(t, meta.Columns[0].Nullable)
	assert.True(t, meta.Columns[1].Nullable)
	require.NotNil(t, meta.GetColumnByName("note"))
	assert.Nil(t, meta.GetColumnByName("other"))
}
