package cleaner

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSafeParse(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2001-02-03", time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC)},
		{"2012-9-19 22:00:06", time.Date(2012, 9, 19, 22, 0, 6, 0, time.UTC)},
		{"2005/01/27", time.Date(2005, 1, 27, 0, 0, 0, 0, time.UTC)},
		{"1968 October 16", time.Date(1968, 10, 16, 0, 0, 0, 0, time.UTC)},
		{"July 1961 14", time.Date(1961, 7, 14, 0, 0, 0, 0, time.UTC)},
		{"October 2008 03", time.Date(2008, 10, 3, 0, 0, 0, 0, time.UTC)},
		{"  1999-12-31  ", time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := SafeParse(tt.in)
			assert.True(t, ok)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestSafeParseMissing(t *testing.T) {
	for _, in := range []string{"", "   ", "NULL", "null"} {
		_, ok := SafeParse(in)
		assert.False(t, ok, "%q must be missing", in)
	}
}

func TestSafeParseNeverPanics(t *testing.T) {
	inputs := []string{
		"", "!!!", "----", "::", "2020-13-45", "99/99/99", "\x00\x01",
		"GFDSAER", "1X9Z", "🙂", strings.Repeat("9", 500), "2020-02-30",
		"31/12/1999", "Mon Jan  2 15:04:05 2006", "12:00", "NaN",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { SafeParse(in) }, "input %q", in)
	}
}

func TestParseNamedMonthRejects(t *testing.T) {
	_, ok := parseNamedMonth("1968 October 16 extra")
	assert.False(t, ok)

	_, ok = parseNamedMonth("1968 16")
	assert.False(t, ok)

	_, ok = parseNamedMonth("October October 1968 16")
	assert.False(t, ok)

	_, ok = parseNamedMonth("February 1999 31")
	assert.False(t, ok, "overflowing days are not normalised")
}
