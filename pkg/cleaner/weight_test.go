package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWeight(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"12x100g", 1.2},
		{"12 x 100g", 1.2},
		{"3 × 250g", 0.75},
		{"1.5kg", 1.5},
		{"100g", 0.1},
		{"250ml", 0.25},
		{"16oz", 0.453592},
		{"77g .", 0.077},
		{" 2KG ", 2},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeWeight(tt.in)
			assert.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNormalizeWeightMissing(t *testing.T) {
	for _, in := range []string{
		"garbage",
		"",
		"kg",
		"abcg",
		"2x3x4x100g",
		"x100g",
		"12x",
		"-5kg",
		"nang",
		"10lb",
	} {
		_, ok := NormalizeWeight(in)
		assert.False(t, ok, "%q must be missing", in)
	}
}
