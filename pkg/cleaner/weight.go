// pkg/cleaner/weight.go
package cleaner

import (
	"math"
	"strconv"
	"strings"
)

const (
	gramsPerKilogram  = 1000.0
	kilogramsPerOunce = 0.0283495

	// maxMultipliers bounds "count x unit" nesting
	maxMultipliers = 1
)

// NormalizeWeight converts a weight expression such as "100g", "12 x 100g",
// "1.5kg", "250ml" or "16oz" to kilograms. Millilitres are treated as
// grams. Anything else reports false.
func NormalizeWeight(s string) (float64, bool) {
	return normalizeWeight(s, 0)
}

func normalizeWeight(s string, depth int) (float64, bool) {
	expr := strings.ToLower(strings.Join(strings.Fields(s), ""))
	expr = strings.TrimRight(expr, ".")
	if expr == "" {
		return 0, false
	}

	if count, unit, ok := splitMultiplier(expr); ok {
		if depth >= maxMultipliers {
			return 0, false
		}
		n, ok := parseAmount(count)
		if !ok {
			return 0, false
		}
		w, ok := normalizeWeight(unit, depth+1)
		if !ok {
			return 0, false
		}
		return n * w, true
	}

	switch {
	case strings.HasSuffix(expr, "kg"):
		return numericPrefix(expr, "kg", 1)
	case strings.HasSuffix(expr, "ml"):
		return numericPrefix(expr, "ml", 1/gramsPerKilogram)
	case strings.HasSuffix(expr, "g"):
		return numericPrefix(expr, "g", 1/gramsPerKilogram)
	case strings.HasSuffix(expr, "oz"):
		return numericPrefix(expr, "oz", kilogramsPerOunce)
	}
	return 0, false
}

// splitMultiplier splits "12x100g" into "12" and "100g" at the first
// multiplier sign
func splitMultiplier(expr string) (string, string, bool) {
	for _, sep := range []string{"x", "×"} {
		if i := strings.Index(expr, sep); i >= 0 {
			return expr[:i], expr[i+len(sep):], true
		}
	}
	return "", "", false
}

func numericPrefix(expr, unit string, factor float64) (float64, bool) {
	n, ok := parseAmount(strings.TrimSuffix(expr, unit))
	if !ok {
		return 0, false
	}
	return n * factor, true
}

// parseAmount accepts finite non-negative decimals only
func parseAmount(s string) (float64, bool) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
