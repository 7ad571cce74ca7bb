// pkg/model/frequency.go
package model

// FrequencyTable counts how often each value occurs in a column snapshot.
// It is built once and never updated, so later row drops cannot change
// a decision that was already taken against it.
type FrequencyTable struct {
	counts map[string]int
	total  int
}

// NewFrequencyTable counts the given keys
func NewFrequencyTable(keys []string) FrequencyTable {
	ft := FrequencyTable{counts: make(map[string]int)}
	for _, k := range keys {
		ft.counts[k]++
		ft.total++
	}
	return ft
}

// CountValues counts the non-missing values of a column by their text form
func CountValues(c *Column) FrequencyTable {
	keys := make([]string, 0, len(c.Values))
	for _, v := range c.Values {
		if v.IsMissing() {
			continue
		}
		keys = append(keys, v.String())
	}
	return NewFrequencyTable(keys)
}

// Count returns the number of occurrences of key
func (f FrequencyTable) Count(key string) int {
	return f.counts[key]
}

// Above reports whether key occurs strictly more than n times
func (f FrequencyTable) Above(key string, n int) bool {
	return f.counts[key] > n
}

// AtLeast reports whether key occurs n or more times
func (f FrequencyTable) AtLeast(key string, n int) bool {
	return f.counts[key] >= n
}

// Len returns the number of distinct keys
func (f FrequencyTable) Len() int {
	return len(f.counts)
}

// Total returns the number of counted occurrences
func (f FrequencyTable) Total() int {
	return f.total
}
