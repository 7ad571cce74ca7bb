// pkg/model/cleaning.go
package model

import (
	"time"
)

// CleaningRun is the audit record of one extract, clean and load pass
// over a single entity
type CleaningRun struct {
	RunID       string    // Identifier shared by all entities of one pipeline run
	Entity      string    // Entity cleaner name (user, card, ...)
	Source      string    // Where the raw table came from
	TargetTable string    // Table the clean rows were written to
	RowsIn      int       // Rows in the raw table
	RowsOut     int       // Rows kept by the cleaner
	RowsDropped int       // Rows dropped by the cleaner
	RowsLoaded  int64     // Rows the target reported as written
	StartedAt   time.Time // When extraction began
	FinishedAt  time.Time // When loading finished
}

// DropRate returns the share of input rows that were dropped
func (r CleaningRun) DropRate() float64 {
	if r.RowsIn == 0 {
		return 0
	}
	return float64(r.RowsDropped) / float64(r.RowsIn)
}

// Duration returns the wall time of the run
func (r CleaningRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
