// pkg/transfer/job.go
package transfer

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/David-Botos/sales-ingress/pkg/model"
)

// EntityJob is one extract, clean and load pass over a single entity
type EntityJob struct {
	ID          string    // Unique job identifier
	RunID       string    // Identifier of the pipeline run the job belongs to
	Entity      string    // Cleaner entity name
	TargetTable string    // Table the clean rows replace
	Priority    int       // Position in the pipeline order, lower runs first
	CreatedAt   time.Time // Job creation timestamp
	RetryCount  int       // Number of retries attempted
	MaxRetries  int       // Maximum allowed retries
}

// NewEntityJob creates a new job with defaults
func NewEntityJob(runID, entity, targetTable string) EntityJob {
	return EntityJob{
		ID:          uuid.New().String(),
		RunID:       runID,
		Entity:      entity,
		TargetTable: targetTable,
		CreatedAt:   time.Now(),
		MaxRetries:  1,
	}
}

// WithPriority sets the job priority and returns the modified job
func (j EntityJob) WithPriority(priority int) EntityJob {
	j.Priority = priority
	return j
}

// WithMaxRetries sets the maximum retry count and returns the modified job
func (j EntityJob) WithMaxRetries(maxRetries int) EntityJob {
	j.MaxRetries = maxRetries
	return j
}

// IsRetryable checks if the job can be retried
func (j EntityJob) IsRetryable() bool {
	return j.RetryCount < j.MaxRetries
}

// Retry increments the retry count and returns the modified job
func (j EntityJob) Retry() EntityJob {
	j.RetryCount++
	return j
}

// String names the job in logs
func (j EntityJob) String() string {
	return fmt.Sprintf("%s -> %s", j.Entity, j.TargetTable)
}

// JobResult represents the outcome of an entity job
type JobResult struct {
	JobID       string
	RunID       string
	Entity      string
	Source      string
	TargetTable string
	Success     bool
	RowsIn      int
	RowsOut     int
	RowsDropped int
	RowsLoaded  int64
	Errors      []ErrorRecord
	Warnings    []string
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	RetryCount  int
	WorkerID    int
}

// NewJobResult initializes a result for a job
func NewJobResult(job EntityJob, workerID int) *JobResult {
	return &JobResult{
		JobID:       job.ID,
		RunID:       job.RunID,
		Entity:      job.Entity,
		TargetTable: job.TargetTable,
		StartTime:   time.Now(),
		RetryCount:  job.RetryCount,
		WorkerID:    workerID,
		Errors:      make([]ErrorRecord, 0),
		Warnings:    make([]string, 0),
	}
}

// Complete marks the job as finished and calculates its duration
func (r *JobResult) Complete(success bool) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Success = success
}

// AddError adds an error to the result
func (r *JobResult) AddError(err ErrorRecord) {
	r.Errors = append(r.Errors, err)
	r.Success = false
}

// AddWarning adds a warning to the result
func (r *JobResult) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// HasErrors checks if any errors occurred
func (r *JobResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// LastError returns the most recent error, if any
func (r *JobResult) LastError() *ErrorRecord {
	if len(r.Errors) == 0 {
		return nil
	}
	return &r.Errors[len(r.Errors)-1]
}

// CleaningRun converts the result into its audit record
func (r *JobResult) CleaningRun() model.CleaningRun {
	return model.CleaningRun{
		RunID:       r.RunID,
		Entity:      r.Entity,
		Source:      r.Source,
		TargetTable: r.TargetTable,
		RowsIn:      r.RowsIn,
		RowsOut:     r.RowsOut,
		RowsDropped: r.RowsDropped,
		RowsLoaded:  r.RowsLoaded,
		StartedAt:   r.StartTime,
		FinishedAt:  r.EndTime,
	}
}

// RunSummary represents the outcome of a whole pipeline run
type RunSummary struct {
	RunID              string
	Results            []JobResult
	SuccessfulEntities []string
	FailedEntities     map[string]error
	SkippedEntities    []string
	TotalRowsIn        int
	TotalRowsDropped   int
	TotalRowsLoaded    int64
	ErrorCategories    map[ErrorCategory]int
	Aborted            bool
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
	Throughput         float64 // rows/second
}

// NewRunSummary initializes a summary for a run
func NewRunSummary(runID string) *RunSummary {
	return &RunSummary{
		RunID:              runID,
		StartTime:          time.Now(),
		SuccessfulEntities: make([]string, 0),
		FailedEntities:     make(map[string]error),
		SkippedEntities:    make([]string, 0),
		ErrorCategories:    make(map[ErrorCategory]int),
	}
}

// AddResult incorporates an entity result into the summary
func (s *RunSummary) AddResult(result JobResult) {
	s.Results = append(s.Results, result)
	s.TotalRowsIn += result.RowsIn
	s.TotalRowsDropped += result.RowsDropped

	if result.Success {
		s.SuccessfulEntities = append(s.SuccessfulEntities, result.Entity)
		s.TotalRowsLoaded += result.RowsLoaded
		return
	}

	if last := result.LastError(); last != nil {
		s.FailedEntities[result.Entity] = fmt.Errorf("%s", last.Message)
		for _, rec := range result.Errors {
			s.ErrorCategories[rec.Category]++
		}
	} else {
		s.FailedEntities[result.Entity] = fmt.Errorf("unknown error")
	}
}

// MarkSkipped marks an entity as not run
func (s *RunSummary) MarkSkipped(entity string) {
	s.SkippedEntities = append(s.SkippedEntities, entity)
}

// Complete marks the run as finished and calculates throughput
func (s *RunSummary) Complete() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	if s.Duration.Seconds() > 0 {
		s.Throughput = float64(s.TotalRowsLoaded) / s.Duration.Seconds()
	}
}

// TotalEntities returns the number of entities the run was asked for
func (s *RunSummary) TotalEntities() int {
	return len(s.SuccessfulEntities) + len(s.FailedEntities) + len(s.SkippedEntities)
}

// SuccessRate returns the percentage of entities successfully loaded
func (s *RunSummary) SuccessRate() float64 {
	total := s.TotalEntities()
	if total == 0 {
		return 0
	}
	return float64(len(s.SuccessfulEntities)) / float64(total) * 100
}

// Err returns an error naming the failed entities, nil when all succeeded
func (s *RunSummary) Err() error {
	if len(s.FailedEntities) == 0 && !s.Aborted {
		return nil
	}
	if s.Aborted {
		return fmt.Errorf("run %s aborted: %d of %d entities failed", s.RunID, len(s.FailedEntities), s.TotalEntities())
	}
	return fmt.Errorf("run %s: %d of %d entities failed", s.RunID, len(s.FailedEntities), s.TotalEntities())
}
