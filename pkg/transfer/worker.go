// pkg/transfer/worker.go
package transfer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/cleaner"
	"github.com/David-Botos/sales-ingress/pkg/extractor"
	"github.com/David-Botos/sales-ingress/pkg/model"
)

// WorkerState represents the current state of a worker
type WorkerState string

const (
	WorkerStateIdle      WorkerState = "idle"
	WorkerStateWorking   WorkerState = "working"
	WorkerStateCompleted WorkerState = "completed"
)

// TableLoader replaces a target table with the rows of a clean table
type TableLoader interface {
	Replace(ctx context.Context, t *model.Table, table string) (int64, error)
}

// Worker runs entity jobs: extract, clean, load and verify
type Worker struct {
	ID           int
	extractors   map[string]extractor.Extractor
	cleaners     *cleaner.Registry
	loader       TableLoader
	verifier     *Verifier
	errorHandler *ErrorHandler
	metrics      *Metrics
	logger       *zap.Logger
	retryDelay   time.Duration
	state        WorkerState
	currentJob   *EntityJob
	stateLock    sync.RWMutex
}

// NewWorker creates a new worker. verifier and metrics may be nil.
func NewWorker(
	id int,
	extractors map[string]extractor.Extractor,
	cleaners *cleaner.Registry,
	loader TableLoader,
	verifier *Verifier,
	errorHandler *ErrorHandler,
	metrics *Metrics,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		ID:           id,
		extractors:   extractors,
		cleaners:     cleaners,
		loader:       loader,
		verifier:     verifier,
		errorHandler: errorHandler,
		metrics:      metrics,
		logger:       logger.With(zap.Int("workerID", id)),
		retryDelay:   time.Second,
		state:        WorkerStateIdle,
	}
}

// WithRetryDelay sets the pause before a job is run again
func (w *Worker) WithRetryDelay(delay time.Duration) *Worker {
	w.retryDelay = delay
	return w
}

// GetState returns the current state of the worker
func (w *Worker) GetState() WorkerState {
	w.stateLock.RLock()
	defer w.stateLock.RUnlock()
	return w.state
}

func (w *Worker) setState(state WorkerState) {
	w.stateLock.Lock()
	defer w.stateLock.Unlock()

	prevState := w.state
	w.state = state

	if prevState != state {
		w.logger.Debug("Worker state changed",
			zap.String("from", string(prevState)),
			zap.String("to", string(state)))
	}
}

// GetCurrentJob returns the job currently being processed
func (w *Worker) GetCurrentJob() *EntityJob {
	w.stateLock.RLock()
	defer w.stateLock.RUnlock()
	return w.currentJob
}

func (w *Worker) setCurrentJob(job *EntityJob) {
	w.stateLock.Lock()
	defer w.stateLock.Unlock()
	w.currentJob = job
}

// Start begins the worker processing loop. It returns when jobs is
// closed or ctx is done.
func (w *Worker) Start(ctx context.Context, jobs <-chan EntityJob, results chan<- JobResult) {
	w.logger.Debug("Worker started")
	defer w.setState(WorkerStateCompleted)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker stopping due to context cancellation")
			return

		case job, ok := <-jobs:
			if !ok {
				return
			}

			// Left without a result, the pipeline reports it skipped
			if w.errorHandler.ShouldAbortRun() {
				w.logger.Warn("Not starting job after run abort",
					zap.String("entity", job.Entity))
				continue
			}

			result := w.ProcessJob(ctx, job)

			select {
			case results <- result:
			case <-ctx.Done():
				w.logger.Warn("Context cancelled while sending result",
					zap.String("entity", job.Entity))
				return
			}
		}
	}
}

// ProcessJob runs a single entity job, retrying it while the error
// handler allows
func (w *Worker) ProcessJob(ctx context.Context, job EntityJob) JobResult {
	w.setCurrentJob(&job)
	w.setState(WorkerStateWorking)
	defer func() {
		w.setCurrentJob(nil)
		w.setState(WorkerStateIdle)
	}()

	result := NewJobResult(job, w.ID)

	w.logger.Info("Starting entity job",
		zap.String("entity", job.Entity),
		zap.String("targetTable", job.TargetTable))

	for {
		err := w.runEntity(ctx, job, result)
		if err == nil {
			result.Complete(true)
			break
		}

		category := w.errorHandler.CategorizeError(err)
		record := NewErrorRecord(err, category).
			WithEntity(job.Entity).
			WithRetry(job.RetryCount)
		result.AddError(record)
		if w.metrics != nil {
			w.metrics.RecordError(category)
		}

		action := w.errorHandler.HandleError(record)
		if action == ActionRetry && job.IsRetryable() && ctx.Err() == nil {
			job = job.Retry()
			result.RetryCount = job.RetryCount
			w.logger.Warn("Retrying entity job",
				zap.String("entity", job.Entity),
				zap.Int("retryCount", job.RetryCount),
				zap.Error(err))

			select {
			case <-time.After(w.retryDelay):
				continue
			case <-ctx.Done():
			}
		}

		result.Complete(false)
		break
	}

	if result.Success {
		w.logger.Info("Entity job completed",
			zap.String("entity", job.Entity),
			zap.Int("rowsIn", result.RowsIn),
			zap.Int("rowsDropped", result.RowsDropped),
			zap.Int64("rowsLoaded", result.RowsLoaded),
			zap.Duration("duration", result.Duration))
	} else {
		w.logger.Warn("Entity job failed",
			zap.String("entity", job.Entity),
			zap.Int("errors", len(result.Errors)),
			zap.Duration("duration", result.Duration))
	}

	return *result
}

// runEntity performs one attempt of a job and fills in result
func (w *Worker) runEntity(ctx context.Context, job EntityJob, result *JobResult) error {
	// Step 1: Extract the raw snapshot
	ext, ok := w.extractors[job.Entity]
	if !ok {
		return stageError(StageExtract, job.Entity, fmt.Errorf("%w: no source configured", ErrUnknownEntity))
	}
	result.Source = ext.Source()

	raw, err := ext.Extract(ctx)
	if err != nil {
		return stageError(StageExtract, job.Entity, err)
	}

	// Step 2: Clean
	c, ok := w.cleaners.Get(job.Entity)
	if !ok {
		return stageError(StageClean, job.Entity, fmt.Errorf("%w: no cleaner registered", ErrUnknownEntity))
	}

	clean, dropped, err := cleanSafely(c, raw)
	if err != nil {
		return stageError(StageClean, job.Entity, err)
	}

	result.RowsIn = raw.Len()
	result.RowsOut = clean.Len()
	result.RowsDropped = dropped

	w.logger.Info("Cleaned entity",
		zap.String("entity", job.Entity),
		zap.String("source", result.Source),
		zap.Int("rowsIn", result.RowsIn),
		zap.Int("rowsOut", result.RowsOut),
		zap.Int("rowsDropped", dropped))

	// Step 3: Replace the target table
	loaded, err := w.loader.Replace(ctx, clean, job.TargetTable)
	if err != nil {
		return stageError(StageLoad, job.Entity, err)
	}
	result.RowsLoaded = loaded

	// Step 4: Verify; problems here are warnings, the data is already in
	if w.verifier != nil {
		w.verify(ctx, job, clean, result)
	}

	return nil
}

func (w *Worker) verify(ctx context.Context, job EntityJob, clean *model.Table, result *JobResult) {
	keyColumn := ""
	if target, ok := TargetFor(job.Entity); ok {
		keyColumn = target.KeyColumn
	}

	report, err := w.verifier.GenerateVerificationReport(ctx, clean, job.TargetTable, keyColumn)
	if err != nil {
		result.AddWarning(fmt.Sprintf("verification failed with error: %v", err))
		return
	}

	if !report.RowCountMatches {
		result.AddWarning(fmt.Sprintf("row count mismatch: expected=%d, target=%d",
			report.ExpectedRowCount, report.TargetRowCount))
	}
	for _, d := range report.StructureDiscrepancies {
		result.AddWarning(fmt.Sprintf("column %s differs between clean table and target", d.ColumnName))
	}
	for _, issue := range report.IntegrityIssues {
		result.AddWarning(fmt.Sprintf("%s on %s: %d rows", issue.IssueType, issue.ColumnName, issue.AffectedRows))
	}
}

// cleanSafely runs a cleaner, turning a panic into an error
func cleanSafely(c cleaner.Cleaner, raw *model.Table) (clean *model.Table, dropped int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleaner panicked: %v", r)
		}
	}()

	clean, dropped = c.Clean(raw)
	return clean, dropped, nil
}
