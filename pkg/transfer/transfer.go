// pkg/transfer/transfer.go
package transfer

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/cleaner"
	"github.com/David-Botos/sales-ingress/pkg/extractor"
	"github.com/David-Botos/sales-ingress/pkg/model"
)

// Sink is the target side of a run: table replacement plus the audit
// table of cleaning runs
type Sink interface {
	TableLoader
	EnsureRunsTable(ctx context.Context) error
	RecordRuns(ctx context.Context, runs []model.CleaningRun) error
}

// Pipeline runs the entity jobs of an ingress run on a worker pool
type Pipeline struct {
	extractors   map[string]extractor.Extractor
	cleaners     *cleaner.Registry
	sink         Sink
	verifier     *Verifier
	errorHandler *ErrorHandler
	metrics      *Metrics
	logger       *zap.Logger
	workerCount  int
	retryDelay   time.Duration
	mu           sync.Mutex // one run at a time
}

// NewPipeline creates a pipeline. verifier may be nil to skip post-load
// checks.
func NewPipeline(
	extractors map[string]extractor.Extractor,
	cleaners *cleaner.Registry,
	sink Sink,
	verifier *Verifier,
	metrics *Metrics,
	logger *zap.Logger,
) *Pipeline {
	logger = logger.Named("pipeline")
	return &Pipeline{
		extractors:   extractors,
		cleaners:     cleaners,
		sink:         sink,
		verifier:     verifier,
		errorHandler: NewErrorHandler(logger.Named("errors")),
		metrics:      metrics,
		logger:       logger,
		retryDelay:   time.Second,
	}
}

// WithWorkerCount sets the number of worker goroutines. 0 picks one
// from the machine's resources.
func (p *Pipeline) WithWorkerCount(count int) *Pipeline {
	if count >= 0 {
		p.workerCount = count
	}
	return p
}

// WithRetryDelay sets the pause before a failed job is run again
func (p *Pipeline) WithRetryDelay(delay time.Duration) *Pipeline {
	p.retryDelay = delay
	return p
}

// ErrorHandler returns the handler deciding retries and aborts
func (p *Pipeline) ErrorHandler() *ErrorHandler {
	return p.errorHandler
}

// GenerateReport returns the text report of the last run
func (p *Pipeline) GenerateReport() string {
	return p.metrics.GenerateMetricsReport()
}

// Run extracts, cleans and loads the given entities, all registered
// entities when none are given. Entities are submitted in pipeline
// order. Once the error thresholds are crossed the entities not yet
// started are skipped.
func (p *Pipeline) Run(ctx context.Context, entities []string) (*RunSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entities, err := p.resolveEntities(entities)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	summary := NewRunSummary(runID)
	p.metrics.Reset()
	p.errorHandler.Reset()

	logger := p.logger.With(zap.String("runID", runID))
	logger.Info("Starting ingress run",
		zap.Strings("entities", entities))

	if err := p.sink.EnsureRunsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare audit table: %w", err)
	}

	workerCount := p.workerCount
	if workerCount == 0 {
		workerCount = calculateOptimalWorkerCount()
	}
	workerCount = min(workerCount, len(entities))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan EntityJob)
	results := make(chan JobResult, len(entities))
	abort := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		w := NewWorker(i, p.extractors, p.cleaners, p.sink, p.verifier, p.errorHandler, p.metrics, logger).
			WithRetryDelay(p.retryDelay)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Start(runCtx, jobs, results)
		}()
	}

	go func() {
		defer close(jobs)
		p.submitJobs(runCtx, runID, entities, jobs, abort)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var abortOnce sync.Once
	for result := range results {
		summary.AddResult(result)
		p.metrics.RecordEntityResult(result)

		if !result.Success && p.errorHandler.ShouldAbortRun() {
			abortOnce.Do(func() {
				summary.Aborted = true
				close(abort)
			})
		}
	}

	// Entities never submitted, or dropped by a cancelled worker
	seen := make(map[string]bool, len(summary.Results))
	for _, r := range summary.Results {
		seen[r.Entity] = true
	}
	reason := "run aborted"
	if ctx.Err() != nil {
		reason = ctx.Err().Error()
		summary.Aborted = true
	}
	for _, entity := range entities {
		if !seen[entity] {
			summary.MarkSkipped(entity)
			p.metrics.RecordSkippedEntity(entity, reason)
		}
	}

	p.metrics.Complete()
	summary.Complete()
	summary.ErrorCategories = p.errorHandler.GetErrorSummary()

	if err := p.recordRuns(ctx, summary); err != nil {
		logger.Error("Failed to record cleaning runs", zap.Error(err))
		return summary, err
	}

	logger.Info("Ingress run completed",
		zap.Int("successful", len(summary.SuccessfulEntities)),
		zap.Int("failed", len(summary.FailedEntities)),
		zap.Int("skipped", len(summary.SkippedEntities)),
		zap.Int("rowsIn", summary.TotalRowsIn),
		zap.Int("rowsDropped", summary.TotalRowsDropped),
		zap.Int64("rowsLoaded", summary.TotalRowsLoaded),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

// resolveEntities defaults to every registered entity and rejects names
// without a cleaner or target
func (p *Pipeline) resolveEntities(entities []string) ([]string, error) {
	if len(entities) == 0 {
		return p.cleaners.Entities(), nil
	}

	requested := make(map[string]bool, len(entities))
	for _, e := range entities {
		if _, ok := p.cleaners.Get(e); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, e)
		}
		if _, ok := TargetFor(e); !ok {
			return nil, fmt.Errorf("%w: %q has no target table", ErrUnknownEntity, e)
		}
		requested[e] = true
	}

	// Keep pipeline order whatever order they were asked in
	ordered := make([]string, 0, len(requested))
	for _, e := range p.cleaners.Entities() {
		if requested[e] {
			ordered = append(ordered, e)
		}
	}
	return ordered, nil
}

// submitJobs hands the jobs to the workers in order until aborted
func (p *Pipeline) submitJobs(ctx context.Context, runID string, entities []string, jobs chan<- EntityJob, abort <-chan struct{}) {
	for i, entity := range entities {
		target, _ := TargetFor(entity)
		job := NewEntityJob(runID, entity, target.Table).WithPriority(i)

		select {
		case jobs <- job:
			p.logger.Debug("Submitted job",
				zap.String("entity", entity),
				zap.String("jobID", job.ID))
		case <-abort:
			p.logger.Warn("Not submitting remaining entities",
				zap.Strings("entities", entities[i:]))
			return
		case <-ctx.Done():
			return
		}
	}
}

// recordRuns writes one audit row per finished entity job
func (p *Pipeline) recordRuns(ctx context.Context, summary *RunSummary) error {
	if len(summary.Results) == 0 {
		return nil
	}

	runs := make([]model.CleaningRun, 0, len(summary.Results))
	for _, result := range summary.Results {
		run := result.CleaningRun()
		if !result.Success {
			run.RowsLoaded = 0
		}
		runs = append(runs, run)
	}

	if err := p.sink.RecordRuns(ctx, runs); err != nil {
		return stageError(StageAudit, "", err)
	}
	return nil
}

// calculateOptimalWorkerCount determines the number of worker goroutines
// from the machine's resources
func calculateOptimalWorkerCount() int {
	numCPU := runtime.NumCPU()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	availableMemGB := float64(memStats.Sys-memStats.HeapAlloc) / 1024 / 1024 / 1024

	// Each worker holds one source and one target connection while it
	// runs; stay under 75% of a 25 connection pool
	connectionsPerWorker := 2
	maxConnectionPool := 25
	maxWorkersForPool := (maxConnectionPool * 75 / 100) / connectionsPerWorker

	cpuBasedWorkers := int(math.Ceil(float64(numCPU) * 0.75))

	// A whole entity snapshot is held in memory, assume ~500MB per worker
	memoryBasedWorkers := int(availableMemGB * 2)

	workerCount := min(cpuBasedWorkers, memoryBasedWorkers, maxWorkersForPool)

	// Ensure at least 2 workers and not more than one per entity
	if workerCount < 2 {
		workerCount = 2
	} else if workerCount > 6 {
		workerCount = 6
	}

	return workerCount
}
