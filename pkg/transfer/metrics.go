// pkg/transfer/metrics.go
package transfer

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Metrics exports run counters to Prometheus and keeps the totals of
// the current run for the end of run report
type Metrics struct {
	mu     sync.Mutex
	logger *zap.Logger

	rowsExtracted *prometheus.CounterVec
	rowsDropped   *prometheus.CounterVec
	rowsLoaded    *prometheus.CounterVec
	entityRuns    *prometheus.CounterVec
	errors        *prometheus.CounterVec
	entityLatency *prometheus.HistogramVec
	dropRatio     *prometheus.GaugeVec
	lastSuccess   *prometheus.GaugeVec

	StartTime          time.Time
	EndTime            time.Time
	Entities           map[string]*EntityMetrics
	SuccessfulEntities int
	FailedEntities     int
	SkippedEntities    int
	TotalRowsIn        int
	TotalRowsDropped   int
	TotalRowsLoaded    int64
	ErrorCounts        map[ErrorCategory]int
	WorkerUtilization  map[int]time.Duration
}

// EntityMetrics holds the last outcome of one entity
type EntityMetrics struct {
	Entity      string
	TargetTable string
	Success     bool
	RowsIn      int
	RowsDropped int
	RowsLoaded  int64
	Duration    time.Duration
	Error       string
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer, logger *zap.Logger) (*Metrics, error) {
	m := &Metrics{
		logger: logger,
		rowsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingress",
			Name:      "rows_extracted_total",
			Help:      "Raw rows read from the sources.",
		}, []string{"entity"}),
		rowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingress",
			Name:      "rows_dropped_total",
			Help:      "Rows rejected by the entity cleaners.",
		}, []string{"entity"}),
		rowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingress",
			Name:      "rows_loaded_total",
			Help:      "Clean rows written to the target tables.",
		}, []string{"entity"}),
		entityRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingress",
			Name:      "entity_runs_total",
			Help:      "Entity jobs finished, by outcome.",
		}, []string{"entity", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingress",
			Name:      "errors_total",
			Help:      "Job errors by category.",
		}, []string{"category"}),
		entityLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ingress",
			Name:      "entity_duration_seconds",
			Help:      "Wall time of an extract, clean and load pass.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"entity"}),
		dropRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ingress",
			Name:      "drop_ratio",
			Help:      "Share of raw rows dropped in the last run of the entity.",
		}, []string{"entity"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ingress",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the entity was last loaded successfully.",
		}, []string{"entity"}),
	}

	for _, c := range []prometheus.Collector{
		m.rowsExtracted, m.rowsDropped, m.rowsLoaded, m.entityRuns,
		m.errors, m.entityLatency, m.dropRatio, m.lastSuccess,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	m.Reset()
	return m, nil
}

// Reset starts the in-memory totals of a new run. Prometheus counters
// keep accumulating.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartTime = time.Now()
	m.EndTime = time.Time{}
	m.Entities = make(map[string]*EntityMetrics)
	m.SuccessfulEntities = 0
	m.FailedEntities = 0
	m.SkippedEntities = 0
	m.TotalRowsIn = 0
	m.TotalRowsDropped = 0
	m.TotalRowsLoaded = 0
	m.ErrorCounts = make(map[ErrorCategory]int)
	m.WorkerUtilization = make(map[int]time.Duration)
}

// RecordEntityResult records the outcome of an entity job
func (m *Metrics) RecordEntityResult(result JobResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := "success"
	if !result.Success {
		status = "failure"
	}

	m.rowsExtracted.WithLabelValues(result.Entity).Add(float64(result.RowsIn))
	m.rowsDropped.WithLabelValues(result.Entity).Add(float64(result.RowsDropped))
	m.entityRuns.WithLabelValues(result.Entity, status).Inc()
	m.entityLatency.WithLabelValues(result.Entity).Observe(result.Duration.Seconds())

	em := &EntityMetrics{
		Entity:      result.Entity,
		TargetTable: result.TargetTable,
		Success:     result.Success,
		RowsIn:      result.RowsIn,
		RowsDropped: result.RowsDropped,
		Duration:    result.Duration,
	}
	m.Entities[result.Entity] = em
	m.TotalRowsIn += result.RowsIn
	m.TotalRowsDropped += result.RowsDropped
	m.WorkerUtilization[result.WorkerID] += result.Duration

	if result.RowsIn > 0 {
		m.dropRatio.WithLabelValues(result.Entity).Set(float64(result.RowsDropped) / float64(result.RowsIn))
	}

	if result.Success {
		m.SuccessfulEntities++
		m.TotalRowsLoaded += result.RowsLoaded
		em.RowsLoaded = result.RowsLoaded
		m.rowsLoaded.WithLabelValues(result.Entity).Add(float64(result.RowsLoaded))
		m.lastSuccess.WithLabelValues(result.Entity).Set(float64(result.EndTime.Unix()))
	} else {
		m.FailedEntities++
		if last := result.LastError(); last != nil {
			em.Error = last.Message
		}
	}

	if m.logger != nil {
		m.logger.Debug("Recorded entity result",
			zap.String("entity", result.Entity),
			zap.String("status", status),
			zap.Int("rowsIn", result.RowsIn),
			zap.Int("rowsDropped", result.RowsDropped),
			zap.Int64("rowsLoaded", result.RowsLoaded))
	}
}

// RecordSkippedEntity records an entity that was not run
func (m *Metrics) RecordSkippedEntity(entity, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SkippedEntities++
	m.entityRuns.WithLabelValues(entity, "skipped").Inc()

	if m.logger != nil {
		m.logger.Info("Skipped entity",
			zap.String("entity", entity),
			zap.String("reason", reason))
	}
}

// RecordError counts an error by category
func (m *Metrics) RecordError(category ErrorCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ErrorCounts[category]++
	m.errors.WithLabelValues(category.String()).Inc()
}

// Complete marks the end of the run
func (m *Metrics) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EndTime = time.Now()
}

// Duration returns the run duration so far
func (m *Metrics) Duration() time.Duration {
	if m.EndTime.IsZero() {
		return time.Since(m.StartTime)
	}
	return m.EndTime.Sub(m.StartTime)
}

// CalculateThroughput returns loaded rows per second
func (m *Metrics) CalculateThroughput() float64 {
	seconds := m.Duration().Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(m.TotalRowsLoaded) / seconds
}

// GetWorkerEfficiency returns the share of the run each worker was busy
func (m *Metrics) GetWorkerEfficiency() map[int]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.Duration()
	efficiency := make(map[int]float64, len(m.WorkerUtilization))
	for id, busy := range m.WorkerUtilization {
		if total > 0 {
			efficiency[id] = float64(busy) / float64(total)
		}
	}
	return efficiency
}

// formatDuration formats a duration to a human-readable string
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// getPercentage safely calculates a percentage, avoiding division by zero
func getPercentage(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return (value / total) * 100
}

// GenerateMetricsReport creates a plain text report of the run
func (m *Metrics) GenerateMetricsReport() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := float64(m.SuccessfulEntities + m.FailedEntities + m.SkippedEntities)
	report := fmt.Sprintf(`
Ingress Run Report
==================
Duration:                %s
Start Time:              %s

Entities
--------
Successful:              %d (%.1f%%)
Failed:                  %d (%.1f%%)
Skipped:                 %d (%.1f%%)

Rows
----
Read:                    %d
Dropped by cleaners:     %d (%.1f%%)
Loaded:                  %d
Average Throughput:      %.2f rows/sec
`,
		formatDuration(m.Duration()),
		m.StartTime.Format(time.RFC3339),
		m.SuccessfulEntities, getPercentage(float64(m.SuccessfulEntities), total),
		m.FailedEntities, getPercentage(float64(m.FailedEntities), total),
		m.SkippedEntities, getPercentage(float64(m.SkippedEntities), total),
		m.TotalRowsIn,
		m.TotalRowsDropped, getPercentage(float64(m.TotalRowsDropped), float64(m.TotalRowsIn)),
		m.TotalRowsLoaded,
		m.CalculateThroughput(),
	)

	names := make([]string, 0, len(m.Entities))
	for name := range m.Entities {
		names = append(names, name)
	}
	sort.Strings(names)

	report += "\nEntity Details\n--------------\n"
	for _, name := range names {
		em := m.Entities[name]
		if em.Success {
			report += fmt.Sprintf("- %s -> %s: %d in, %d dropped, %d loaded, %s\n",
				em.Entity, em.TargetTable, em.RowsIn, em.RowsDropped, em.RowsLoaded, formatDuration(em.Duration))
		} else {
			report += fmt.Sprintf("- %s -> %s: FAILED %s\n", em.Entity, em.TargetTable, em.Error)
		}
	}

	if len(m.ErrorCounts) > 0 {
		report += "\nError Distribution\n------------------\n"
		for category, count := range m.ErrorCounts {
			report += fmt.Sprintf("- %s: %d\n", category.String(), count)
		}
	}

	return report
}

// ToJSON serializes the run totals to JSON
func (m *Metrics) ToJSON() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return json.Marshal(struct {
		Duration           string                    `json:"duration"`
		SuccessfulEntities int                       `json:"successfulEntities"`
		FailedEntities     int                       `json:"failedEntities"`
		SkippedEntities    int                       `json:"skippedEntities"`
		TotalRowsIn        int                       `json:"totalRowsIn"`
		TotalRowsDropped   int                       `json:"totalRowsDropped"`
		TotalRowsLoaded    int64                     `json:"totalRowsLoaded"`
		Throughput         float64                   `json:"throughput"`
		Entities           map[string]*EntityMetrics `json:"entities"`
	}{
		Duration:           formatDuration(m.Duration()),
		SuccessfulEntities: m.SuccessfulEntities,
		FailedEntities:     m.FailedEntities,
		SkippedEntities:    m.SkippedEntities,
		TotalRowsIn:        m.TotalRowsIn,
		TotalRowsDropped:   m.TotalRowsDropped,
		TotalRowsLoaded:    m.TotalRowsLoaded,
		Throughput:         m.CalculateThroughput(),
		Entities:           m.Entities,
	})
}
