package transfer

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func finishedResult(entity string, workerID int, rowsIn, dropped int, success bool) JobResult {
	result := NewJobResult(NewEntityJob("run-1", entity, "dim_"+entity), workerID)
	result.RowsIn = rowsIn
	result.RowsDropped = dropped
	result.RowsOut = rowsIn - dropped
	if success {
		result.RowsLoaded = int64(rowsIn - dropped)
	} else {
		result.AddError(NewErrorRecord(errors.New("load failed"), ErrorCategoryLoad))
	}
	result.Complete(success)
	return *result
}

func TestMetricsRecordEntityResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, zap.NewNop())
	require.NoError(t, err)

	m.RecordEntityResult(finishedResult("user", 0, 100, 4, true))
	m.RecordEntityResult(finishedResult("card", 1, 50, 0, false))
	m.RecordSkippedEntity("store", "run aborted")
	m.RecordError(ErrorCategoryLoad)
	m.Complete()

	assert.Equal(t, 100.0, testutil.ToFloat64(m.rowsExtracted.WithLabelValues("user")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.rowsDropped.WithLabelValues("user")))
	assert.Equal(t, 96.0, testutil.ToFloat64(m.rowsLoaded.WithLabelValues("user")))
	assert.InDelta(t, 0.04, testutil.ToFloat64(m.dropRatio.WithLabelValues("user")), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entityRuns.WithLabelValues("card", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entityRuns.WithLabelValues("store", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("Load")))

	assert.Equal(t, 1, m.SuccessfulEntities)
	assert.Equal(t, 1, m.FailedEntities)
	assert.Equal(t, 1, m.SkippedEntities)
	assert.Equal(t, 150, m.TotalRowsIn)
	assert.Equal(t, int64(96), m.TotalRowsLoaded)
	assert.Equal(t, "load failed", m.Entities["card"].Error)
	assert.Len(t, m.GetWorkerEfficiency(), 2)

	report := m.GenerateMetricsReport()
	assert.Contains(t, report, "Ingress Run Report")
	assert.Contains(t, report, "- user -> dim_user: 100 in, 4 dropped, 96 loaded")
	assert.Contains(t, report, "- card -> dim_card: FAILED load failed")

	data, err := m.ToJSON()
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 96.0, decoded["totalRowsLoaded"])
}

func TestMetricsResetKeepsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, zap.NewNop())
	require.NoError(t, err)

	m.RecordEntityResult(finishedResult("event", 0, 10, 1, true))
	m.Reset()
	m.RecordEntityResult(finishedResult("event", 0, 10, 1, true))

	assert.Equal(t, 10, m.TotalRowsIn)
	assert.Equal(t, 20.0, testutil.ToFloat64(m.rowsExtracted.WithLabelValues("event")))
}

func TestNewMetricsRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg, zap.NewNop())
	require.NoError(t, err)

	_, err = NewMetrics(reg, zap.NewNop())
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.50s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, 0.0, getPercentage(1, 0))
	assert.Equal(t, 25.0, getPercentage(1, 4))
}
