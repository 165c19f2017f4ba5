package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountersAndRates(t *testing.T) {
	m := NewMetrics()

	m.IncrementCounter(StockScanRuns)
	m.IncrementCounterBy(StockLinesAdded, 3)
	m.IncrementCounterBy(StockLinesAdded, 2)
	m.SetGauge("goroutines", 8)

	assert.Equal(t, int64(1), m.GetCounters()[StockScanRuns])
	assert.Equal(t, int64(5), m.GetCounters()[StockLinesAdded])
	assert.Equal(t, int64(8), m.GetGauges()["goroutines"])

	m.RecordOutcome(DeliveryCycle, nil)
	m.RecordOutcome(DeliveryCycle, errors.New("boom"))
	rate := m.GetErrorRates()[DeliveryCycle]
	assert.Equal(t, int64(2), rate.Total)
	assert.Equal(t, int64(1), rate.Errors)
	assert.InDelta(t, 50.0, rate.ErrorRate, 0.001)
}

func TestTimers(t *testing.T) {
	m := NewMetrics()

	m.RecordTimer(TaskDuration, 10*time.Millisecond)
	m.RecordTimer(TaskDuration, 30*time.Millisecond)

	timer := m.GetTimers()[TaskDuration]
	assert.Equal(t, int64(2), timer.Count)
	assert.Equal(t, int64(40), timer.TotalTimeMs)
	assert.Equal(t, int64(10), timer.MinTimeMs)
	assert.Equal(t, int64(30), timer.MaxTimeMs)
	assert.InDelta(t, 20.0, timer.AverageTimeMs, 0.001)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncrementCounter(StockScanRuns)
		m.IncrementCounterBy(StockLinesAdded, 2)
		m.SetGauge("goroutines", 1)
		m.RecordTimer(TaskDuration, time.Second)
		m.RecordOutcome(DeliveryCycle, nil)
		m.SetHealth("database", true)
	})
}

func TestHealthChecks(t *testing.T) {
	m := NewMetrics()
	m.SetHealth("database", true)
	m.SetHealth("redis", false)

	assert.Equal(t, map[string]bool{"database": true, "redis": false}, m.GetHealthChecks())
	assert.Contains(t, m.GetAllMetrics(), "uptime_seconds")
}
