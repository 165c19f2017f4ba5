package scheduler

import (
	"context"
	"testing"
	"time"

	"example.com/backstage/services/fridge/config"
	"example.com/backstage/services/fridge/internal/metrics"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		StockScanInterval:  time.Hour,
		ExpiryScanInterval: time.Hour,
		DeliveryCron:       config.DefaultDeliveryCron,
	}
}

func TestRunExecutesTask(t *testing.T) {
	m := metrics.NewMetrics()
	calls := 0
	s, err := New(context.Background(), testConfig(), Tasks{
		StockScan:  func(context.Context) error { calls++; return nil },
		ExpiryScan: func(context.Context) error { return errors.New("boom") },
	}, nil, m)
	require.NoError(t, err)
	defer s.Shutdown()

	assert.Equal(t, []string{TaskExpiryScan, TaskStockScan}, s.Names())

	require.NoError(t, s.Run(context.Background(), TaskStockScan))
	assert.Equal(t, 1, calls)

	assert.EqualError(t, s.Run(context.Background(), TaskExpiryScan), "boom")
	rates := m.GetErrorRates()
	assert.Equal(t, int64(1), rates[metrics.TaskDuration+"."+TaskExpiryScan].Errors)

	assert.Error(t, s.Run(context.Background(), TaskWeeklyDelivery))
	assert.Error(t, s.RunNow("unknown"))
}

func TestRunNowTriggersJob(t *testing.T) {
	ran := make(chan struct{}, 1)
	s, err := New(context.Background(), testConfig(), Tasks{
		WeeklyDelivery: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}, nil, nil)
	require.NoError(t, err)

	s.Start()
	defer s.Shutdown()

	require.NoError(t, s.RunNow(TaskWeeklyDelivery))
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("task was not run")
	}
}

func TestNewRejectsInvalidCron(t *testing.T) {
	cfg := testConfig()
	cfg.DeliveryCron = "every monday"

	_, err := New(context.Background(), cfg, Tasks{
		WeeklyDelivery: func(context.Context) error { return nil },
	}, nil, nil)
	assert.Error(t, err)
}
