package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"example.com/backstage/services/fridge/internal/messaging"
	"example.com/backstage/services/fridge/internal/metrics"
	"example.com/backstage/services/fridge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const day = 24 * time.Hour

func TestStockScanIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, 1, "Apple", "0.40")
	f.seedProduct(t, 2, "Bread", "1.10")
	f.seedProduct(t, 3, "Milk", "2.50")
	f.seedItem(t, 1, 2, testNow.Add(10*day))
	f.seedItem(t, 2, 5, testNow.Add(10*day))
	f.seedItem(t, 3, 0, testNow.Add(10*day))
	ctx := context.Background()

	report, err := f.svc.Stock.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, currentOrder, report.OrderID)
	assert.Equal(t, []int{1, 3}, report.Added)

	report, err = f.svc.Stock.Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Added)
	assert.Equal(t, []int{1, 3}, report.Skipped)

	lines := f.lines(t, currentOrder)
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Equal(t, 10, line.Quantity)
		assert.Equal(t, models.TriggerSystem, line.TriggerType)
		assert.Equal(t, models.LineProcessing, line.Status)
	}

	entries := f.activity(t)
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0].Action+entries[1].Action, "Apple")
	assert.Contains(t, entries[0].Action+entries[1].Action, "Milk")
	assert.Nil(t, entries[0].UID)

	assert.Equal(t, int64(2), f.metrics.GetCounters()[metrics.StockLinesAdded])
}

func TestStockScanSkipsUserLine(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, 1, "Apple", "0.40")
	f.seedItem(t, 1, 1, testNow.Add(10*day))
	ctx := context.Background()

	_, err := f.svc.Ledger.AddLine(ctx, currentOrder, 1, 2, models.TriggerUser)
	require.NoError(t, err)

	report, err := f.svc.Stock.Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Added)
	assert.Equal(t, []int{1}, report.Skipped)

	lines := f.lines(t, currentOrder)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestStockScanContinuesAfterItemFailure(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, 1, "Apple", "0.40")
	// item 50 has no catalog entry, so its line cannot be added
	f.seedItem(t, 1, 0, testNow.Add(10*day))
	f.seedItem(t, 50, 0, testNow.Add(10*day))

	report, err := f.svc.Stock.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, report.Added)
	assert.Equal(t, []int{50}, report.Failed)
	assert.Equal(t, int64(1), f.metrics.GetCounters()[metrics.StockScanItemErrors])
}

func TestExpiryScanRemovesExpiredItem(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, 7, 2, testNow.Add(-day))
	f.seedItem(t, 8, 4, testNow.Add(20*day))

	report, err := f.svc.Expiry.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{7}, report.Removed)
	assert.Empty(t, report.Failed)

	_, found := f.item(t, 7)
	assert.False(t, found)
	_, found = f.item(t, 8)
	assert.True(t, found)

	entries := f.activity(t)
	require.Len(t, entries, 1)
	assert.True(t, strings.Contains(entries[0].Action, "item 7"), entries[0].Action)

	f.notifier.AssertCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(n messaging.Notification) bool {
		return n.Type == messaging.TypeItemExpired && n.ItemID == 7
	}))
}

func TestExpiryScanReportsItemsExpiringSoon(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, 9, "Yoghurt", "0.90")
	f.seedItem(t, 8, 3, testNow.Add(2*day))
	f.seedItem(t, 9, 3, testNow.Add(2*day))
	f.seedItem(t, 10, 3, testNow.Add(5*day))
	ctx := context.Background()

	_, err := f.svc.Ledger.AddLine(ctx, currentOrder, 9, 6, models.TriggerUser)
	require.NoError(t, err)

	soon, err := f.svc.Expiry.ReportExpiringSoon(ctx)
	require.NoError(t, err)
	require.Len(t, soon, 1)
	assert.Equal(t, 8, soon[0].ItemID)

	for _, id := range []int{8, 9, 10} {
		item, found := f.item(t, id)
		require.True(t, found)
		assert.Equal(t, 3, item.Quantity)
	}
	assert.Empty(t, f.activity(t))

	f.notifier.AssertCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(n messaging.Notification) bool {
		return n.Type == messaging.TypeExpiringSoon && n.ItemID == 8 && n.OrderID == currentOrder
	}))
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(n messaging.Notification) bool {
		return n.ItemID == 9 || n.ItemID == 10
	}))
}
