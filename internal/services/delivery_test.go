package services

import (
	"context"
	"testing"

	"example.com/backstage/services/fridge/internal/apperrors"
	"example.com/backstage/services/fridge/internal/models"
	"example.com/backstage/services/fridge/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeeklyCycleCreatesDeliveryAndSeedsOrder(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, 3, "Milk", "2.50")
	f.seedProduct(t, 5, "Eggs", "1.20")
	f.seedProduct(t, 6, "Butter", "1.75")
	f.seedItem(t, 6, 1, testNow.Add(10*day))
	ctx := context.Background()

	_, err := f.svc.Ledger.AddLine(ctx, previousOrder, 3, 4, models.TriggerUser)
	require.NoError(t, err)
	_, err = f.svc.Ledger.AddLine(ctx, previousOrder, 5, 2, models.TriggerSystem)
	require.NoError(t, err)

	report, err := f.svc.Deliveries.RunWeeklyCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, previousOrder, report.OrderID)

	d := report.Delivery
	require.NotNil(t, d)
	assert.Equal(t, previousOrder, d.OrderID)
	assert.Equal(t, models.DeliveryProcessed, d.Status)
	assert.Equal(t, 6, d.ItemsToDeliver)
	assert.Equal(t, 0, d.ItemsUndelivered)
	assert.Equal(t, "£12.40", d.TotalCost)
	assert.False(t, d.IsDelivered)
	assert.False(t, d.IsChecked)
	require.NotNil(t, d.AccessCode)
	assert.GreaterOrEqual(t, *d.AccessCode, 1000)
	assert.LessOrEqual(t, *d.AccessCode, 9999)

	active, err := repositories.NewAccessCodeRepository(f.db).Active(ctx, *d.AccessCode)
	require.NoError(t, err)
	assert.True(t, active)

	for _, line := range f.lines(t, previousOrder) {
		assert.Equal(t, models.LineOrdered, line.Status)
	}

	require.NotNil(t, report.Seed)
	assert.Equal(t, currentOrder, report.Seed.OrderID)
	assert.Equal(t, []int{6}, report.Seed.Added)

	// a second run finds the delivery already made
	again, err := f.svc.Deliveries.RunWeeklyCycle(ctx)
	require.NoError(t, err)
	assert.Nil(t, again.Delivery)

	var count int64
	require.NoError(t, f.db.Model(&models.Delivery{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFinalizeOrderWithoutLines(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Deliveries.FinalizeOrder(context.Background(), previousOrder)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	report, err := f.svc.Deliveries.RunWeeklyCycle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report.Delivery)
}

func TestFinalizeOrderTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	f.previousWeekDelivery(t)

	_, err := f.svc.Deliveries.FinalizeOrder(context.Background(), previousOrder)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestAccessCodeIssuer(t *testing.T) {
	db := newTestDB(t)
	codes := repositories.NewAccessCodeRepository(db)
	ctx := context.Background()

	sequence := func(values ...int) CodeSource {
		i := 0
		return func() (int, error) {
			v := values[i%len(values)]
			i++
			return v, nil
		}
	}

	taken := NewAccessCodeIssuer(codes, 10, sequence(1234), nil)
	code, err := taken.Issue(ctx, models.AccessCodeSession)
	require.NoError(t, err)
	assert.Equal(t, 1234, code)

	t.Run("retries past active codes", func(t *testing.T) {
		issuer := NewAccessCodeIssuer(codes, 10, sequence(1234, 1234, 5678), nil)
		code, err := issuer.Issue(ctx, models.AccessCodeDelivery)
		require.NoError(t, err)
		assert.Equal(t, 5678, code)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		issuer := NewAccessCodeIssuer(codes, 5, sequence(1234), nil)
		_, err := issuer.Issue(ctx, models.AccessCodeDelivery)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindExhaustedRetries, apperrors.KindOf(err))
	})

	t.Run("released codes can be issued again", func(t *testing.T) {
		require.NoError(t, taken.Release(ctx, 1234))
		code, err := NewAccessCodeIssuer(codes, 1, sequence(1234), nil).Issue(ctx, models.AccessCodeDelivery)
		require.NoError(t, err)
		assert.Equal(t, 1234, code)
	})
}

func TestRandomCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := RandomCode()
		require.NoError(t, err)
		require.GreaterOrEqual(t, code, 1000)
		require.LessOrEqual(t, code, 9999)
	}
}
