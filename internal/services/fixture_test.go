package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"example.com/backstage/services/fridge/config"
	"example.com/backstage/services/fridge/internal/database"
	"example.com/backstage/services/fridge/internal/messaging"
	"example.com/backstage/services/fridge/internal/metrics"
	"example.com/backstage/services/fridge/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Monday of ISO week 9, 2024
var testNow = time.Date(2024, time.February, 26, 9, 0, 0, 0, time.UTC)

const (
	currentOrder  = "0924"
	previousOrder = "0824"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n messaging.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *mockNotifier) Close() error {
	return nil
}

type fixture struct {
	db       *gorm.DB
	current  time.Time
	svc      *Services
	metrics  *metrics.Metrics
	notifier *mockNotifier
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(false))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.SetupModels(db))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		db:       newTestDB(t),
		current:  testNow,
		metrics:  metrics.NewMetrics(),
		notifier: new(mockNotifier),
	}
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil).Maybe()

	f.svc = New(Dependencies{
		DB:       f.db,
		Notifier: f.notifier,
		Metrics:  f.metrics,
		Policy:   config.DefaultFridgeConfig(),
		Clock:    f.now,
	})
	return f
}

func (f *fixture) now() time.Time {
	return f.current
}

func (f *fixture) seedProduct(t *testing.T, id int, name, price string) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.Product{
		ProductID: id,
		Name:      name,
		Price:     decimal.RequireFromString(price),
	}).Error)
}

func (f *fixture) seedItem(t *testing.T, id, quantity int, expiry time.Time) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.InventoryItem{
		ItemID:      id,
		Quantity:    quantity,
		ExpiryDate:  expiry,
		LastUpdated: f.current,
	}).Error)
}

func (f *fixture) lines(t *testing.T, orderID string) []models.OrderLine {
	t.Helper()
	var lines []models.OrderLine
	require.NoError(t, f.db.Where("order_id = ?", orderID).Order("product_id").Find(&lines).Error)
	return lines
}

func (f *fixture) activity(t *testing.T) []models.Activity {
	t.Helper()
	var entries []models.Activity
	require.NoError(t, f.db.Order("occurred_at").Find(&entries).Error)
	return entries
}

func (f *fixture) findActivity(t *testing.T, action string) models.Activity {
	t.Helper()
	var entries []models.Activity
	require.NoError(t, f.db.Where("action = ?", action).Find(&entries).Error)
	require.Len(t, entries, 1, "activity %q", action)
	return entries[0]
}

func (f *fixture) item(t *testing.T, id int) (models.InventoryItem, bool) {
	t.Helper()
	var items []models.InventoryItem
	require.NoError(t, f.db.Where("item_id = ?", id).Find(&items).Error)
	if len(items) == 0 {
		return models.InventoryItem{}, false
	}
	return items[0], true
}

// previousWeekDelivery creates last week's delivery for products 3 (x4) and
// 5 (x2)
func (f *fixture) previousWeekDelivery(t *testing.T) *models.Delivery {
	t.Helper()
	ctx := context.Background()

	f.seedProduct(t, 3, "Milk", "2.50")
	f.seedProduct(t, 5, "Eggs", "1.20")
	_, err := f.svc.Ledger.AddLine(ctx, previousOrder, 3, 4, models.TriggerUser)
	require.NoError(t, err)
	_, err = f.svc.Ledger.AddLine(ctx, previousOrder, 5, 2, models.TriggerUser)
	require.NoError(t, err)

	delivery, err := f.svc.Deliveries.FinalizeOrder(ctx, previousOrder)
	require.NoError(t, err)
	return delivery
}

// deliveredOrder drives last week's delivery to Delivered with delivered and
// undelivered products
func (f *fixture) deliveredOrder(t *testing.T, delivered, undelivered []int) *models.Delivery {
	t.Helper()
	ctx := context.Background()

	d := f.previousWeekDelivery(t)
	_, err := f.svc.Confirmation.RecordDriverLogin(ctx, *d.AccessCode)
	require.NoError(t, err)

	d, err = f.svc.Confirmation.ConfirmDelivery(ctx, ConfirmRequest{
		DeliveryID:  d.DeliveryID,
		Delivered:   delivered,
		Undelivered: undelivered,
	})
	require.NoError(t, err)
	return d
}
