package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/backstage/services/fridge/config"
	"example.com/backstage/services/fridge/internal/database"
	"example.com/backstage/services/fridge/internal/metrics"
	"example.com/backstage/services/fridge/internal/models"
	"example.com/backstage/services/fridge/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Monday of ISO week 9, 2024
var testNow = time.Date(2024, time.February, 26, 9, 0, 0, 0, time.UTC)

type envelope struct {
	Code    int             `json:"code"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t       *testing.T
	db      *gorm.DB
	svc     *services.Services
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(false))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.SetupModels(db))

	m := metrics.NewMetrics()
	svc := services.New(services.Dependencies{
		DB:      db,
		Metrics: m,
		Policy:  config.DefaultFridgeConfig(),
		Clock:   func() time.Time { return testNow },
	})

	server := NewServer(config.ServerConfig{Mode: "test", MetricsEnabled: true}, svc, m, nil)
	return &testServer{t: t, db: db, svc: svc, handler: server.Handler()}
}

func (s *testServer) seedProduct(id int, name, price string) {
	require.NoError(s.t, s.db.Create(&models.Product{
		ProductID: id,
		Name:      name,
		Price:     decimal.RequireFromString(price),
	}).Error)
}

func (s *testServer) do(method, path string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestOrderLineEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(3, "Milk", "2.50")
	s.seedProduct(5, "Eggs", "1.20")

	w, env := s.do(http.MethodPost, "/api/v1/orders/0924/lines", map[string]int{"productID": 3, "quantity": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, http.StatusCreated, env.Code)

	w, env = s.do(http.MethodPost, "/api/v1/orders/0924/lines", map[string]int{"productID": 3, "quantity": 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", env.Error)

	w, env = s.do(http.MethodPost, "/api/v1/orders/0924/lines", map[string]interface{}{
		"items": []map[string]int{{"productID": 5, "quantity": 1}, {"productID": 3, "quantity": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ARGUMENT", env.Error)

	w, _ = s.do(http.MethodPost, "/api/v1/orders/0924/lines", map[string]interface{}{
		"items": []map[string]int{{"productID": 5, "quantity": 6}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = s.do(http.MethodPost, "/api/v1/orders/0924/lines", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(http.MethodGet, "/api/v1/orders/current", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var lines []models.OrderLineDetail
	require.NoError(t, json.Unmarshal(env.Data, &lines))
	require.Len(t, lines, 2)
	assert.Equal(t, "Milk", lines[0].Name)
	assert.Equal(t, models.LineProcessing, lines[0].Status)
	assert.Equal(t, 6, lines[1].Quantity)

	w, _ = s.do(http.MethodPatch, "/api/v1/orders/0924/lines/3", map[string]int{"quantity": 7})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodDelete, "/api/v1/orders/0924/lines/5", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(http.MethodDelete, "/api/v1/orders/0924/lines/5", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error)

	w, _ = s.do(http.MethodGet, "/api/v1/orders/24", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeliveryEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(3, "Milk", "2.50")
	s.seedProduct(5, "Eggs", "1.20")
	ctx := context.Background()

	_, err := s.svc.Ledger.AddLine(ctx, "0824", 3, 4, models.TriggerUser)
	require.NoError(t, err)
	_, err = s.svc.Ledger.AddLine(ctx, "0824", 5, 2, models.TriggerUser)
	require.NoError(t, err)
	delivery, err := s.svc.Deliveries.FinalizeOrder(ctx, "0824")
	require.NoError(t, err)

	w, env := s.do(http.MethodPost, "/api/v1/deliveries/login", map[string]int{"accessCode": 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error)

	w, env = s.do(http.MethodPost, "/api/v1/deliveries/login", map[string]int{"accessCode": *delivery.AccessCode})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, string(models.DeliveryInProcess), got["status"])
	assert.NotContains(t, got, "accessCode")

	w, _ = s.do(http.MethodPost, "/api/v1/deliveries/not-a-uuid/confirm", map[string]interface{}{"delivered": []int{3}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	confirmPath := "/api/v1/deliveries/" + delivery.DeliveryID.String() + "/confirm"
	w, _ = s.do(http.MethodPost, confirmPath, map[string]interface{}{"undelivered": []int{5}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(http.MethodPost, confirmPath, map[string]interface{}{"delivered": []int{3}, "undelivered": []int{5}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, string(models.DeliveryDelivered), got["status"])
	assert.Equal(t, float64(1), got["itemsUndelivered"])

	w, _ = s.do(http.MethodPost, "/api/v1/orders/0824/finalize", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = s.do(http.MethodPost, "/api/v1/orders/0824/finalize", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", env.Error)

	w, env = s.do(http.MethodGet, "/api/v1/inventory", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []models.InventoryItem
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].ItemID)
	assert.Equal(t, 4, items[0].Quantity)
}

func TestInventoryEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.seedProduct(4, "Cheese", "3.20")

	w, _ := s.do(http.MethodPost, "/api/v1/inventory/receive", map[string]interface{}{"itemID": 4, "quantity": 3, "expiry": "15-03-24"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := s.do(http.MethodPost, "/api/v1/inventory/receive", map[string]interface{}{"itemID": 4, "quantity": 3, "expiry": "2024-03-15"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ARGUMENT", env.Error)

	w, env = s.do(http.MethodPost, "/api/v1/inventory/consume", map[string]int{"itemID": 4, "quantity": 5})
	require.Equal(t, http.StatusOK, w.Code)
	var item models.InventoryItem
	require.NoError(t, json.Unmarshal(env.Data, &item))
	assert.Equal(t, 0, item.Quantity)

	w, env = s.do(http.MethodGet, "/api/v1/products?instock=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stocked []models.StockedProduct
	require.NoError(t, json.Unmarshal(env.Data, &stocked))
	assert.Empty(t, stocked)

	w, _ = s.do(http.MethodGet, "/api/v1/products/Cheese", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/products/Caviar", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActivityEndpoints(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(http.MethodPost, "/api/v1/activity", map[string]string{"action": "Fridge cleaned"}, "X-User-ID", "admin-7")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var entry models.Activity
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	require.NotNil(t, entry.UID)
	assert.Equal(t, "admin-7", *entry.UID)

	w, env = s.do(http.MethodGet, "/api/v1/activity", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []models.Activity
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	assert.Len(t, entries, 1)

	w, _ = s.do(http.MethodGet, "/api/v1/activity?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/activity?from=2024-02-27T00:00:00Z&to=2024-02-26T00:00:00Z", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthMetricsAndRequestID(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(http.MethodGet, "/health", nil, "X-Request-ID", "req-42")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	w, _ = s.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "counters")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
