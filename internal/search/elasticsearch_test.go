package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"example.com/backstage/services/fridge/config"
	"example.com/backstage/services/fridge/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeElastic struct {
	mu   sync.Mutex
	docs map[string]map[string]interface{}
}

func (f *fakeElastic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodGet && r.URL.Path == "/" {
		_, _ = w.Write([]byte(`{"version":{"number":"7.17.10","build_flavor":"default"},"tagline":"You Know, for Search"}`))
		return
	}

	var doc map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad body"}`))
		return
	}

	f.mu.Lock()
	f.docs[r.URL.Path] = doc
	f.mu.Unlock()

	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(`{"result":"created"}`))
}

func TestIndexDeliveryOmitsAccessCode(t *testing.T) {
	fake := &fakeElastic{docs: make(map[string]map[string]interface{})}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	indexer, err := NewIndexer(config.ElasticConfig{Enabled: true, URL: srv.URL, Prefix: "fridge"})
	require.NoError(t, err)

	code := 4821
	delivery := &models.Delivery{
		DeliveryID:     uuid.New(),
		OrderID:        "0824",
		DeliveryDate:   time.Date(2024, time.February, 26, 8, 0, 0, 0, time.UTC),
		AccessCode:     &code,
		ItemsToDeliver: 6,
		Status:         models.DeliveryProcessed,
		TotalCost:      "£12.40",
	}
	require.NoError(t, indexer.IndexDelivery(context.Background(), delivery))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	doc, ok := fake.docs["/fridge-deliveries/_doc/"+delivery.DeliveryID.String()]
	require.True(t, ok, "indexed paths: %v", fake.docs)
	assert.Equal(t, "0824", doc["order_id"])
	assert.Equal(t, "£12.40", doc["total_cost"])
	assert.NotContains(t, doc, "access_code")
}

func TestNewIndexerDisabled(t *testing.T) {
	indexer, err := NewIndexer(config.ElasticConfig{Enabled: false})
	require.NoError(t, err)
	assert.IsType(t, NopIndexer{}, indexer)
	assert.NoError(t, indexer.IndexActivity(context.Background(), &models.Activity{ID: uuid.New(), Action: "noop"}))
}
