package search

import (
	"bytes"
	"context"
	"encoding/json"

	"example.com/backstage/services/fridge/config"
	"example.com/backstage/services/fridge/internal/models"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	deliveriesIndex = "deliveries"
	activityIndex   = "activity"
)

// Indexer projects deliveries and activity entries into a search store
type Indexer interface {
	IndexDelivery(ctx context.Context, delivery *models.Delivery) error
	IndexActivity(ctx context.Context, entry *models.Activity) error
}

// ElasticClient provides integration with Elasticsearch
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		config: cfg,
	}, nil
}

// NewIndexer returns the Elasticsearch indexer, or a no-op one when the
// projection is disabled
func NewIndexer(cfg config.ElasticConfig) (Indexer, error) {
	if !cfg.Enabled {
		return NopIndexer{}, nil
	}
	return NewElasticClient(cfg)
}

// IndexDelivery indexes the current state of a delivery. The access code is
// never projected.
func (c *ElasticClient) IndexDelivery(ctx context.Context, delivery *models.Delivery) error {
	doc := map[string]interface{}{
		"delivery_id":       delivery.DeliveryID.String(),
		"order_id":          delivery.OrderID,
		"delivery_date":     delivery.DeliveryDate,
		"items_to_deliver":  delivery.ItemsToDeliver,
		"items_undelivered": delivery.ItemsUndelivered,
		"status":            delivery.Status,
		"total_cost":        delivery.TotalCost,
		"is_delivered":      delivery.IsDelivered,
		"is_checked":        delivery.IsChecked,
	}
	if delivery.DeliveryNotes != nil {
		doc["delivery_notes"] = *delivery.DeliveryNotes
	}

	if err := c.index(ctx, deliveriesIndex, delivery.DeliveryID.String(), doc); err != nil {
		return err
	}

	log.Debug().Str("delivery_id", delivery.DeliveryID.String()).Msg("delivery indexed successfully")
	return nil
}

// IndexActivity indexes an activity entry
func (c *ElasticClient) IndexActivity(ctx context.Context, entry *models.Activity) error {
	doc := map[string]interface{}{
		"id":          entry.ID.String(),
		"action":      entry.Action,
		"occurred_at": entry.OccurredAt,
	}
	if entry.UID != nil {
		doc["uid"] = *entry.UID
	}
	return c.index(ctx, activityIndex, entry.ID.String(), doc)
}

func (c *ElasticClient) index(ctx context.Context, index, id string, doc map[string]interface{}) error {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal document")
	}

	req := esapi.IndexRequest{
		Index:      config.FormatIndex(c.config, index),
		DocumentID: id,
		Body:       bytes.NewReader(docJSON),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}

	return nil
}

// NopIndexer drops every document
type NopIndexer struct{}

// IndexDelivery is a no-op
func (NopIndexer) IndexDelivery(context.Context, *models.Delivery) error { return nil }

// IndexActivity is a no-op
func (NopIndexer) IndexActivity(context.Context, *models.Activity) error { return nil }
