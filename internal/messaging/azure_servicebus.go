package messaging

import (
	"context"
	"encoding/json"
	"time"

	"example.com/backstage/services/fridge/config"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Notification types published by the fridge services
const (
	TypeExpiringSoon     = "inventory.expiring_soon"
	TypeItemExpired      = "inventory.expired"
	TypeDeliveryCreated  = "delivery.created"
	TypeDeliveryFinished = "delivery.completed"
)

// Notification is the body published for operators
type Notification struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"orderID,omitempty"`
	ItemID     int       `json:"itemID,omitempty"`
	DeliveryID string    `json:"deliveryID,omitempty"`
	Message    string    `json:"message"`
	Time       time.Time `json:"time"`
}

// Notifier publishes notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	Close() error
}

// serviceBusNotifier publishes to an Azure Service Bus queue
type serviceBusNotifier struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
	source    string
}

// NewNotifier creates a Service Bus notifier. Without a connection string
// notifications are only logged.
func NewNotifier(cfg config.AzureConfig, source string) (Notifier, error) {
	if cfg.QueueConnStr == "" {
		log.Warn().Msg("Azure Service Bus connection string not provided, notifications will only be logged")
		return NopNotifier{}, nil
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		_ = client.Close(context.Background())
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &serviceBusNotifier{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
		source:    source,
	}, nil
}

// Notify sends the notification to the queue
func (s *serviceBusNotifier) Notify(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification")
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"source": s.source,
			"type":   n.Type,
			"time":   n.Time.UTC().Format(time.RFC3339),
		},
	}

	if err := s.sender.SendMessage(ctx, msg, nil); err != nil {
		return errors.Wrapf(err, "failed to send notification to %s", s.queueName)
	}
	return nil
}

// Close closes the sender and the client
func (s *serviceBusNotifier) Close() error {
	if s.sender != nil {
		if err := s.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if s.client != nil {
		return s.client.Close(context.Background())
	}
	return nil
}

// NopNotifier logs notifications instead of publishing them
type NopNotifier struct{}

// Notify logs n
func (NopNotifier) Notify(_ context.Context, n Notification) error {
	log.Info().Str("type", n.Type).Str("order_id", n.OrderID).Int("item_id", n.ItemID).Msg(n.Message)
	return nil
}

// Close is a no-op
func (NopNotifier) Close() error { return nil }
