package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"example.com/backstage/services/fridge/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotifierWithoutConnectionString(t *testing.T) {
	n, err := NewNotifier(config.AzureConfig{QueueName: "fridge-notifications"}, "test")
	require.NoError(t, err)
	assert.IsType(t, NopNotifier{}, n)

	assert.NoError(t, n.Notify(context.Background(), Notification{Type: TypeItemExpired, ItemID: 4, Message: "Item 4 expired"}))
	assert.NoError(t, n.Close())
}

func TestNotificationJSON(t *testing.T) {
	n := Notification{
		Type:    TypeExpiringSoon,
		ItemID:  4,
		Message: "Cheese expires soon",
		Time:    time.Date(2024, time.February, 26, 9, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "inventory.expiring_soon",
		"itemID": 4,
		"message": "Cheese expires soon",
		"time": "2024-02-26T09:00:00Z"
	}`, string(data))
}
