package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryStatusCanAdvanceTo(t *testing.T) {
	tests := []struct {
		from, to DeliveryStatus
		want     bool
	}{
		{DeliveryProcessed, DeliveryInProcess, true},
		{DeliveryInProcess, DeliveryDelivered, true},
		{DeliveryDelivered, DeliveryCompleted, true},
		{DeliveryProcessed, DeliveryDelivered, false},
		{DeliveryDelivered, DeliveryInProcess, false},
		{DeliveryCompleted, DeliveryCompleted, false},
		{DeliveryStatus("Lost"), DeliveryInProcess, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+" to "+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanAdvanceTo(tt.to))
		})
	}
}
