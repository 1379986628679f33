// Package notify publishes side-channel events for consignment
// ("sous-traitant") stock movements. The consumer side is an external
// collaborator; this package only defines the producer interface and its
// Kafka and no-op implementations.
package notify

import (
	"context"
	"time"
)

// ConsignmentEvent is emitted whenever a serialized unit enters or leaves a
// stock whose group is flagged consignment.
type ConsignmentEvent struct {
	ProductID    string    `json:"product_id"`
	SKU          string    `json:"sku"`
	SerialNumber string    `json:"serial_number,omitempty"`
	StockID      string    `json:"stock_id"`
	StockName    string    `json:"stock_name"`
	GroupName    string    `json:"group_name"`
	Direction    string    `json:"direction"` // "in" or "out"
	At           time.Time `json:"at"`
}

type Notifier interface {
	ConsignmentChanged(ctx context.Context, event ConsignmentEvent) error
}

type Noop struct{}

func (Noop) ConsignmentChanged(_ context.Context, _ ConsignmentEvent) error {
	return nil
}
