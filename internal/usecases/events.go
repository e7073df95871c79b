package usecases

import "github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/entities"

const (
	OrderEventCreated   = "order_created"
	OrderEventFilled    = "order_filled"
	OrderEventCancelled = "order_cancelled"
)

// OrderEvent describes an order book change pushed to stream subscribers.
// AmountRemaining is set on fill events and nil when the order left the
// book; Order is populated for created orders only.
type OrderEvent struct {
	Type            string          `json:"type"`
	OrderID         int64           `json:"order_id"`
	AmountRemaining *string         `json:"amount_remaining,omitempty"`
	Order           *entities.Order `json:"order,omitempty"`
}

// EventPublisher fans order book events out to subscribers. Publish must
// not block the caller.
type EventPublisher interface {
	Publish(event OrderEvent)
}
