package models

import "time"

// Event types
const (
	EventTypeOrderCreated = "ORDER_CREATED"
	EventTypeOrderPaid    = "ORDER_PAID"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when intake persists a new order
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	StoreID     string          `json:"store_id"`
	OrderNumber string          `json:"order_number"`
	Items       []OrderItemData `json:"items"`
}

// OrderPaidEvent published when a payment notification is reconciled
type OrderPaidEvent struct {
	BaseEvent
	OrderID string          `json:"order_id"`
	StoreID string          `json:"store_id"`
	Items   []OrderItemData `json:"items"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}
