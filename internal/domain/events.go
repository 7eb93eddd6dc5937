package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

type OrderPlacedEvent struct {
	Type      string          `json:"type"`
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	Items     []OrderItem     `json:"items"`
	Total     decimal.Decimal `json:"total_amount"`
	Timestamp time.Time       `json:"timestamp"`
}

type OrderStatusChangedEvent struct {
	Type      string      `json:"type"`
	OrderID   string      `json:"order_id"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	Actor     string      `json:"actor,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// DriverLocationEvent is a GPS fix published by a driver's device.
type DriverLocationEvent struct {
	OrderID    string    `json:"order_id"`
	DriverID   string    `json:"driver_id,omitempty"`
	Latitude   *float64  `json:"latitude"`
	Longitude  *float64  `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Transition is one applied status change, as kept on the audit trail.
type Transition struct {
	OrderID string      `json:"order_id"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
	Actor   string      `json:"actor"`
	At      time.Time   `json:"at"`
}
