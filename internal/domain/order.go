package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusOutForDelivery,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransition reports whether an order in status s may move to next.
// Cancellation is reachable from every non-terminal state; everything else
// only moves one step forward.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	switch s {
	case OrderStatusPending:
		return next == OrderStatusProcessing
	case OrderStatusProcessing:
		return next == OrderStatusOutForDelivery
	case OrderStatusOutForDelivery:
		return next == OrderStatusDelivered
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodOnline PaymentMethod = "online"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

type OrderItem struct {
	ID         string          `json:"id"`
	FoodItemID string          `json:"food_item_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Price      decimal.Decimal `json:"price"`
}

type Order struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	DeliveryAddressID *string         `json:"delivery_address_id"`
	Status            OrderStatus     `json:"status"`
	Total             decimal.Decimal `json:"total_amount"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	DriverID          *string         `json:"driver_id"`
	DriverLatitude    *float64        `json:"driver_latitude"`
	DriverLongitude   *float64        `json:"driver_longitude"`
	Items             []OrderItem     `json:"items"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ItemRequest is one requested line of a placement, before prices are resolved.
type ItemRequest struct {
	FoodItemID string `json:"food_item_id"`
	Quantity   int    `json:"quantity"`
}
