package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type TrackingSnapshot struct {
	ID             string          `json:"id"`
	Status         OrderStatus     `json:"status"`
	Total          decimal.Decimal `json:"total_amount"`
	CreatedAt      time.Time       `json:"created_at"`
	DriverLocation *Coordinates    `json:"driver_location"`
	Destination    *Coordinates    `json:"destination"`
}

// FoodItem is what the catalog knows about an item at lookup time.
type FoodItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	IsAvailable bool            `json:"is_available"`
}

// Address is a delivery address as seen by the order engine. Coordinates are
// nil when the address book has none recorded.
type Address struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Coordinates *Coordinates `json:"coordinates"`
}
