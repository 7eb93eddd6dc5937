package orders

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

// Store persists orders. Lookups return nil, nil when the order does not exist.
// The Update methods are conditional: they report false when the row was not in
// the expected state, and must apply for at most one concurrent caller.
type Store interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, driverID *string) (bool, error)
	UpdateDriverLocation(ctx context.Context, id string, loc domain.Coordinates) (bool, error)
	UpdatePaymentStatus(ctx context.Context, id string, from, to domain.PaymentStatus) (bool, error)
}

type CatalogProvider interface {
	GetFoodItem(ctx context.Context, id string) (*domain.FoodItem, error)
}

type AddressStore interface {
	GetAddress(ctx context.Context, id string) (*domain.Address, error)
}

// FreshAddressStore is implemented by caching address stores that can bypass
// the cache. Placement uses it so ownership is checked against the source.
type FreshAddressStore interface {
	GetFreshAddress(ctx context.Context, id string) (*domain.Address, error)
}

type PaymentRequest struct {
	OrderID   string
	Reference string
	Amount    decimal.Decimal
}

// PaymentGateway confirms an externally captured payment. A nil error with
// false means the gateway declined it.
type PaymentGateway interface {
	Verify(ctx context.Context, req PaymentRequest) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type TransitionRecorder interface {
	Record(ctx context.Context, t domain.Transition) error
}
