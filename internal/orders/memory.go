package orders

import (
	"context"
	"sort"
	"sync"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

// MemoryStore is an in-process Store. Every conditional update runs under a
// single mutex, which gives the same one-winner guarantee as the SQL version.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*domain.Order)}
}

func (s *MemoryStore) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return cloneOrder(order), nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := []domain.Order{}
	for _, order := range s.orders {
		if order.UserID == userID {
			orders = append(orders, *cloneOrder(order))
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus, driverID *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	if driverID != nil {
		d := *driverID
		order.DriverID = &d
	}
	return true, nil
}

func (s *MemoryStore) UpdateDriverLocation(_ context.Context, id string, loc domain.Coordinates) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok || order.Status.Terminal() {
		return false, nil
	}
	lat, lon := loc.Latitude, loc.Longitude
	order.DriverLatitude = &lat
	order.DriverLongitude = &lon
	return true, nil
}

func (s *MemoryStore) UpdatePaymentStatus(_ context.Context, id string, from, to domain.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok || order.PaymentStatus != from {
		return false, nil
	}
	order.PaymentStatus = to
	return true, nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	c.DeliveryAddressID = clonePtr(o.DeliveryAddressID)
	c.DriverID = clonePtr(o.DriverID)
	c.DriverLatitude = clonePtr(o.DriverLatitude)
	c.DriverLongitude = clonePtr(o.DriverLongitude)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
