package orders

import (
	"errors"
	"fmt"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrEmptyOrder         = errors.New("order has no items")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrNotFound           = errors.New("order not found")
	ErrInvalidAddress     = errors.New("invalid delivery address")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrWindowExpired      = errors.New("cancellation window expired")
	ErrItemUnavailable    = errors.New("food item unavailable")
	ErrDependency         = errors.New("dependency unavailable")
	ErrPaymentDeclined    = errors.New("payment declined")
	ErrPaymentSettled     = errors.New("payment already settled")
)

// ValidationError carries the offending request field. It matches
// ErrValidation and, when set, the more specific Kind.
type ValidationError struct {
	Field   string
	Message string
	Kind    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation || (e.Kind != nil && target == e.Kind)
}

type TransitionError struct {
	Current domain.OrderStatus
	Target  domain.OrderStatus
}

func (e *TransitionError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("order is %s", e.Current)
	}
	return fmt.Sprintf("cannot move order from %s to %s", e.Current, e.Target)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

type ItemUnavailableError struct {
	FoodItemID string
}

func (e *ItemUnavailableError) Error() string {
	return fmt.Sprintf("food item %s is unavailable", e.FoodItemID)
}

func (e *ItemUnavailableError) Is(target error) bool {
	return target == ErrItemUnavailable
}

func dependencyError(name string, err error) error {
	return fmt.Errorf("%s: %w: %w", name, ErrDependency, err)
}
