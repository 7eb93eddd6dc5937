package locator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/messaging"
	"github.com/joao-fontenele/foodflow/internal/orders"
)

const (
	Topic   = "driver.location"
	GroupID = "order-locator"
)

type LocationUpdater interface {
	UpdateDriverLocation(ctx context.Context, orderID string, loc domain.Coordinates) error
}

// LocationHandler applies driver GPS fixes from the driver.location topic to
// their orders.
type LocationHandler struct {
	updater LocationUpdater
	logger  *slog.Logger
}

func NewLocationHandler(updater LocationUpdater, logger *slog.Logger) *LocationHandler {
	return &LocationHandler{
		updater: updater,
		logger:  logger,
	}
}

// Handle returns an error only for failures worth redelivering. Malformed
// fixes and fixes for unknown or finished orders are logged and dropped.
// Devices key fixes by order id, so the key stands in for a missing order_id.
func (h *LocationHandler) Handle(ctx context.Context, msg messaging.Message) error {
	var event domain.DriverLocationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Warn("dropping malformed location event", "error", err, "key", msg.Key)
		return nil
	}
	if event.OrderID == "" {
		event.OrderID = msg.Key
	}
	if event.OrderID == "" {
		h.logger.Warn("dropping location event without order id", "driver_id", event.DriverID)
		return nil
	}
	if msg.Key != "" && msg.Key != event.OrderID {
		h.logger.Warn("dropping location event keyed for another order", "key", msg.Key, "order_id", event.OrderID)
		return nil
	}

	loc, err := orders.ParseCoordinates(event.Latitude, event.Longitude)
	if err != nil {
		h.logger.Warn("dropping invalid location event", "error", err, "order_id", event.OrderID, "driver_id", event.DriverID)
		return nil
	}

	err = h.updater.UpdateDriverLocation(ctx, event.OrderID, loc)
	switch {
	case err == nil:
		h.logger.Debug("driver location updated", "order_id", event.OrderID, "driver_id", event.DriverID)
		return nil
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, orders.ErrInvalidTransition), errors.Is(err, orders.ErrValidation):
		h.logger.Info("skipping location event", "reason", err.Error(), "order_id", event.OrderID, "driver_id", event.DriverID)
		return nil
	default:
		h.logger.Error("failed to update driver location", "error", err, "order_id", event.OrderID)
		return err
	}
}
