package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderDriverID = "X-Driver-ID"
	HeaderAdminID  = "X-Admin-ID"
)

type Handler struct {
	engine *Engine
	logger *slog.Logger
}

func NewHandler(engine *Engine, logger *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// Register mounts every order route on mux. wrap is applied to each handler,
// e.g. to tag spans with the matched route.
func (h *Handler) Register(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	if wrap == nil {
		wrap = func(f http.HandlerFunc) http.HandlerFunc { return f }
	}
	mux.HandleFunc("POST /orders/place", wrap(h.HandlePlace))
	mux.HandleFunc("GET /orders/mine", wrap(h.HandleList))
	mux.HandleFunc("GET /orders/{id}", wrap(h.HandleGet))
	mux.HandleFunc("POST /orders/{id}/cancel", wrap(h.HandleCancel))
	mux.HandleFunc("POST /orders/{id}/accept", wrap(h.HandleAccept))
	mux.HandleFunc("POST /orders/{id}/reject", wrap(h.HandleReject))
	mux.HandleFunc("PATCH /orders/{id}/location", wrap(h.HandleUpdateLocation))
	mux.HandleFunc("GET /orders/{id}/track", wrap(h.HandleTrack))
	mux.HandleFunc("PATCH /orders/{id}/status", wrap(h.HandleUpdateStatus))
	mux.HandleFunc("POST /orders/{id}/payment", wrap(h.HandleConfirmPayment))
}

type placeOrderRequest struct {
	DeliveryAddressID string               `json:"delivery_address_id"`
	PaymentMethod     domain.PaymentMethod `json:"payment_method"`
	Items             []domain.ItemRequest `json:"items"`
}

func (h *Handler) HandlePlace(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actor(w, r, HeaderUserID)
	if !ok {
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.engine.Place(r.Context(), userID, req.DeliveryAddressID, req.Items, req.PaymentMethod)
	if err != nil {
		h.writeEngineError(w, "place_order", "", userID, err)
		return
	}

	h.logger.Info("order placed", "order_id", order.ID, "user_id", userID, "total", order.Total.String())
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actor(w, r, HeaderUserID)
	if !ok {
		return
	}

	orders, err := h.engine.List(r.Context(), userID)
	if err != nil {
		h.writeEngineError(w, "list_orders", "", userID, err)
		return
	}

	h.logger.Info("orders listed", "user_id", userID, "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actor(w, r, HeaderUserID)
	if !ok {
		return
	}
	id := r.PathValue("id")

	order, err := h.engine.Get(r.Context(), userID, id)
	if err != nil {
		h.writeEngineError(w, "get_order", id, userID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actor(w, r, HeaderUserID)
	if !ok {
		return
	}
	id := r.PathValue("id")

	order, err := h.engine.Cancel(r.Context(), userID, id)
	if err != nil {
		h.writeEngineError(w, "cancel_order", id, userID, err)
		return
	}

	h.logger.Info("order cancelled", "order_id", id, "user_id", userID)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	driverID, ok := h.actor(w, r, HeaderDriverID)
	if !ok {
		return
	}
	id := r.PathValue("id")

	order, err := h.engine.Accept(r.Context(), driverID, id)
	if err != nil {
		h.writeEngineError(w, "accept_order", id, driverID, err)
		return
	}

	h.logger.Info("order accepted", "order_id", id, "driver_id", driverID)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	driverID, ok := h.actor(w, r, HeaderDriverID)
	if !ok {
		return
	}
	id := r.PathValue("id")

	order, err := h.engine.Reject(r.Context(), driverID, id)
	if err != nil {
		h.writeEngineError(w, "reject_order", id, driverID, err)
		return
	}

	h.logger.Info("order rejected", "order_id", id, "driver_id", driverID)
	h.writeJSON(w, http.StatusOK, order)
}

type updateLocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *Handler) HandleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	driverID, ok := h.actor(w, r, HeaderDriverID)
	if !ok {
		return
	}
	id := r.PathValue("id")

	var req updateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loc, err := ParseCoordinates(req.Latitude, req.Longitude)
	if err != nil {
		h.writeEngineError(w, "update_driver_location", id, driverID, err)
		return
	}

	if err := h.engine.UpdateDriverLocation(r.Context(), id, loc); err != nil {
		h.writeEngineError(w, "update_driver_location", id, driverID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, loc)
}

func (h *Handler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actor(w, r, HeaderUserID)
	if !ok {
		return
	}
	id := r.PathValue("id")

	snapshot, err := h.engine.Track(r.Context(), userID, id)
	if err != nil {
		h.writeEngineError(w, "get_tracking", id, userID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, snapshot)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.actor(w, r, HeaderAdminID)
	if !ok {
		return
	}
	id := r.PathValue("id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.engine.SetStatus(r.Context(), adminID, id, req.Status)
	if err != nil {
		h.writeEngineError(w, "set_status", id, adminID, err)
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status, "admin_id", adminID)
	h.writeJSON(w, http.StatusOK, order)
}

type confirmPaymentRequest struct {
	Reference string `json:"reference"`
}

func (h *Handler) HandleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actor(w, r, HeaderUserID)
	if !ok {
		return
	}
	id := r.PathValue("id")

	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.engine.ConfirmPayment(r.Context(), userID, id, req.Reference)
	if err != nil {
		h.writeEngineError(w, "confirm_payment", id, userID, err)
		return
	}

	h.logger.Info("payment confirmed", "order_id", id, "user_id", userID)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request, header string) (string, bool) {
	id := r.Header.Get(header)
	if id == "" {
		h.writeError(w, http.StatusUnauthorized, "missing "+header+" header")
		return "", false
	}
	return id, true
}

func (h *Handler) writeEngineError(w http.ResponseWriter, op, orderID, actor string, err error) {
	var (
		validation  *ValidationError
		transition  *TransitionError
		unavailable *ItemUnavailableError
	)

	switch {
	case errors.As(err, &validation):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Message, "field": validation.Field})
	case errors.As(err, &transition):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "status": string(transition.Current)})
	case errors.As(err, &unavailable):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "food item unavailable", "food_item_id": unavailable.FoodItemID})
	case errors.Is(err, ErrInvalidAddress):
		h.writeError(w, http.StatusBadRequest, "invalid delivery address")
	case errors.Is(err, ErrWindowExpired):
		h.writeError(w, http.StatusBadRequest, "cancellation window expired")
	case errors.Is(err, ErrNotFound):
		h.writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, ErrPaymentDeclined):
		h.writeError(w, http.StatusPaymentRequired, "payment declined")
	case errors.Is(err, ErrPaymentSettled):
		h.writeError(w, http.StatusConflict, "payment already settled")
	case errors.Is(err, ErrDependency):
		h.logger.Error("dependency failure", "error", err, "operation", op, "order_id", orderID, "actor", actor)
		h.writeError(w, http.StatusBadGateway, "upstream service unavailable")
	default:
		h.logger.Error("order operation failed", "error", err, "operation", op, "order_id", orderID, "actor", actor)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
