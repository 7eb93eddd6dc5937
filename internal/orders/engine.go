package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/telemetry"
)

// CancelWindow is how long after placement a user may still cancel.
const CancelWindow = 2 * time.Minute

const MaxItemQuantity = 1000

// maxOrderTotal is the first value that no longer fits orders.total NUMERIC(12,2).
var maxOrderTotal = decimal.New(1, 10)

var tracer = otel.Tracer("orders/engine")

type Engine struct {
	store     Store
	catalog   CatalogProvider
	addresses AddressStore
	payments  PaymentGateway
	publisher EventPublisher
	recorder  TransitionRecorder
	metrics   *telemetry.OrderMetrics
	logger    *slog.Logger
	now       func() time.Time
}

type EngineOption func(*Engine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

func WithPaymentGateway(g PaymentGateway) EngineOption {
	return func(e *Engine) {
		e.payments = g
	}
}

func WithPublisher(p EventPublisher) EngineOption {
	return func(e *Engine) {
		e.publisher = p
	}
}

func WithRecorder(r TransitionRecorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

func WithMetrics(m *telemetry.OrderMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

func NewEngine(store Store, catalog CatalogProvider, addresses AddressStore, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		catalog:   catalog,
		addresses: addresses,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Place validates the request against the address book and the catalog and
// stores a pending order with prices captured at this moment. Nothing is
// persisted unless every line is valid.
func (e *Engine) Place(ctx context.Context, userID, addressID string, items []domain.ItemRequest, method domain.PaymentMethod) (*domain.Order, error) {
	ctx, span := e.start(ctx, "orders.Place", "", userID)
	defer span.End()

	if len(items) == 0 {
		return nil, e.fail(span, &ValidationError{Field: "items", Message: "at least one item is required", Kind: ErrEmptyOrder})
	}
	for i, item := range items {
		if item.FoodItemID == "" {
			return nil, e.fail(span, &ValidationError{Field: fmt.Sprintf("items[%d].food_item_id", i), Message: "is required"})
		}
		if item.Quantity < 1 {
			return nil, e.fail(span, &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "must be a positive integer"})
		}
		if item.Quantity > MaxItemQuantity {
			return nil, e.fail(span, &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: fmt.Sprintf("must not exceed %d", MaxItemQuantity)})
		}
	}
	if method == "" {
		method = domain.PaymentMethodCOD
	}
	if method != domain.PaymentMethodCOD && method != domain.PaymentMethodOnline {
		return nil, e.fail(span, &ValidationError{Field: "payment_method", Message: "must be cod or online"})
	}

	address, err := e.freshAddress(ctx, addressID)
	if err != nil {
		return nil, e.fail(span, dependencyError("address store", err))
	}
	if address == nil || address.UserID != userID {
		return nil, e.fail(span, ErrInvalidAddress)
	}

	resolved := make(map[string]*domain.FoodItem, len(items))
	for _, item := range items {
		if _, ok := resolved[item.FoodItemID]; ok {
			continue
		}
		food, err := e.catalog.GetFoodItem(ctx, item.FoodItemID)
		if err != nil {
			return nil, e.fail(span, dependencyError("catalog", err))
		}
		if food == nil || !food.IsAvailable {
			return nil, e.fail(span, &ItemUnavailableError{FoodItemID: item.FoodItemID})
		}
		resolved[item.FoodItemID] = food
	}

	order := &domain.Order{
		ID:                uuid.New().String(),
		UserID:            userID,
		DeliveryAddressID: &addressID,
		Status:            domain.OrderStatusPending,
		Total:             decimal.Zero,
		PaymentMethod:     method,
		PaymentStatus:     domain.PaymentStatusPending,
		Items:             make([]domain.OrderItem, 0, len(items)),
		CreatedAt:         e.now().UTC(),
	}

	total := decimal.Zero
	for i, item := range items {
		unit := resolved[item.FoodItemID].Price.RoundBank(2)
		line := unit.Mul(decimal.NewFromInt(int64(item.Quantity)))
		if total.Add(line).GreaterThanOrEqual(maxOrderTotal) {
			return nil, e.fail(span, &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "order total is too large"})
		}
		order.Items = append(order.Items, domain.OrderItem{
			ID:         uuid.New().String(),
			FoodItemID: item.FoodItemID,
			Quantity:   item.Quantity,
			UnitPrice:  unit,
			Price:      line,
		})
		total = total.Add(line)
	}
	order.Total = total

	if err := e.store.Create(ctx, order); err != nil {
		return nil, e.fail(span, fmt.Errorf("create order: %w", err))
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	e.metrics.OrderPlaced(ctx, order.Total.InexactFloat64())
	e.publish(ctx, order.ID, domain.OrderPlacedEvent{
		Type:      domain.EventOrderPlaced,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Items:     order.Items,
		Total:     order.Total,
		Timestamp: order.CreatedAt,
	})

	return order, nil
}

func (e *Engine) freshAddress(ctx context.Context, id string) (*domain.Address, error) {
	if fresh, ok := e.addresses.(FreshAddressStore); ok {
		return fresh.GetFreshAddress(ctx, id)
	}
	return e.addresses.GetAddress(ctx, id)
}

func (e *Engine) Get(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	ctx, span := e.start(ctx, "orders.Get", orderID, userID)
	defer span.End()

	order, err := e.owned(ctx, userID, orderID)
	if err != nil {
		return nil, e.fail(span, err)
	}
	return order, nil
}

func (e *Engine) List(ctx context.Context, userID string) ([]domain.Order, error) {
	ctx, span := e.start(ctx, "orders.List", "", userID)
	defer span.End()

	orders, err := e.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, e.fail(span, fmt.Errorf("list orders: %w", err))
	}
	return orders, nil
}

// Cancel moves the user's pending order to cancelled while the cancellation
// window measured from created_at is still open. The status check runs first,
// so a cancel racing an accept always loses with a transition error.
func (e *Engine) Cancel(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	ctx, span := e.start(ctx, "orders.Cancel", orderID, userID)
	defer span.End()

	order, err := e.owned(ctx, userID, orderID)
	if err != nil {
		return nil, e.fail(span, err)
	}
	if order.Status != domain.OrderStatusPending {
		return nil, e.fail(span, &TransitionError{Current: order.Status, Target: domain.OrderStatusCancelled})
	}
	if e.now().Sub(order.CreatedAt) > CancelWindow {
		e.metrics.Transition(ctx, string(order.Status), string(domain.OrderStatusCancelled), "window_expired")
		return nil, e.fail(span, ErrWindowExpired)
	}

	if err := e.transition(ctx, order, domain.OrderStatusCancelled, userID, nil); err != nil {
		return nil, e.fail(span, err)
	}
	return order, nil
}

// Accept assigns a pending order to driverID. Exactly one of any number of
// concurrent accepts succeeds.
func (e *Engine) Accept(ctx context.Context, driverID, orderID string) (*domain.Order, error) {
	ctx, span := e.start(ctx, "orders.Accept", orderID, driverID)
	defer span.End()

	order, err := e.pending(ctx, orderID, domain.OrderStatusProcessing)
	if err != nil {
		return nil, e.fail(span, err)
	}
	if err := e.transition(ctx, order, domain.OrderStatusProcessing, driverID, &driverID); err != nil {
		return nil, e.fail(span, err)
	}
	return order, nil
}

func (e *Engine) Reject(ctx context.Context, driverID, orderID string) (*domain.Order, error) {
	ctx, span := e.start(ctx, "orders.Reject", orderID, driverID)
	defer span.End()

	order, err := e.pending(ctx, orderID, domain.OrderStatusCancelled)
	if err != nil {
		return nil, e.fail(span, err)
	}
	if err := e.transition(ctx, order, domain.OrderStatusCancelled, driverID, nil); err != nil {
		return nil, e.fail(span, err)
	}
	return order, nil
}

// SetStatus is the administrative hook for progressing an order past
// processing, or cancelling it before it is terminal.
func (e *Engine) SetStatus(ctx context.Context, actor, orderID string, next domain.OrderStatus) (*domain.Order, error) {
	ctx, span := e.start(ctx, "orders.SetStatus", orderID, actor)
	defer span.End()

	if !next.Valid() {
		return nil, e.fail(span, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", next)})
	}

	order, err := e.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, e.fail(span, fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, e.fail(span, ErrNotFound)
	}
	if !order.Status.CanTransition(next) {
		return nil, e.fail(span, &TransitionError{Current: order.Status, Target: next})
	}
	if err := e.transition(ctx, order, next, actor, nil); err != nil {
		return nil, e.fail(span, err)
	}
	return order, nil
}

// ParseCoordinates requires both coordinates and checks their ranges.
func ParseCoordinates(latitude, longitude *float64) (domain.Coordinates, error) {
	if latitude == nil {
		return domain.Coordinates{}, &ValidationError{Field: "latitude", Message: "is required", Kind: ErrInvalidCoordinates}
	}
	if longitude == nil {
		return domain.Coordinates{}, &ValidationError{Field: "longitude", Message: "is required", Kind: ErrInvalidCoordinates}
	}
	loc := domain.Coordinates{Latitude: *latitude, Longitude: *longitude}
	return loc, validateCoordinates(loc)
}

func validateCoordinates(loc domain.Coordinates) error {
	if !(loc.Latitude >= -90 && loc.Latitude <= 90) {
		return &ValidationError{Field: "latitude", Message: "must be between -90 and 90", Kind: ErrInvalidCoordinates}
	}
	if !(loc.Longitude >= -180 && loc.Longitude <= 180) {
		return &ValidationError{Field: "longitude", Message: "must be between -180 and 180", Kind: ErrInvalidCoordinates}
	}
	return nil
}

// UpdateDriverLocation overwrites the driver position of a non-terminal order.
// Updates are last-write-wins.
func (e *Engine) UpdateDriverLocation(ctx context.Context, orderID string, loc domain.Coordinates) error {
	ctx, span := e.start(ctx, "orders.UpdateDriverLocation", orderID, "")
	defer span.End()

	if err := validateCoordinates(loc); err != nil {
		return e.fail(span, err)
	}

	order, err := e.store.GetByID(ctx, orderID)
	if err != nil {
		return e.fail(span, fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return e.fail(span, ErrNotFound)
	}
	if order.Status.Terminal() {
		return e.fail(span, &TransitionError{Current: order.Status})
	}

	ok, err := e.store.UpdateDriverLocation(ctx, orderID, loc)
	if err != nil {
		return e.fail(span, fmt.Errorf("update driver location: %w", err))
	}
	if !ok {
		return e.fail(span, e.lost(ctx, orderID, ""))
	}
	return nil
}

func (e *Engine) Track(ctx context.Context, userID, orderID string) (*domain.TrackingSnapshot, error) {
	ctx, span := e.start(ctx, "orders.Track", orderID, userID)
	defer span.End()

	order, err := e.owned(ctx, userID, orderID)
	if err != nil {
		return nil, e.fail(span, err)
	}

	snapshot := &domain.TrackingSnapshot{
		ID:        order.ID,
		Status:    order.Status,
		Total:     order.Total,
		CreatedAt: order.CreatedAt,
	}
	if order.DriverLatitude != nil && order.DriverLongitude != nil {
		snapshot.DriverLocation = &domain.Coordinates{
			Latitude:  *order.DriverLatitude,
			Longitude: *order.DriverLongitude,
		}
	}
	if order.DeliveryAddressID != nil {
		address, err := e.addresses.GetAddress(ctx, *order.DeliveryAddressID)
		if err != nil {
			return nil, e.fail(span, dependencyError("address store", err))
		}
		if address != nil && address.Coordinates != nil {
			dest := *address.Coordinates
			snapshot.Destination = &dest
		}
	}
	return snapshot, nil
}

// ConfirmPayment asks the payment gateway to verify reference for an online
// order still awaiting payment. Only the payment fields change.
func (e *Engine) ConfirmPayment(ctx context.Context, userID, orderID, reference string) (*domain.Order, error) {
	ctx, span := e.start(ctx, "orders.ConfirmPayment", orderID, userID)
	defer span.End()

	if reference == "" {
		return nil, e.fail(span, &ValidationError{Field: "reference", Message: "is required"})
	}

	order, err := e.owned(ctx, userID, orderID)
	if err != nil {
		return nil, e.fail(span, err)
	}
	if order.PaymentMethod != domain.PaymentMethodOnline {
		return nil, e.fail(span, &ValidationError{Field: "payment_method", Message: "order is paid on delivery"})
	}
	if order.Status == domain.OrderStatusCancelled {
		return nil, e.fail(span, &TransitionError{Current: order.Status})
	}
	if order.PaymentStatus != domain.PaymentStatusPending {
		return nil, e.fail(span, ErrPaymentSettled)
	}
	if e.payments == nil {
		return nil, e.fail(span, dependencyError("payment gateway", fmt.Errorf("not configured")))
	}

	confirmed, err := e.payments.Verify(ctx, PaymentRequest{
		OrderID:   order.ID,
		Reference: reference,
		Amount:    order.Total,
	})
	if err != nil {
		return nil, e.fail(span, dependencyError("payment gateway", err))
	}

	next := domain.PaymentStatusFailed
	if confirmed {
		next = domain.PaymentStatusPaid
	}
	ok, err := e.store.UpdatePaymentStatus(ctx, order.ID, domain.PaymentStatusPending, next)
	if err != nil {
		return nil, e.fail(span, fmt.Errorf("update payment status: %w", err))
	}
	if !ok {
		return nil, e.fail(span, ErrPaymentSettled)
	}
	order.PaymentStatus = next

	if !confirmed {
		return order, e.fail(span, ErrPaymentDeclined)
	}
	return order, nil
}

func (e *Engine) owned(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := e.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil || order.UserID != userID {
		return nil, ErrNotFound
	}
	return order, nil
}

func (e *Engine) pending(ctx context.Context, orderID string, target domain.OrderStatus) (*domain.Order, error) {
	order, err := e.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrNotFound
	}
	if order.Status != domain.OrderStatusPending {
		return nil, &TransitionError{Current: order.Status, Target: target}
	}
	return order, nil
}

// transition applies order.Status -> next as a compare-and-swap and updates
// order in place on success.
func (e *Engine) transition(ctx context.Context, order *domain.Order, next domain.OrderStatus, actor string, driverID *string) error {
	from := order.Status
	ok, err := e.store.UpdateStatus(ctx, order.ID, from, next, driverID)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if !ok {
		e.metrics.Transition(ctx, string(from), string(next), "conflict")
		return e.lost(ctx, order.ID, next)
	}

	order.Status = next
	if driverID != nil {
		order.DriverID = driverID
	}
	e.metrics.Transition(ctx, string(from), string(next), "applied")

	at := e.now().UTC()
	if e.recorder != nil {
		t := domain.Transition{OrderID: order.ID, From: from, To: next, Actor: actor, At: at}
		if err := e.recorder.Record(ctx, t); err != nil {
			e.logger.Error("failed to record transition", "error", err, "order_id", order.ID)
		}
	}
	e.publish(ctx, order.ID, domain.OrderStatusChangedEvent{
		Type:      domain.EventOrderStatusChanged,
		OrderID:   order.ID,
		From:      from,
		To:        next,
		Actor:     actor,
		Timestamp: at,
	})
	return nil
}

// lost builds the error for a conditional update that matched no row, using
// the order's current state.
func (e *Engine) lost(ctx context.Context, orderID string, target domain.OrderStatus) error {
	current, err := e.store.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if current == nil {
		return ErrNotFound
	}
	return &TransitionError{Current: current.Status, Target: target}
}

func (e *Engine) publish(ctx context.Context, key string, event any) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.Error("failed to publish order event", "error", err, "order_id", key)
	}
}

func (e *Engine) start(ctx context.Context, name, orderID, actor string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{}
	if orderID != "" {
		attrs = append(attrs, attribute.String("order.id", orderID))
	}
	if actor != "" {
		attrs = append(attrs, attribute.String("order.actor", actor))
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (e *Engine) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
