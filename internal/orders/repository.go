package orders

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

const orderColumns = `id, user_id, delivery_address_id, status, total, payment_method, payment_status,
	driver_id, driver_latitude, driver_longitude, created_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create writes the order with a zero total, its items, and then the final
// total, all inside one transaction.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders.orders (id, user_id, delivery_address_id, status, total, payment_method, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $7)
	`, order.ID, order.UserID, order.DeliveryAddressID, order.Status, order.PaymentMethod, order.PaymentStatus, order.CreatedAt)
	if err != nil {
		return mapInsertError(err)
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders.order_items (id, order_id, position, food_item_id, quantity, unit_price, price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, order.ID, i, item.FoodItemID, item.Quantity, item.UnitPrice, item.Price)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE orders.orders SET total = $2 WHERE id = $1`, order.ID, order.Total)
	if err != nil {
		return err
	}

	return tx.Commit()
}

const deliveryAddressFK = "orders_delivery_address_id_fkey"

// mapInsertError turns a foreign key violation on the delivery address, e.g.
// an address deleted after the ownership check, into ErrInvalidAddress.
func mapInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" && pqErr.Constraint == deliveryAddressFK {
		return ErrInvalidAddress
	}
	return err
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders.orders
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, food_item_id, quantity, unit_price, price
		FROM orders.order_items
		WHERE order_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	order.Items = []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.FoodItemID, &item.Quantity, &item.UnitPrice, &item.Price); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders.orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, id, food_item_id, quantity, unit_price, price
		FROM orders.order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ID, &item.FoodItemID, &item.Quantity, &item.UnitPrice, &item.Price); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// UpdateStatus sets the new status only while the row still holds from.
// Postgres row locking lets exactly one concurrent caller match.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, driverID *string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders.orders
		SET status = $3, driver_id = COALESCE($4, driver_id), updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to, driverID)
	if err != nil {
		return false, err
	}
	return affected(result)
}

func (r *OrderRepository) UpdateDriverLocation(ctx context.Context, id string, loc domain.Coordinates) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders.orders
		SET driver_latitude = $2, driver_longitude = $3, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('delivered', 'cancelled')
	`, id, loc.Latitude, loc.Longitude)
	if err != nil {
		return false, err
	}
	return affected(result)
}

func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, id string, from, to domain.PaymentStatus) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders.orders
		SET payment_status = $3, updated_at = NOW()
		WHERE id = $1 AND payment_status = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return affected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order     domain.Order
		addressID sql.NullString
		driverID  sql.NullString
		lat, lon  sql.NullFloat64
		total     decimal.Decimal
	)
	err := row.Scan(&order.ID, &order.UserID, &addressID, &order.Status, &total,
		&order.PaymentMethod, &order.PaymentStatus, &driverID, &lat, &lon, &order.CreatedAt)
	if err != nil {
		return nil, err
	}
	order.Total = total
	if addressID.Valid {
		order.DeliveryAddressID = &addressID.String
	}
	if driverID.Valid {
		order.DriverID = &driverID.String
	}
	if lat.Valid && lon.Valid {
		order.DriverLatitude = &lat.Float64
		order.DriverLongitude = &lon.Float64
	}
	order.CreatedAt = order.CreatedAt.UTC()
	return &order, nil
}

func affected(result sql.Result) (bool, error) {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}
