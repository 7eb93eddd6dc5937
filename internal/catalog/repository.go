package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

type FoodRepository struct {
	db *sql.DB
}

func NewFoodRepository(db *sql.DB) *FoodRepository {
	return &FoodRepository{db: db}
}

func (r *FoodRepository) GetFoodItem(ctx context.Context, id string) (*domain.FoodItem, error) {
	item := &domain.FoodItem{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price, is_available
		FROM catalog.food_items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Name, &item.Price, &item.IsAvailable)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return item, nil
}

func (r *FoodRepository) ListAvailable(ctx context.Context) ([]domain.FoodItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price, is_available
		FROM catalog.food_items
		WHERE is_available
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.FoodItem{}
	for rows.Next() {
		var item domain.FoodItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.IsAvailable); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// SetPrice changes the current price. Orders already placed keep the price
// they captured.
func (r *FoodRepository) SetPrice(ctx context.Context, id string, price decimal.Decimal) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE catalog.food_items SET price = $2 WHERE id = $1
	`, id, price)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return errors.New("food item not found")
	}

	return nil
}
