package addressbook

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

type AddressRepository struct {
	db *sql.DB
}

func NewAddressRepository(db *sql.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

func (r *AddressRepository) GetAddress(ctx context.Context, id string) (*domain.Address, error) {
	var (
		address  domain.Address
		lat, lon sql.NullFloat64
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, latitude, longitude
		FROM accounts.delivery_addresses
		WHERE id = $1
	`, id).Scan(&address.ID, &address.UserID, &lat, &lon)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if lat.Valid && lon.Valid {
		address.Coordinates = &domain.Coordinates{Latitude: lat.Float64, Longitude: lon.Float64}
	}

	return &address, nil
}
