package addressbook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

type Source interface {
	GetAddress(ctx context.Context, id string) (*domain.Address, error)
}

// CachedStore is a read-through Redis cache in front of an address Source.
// Misses on the source are not cached, so a newly created address is visible
// immediately. Redis failures fall back to the source.
type CachedStore struct {
	source Source
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedStore(source Source, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	return &CachedStore{
		source: source,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(id string) string {
	return fmt.Sprintf("address:%s", id)
}

func (s *CachedStore) GetAddress(ctx context.Context, id string) (*domain.Address, error) {
	data, err := s.client.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		var address domain.Address
		if err := json.Unmarshal(data, &address); err == nil {
			return &address, nil
		}
		s.logger.Warn("discarding corrupt cached address", "address_id", id)
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("address cache unavailable", "error", err, "address_id", id)
	}

	address, err := s.source.GetAddress(ctx, id)
	if err != nil || address == nil {
		return address, err
	}

	s.store(ctx, address)
	return address, nil
}

// GetFreshAddress reads the source directly and brings the cache in line with
// it, dropping the entry when the address no longer exists.
func (s *CachedStore) GetFreshAddress(ctx context.Context, id string) (*domain.Address, error) {
	address, err := s.source.GetAddress(ctx, id)
	if err != nil {
		return nil, err
	}
	if address == nil {
		if err := s.Invalidate(ctx, id); err != nil {
			s.logger.Warn("failed to drop cached address", "error", err, "address_id", id)
		}
		return nil, nil
	}
	s.store(ctx, address)
	return address, nil
}

func (s *CachedStore) store(ctx context.Context, address *domain.Address) {
	data, err := json.Marshal(address)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, cacheKey(address.ID), data, s.ttl).Err(); err != nil {
		s.logger.Warn("failed to cache address", "error", err, "address_id", address.ID)
	}
}

// Invalidate drops a cached address, e.g. after it is edited or deleted.
func (s *CachedStore) Invalidate(ctx context.Context, id string) error {
	return s.client.Del(ctx, cacheKey(id)).Err()
}
