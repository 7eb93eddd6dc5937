package addressbook

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

type countingSource struct {
	addresses map[string]domain.Address
	calls     int
}

func (s *countingSource) GetAddress(_ context.Context, id string) (*domain.Address, error) {
	s.calls++
	address, ok := s.addresses[id]
	if !ok {
		return nil, nil
	}
	return &address, nil
}

func TestCachedStore_FallsBackWhenRedisUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "localhost:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = client.Close() }()

	source := &countingSource{addresses: map[string]domain.Address{
		"ADDR-001": {ID: "ADDR-001", UserID: "user-1", Coordinates: &domain.Coordinates{Latitude: 19.07, Longitude: 72.87}},
	}}
	store := NewCachedStore(source, client, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	t.Run("serves from source", func(t *testing.T) {
		address, err := store.GetAddress(context.Background(), "ADDR-001")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if address == nil || address.UserID != "user-1" {
			t.Fatalf("unexpected address: %+v", address)
		}
		if address.Coordinates == nil || address.Coordinates.Latitude != 19.07 {
			t.Errorf("unexpected coordinates: %+v", address.Coordinates)
		}
	})

	t.Run("passes through misses", func(t *testing.T) {
		address, err := store.GetAddress(context.Background(), "ADDR-404")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if address != nil {
			t.Errorf("expected nil address, got %+v", address)
		}
	})

	if source.calls != 2 {
		t.Errorf("expected 2 source calls, got %d", source.calls)
	}
}

func newMiniredisStore(t *testing.T, source Source, ttl time.Duration) (*CachedStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCachedStore(source, client, ttl, slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func TestCachedStore_DeletedAddress(t *testing.T) {
	ctx := context.Background()

	t.Run("cached reads expire with the ttl", func(t *testing.T) {
		source := &countingSource{addresses: map[string]domain.Address{
			"ADDR-001": {ID: "ADDR-001", UserID: "user-1"},
		}}
		store, mr := newMiniredisStore(t, source, 30*time.Second)

		if _, err := store.GetAddress(ctx, "ADDR-001"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		delete(source.addresses, "ADDR-001")

		address, err := store.GetAddress(ctx, "ADDR-001")
		if err != nil || address == nil {
			t.Fatalf("expected cached address within ttl, got %+v, %v", address, err)
		}

		mr.FastForward(31 * time.Second)

		address, err = store.GetAddress(ctx, "ADDR-001")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if address != nil {
			t.Errorf("expected deleted address after ttl, got %+v", address)
		}
	})

	t.Run("fresh reads bypass and purge the cache", func(t *testing.T) {
		source := &countingSource{addresses: map[string]domain.Address{
			"ADDR-001": {ID: "ADDR-001", UserID: "user-1"},
		}}
		store, mr := newMiniredisStore(t, source, time.Hour)

		if _, err := store.GetAddress(ctx, "ADDR-001"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !mr.Exists(cacheKey("ADDR-001")) {
			t.Fatal("expected address to be cached")
		}
		delete(source.addresses, "ADDR-001")

		address, err := store.GetFreshAddress(ctx, "ADDR-001")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if address != nil {
			t.Errorf("expected nil address, got %+v", address)
		}
		if mr.Exists(cacheKey("ADDR-001")) {
			t.Error("expected cache entry to be dropped")
		}

		address, err = store.GetAddress(ctx, "ADDR-001")
		if err != nil || address != nil {
			t.Errorf("expected tracking reads to see the deletion, got %+v, %v", address, err)
		}
	})

	t.Run("fresh reads refresh changed addresses", func(t *testing.T) {
		source := &countingSource{addresses: map[string]domain.Address{
			"ADDR-001": {ID: "ADDR-001", UserID: "user-1"},
		}}
		store, _ := newMiniredisStore(t, source, time.Hour)

		if _, err := store.GetAddress(ctx, "ADDR-001"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		source.addresses["ADDR-001"] = domain.Address{ID: "ADDR-001", UserID: "user-2"}

		address, err := store.GetFreshAddress(ctx, "ADDR-001")
		if err != nil || address == nil || address.UserID != "user-2" {
			t.Fatalf("expected fresh owner user-2, got %+v, %v", address, err)
		}

		calls := source.calls
		address, err = store.GetAddress(ctx, "ADDR-001")
		if err != nil || address == nil || address.UserID != "user-2" {
			t.Errorf("expected refreshed cache entry, got %+v, %v", address, err)
		}
		if source.calls != calls {
			t.Errorf("expected cache hit, source called %d more times", source.calls-calls)
		}
	})
}
