package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestClient_GetFoodItem(t *testing.T) {
	t.Run("decodes food item", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/foods/FOOD-001" {
				t.Errorf("expected /foods/FOOD-001, got %s", r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"FOOD-001","name":"Thali","price":"50.00","is_available":true}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client())
		item, err := client.GetFoodItem(context.Background(), "FOOD-001")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item == nil {
			t.Fatal("expected item")
		}
		if !item.Price.Equal(decimal.RequireFromString("50")) {
			t.Errorf("expected price 50, got %s", item.Price)
		}
		if !item.IsAvailable {
			t.Error("expected item to be available")
		}
	})

	t.Run("returns nil for unknown item", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client())
		item, err := client.GetFoodItem(context.Background(), "missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item != nil {
			t.Errorf("expected nil item, got %+v", item)
		}
	})

	t.Run("fails on server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client())
		if _, err := client.GetFoodItem(context.Background(), "FOOD-001"); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("fails when service unreachable", func(t *testing.T) {
		client := NewClient("http://localhost:99999", &http.Client{})
		if _, err := client.GetFoodItem(context.Background(), "FOOD-001"); err == nil {
			t.Fatal("expected error")
		}
	})
}
