package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/foodflow/internal/orders"
)

func TestClient_Verify(t *testing.T) {
	req := orders.PaymentRequest{
		OrderID:   "order-1",
		Reference: "pay_123",
		Amount:    decimal.RequireFromString("130"),
	}

	t.Run("confirmed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/payments/verify" {
				t.Errorf("expected /payments/verify, got %s", r.URL.Path)
			}
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("failed to decode request: %v", err)
				return
			}
			if body["amount"] != "130.00" {
				t.Errorf("expected amount 130.00, got %s", body["amount"])
			}
			if body["reference"] != "pay_123" {
				t.Errorf("expected reference pay_123, got %s", body["reference"])
			}
			_, _ = w.Write([]byte(`{"status":"confirmed"}`))
		}))
		defer server.Close()

		ok, err := NewClient(server.URL, server.Client()).Verify(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Error("expected confirmation")
		}
	})

	t.Run("declined", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"declined"}`))
		}))
		defer server.Close()

		ok, err := NewClient(server.URL, server.Client()).Verify(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("expected decline")
		}
	})

	t.Run("unknown status is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"maybe"}`))
		}))
		defer server.Close()

		if _, err := NewClient(server.URL, server.Client()).Verify(context.Background(), req); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		if _, err := NewClient(server.URL, server.Client()).Verify(context.Background(), req); err == nil {
			t.Fatal("expected error")
		}
	})
}
