package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/joao-fontenele/foodflow/internal/orders"
)

// Client talks to the payment gateway adapter. The gateway protocol stays
// behind that service; it answers each verification with confirmed or declined.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, client *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: client,
	}
}

type verifyRequest struct {
	OrderID   string `json:"order_id"`
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
}

type verifyResponse struct {
	Status string `json:"status"`
}

func (c *Client) Verify(ctx context.Context, req orders.PaymentRequest) (bool, error) {
	data, err := json.Marshal(verifyRequest{
		OrderID:   req.OrderID,
		Reference: req.Reference,
		Amount:    req.Amount.StringFixed(2),
	})
	if err != nil {
		return false, fmt.Errorf("marshal verify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments/verify", bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("create verify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("verify payment for order %s: %w", req.OrderID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("payment service returned status %d", resp.StatusCode)
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode verify response: %w", err)
	}

	switch body.Status {
	case "confirmed":
		return true, nil
	case "declined":
		return false, nil
	default:
		return false, fmt.Errorf("payment service returned unknown status %q", body.Status)
	}
}
