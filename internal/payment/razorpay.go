package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/darecoin/backend/internal/config"
	"github.com/redis/go-redis/v9"
)

var ErrNotConfigured = errors.New("payment provider not configured")

// Client talks to a Razorpay compatible orders API.
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	rdb        *redis.Client
	httpClient *http.Client
	cacheKey   string
}

// Default is the package-level default client
var Default *Client

// NewClient creates a provider client. It returns nil when credentials are missing.
func NewClient(cfg *config.Config, rdb *redis.Client) *Client {
	if cfg == nil || !cfg.PaymentsConfigured() {
		log.Printf("[PAYMENT] Razorpay not configured - skipping initialization")
		return nil
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.RazorpayBaseURL, "/"),
		keyID:      cfg.RazorpayKeyID,
		keySecret:  cfg.RazorpayKeySecret,
		rdb:        rdb,
		httpClient: &http.Client{Timeout: time.Duration(cfg.RazorpayTimeout) * time.Second},
		cacheKey:   "razorpay_order:",
	}
}

// SetDefault sets the package-level default client
func SetDefault(c *Client) {
	Default = c
}

// KeyID is the public key handed to the checkout widget.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// OrderRequest is the body of POST /v1/orders. Amount is in minor units.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is the provider's view of an order.
type Order struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"` // created, attempted, paid
	Attempts   int    `json:"attempts"`
	CreatedAt  int64  `json:"created_at"`
}

// Payment is one payment attempt against an order.
type Payment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"` // created, authorized, captured, refunded, failed
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder registers a new order with the provider.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}

	log.Printf("[PAYMENT] Creating order: amount=%d currency=%s receipt=%s", req.Amount, req.Currency, req.Receipt)

	var order Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", body, &order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	log.Printf("[PAYMENT] Order created: id=%s status=%s", order.ID, order.Status)
	return &order, nil
}

// FetchOrder returns the current state of an order. Paid orders are cached
// briefly since they no longer change.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}

	if c.rdb != nil {
		if cached, err := c.rdb.Get(ctx, c.cacheKey+orderID).Result(); err == nil {
			var o Order
			if json.Unmarshal([]byte(cached), &o) == nil {
				return &o, nil
			}
		}
	}

	var order Order
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+orderID, nil, &order); err != nil {
		return nil, fmt.Errorf("fetch order %s: %w", orderID, err)
	}

	if c.rdb != nil && order.Status == "paid" {
		if raw, err := json.Marshal(order); err == nil {
			c.rdb.Set(ctx, c.cacheKey+orderID, raw, 10*time.Minute)
		}
	}
	return &order, nil
}

// FetchOrderPayments lists the payments made against an order.
func (c *Client) FetchOrderPayments(ctx context.Context, orderID string) ([]Payment, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	var resp struct {
		Items []Payment `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+orderID+"/payments", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch payments for %s: %w", orderID, err)
	}
	return resp.Items, nil
}

// VerifySignature checks the checkout callback signature, an HMAC-SHA256 of
// "orderID|paymentID" keyed with the API secret.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	if c == nil {
		return false
	}
	return VerifySignature(c.keySecret, orderID, paymentID, signature)
}

// VerifySignature is the keyed form used by the client and by tests.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	expected := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// Sign computes the hex signature the provider would send.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// do sends a request with basic auth, retrying transport errors and 5xx.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.SetBasicAuth(c.keyID, c.keySecret)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < 2 {
				time.Sleep(time.Duration(100+attempt*200) * time.Millisecond)
				continue
			}
			return fmt.Errorf("request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to decode response: %w (body: %s)", err, string(body))
			}
			return nil
		}

		if resp.StatusCode >= 500 && attempt < 2 {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
			log.Printf("[PAYMENT] %s %s returned %d, retrying", method, path, resp.StatusCode)
			time.Sleep(time.Duration(100+attempt*200) * time.Millisecond)
			continue
		}

		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Description != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error.Description)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return fmt.Errorf("failed after retries: %w", lastErr)
}
