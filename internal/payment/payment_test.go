package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/darecoin/backend/internal/config"
	"github.com/shopspring/decimal"
)

func TestVerifySignature(t *testing.T) {
	secret := "s3cret"
	sig := Sign(secret, "order_1", "pay_1")

	if !VerifySignature(secret, "order_1", "pay_1", sig) {
		t.Errorf("valid signature rejected")
	}
	if !VerifySignature(secret, "order_1", "pay_1", strings.ToUpper(sig)) {
		t.Errorf("signature comparison should ignore hex case")
	}
	if VerifySignature(secret, "order_1", "pay_2", sig) {
		t.Errorf("signature for another payment accepted")
	}
	if VerifySignature("other", "order_1", "pay_1", sig) {
		t.Errorf("signature with wrong secret accepted")
	}
	if VerifySignature(secret, "order_1", "pay_1", "") {
		t.Errorf("empty signature accepted")
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if c.VerifySignature("o", "p", "s") {
		t.Errorf("nil client must not verify")
	}
	if _, err := c.CreateOrder(context.Background(), OrderRequest{}); err != ErrNotConfigured {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if NewClient(&config.Config{}, nil) != nil {
		t.Errorf("client without credentials should be nil")
	}
}

func TestPricing(t *testing.T) {
	tests := []struct {
		drc       int64
		price     string
		wantFiat  string
		wantMinor int64
	}{
		{100, "1.00", "100.00", 10000},
		{3, "0.10", "0.30", 30},
		{7, "0.333", "2.33", 233},
		{1, "2.5", "2.50", 250},
	}
	for _, tt := range tests {
		price, err := ParsePrice(tt.price)
		if err != nil {
			t.Fatalf("ParsePrice(%q): %v", tt.price, err)
		}
		fiat := FiatAmount(tt.drc, price)
		if fiat.StringFixed(2) != tt.wantFiat {
			t.Errorf("FiatAmount(%d, %s) = %s, want %s", tt.drc, tt.price, fiat.StringFixed(2), tt.wantFiat)
		}
		if got := MinorUnits(fiat); got != tt.wantMinor {
			t.Errorf("MinorUnits(%s) = %d, want %d", fiat, got, tt.wantMinor)
		}
	}

	for _, bad := range []string{"", "abc", "0", "-1"} {
		if _, err := ParsePrice(bad); err == nil {
			t.Errorf("ParsePrice(%q) expected error", bad)
		}
	}
	if MinorUnits(decimal.RequireFromString("0.01")) != 1 {
		t.Errorf("one paisa should be one minor unit")
	}
}

func TestReceiptsAndMockOrders(t *testing.T) {
	a, b := NewReceipt(), NewReceipt()
	if a == b {
		t.Errorf("receipts must be unique")
	}
	if len(a) > 40 {
		t.Errorf("receipt too long for provider: %d", len(a))
	}
	if !IsMockOrder(MockOrderID()) || IsMockOrder("order_abc") {
		t.Errorf("mock order detection broken")
	}
}

func TestCreateOrderRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if user, pass, ok := r.BasicAuth(); !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var req OrderRequest
		json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(Order{ID: "order_9", Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"})
	}))
	defer srv.Close()

	c := NewClient(&config.Config{RazorpayBaseURL: srv.URL, RazorpayKeyID: "key", RazorpayKeySecret: "secret", RazorpayTimeout: 5}, nil)
	order, err := c.CreateOrder(context.Background(), OrderRequest{Amount: 5000, Currency: "INR", Receipt: "r1"})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.ID != "order_9" || order.Amount != 5000 {
		t.Errorf("unexpected order %+v", order)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected one retry, got %d calls", calls)
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	}))
	defer srv.Close()

	c := NewClient(&config.Config{RazorpayBaseURL: srv.URL, RazorpayKeyID: "key", RazorpayKeySecret: "secret", RazorpayTimeout: 5}, nil)
	_, err := c.FetchOrder(context.Background(), "order_1")
	if err == nil || !strings.Contains(err.Error(), "amount too small") {
		t.Errorf("expected provider description in error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("4xx must not be retried, got %d calls", calls)
	}
}

func TestCreditable(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{OrderCreated, true},
		{OrderExpired, true},
		{OrderFailed, true},
		{OrderPaid, false},
		{"refunded", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Creditable(tt.status); got != tt.want {
			t.Errorf("Creditable(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
