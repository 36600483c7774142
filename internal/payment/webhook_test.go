package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	sig := signBody("whsec", body)

	tests := []struct {
		name   string
		secret string
		body   []byte
		sig    string
		want   bool
	}{
		{"valid", "whsec", body, sig, true},
		{"upper case hex", "whsec", body, strings.ToUpper(sig), true},
		{"tampered body", "whsec", []byte(`{"event":"order.paid"}`), sig, false},
		{"wrong secret", "other", body, sig, false},
		{"no secret", "", body, sig, false},
		{"no signature", "whsec", body, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyWebhookSignature(tt.secret, tt.body, tt.sig); got != tt.want {
				t.Errorf("VerifyWebhookSignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseWebhook(t *testing.T) {
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_9","amount":500,"status":"captured"}}}}`)
	ev, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Event != EventPaymentCaptured {
		t.Errorf("unexpected event %q", ev.Event)
	}
	if ev.OrderID() != "order_9" || ev.PaymentID() != "pay_1" {
		t.Errorf("unexpected ids order=%q payment=%q", ev.OrderID(), ev.PaymentID())
	}

	paid, err := ParseWebhook([]byte(`{"event":"order.paid","payload":{"order":{"entity":{"id":"order_2","status":"paid"}}}}`))
	if err != nil {
		t.Fatalf("parse order.paid: %v", err)
	}
	if paid.OrderID() != "order_2" {
		t.Errorf("expected order_2, got %q", paid.OrderID())
	}

	for _, bad := range []string{"", "{}", "nope"} {
		if _, err := ParseWebhook([]byte(bad)); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
