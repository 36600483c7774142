package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Webhook events we act on
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
)

// WebhookEvent is the provider's webhook envelope.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity Payment `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity Order `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// OrderID returns the order the event refers to.
func (e *WebhookEvent) OrderID() string {
	if id := e.Payload.Order.Entity.ID; id != "" {
		return id
	}
	return e.Payload.Payment.Entity.OrderID
}

// PaymentID returns the payment id carried by the event, if any.
func (e *WebhookEvent) PaymentID() string {
	return e.Payload.Payment.Entity.ID
}

// VerifyWebhookSignature checks the webhook signature header, an HMAC-SHA256
// of the raw request body keyed with the webhook secret.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// ParseWebhook decodes a webhook body.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if ev.Event == "" {
		return nil, fmt.Errorf("webhook without event name")
	}
	return &ev, nil
}
