package payment

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ParsePrice parses the configured fiat price of one DRC.
func ParsePrice(s string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid DRC price %q: %w", s, err)
	}
	if !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("DRC price must be positive, got %s", s)
	}
	return p, nil
}

// FiatAmount is the fiat cost of drc coins, rounded to two decimals.
func FiatAmount(drc int64, price decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(drc).Mul(price).Round(2)
}

// MinorUnits converts a fiat amount to the provider's smallest currency unit.
func MinorUnits(fiat decimal.Decimal) int64 {
	return fiat.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// NewReceipt returns a unique receipt reference for an order.
func NewReceipt() string {
	return "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// MockOrderID returns a local order id used when no provider is configured.
func MockOrderID() string {
	return "mock_" + uuid.NewString()
}

// IsMockOrder reports whether an order id was issued locally.
func IsMockOrder(orderID string) bool {
	return strings.HasPrefix(orderID, "mock_")
}
