package config

import (
	"sync"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MAX_TRUTH_REWARD", "")
	t.Setenv("MOCK_MODE", "")
	t.Setenv("RAZORPAY_KEY_ID", "")

	cfg := Load()
	if cfg.Limits().MaxTruthReward != 500 {
		t.Errorf("expected default max truth reward 500, got %d", cfg.Limits().MaxTruthReward)
	}
	if cfg.MockMode {
		t.Errorf("mock mode should default to false")
	}
	if cfg.PaymentsConfigured() {
		t.Errorf("payments should not be configured without keys")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_TRUTH_REWARD", "250")
	t.Setenv("MOCK_MODE", "true")
	t.Setenv("PAYMENT_CURRENCY", "usd")
	t.Setenv("RAZORPAY_KEY_ID", "rzp_test")
	t.Setenv("RAZORPAY_KEY_SECRET", "secret")

	cfg := Load()
	if cfg.Limits().MaxTruthReward != 250 {
		t.Errorf("expected 250, got %d", cfg.Limits().MaxTruthReward)
	}
	if !cfg.MockMode {
		t.Errorf("expected mock mode on")
	}
	if cfg.PaymentCurrency != "USD" {
		t.Errorf("expected upper-cased currency, got %s", cfg.PaymentCurrency)
	}
	if !cfg.PaymentsConfigured() {
		t.Errorf("expected payments configured")
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	if got := getEnvInt("SOME_INT", 7); got != 7 {
		t.Errorf("expected fallback 7, got %d", got)
	}
}

func TestUpdateLimits(t *testing.T) {
	cfg := &Config{}
	cfg.SetLimits(Limits{MinDareReward: 1, MaxTruthReward: 500})

	if cfg.UpdateLimits(func(l *Limits) bool {
		l.MaxTruthReward = 1
		return false
	}) {
		t.Errorf("rejected update reported as applied")
	}
	if got := cfg.Limits().MaxTruthReward; got != 500 {
		t.Errorf("rejected update leaked: %d", got)
	}

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(2)
		go func(v int) {
			defer wg.Done()
			cfg.UpdateLimits(func(l *Limits) bool {
				l.MaxTruthReward = v
				return true
			})
		}(i)
		go func() {
			defer wg.Done()
			if l := cfg.Limits(); l.MinDareReward != 1 {
				t.Errorf("unrelated limit changed: %d", l.MinDareReward)
			}
		}()
	}
	wg.Wait()
	if got := cfg.Limits().MaxTruthReward; got < 1 || got > 50 {
		t.Errorf("unexpected max truth reward %d", got)
	}
}
