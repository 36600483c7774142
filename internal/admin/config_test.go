package admin

import (
	"testing"

	"github.com/darecoin/backend/internal/config"
)

func TestValidateValue(t *testing.T) {
	tests := []struct {
		typ, value string
		ok         bool
	}{
		{"int", "100", true},
		{"int", "-1", false},
		{"int", "1.5", false},
		{"float", "1.5", true},
		{"float", "x", false},
		{"bool", "true", true},
		{"bool", "yes", false},
		{"string", "anything", true},
	}
	for _, tt := range tests {
		err := ValidateValue(tt.typ, tt.value)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateValue(%q, %q) = %v, want ok=%v", tt.typ, tt.value, err, tt.ok)
		}
	}
}

func TestApplyOverride(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetLimits(config.Limits{SignupBonus: 100, MaxTruthReward: 500})

	if !applyOverride(cfg, "signup_bonus", "250") || cfg.Limits().SignupBonus != 250 {
		t.Errorf("signup_bonus not applied: %d", cfg.Limits().SignupBonus)
	}
	if !applyOverride(cfg, "max_truth_reward", "300") || cfg.Limits().MaxTruthReward != 300 {
		t.Errorf("max_truth_reward not applied: %d", cfg.Limits().MaxTruthReward)
	}
	if applyOverride(cfg, "max_truth_reward", "lots") {
		t.Errorf("non numeric value must be ignored")
	}
	if cfg.Limits().MaxTruthReward != 300 {
		t.Errorf("ignored override changed the value")
	}
	if applyOverride(cfg, "unknown_key", "1") {
		t.Errorf("unknown key must not apply")
	}
	if cfg.Limits().SignupBonus != 250 {
		t.Errorf("unknown key changed another limit")
	}
	if applyOverride(nil, "signup_bonus", "1") {
		t.Errorf("nil config must not apply")
	}
}
