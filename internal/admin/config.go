package admin

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/darecoin/backend/internal/config"
	"github.com/darecoin/backend/internal/models"
	"github.com/jmoiron/sqlx"
)

var ErrUnknownConfigKey = errors.New("config key not found")

// GetAllRuntimeConfig returns all runtime config entries
func GetAllRuntimeConfig(db *sqlx.DB) ([]models.RuntimeConfig, error) {
	configs := []models.RuntimeConfig{}
	err := db.Select(&configs, `
		SELECT key, value, value_type, description, updated_by, updated_at
		FROM runtime_config
		ORDER BY key
	`)
	return configs, err
}

// GetRuntimeConfigValue returns a single runtime config value
func GetRuntimeConfigValue(db *sqlx.DB, key string) (*models.RuntimeConfig, error) {
	var cfg models.RuntimeConfig
	err := db.Get(&cfg, `SELECT key, value, value_type, description, updated_by, updated_at FROM runtime_config WHERE key=$1`, key)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateValue checks a value against its declared type.
func ValidateValue(valueType, value string) error {
	switch valueType {
	case "int":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		if v < 0 {
			return fmt.Errorf("value must not be negative: %s", value)
		}
	case "float":
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("invalid float value: %s", value)
		}
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid boolean value: %s (must be 'true' or 'false')", value)
		}
	}
	return nil
}

// UpdateRuntimeConfigValue validates and stores a value, then applies it to cfg.
func UpdateRuntimeConfigValue(db *sqlx.DB, cfg *config.Config, key, value, adminUsername string) (*models.RuntimeConfig, error) {
	existing, err := GetRuntimeConfigValue(db, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
	}
	if err := ValidateValue(existing.ValueType, value); err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		UPDATE runtime_config SET value=$1, updated_by=$2, updated_at=NOW() WHERE key=$3
	`, value, adminUsername, key)
	if err != nil {
		return nil, err
	}
	applyOverride(cfg, key, value)
	return GetRuntimeConfigValue(db, key)
}

// ApplyRuntimeConfigToConfig loads runtime config from DB and applies overrides to the Config struct
func ApplyRuntimeConfigToConfig(db *sqlx.DB, cfg *config.Config) error {
	configs, err := GetAllRuntimeConfig(db)
	if err != nil {
		return err
	}

	applied := 0
	for _, c := range configs {
		if applyOverride(cfg, c.Key, c.Value) {
			applied++
		}
	}

	log.Printf("[CONFIG] Applied %d runtime config overrides from database", applied)
	return nil
}

func applyOverride(cfg *config.Config, key, value string) bool {
	if cfg == nil {
		return false
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return false
	}
	return cfg.UpdateLimits(func(l *config.Limits) bool {
		switch key {
		case "signup_bonus":
			l.SignupBonus = v
		case "min_dare_reward":
			l.MinDareReward = v
		case "max_dare_reward":
			l.MaxDareReward = v
		case "max_truth_reward":
			l.MaxTruthReward = v
		case "min_transfer_amount":
			l.MinTransferAmount = v
		case "max_topup_amount":
			l.MaxTopupAmount = v
		default:
			return false
		}
		return true
	})
}
