package config

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Limits are the values an admin can change at runtime.
type Limits struct {
	SignupBonus       int
	MinDareReward     int
	MaxDareReward     int
	MaxTruthReward    int
	MinTransferAmount int
	MaxTopupAmount    int
}

type Config struct {
	// Environment
	Environment string
	MockMode    bool

	// Database
	DatabaseURL    string
	MigrateOnStart bool

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string
	UploadDir   string
	MaxUploadMB int

	// Dare / truth limits, read through Limits()
	limitsMu sync.RWMutex
	limits   Limits

	// Workers
	ExpiryPollSeconds  int
	StatsCacheSeconds  int
	DefaultTimeframe   string
	PaymentCheckMinute int

	// Payments (Razorpay compatible)
	DRCPrice                  string
	PaymentCurrency           string
	RazorpayBaseURL           string
	RazorpayKeyID             string
	RazorpayKeySecret         string
	RazorpayWebhookSecret     string
	RazorpayTimeout           int
	PaymentOrderExpiryMinutes int

	// Security
	JWTSecret             string
	JWTTTLHours           int
	LoginRateLimitSeconds int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		MockMode:    getEnvBool("MOCK_MODE", false),

		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/darecoin?sslmode=disable"),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", false),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		Port:        getEnv("APP_PORT", "5000"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		UploadDir:   getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 25),

		ExpiryPollSeconds:  getEnvInt("EXPIRY_POLL_SECONDS", 30),
		StatsCacheSeconds:  getEnvInt("STATS_CACHE_SECONDS", 30),
		DefaultTimeframe:   getEnv("DEFAULT_TIMEFRAME", "7d"),
		PaymentCheckMinute: getEnvInt("PAYMENT_CHECK_MINUTES", 2),

		DRCPrice:                  getEnv("DRC_PRICE", "1.00"),
		PaymentCurrency:           strings.ToUpper(getEnv("PAYMENT_CURRENCY", "INR")),
		RazorpayBaseURL:           getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
		RazorpayKeyID:             getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:         getEnv("RAZORPAY_KEY_SECRET", ""),
		RazorpayWebhookSecret:     getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
		RazorpayTimeout:           getEnvInt("RAZORPAY_TIMEOUT_SECONDS", 15),
		PaymentOrderExpiryMinutes: getEnvInt("PAYMENT_ORDER_EXPIRY_MINUTES", 30),

		JWTSecret:             getEnv("JWT_SECRET", "change-me-in-production"),
		JWTTTLHours:           getEnvInt("JWT_TTL_HOURS", 24*7),
		LoginRateLimitSeconds: getEnvInt("LOGIN_RATE_LIMIT_SECONDS", 2),
	}
	cfg.SetLimits(Limits{
		SignupBonus:       getEnvInt("SIGNUP_BONUS", 100),
		MinDareReward:     getEnvInt("MIN_DARE_REWARD", 1),
		MaxDareReward:     getEnvInt("MAX_DARE_REWARD", 100000),
		MaxTruthReward:    getEnvInt("MAX_TRUTH_REWARD", 500),
		MinTransferAmount: getEnvInt("MIN_TRANSFER_AMOUNT", 1),
		MaxTopupAmount:    getEnvInt("MAX_TOPUP_AMOUNT", 10000),
	})
	return cfg
}

// Limits returns a snapshot of the runtime limits.
func (c *Config) Limits() Limits {
	c.limitsMu.RLock()
	defer c.limitsMu.RUnlock()
	return c.limits
}

func (c *Config) SetLimits(l Limits) {
	c.limitsMu.Lock()
	c.limits = l
	c.limitsMu.Unlock()
}

// UpdateLimits applies fn under the write lock. The change is kept only when
// fn returns true.
func (c *Config) UpdateLimits(fn func(*Limits) bool) bool {
	c.limitsMu.Lock()
	defer c.limitsMu.Unlock()
	l := c.limits
	if !fn(&l) {
		return false
	}
	c.limits = l
	return true
}

// PaymentsConfigured reports whether real provider credentials are present.
func (c *Config) PaymentsConfigured() bool {
	return c.RazorpayKeyID != "" && c.RazorpayKeySecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
