package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key names shared across packages.
const (
	NotificationChannel = "notification_events"
	DareExpirySet       = "dare_expiry"
	TruthExpirySet      = "truth_expiry"
	AdminStatsKey       = "admin_stats"
)

// Connect establishes a connection to Redis
func Connect(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// LoginRateKey is the SetNX key guarding repeated login attempts.
func LoginRateKey(identifier string) string {
	return "login_rate:" + identifier
}
