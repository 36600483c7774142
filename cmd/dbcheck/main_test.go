package main

import (
	"os"
	"testing"

	"github.com/darecoin/backend/internal/config"
	"github.com/darecoin/backend/internal/testdb"
)

func TestCheckReportsFailureWithoutExiting(t *testing.T) {
	testdb.Open(t)
	cfg := &config.Config{DatabaseURL: os.Getenv("TEST_DATABASE_URL"), RedisURL: "not-a-redis-url"}

	if check(cfg) {
		t.Fatal("expected check to fail on a bad redis url")
	}

	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		return
	}
	cfg.RedisURL = redisURL
	if !check(cfg) {
		t.Error("expected check to pass against the test database and redis")
	}
}
