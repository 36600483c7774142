// Command dbcheck verifies that Postgres and Redis are reachable and prints
// row counts for the main tables.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/darecoin/backend/internal/config"
	"github.com/darecoin/backend/internal/database"
	"github.com/darecoin/backend/internal/migrations"
	rdbkeys "github.com/darecoin/backend/internal/redis"
	"github.com/joho/godotenv"
)

var tables = []string{
	"users", "accounts", "transactions", "dares", "dare_participants",
	"truths", "truth_participants", "notifications", "payment_orders", "payment_webhooks",
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	if !check(config.Load()) {
		os.Exit(1)
	}
}

// check reports on each backend and closes its connections before returning.
func check(cfg *config.Config) bool {
	failed := false

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Printf("✗ Postgres: %v", err)
		failed = true
	} else {
		defer db.Close()
		log.Printf("✓ Postgres connected")
		if v, dirty, err := migrations.Version(cfg.DatabaseURL, migrations.DefaultDir); err != nil {
			log.Printf("  schema version unknown: %v", err)
		} else {
			log.Printf("  schema version %d (dirty=%v)", v, dirty)
		}
		for _, t := range tables {
			var n int
			if err := db.Get(&n, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, t)); err != nil {
				log.Printf("  %-20s error: %v", t, err)
				failed = true
				continue
			}
			log.Printf("  %-20s %d", t, n)
		}
	}

	rdb, err := rdbkeys.Connect(cfg.RedisURL)
	if err != nil {
		log.Printf("✗ Redis: %v", err)
		failed = true
	} else {
		defer rdb.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		dares, err := rdb.ZCard(ctx, rdbkeys.DareExpirySet).Result()
		if err != nil {
			log.Printf("✗ Redis: %v", err)
			return false
		}
		truths, err := rdb.ZCard(ctx, rdbkeys.TruthExpirySet).Result()
		if err != nil {
			log.Printf("✗ Redis: %v", err)
			return false
		}
		log.Printf("✓ Redis connected (scheduled expiries: %d dares, %d truths)", dares, truths)
	}

	return !failed
}
