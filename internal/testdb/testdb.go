// Package testdb opens the Postgres database used by the integration tests.
// Tests calling Open are skipped unless TEST_DATABASE_URL is set.
package testdb

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/darecoin/backend/internal/database"
	"github.com/darecoin/backend/internal/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
)

var (
	migrateOnce sync.Once
	migrateErr  error
)

func root() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..")
}

// Open connects to TEST_DATABASE_URL, applies migrations once per test binary
// and empties every table, so each test starts from a fresh ledger.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()
	_ = godotenv.Load(filepath.Join(root(), ".env.test"))

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	migrateOnce.Do(func() {
		migrateErr = migrations.RunMigrationsFrom(url, filepath.Join(root(), migrations.DefaultDir))
	})
	if migrateErr != nil {
		t.Fatalf("Failed to migrate test database: %v", migrateErr)
	}

	db, err := database.Connect(url)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// system accounts are recreated on demand
	if _, err := db.Exec(`TRUNCATE users, accounts, account_transactions, payment_webhooks, admin_audit RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}
	return db
}

// CreateUser inserts a plain user and returns its id.
func CreateUser(t *testing.T, db *sqlx.DB, username string) int {
	t.Helper()
	var id int
	err := db.Get(&id, `INSERT INTO users (username, email, password_hash) VALUES ($1, $2, 'x') RETURNING id`,
		username, username+"@darecoin.test")
	if err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return id
}

// SumBalances adds up every account. Money only moves between accounts, so
// the sum is zero whatever happened.
func SumBalances(t *testing.T, db *sqlx.DB) int64 {
	t.Helper()
	var sum int64
	if err := db.Get(&sum, `SELECT COALESCE(SUM(balance), 0)::BIGINT FROM accounts`); err != nil {
		t.Fatalf("Failed to sum balances: %v", err)
	}
	return sum
}
