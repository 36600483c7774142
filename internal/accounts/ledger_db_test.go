package accounts_test

import (
	"errors"
	"testing"

	"github.com/darecoin/backend/internal/accounts"
	"github.com/darecoin/backend/internal/models"
	"github.com/darecoin/backend/internal/testdb"
	"github.com/jmoiron/sqlx"
)

func fund(t *testing.T, db *sqlx.DB, userID int, amount int64) {
	t.Helper()
	tx := db.MustBegin()
	if err := accounts.CreditExternal(tx, userID, amount, models.TxnTopup, accounts.RefTopup, 0, "test funds"); err != nil {
		tx.Rollback()
		t.Fatalf("fund user %d: %v", userID, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit funds: %v", err)
	}
}

func balance(t *testing.T, db *sqlx.DB, userID int) int64 {
	t.Helper()
	b, err := accounts.Balance(db, userID)
	if err != nil {
		t.Fatalf("balance of %d: %v", userID, err)
	}
	return b
}

func TestEscrowRefusesOverdraft(t *testing.T) {
	db := testdb.Open(t)
	alice := testdb.CreateUser(t, db, "alice")
	fund(t, db, alice, 100)

	tx := db.MustBegin()
	err := accounts.Escrow(tx, alice, 101, accounts.RefDare, 1, "too big")
	tx.Rollback()
	if !errors.Is(err, accounts.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := balance(t, db, alice); got != 100 {
		t.Errorf("expected balance 100 after refused escrow, got %d", got)
	}

	tx = db.MustBegin()
	if err := accounts.Escrow(tx, alice, 100, accounts.RefDare, 1, "stake"); err != nil {
		tx.Rollback()
		t.Fatalf("escrow full balance: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := balance(t, db, alice); got != 0 {
		t.Errorf("expected empty wallet after stake, got %d", got)
	}
	if sum := testdb.SumBalances(t, db); sum != 0 {
		t.Errorf("balances must sum to zero, got %d", sum)
	}
}

func TestTransferUsersConservesBalances(t *testing.T) {
	db := testdb.Open(t)
	alice := testdb.CreateUser(t, db, "alice")
	bob := testdb.CreateUser(t, db, "bob")
	fund(t, db, alice, 50)

	tests := []struct {
		name      string
		amount    int64
		wantErr   error
		wantAlice int64
		wantBob   int64
	}{
		{"within balance", 30, nil, 20, 30},
		{"overdraft", 21, accounts.ErrInsufficientFunds, 20, 30},
		{"exact remainder", 20, nil, 0, 50},
		{"zero", 0, accounts.ErrInvalidAmount, 0, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := db.MustBegin()
			err := accounts.TransferUsers(tx, alice, bob, tt.amount, "out", "in")
			if err == nil {
				err = tx.Commit()
			} else {
				tx.Rollback()
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if a, b := balance(t, db, alice), balance(t, db, bob); a != tt.wantAlice || b != tt.wantBob {
				t.Errorf("balances alice=%d bob=%d, want %d/%d", a, b, tt.wantAlice, tt.wantBob)
			}
			if sum := testdb.SumBalances(t, db); sum != 0 {
				t.Errorf("balances must sum to zero, got %d", sum)
			}
		})
	}

	var rows int
	if err := db.Get(&rows, `SELECT COUNT(*) FROM transactions WHERE type IN ($1, $2)`, models.TxnTransferOut, models.TxnTransferIn); err != nil {
		t.Fatalf("count transfer rows: %v", err)
	}
	if rows != 4 {
		t.Errorf("expected 4 transfer history rows, got %d", rows)
	}
}
