package accounts

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/darecoin/backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// account types constants
const (
	AccountUserWallet = "user_wallet"
	AccountEscrow     = "escrow"
	AccountPlatform   = "platform"
	AccountSettlement = "settlement"
)

var (
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrAccountNotFound   = errors.New("account not found for transfer")
	ErrSameAccount       = errors.New("cannot transfer to the same account")
)

const accountColumns = `id, account_type, owner_user_id, balance, created_at, updated_at`

// GetOrCreateAccount returns an account for the given owner and type, creating it if missing.
// A nil owner selects the system account of that type.
func GetOrCreateAccount(q sqlx.Ext, accountType string, ownerUserID *int) (*models.Account, error) {
	if q == nil {
		return nil, fmt.Errorf("db is nil")
	}

	var a models.Account
	if ownerUserID == nil {
		if err := sqlx.Get(q, &a, `SELECT `+accountColumns+` FROM accounts WHERE account_type=$1 AND owner_user_id IS NULL`, accountType); err == nil {
			return &a, nil
		}
		if _, err := q.Exec(`INSERT INTO accounts (account_type, balance, created_at, updated_at) VALUES ($1, 0, NOW(), NOW()) ON CONFLICT DO NOTHING`, accountType); err != nil {
			return nil, err
		}
		if err := sqlx.Get(q, &a, `SELECT `+accountColumns+` FROM accounts WHERE account_type=$1 AND owner_user_id IS NULL`, accountType); err != nil {
			return nil, err
		}
		return &a, nil
	}

	if err := sqlx.Get(q, &a, `SELECT `+accountColumns+` FROM accounts WHERE account_type=$1 AND owner_user_id=$2`, accountType, *ownerUserID); err == nil {
		return &a, nil
	}
	if _, err := q.Exec(`INSERT INTO accounts (account_type, owner_user_id, balance, created_at, updated_at) VALUES ($1, $2, 0, NOW(), NOW()) ON CONFLICT DO NOTHING`, accountType, *ownerUserID); err != nil {
		return nil, err
	}
	if err := sqlx.Get(q, &a, `SELECT `+accountColumns+` FROM accounts WHERE account_type=$1 AND owner_user_id=$2`, accountType, *ownerUserID); err != nil {
		return nil, err
	}
	return &a, nil
}

// Wallet returns the wallet account of a user.
func Wallet(q sqlx.Ext, userID int) (*models.Account, error) {
	return GetOrCreateAccount(q, AccountUserWallet, &userID)
}

// Balance returns the current wallet balance of a user (0 when no wallet exists yet).
func Balance(q sqlx.Queryer, userID int) (int64, error) {
	var balance int64
	err := sqlx.Get(q, &balance, `SELECT balance FROM accounts WHERE account_type=$1 AND owner_user_id=$2`, AccountUserWallet, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

// guarded reports whether an account type must never go below zero.
func guarded(accountType string) bool {
	return accountType == AccountUserWallet || accountType == AccountEscrow
}

// applyTransfer computes the balances after moving amount from debit to credit.
func applyTransfer(debit, credit models.Account, amount int64) (int64, int64, error) {
	if amount <= 0 {
		return 0, 0, ErrInvalidAmount
	}
	if debit.ID == credit.ID {
		return 0, 0, ErrSameAccount
	}
	if guarded(debit.AccountType) && debit.Balance < amount {
		return 0, 0, fmt.Errorf("account %d: %w", debit.ID, ErrInsufficientFunds)
	}
	return debit.Balance - amount, credit.Balance + amount, nil
}

// Transfer performs a single debit/credit between accounts within an existing tx.
// It selects both accounts FOR UPDATE, checks balances, updates balances and inserts an account_transactions row.
func Transfer(tx *sqlx.Tx, debitAccountID, creditAccountID int, amount int64, referenceType string, referenceID sql.NullInt64, description string) error {
	if tx == nil {
		return fmt.Errorf("tx is nil")
	}

	// Lock both accounts in id order
	var rows []models.Account
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id IN ($1,$2) ORDER BY id FOR UPDATE`
	if err := tx.Select(&rows, query, debitAccountID, creditAccountID); err != nil {
		return err
	}

	var debitAcc, creditAcc *models.Account
	for i := range rows {
		if rows[i].ID == debitAccountID {
			debitAcc = &rows[i]
		}
		if rows[i].ID == creditAccountID {
			creditAcc = &rows[i]
		}
	}
	if debitAcc == nil || creditAcc == nil {
		return ErrAccountNotFound
	}

	newDebit, newCredit, err := applyTransfer(*debitAcc, *creditAcc, amount)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`UPDATE accounts SET balance=$1, updated_at=NOW() WHERE id=$2`, newDebit, debitAcc.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE accounts SET balance=$1, updated_at=NOW() WHERE id=$2`, newCredit, creditAcc.ID); err != nil {
		return err
	}

	if _, err := tx.Exec(`INSERT INTO account_transactions (debit_account_id, credit_account_id, amount, reference_type, reference_id, description, created_at) VALUES ($1,$2,$3,$4,$5,$6,NOW())`, debitAccountID, creditAccountID, amount, referenceType, referenceID, description); err != nil {
		return err
	}

	log.Printf("[ACCT] Transfer completed: debit_acc=%d credit_acc=%d amount=%d ref_type=%s ref_id=%v desc=%s", debitAccountID, creditAccountID, amount, referenceType, referenceID, description)
	return nil
}

// RecordTransaction writes a user-facing wallet history row. Amount is signed.
func RecordTransaction(tx *sqlx.Tx, userID int, txnType string, amount int64, description, reference string) (int, error) {
	var id int
	err := tx.QueryRowx(`INSERT INTO transactions (user_id, type, amount, description, status, reference, created_at) VALUES ($1,$2,$3,$4,'completed',$5,NOW()) RETURNING id`,
		userID, txnType, amount, description, reference).Scan(&id)
	return id, err
}

// Ref builds a nullable reference id.
func Ref(id int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(id), Valid: id > 0}
}
