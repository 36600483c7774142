package accounts

import (
	"errors"
	"testing"

	"github.com/darecoin/backend/internal/models"
)

func TestApplyTransfer(t *testing.T) {
	wallet := models.Account{ID: 1, AccountType: AccountUserWallet, Balance: 500}
	escrow := models.Account{ID: 2, AccountType: AccountEscrow, Balance: 0}
	settlement := models.Account{ID: 3, AccountType: AccountSettlement, Balance: 0}

	tests := []struct {
		name       string
		debit      models.Account
		credit     models.Account
		amount     int64
		wantDebit  int64
		wantCredit int64
		wantErr    error
	}{
		{name: "stake full balance", debit: wallet, credit: escrow, amount: 500, wantDebit: 0, wantCredit: 500},
		{name: "wallet overdraft", debit: wallet, credit: escrow, amount: 501, wantErr: ErrInsufficientFunds},
		{name: "escrow overdraft", debit: escrow, credit: wallet, amount: 1, wantErr: ErrInsufficientFunds},
		{name: "settlement may go negative", debit: settlement, credit: wallet, amount: 100, wantDebit: -100, wantCredit: 600},
		{name: "zero amount", debit: wallet, credit: escrow, amount: 0, wantErr: ErrInvalidAmount},
		{name: "negative amount", debit: wallet, credit: escrow, amount: -5, wantErr: ErrInvalidAmount},
		{name: "same account", debit: wallet, credit: wallet, amount: 5, wantErr: ErrSameAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotDebit, gotCredit, err := applyTransfer(tt.debit, tt.credit, tt.amount)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotDebit != tt.wantDebit || gotCredit != tt.wantCredit {
				t.Errorf("balances = (%d, %d), want (%d, %d)", gotDebit, gotCredit, tt.wantDebit, tt.wantCredit)
			}
			if gotDebit+gotCredit != tt.debit.Balance+tt.credit.Balance {
				t.Errorf("transfer did not conserve the total balance")
			}
		})
	}
}

func TestReference(t *testing.T) {
	if got := reference(RefDare, 12); got != "DARE:12" {
		t.Errorf("unexpected reference %q", got)
	}
	if got := reference(RefSignup, 0); got != "SIGNUP" {
		t.Errorf("unexpected reference %q", got)
	}
	if Ref(0).Valid {
		t.Errorf("zero id must produce a null reference")
	}
	if r := Ref(9); !r.Valid || r.Int64 != 9 {
		t.Errorf("unexpected ref %+v", r)
	}
}

func TestGetOrCreateAccountNilDB(t *testing.T) {
	if _, err := GetOrCreateAccount(nil, AccountEscrow, nil); err == nil {
		t.Errorf("expected error for nil db")
	}
}
