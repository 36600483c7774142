package accounts

import (
	"fmt"

	"github.com/darecoin/backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// Reference types recorded on account_transactions.
const (
	RefDare     = "DARE"
	RefTruth    = "TRUTH"
	RefTransfer = "TRANSFER"
	RefTopup    = "TOPUP"
	RefPayment  = "PAYMENT"
	RefSignup   = "SIGNUP"
	RefAdmin    = "ADMIN_ADJUST"
)

func between(tx *sqlx.Tx, debitType string, debitOwner *int, creditType string, creditOwner *int, amount int64, refType string, refID int, desc string) error {
	debit, err := GetOrCreateAccount(tx, debitType, debitOwner)
	if err != nil {
		return fmt.Errorf("load %s account: %w", debitType, err)
	}
	credit, err := GetOrCreateAccount(tx, creditType, creditOwner)
	if err != nil {
		return fmt.Errorf("load %s account: %w", creditType, err)
	}
	return Transfer(tx, debit.ID, credit.ID, amount, refType, Ref(refID), desc)
}

// Escrow moves a creator's stake from their wallet into escrow and records a stake row.
func Escrow(tx *sqlx.Tx, userID int, amount int64, refType string, refID int, desc string) error {
	if err := between(tx, AccountUserWallet, &userID, AccountEscrow, nil, amount, refType, refID, desc); err != nil {
		return err
	}
	_, err := RecordTransaction(tx, userID, models.TxnStake, -amount, desc, reference(refType, refID))
	return err
}

// ReleaseEscrow pays an escrowed amount to a user. txnType is reward or refund.
func ReleaseEscrow(tx *sqlx.Tx, userID int, amount int64, txnType, refType string, refID int, desc string) error {
	if err := between(tx, AccountEscrow, nil, AccountUserWallet, &userID, amount, refType, refID, desc); err != nil {
		return err
	}
	_, err := RecordTransaction(tx, userID, txnType, amount, desc, reference(refType, refID))
	return err
}

// CreditExternal brings money into a wallet from outside the platform (bonus, top-up, deposit).
func CreditExternal(tx *sqlx.Tx, userID int, amount int64, txnType, refType string, refID int, desc string) error {
	if err := between(tx, AccountSettlement, nil, AccountUserWallet, &userID, amount, refType, refID, desc); err != nil {
		return err
	}
	_, err := RecordTransaction(tx, userID, txnType, amount, desc, reference(refType, refID))
	return err
}

// DebitExternal takes money out of a wallet (admin withdrawal adjustment).
func DebitExternal(tx *sqlx.Tx, userID int, amount int64, refType string, refID int, desc string) error {
	if err := between(tx, AccountUserWallet, &userID, AccountSettlement, nil, amount, refType, refID, desc); err != nil {
		return err
	}
	_, err := RecordTransaction(tx, userID, models.TxnWithdrawal, -amount, desc, reference(refType, refID))
	return err
}

// TransferUsers moves DRC between two user wallets and records both sides.
func TransferUsers(tx *sqlx.Tx, fromUserID, toUserID int, amount int64, outDesc, inDesc string) error {
	if fromUserID == toUserID {
		return ErrSameAccount
	}
	if err := between(tx, AccountUserWallet, &fromUserID, AccountUserWallet, &toUserID, amount, RefTransfer, toUserID, outDesc); err != nil {
		return err
	}
	if _, err := RecordTransaction(tx, fromUserID, models.TxnTransferOut, -amount, outDesc, reference("USER", toUserID)); err != nil {
		return err
	}
	_, err := RecordTransaction(tx, toUserID, models.TxnTransferIn, amount, inDesc, reference("USER", fromUserID))
	return err
}

func reference(refType string, refID int) string {
	if refID <= 0 {
		return refType
	}
	return fmt.Sprintf("%s:%d", refType, refID)
}
