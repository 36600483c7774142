package dares

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/darecoin/backend/internal/accounts"
	"github.com/darecoin/backend/internal/models"
	"github.com/darecoin/backend/internal/notify"
	rdb "github.com/darecoin/backend/internal/redis"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("not found")

// Kind describes where a challenge type lives. Dares and truths share every
// participation rule and differ only in their tables.
type Kind struct {
	Name         string
	Table        string
	Participants string
	ForeignKey   string
	Set          string
	RefType      string
	Label        func(item *Item) string
	Target       func(id int) notify.Target
}

var (
	DareKind = Kind{
		Name: "dare", Table: "dares", Participants: "dare_participants", ForeignKey: "dare_id",
		Set: rdb.DareExpirySet, RefType: accounts.RefDare,
		Label:  func(it *Item) string { return fmt.Sprintf("dare %q", it.Title) },
		Target: notify.Dare,
	}
	TruthKind = Kind{
		Name: "truth", Table: "truths", Participants: "truth_participants", ForeignKey: "truth_id",
		Set: rdb.TruthExpirySet, RefType: accounts.RefTruth,
		Label:  func(it *Item) string { return fmt.Sprintf("truth %q", it.Title) },
		Target: notify.Truth,
	}
)

// IsTruth reports whether k is the truth table set.
func (k Kind) IsTruth() bool {
	return k.Table == TruthKind.Table
}

// Item is the lockable core of a dare or truth.
type Item struct {
	ID        int       `db:"id"`
	Title     string    `db:"title"`
	CreatorID int       `db:"creator_id"`
	Reward    int64     `db:"reward"`
	Status    string    `db:"status"`
	ExpiresAt time.Time `db:"expires_at"`
}

// Challenge returns the fields the rules look at.
func (it *Item) Challenge() Challenge {
	return Challenge{CreatorID: it.CreatorID, Status: it.Status}
}

func (k Kind) titleColumn() string {
	if k.IsTruth() {
		return "question"
	}
	return "title"
}

// Lock selects an item FOR UPDATE inside tx.
func (k Kind) Lock(tx *sqlx.Tx, id int) (*Item, error) {
	var it Item
	err := tx.Get(&it, fmt.Sprintf(`SELECT id, %s AS title, creator_id, reward, status, expires_at FROM %s WHERE id=$1 FOR UPDATE`, k.titleColumn(), k.Table), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// PendingReviews counts submissions waiting for the creator.
func (k Kind) PendingReviews(q sqlx.Queryer, id int) (int, error) {
	var n int
	err := sqlx.Get(q, &n, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s=$1 AND status=$2`, k.Participants, k.ForeignKey), id, models.ParticipantPendingReview)
	return n, err
}

// CloseAndRefund sets a new terminal status on an active item and returns its
// escrowed reward to the creator. The caller holds the row lock and commits.
func (k Kind) CloseAndRefund(tx *sqlx.Tx, it *Item, status, reason string) error {
	if it.Status != models.StatusActive {
		return ErrNotActive
	}
	if _, err := tx.Exec(fmt.Sprintf(`UPDATE %s SET status=$1, completed_at=NOW() WHERE id=$2`, k.Table), status, it.ID); err != nil {
		return fmt.Errorf("update %s status: %w", k.Name, err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`UPDATE %s SET status=$1, reviewed_at=NOW() WHERE %s=$2 AND status=$3`, k.Participants, k.ForeignKey),
		models.ParticipantRejected, it.ID, models.ParticipantPendingReview); err != nil {
		return fmt.Errorf("close pending submissions: %w", err)
	}
	desc := fmt.Sprintf("Refund: %s %s", k.Label(it), reason)
	if err := accounts.ReleaseEscrow(tx, it.CreatorID, it.Reward, models.TxnRefund, k.RefType, it.ID, desc); err != nil {
		return fmt.Errorf("refund escrow: %w", err)
	}
	it.Status = status
	return nil
}
