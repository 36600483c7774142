package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Dare / truth statuses
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusExpired   = "expired"
	StatusRemoved   = "removed"
)

// Participant statuses
const (
	ParticipantJoined        = "joined"
	ParticipantPendingReview = "pending_review"
	ParticipantCompleted     = "completed"
	ParticipantRejected      = "rejected"
)

// Transaction types shown in the wallet history
const (
	TxnDeposit     = "deposit"
	TxnWithdrawal  = "withdrawal"
	TxnStake       = "stake"
	TxnReward      = "reward"
	TxnRefund      = "refund"
	TxnBonus       = "bonus"
	TxnTransferIn  = "transfer_in"
	TxnTransferOut = "transfer_out"
	TxnTopup       = "topup"
)

// User is a platform member. WalletBalance is read from the user's wallet account.
type User struct {
	ID            int           `db:"id" json:"id"`
	Username      string        `db:"username" json:"username"`
	Email         string        `db:"email" json:"email"`
	PasswordHash  string        `db:"password_hash" json:"-"`
	Role          string        `db:"role" json:"role"`
	WalletBalance int64         `db:"wallet_balance" json:"walletBalance"`
	Avatar        string        `db:"avatar" json:"avatar"`
	Banner        string        `db:"banner" json:"banner"`
	Bio           string        `db:"bio" json:"bio"`
	Highlights    pq.Int64Array `db:"highlights" json:"highlights"`
	IsBanned      bool          `db:"is_banned" json:"isBanned"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
}

// UserRef is the embedded creator/participant summary.
type UserRef struct {
	ID       int    `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Avatar   string `db:"avatar" json:"avatar"`
}

// Dare is a challenge with an escrowed stake.
type Dare struct {
	ID           int           `db:"id" json:"id"`
	Title        string        `db:"title" json:"title"`
	Description  string        `db:"description" json:"description"`
	Reward       int64         `db:"reward" json:"reward"`
	Category     string        `db:"category" json:"category"`
	Timeframe    string        `db:"timeframe" json:"timeframe"`
	CreatorID    int           `db:"creator_id" json:"-"`
	Creator      UserRef       `db:"-" json:"creator"`
	Status       string        `db:"status" json:"status"`
	TargetUsers  pq.Int64Array `db:"target_users" json:"targetUsers"`
	ExpiresAt    time.Time     `db:"expires_at" json:"expiresAt"`
	CreatedAt    time.Time     `db:"created_at" json:"createdAt"`
	CompletedAt  sql.NullTime  `db:"completed_at" json:"-"`
	Participants []Participant `db:"-" json:"participants"`
	CanAccept    bool          `db:"-" json:"canAccept"`
}

// Truth is a question answered in text for a reward.
type Truth struct {
	ID           int           `db:"id" json:"id"`
	Question     string        `db:"question" json:"question"`
	Category     string        `db:"category" json:"category"`
	Difficulty   string        `db:"difficulty" json:"difficulty"`
	Reward       int64         `db:"reward" json:"reward"`
	CreatorID    int           `db:"creator_id" json:"-"`
	Creator      UserRef       `db:"-" json:"creator"`
	Status       string        `db:"status" json:"status"`
	TargetUsers  pq.Int64Array `db:"target_users" json:"targetUsers"`
	ExpiresAt    time.Time     `db:"expires_at" json:"expiresAt"`
	CreatedAt    time.Time     `db:"created_at" json:"createdAt"`
	CompletedAt  sql.NullTime  `db:"completed_at" json:"-"`
	Participants []Participant `db:"-" json:"participants"`
	CanAccept    bool          `db:"-" json:"canAccept"`
}

// Participant is a user's entry in a dare or truth.
type Participant struct {
	ID          int          `db:"id" json:"id"`
	ParentID    int          `db:"parent_id" json:"-"`
	UserID      int          `db:"user_id" json:"userId"`
	User        UserRef      `db:"-" json:"user"`
	Username    string       `db:"username" json:"-"`
	Avatar      string       `db:"avatar" json:"-"`
	Status      string       `db:"status" json:"status"`
	ProofURL    string       `db:"proof_url" json:"proofUrl,omitempty"`
	Description string       `db:"description" json:"description,omitempty"`
	Answer      string       `db:"answer" json:"answer,omitempty"`
	ReviewNote  string       `db:"review_note" json:"reviewNote,omitempty"`
	JoinedAt    time.Time    `db:"joined_at" json:"joinedAt"`
	SubmittedAt sql.NullTime `db:"submitted_at" json:"-"`
	ReviewedAt  sql.NullTime `db:"reviewed_at" json:"-"`
}

// Transaction is a user-facing wallet history entry; Amount is signed.
type Transaction struct {
	ID          int       `db:"id" json:"id"`
	UserID      int       `db:"user_id" json:"user"`
	Type        string    `db:"type" json:"type"`
	Amount      int64     `db:"amount" json:"amount"`
	Description string    `db:"description" json:"description"`
	Status      string    `db:"status" json:"status"`
	Reference   string    `db:"reference" json:"reference,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Notification is an inbox entry.
type Notification struct {
	ID        int           `db:"id" json:"id"`
	UserID    int           `db:"user_id" json:"user"`
	Type      string        `db:"type" json:"type"`
	Message   string        `db:"message" json:"message"`
	DareID    sql.NullInt64 `db:"dare_id" json:"-"`
	TruthID   sql.NullInt64 `db:"truth_id" json:"-"`
	IsRead    bool          `db:"is_read" json:"isRead"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
}

// MarshalJSON flattens the optional references into plain ids or null.
func (n Notification) MarshalJSON() ([]byte, error) {
	type alias Notification
	out := struct {
		alias
		Dare  *int64 `json:"dare"`
		Truth *int64 `json:"truth"`
	}{alias: alias(n)}
	if n.DareID.Valid {
		out.Dare = &n.DareID.Int64
	}
	if n.TruthID.Valid {
		out.Truth = &n.TruthID.Int64
	}
	return json.Marshal(out)
}

// Account is a ledger account (user wallet or system account).
type Account struct {
	ID          int           `db:"id" json:"id"`
	AccountType string        `db:"account_type" json:"account_type"`
	OwnerUserID sql.NullInt64 `db:"owner_user_id" json:"owner_user_id"`
	Balance     int64         `db:"balance" json:"balance"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentOrder tracks a fiat purchase of DRC.
type PaymentOrder struct {
	ID                int             `db:"id" json:"id"`
	UserID            int             `db:"user_id" json:"user"`
	ProviderOrderID   string          `db:"provider_order_id" json:"orderId"`
	Receipt           string          `db:"receipt" json:"receipt"`
	DRCAmount         int64           `db:"drc_amount" json:"drcAmount"`
	FiatAmount        decimal.Decimal `db:"fiat_amount" json:"fiatAmount"`
	Currency          string          `db:"currency" json:"currency"`
	Status            string          `db:"status" json:"status"`
	ProviderPaymentID sql.NullString  `db:"provider_payment_id" json:"-"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	PaidAt            sql.NullTime    `db:"paid_at" json:"-"`
}

// AdminAudit is one admin action record.
type AdminAudit struct {
	ID            int             `db:"id" json:"id"`
	AdminUsername *string         `db:"admin_username" json:"admin_username"`
	IP            *string         `db:"ip" json:"ip"`
	Route         *string         `db:"route" json:"route"`
	Action        *string         `db:"action" json:"action"`
	Details       json.RawMessage `db:"details" json:"details"`
	Success       *bool           `db:"success" json:"success"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// RuntimeConfig is an admin-editable override.
type RuntimeConfig struct {
	Key         string    `db:"key" json:"key"`
	Value       string    `db:"value" json:"value"`
	ValueType   string    `db:"value_type" json:"value_type"`
	Description string    `db:"description" json:"description"`
	UpdatedBy   *string   `db:"updated_by" json:"updated_by"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
