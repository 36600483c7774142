// Package notify stores inbox notifications and fans them out over Redis to
// the websocket hub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/darecoin/backend/internal/models"
	rdb "github.com/darecoin/backend/internal/redis"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Notification types
const (
	NewDare          = "new_dare"
	NewTruth         = "new_truth"
	DareJoined       = "dare_joined"
	ProofSubmitted   = "proof_submitted"
	ProofApproved    = "proof_approved"
	ProofRejected    = "proof_rejected"
	TransferReceived = "transfer_received"
	Topup            = "topup"
	DareExpired      = "dare_expired"
	DareRemoved      = "dare_removed"
)

// Event is the payload published on the notification channel.
type Event struct {
	UserID       int             `json:"userId"`
	Notification json.RawMessage `json:"notification"`
}

// Target links a notification to the dare or truth it is about. Zero means none.
type Target struct {
	DareID  int
	TruthID int
}

// Dare targets a dare.
func Dare(id int) Target { return Target{DareID: id} }

// Truth targets a truth.
func Truth(id int) Target { return Target{TruthID: id} }

const notificationColumns = `id, user_id, type, message, dare_id, truth_id, is_read, created_at`

// Insert writes a notification row. Use it inside a transaction and call
// Publish after commit.
func Insert(q sqlx.Queryer, userID int, typ, message string, target Target) (*models.Notification, error) {
	var n models.Notification
	err := sqlx.Get(q, &n, `INSERT INTO notifications (user_id, type, message, dare_id, truth_id, is_read, created_at)
		VALUES ($1,$2,$3,$4,$5,false,NOW()) RETURNING `+notificationColumns,
		userID, typ, message, nullID(target.DareID), nullID(target.TruthID))
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return &n, nil
}

// Publish pushes stored notifications to connected clients. Failures are
// logged only: the row is already in the inbox.
func Publish(ctx context.Context, client *redis.Client, ns ...*models.Notification) {
	if client == nil {
		return
	}
	for _, n := range ns {
		if n == nil {
			continue
		}
		body, err := json.Marshal(n)
		if err != nil {
			log.Printf("[NOTIFY] marshal notification %d: %v", n.ID, err)
			continue
		}
		payload, err := json.Marshal(Event{UserID: n.UserID, Notification: body})
		if err != nil {
			log.Printf("[NOTIFY] marshal notification %d: %v", n.ID, err)
			continue
		}
		if err := client.Publish(ctx, rdb.NotificationChannel, payload).Err(); err != nil {
			log.Printf("[NOTIFY] publish notification %d for user %d failed: %v", n.ID, n.UserID, err)
		}
	}
}

// Send inserts and publishes in one step for callers outside a transaction.
func Send(ctx context.Context, db *sqlx.DB, client *redis.Client, userID int, typ, message string, target Target) {
	n, err := Insert(db, userID, typ, message, target)
	if err != nil {
		log.Printf("[NOTIFY] %s for user %d: %v", typ, userID, err)
		return
	}
	Publish(ctx, client, n)
}

// Decode parses a payload received from the notification channel.
func Decode(payload string) (*Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil, err
	}
	if ev.UserID <= 0 {
		return nil, fmt.Errorf("event without user id")
	}
	return &ev, nil
}

func nullID(id int) interface{} {
	if id <= 0 {
		return nil
	}
	return id
}
