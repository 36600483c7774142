package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/darecoin/backend/internal/accounts"
	"github.com/darecoin/backend/internal/dares"
	"github.com/darecoin/backend/internal/expiry"
	"github.com/darecoin/backend/internal/models"
	"github.com/darecoin/backend/internal/notify"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Shared participation logic for dares and truths. Both live in their own
// tables described by dares.Kind.

// ruleStatus maps lifecycle and ledger errors to HTTP statuses.
func ruleStatus(err error) int {
	switch {
	case errors.Is(err, dares.ErrSelfJoin), errors.Is(err, dares.ErrNotCreator):
		return http.StatusForbidden
	case errors.Is(err, dares.ErrNotActive), errors.Is(err, dares.ErrAlreadySubmitted),
		errors.Is(err, dares.ErrAlreadyCompleted), errors.Is(err, dares.ErrNotPending):
		return http.StatusConflict
	case errors.Is(err, dares.ErrNotParticipant), errors.Is(err, dares.ErrCannotIgnore),
		errors.Is(err, dares.ErrInvalidAction), errors.Is(err, accounts.ErrInsufficientFunds),
		errors.Is(err, accounts.ErrInvalidAmount), errors.Is(err, accounts.ErrSameAccount):
		return http.StatusBadRequest
	case errors.Is(err, dares.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func ruleMessage(err error) string {
	switch {
	case errors.Is(err, accounts.ErrInsufficientFunds):
		return "Insufficient balance"
	case errors.Is(err, dares.ErrNotFound):
		return "Not found"
	case ruleStatus(err) == http.StatusInternalServerError:
		return "Internal server error"
	}
	return err.Error()
}

func respondRule(c *gin.Context, err error) {
	status := ruleStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[DARES] %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	respondError(c, status, ruleMessage(err))
}

func participantSelect(k dares.Kind) string {
	extra := `p.proof_url, p.description, '' AS answer`
	if k.IsTruth() {
		extra = `'' AS proof_url, '' AS description, p.answer`
	}
	return fmt.Sprintf(`SELECT p.id, p.%s AS parent_id, p.user_id, u.username, u.avatar, p.status, %s,
		p.review_note, p.joined_at, p.submitted_at, p.reviewed_at
		FROM %s p JOIN users u ON u.id = p.user_id`, k.ForeignKey, extra, k.Participants)
}

func withUserRef(ps []models.Participant) []models.Participant {
	for i := range ps {
		ps[i].User = models.UserRef{ID: ps[i].UserID, Username: ps[i].Username, Avatar: ps[i].Avatar}
	}
	return ps
}

// loadParticipants returns participants grouped by parent id.
func loadParticipants(q sqlx.Queryer, k dares.Kind, parentIDs []int) (map[int][]models.Participant, error) {
	out := make(map[int][]models.Participant, len(parentIDs))
	if len(parentIDs) == 0 {
		return out, nil
	}
	ids := make(pq.Int64Array, len(parentIDs))
	for i, id := range parentIDs {
		ids[i] = int64(id)
	}
	var rows []models.Participant
	query := participantSelect(k) + fmt.Sprintf(` WHERE p.%s = ANY($1) ORDER BY p.joined_at`, k.ForeignKey)
	if err := sqlx.Select(q, &rows, query, ids); err != nil {
		return nil, err
	}
	for _, p := range withUserRef(rows) {
		out[p.ParentID] = append(out[p.ParentID], p)
	}
	return out, nil
}

// findParticipant returns nil when the user has not joined.
func findParticipant(tx *sqlx.Tx, k dares.Kind, parentID, userID int) (*models.Participant, error) {
	var p models.Participant
	query := participantSelect(k) + fmt.Sprintf(` WHERE p.%s = $1 AND p.user_id = $2 FOR UPDATE OF p`, k.ForeignKey)
	err := tx.Get(&p, query, parentID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.User = models.UserRef{ID: p.UserID, Username: p.Username, Avatar: p.Avatar}
	return &p, nil
}

// joinChallenge adds userID as a participant. joined is false for a repeat join.
func joinChallenge(ctx context.Context, db *sqlx.DB, rdb *redis.Client, k dares.Kind, id, userID int) (joined bool, err error) {
	tx, err := db.Beginx()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	it, err := k.Lock(tx, id)
	if err != nil {
		return false, err
	}
	existing, err := findParticipant(tx, k, id, userID)
	if err != nil {
		return false, err
	}
	if err := dares.CanJoin(it.Challenge(), userID, existing); err != nil {
		if errors.Is(err, dares.ErrAlreadyJoined) {
			return false, nil
		}
		return false, err
	}

	res, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s (%s, user_id, status, joined_at) VALUES ($1, $2, $3, NOW())
		ON CONFLICT DO NOTHING`, k.Participants, k.ForeignKey), id, userID, models.ParticipantJoined)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	var username string
	if err := tx.Get(&username, `SELECT username FROM users WHERE id=$1`, userID); err != nil {
		return false, err
	}
	n, err := notify.Insert(tx, it.CreatorID, notify.DareJoined,
		fmt.Sprintf("%s accepted your %s", username, k.Label(it)), k.Target(id))
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	notify.Publish(ctx, rdb, n)
	log.Printf("[DARES] user %d joined %s %d", userID, k.Name, id)
	return true, nil
}

// submission is a proof or answer sent for review.
type submission struct {
	ProofURL    string
	Description string
	Answer      string
}

// submitProof moves a participant to pending_review. With implicitJoin a
// non-participant joins and submits in one step (truth answers).
func submitProof(ctx context.Context, db *sqlx.DB, rdb *redis.Client, k dares.Kind, id, userID int, s submission, implicitJoin bool) (*models.Participant, error) {
	tx, err := db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	it, err := k.Lock(tx, id)
	if err != nil {
		return nil, err
	}
	p, err := findParticipant(tx, k, id, userID)
	if err != nil {
		return nil, err
	}

	if p == nil && implicitJoin {
		if err := dares.CanJoin(it.Challenge(), userID, nil); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s (%s, user_id, status, joined_at) VALUES ($1, $2, $3, NOW())`,
			k.Participants, k.ForeignKey), id, userID, models.ParticipantJoined); err != nil {
			return nil, err
		}
		if p, err = findParticipant(tx, k, id, userID); err != nil {
			return nil, err
		}
	}
	if err := dares.CanSubmit(it.Challenge(), p); err != nil {
		return nil, err
	}

	if k.IsTruth() {
		_, err = tx.Exec(`UPDATE truth_participants SET status=$1, answer=$2, review_note='', submitted_at=NOW(), reviewed_at=NULL WHERE id=$3`,
			models.ParticipantPendingReview, s.Answer, p.ID)
	} else {
		_, err = tx.Exec(`UPDATE dare_participants SET status=$1, proof_url=$2, description=$3, review_note='', submitted_at=NOW(), reviewed_at=NULL WHERE id=$4`,
			models.ParticipantPendingReview, s.ProofURL, s.Description, p.ID)
	}
	if err != nil {
		return nil, err
	}

	n, err := notify.Insert(tx, it.CreatorID, notify.ProofSubmitted,
		fmt.Sprintf("%s submitted proof for your %s", p.Username, k.Label(it)), k.Target(id))
	if err != nil {
		return nil, err
	}
	updated, err := findParticipant(tx, k, id, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	notify.Publish(ctx, rdb, n)
	log.Printf("[DARES] user %d submitted for %s %d", userID, k.Name, id)
	return updated, nil
}

// participantByID locks one participant row of a challenge. Rows of other
// challenges are reported as missing.
func participantByID(tx *sqlx.Tx, k dares.Kind, parentID, participantID int) (*models.Participant, error) {
	var p models.Participant
	query := participantSelect(k) + fmt.Sprintf(` WHERE p.id = $1 AND p.%s = $2 FOR UPDATE OF p`, k.ForeignKey)
	err := tx.Get(&p, query, participantID, parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.User = models.UserRef{ID: p.UserID, Username: p.Username, Avatar: p.Avatar}
	return &p, nil
}

// reviewSubmission approves or rejects one pending participant, identified by
// its participant row id. Approval pays the escrowed reward, completes the
// challenge and closes the other pending submissions.
func reviewSubmission(ctx context.Context, db *sqlx.DB, rdb *redis.Client, k dares.Kind, id, reviewerID, participantID int, action, note string) (string, error) {
	outcome, err := dares.ReviewOutcome(action)
	if err != nil {
		return "", err
	}
	note = strings.TrimSpace(note)

	tx, err := db.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	it, err := k.Lock(tx, id)
	if err != nil {
		return "", err
	}
	p, err := participantByID(tx, k, id, participantID)
	if err != nil {
		return "", err
	}
	if err := dares.CanReview(it.Challenge(), reviewerID, p); err != nil {
		return "", err
	}

	res, err := tx.Exec(fmt.Sprintf(`UPDATE %s SET status=$1, review_note=$2, reviewed_at=NOW() WHERE id=$3 AND status=$4`, k.Participants),
		outcome, note, p.ID, models.ParticipantPendingReview)
	if err != nil {
		return "", err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return "", dares.ErrNotPending
	}

	var pending []*models.Notification
	if outcome == models.ParticipantCompleted {
		desc := fmt.Sprintf("Reward: %s", k.Label(it))
		if err := accounts.ReleaseEscrow(tx, p.UserID, it.Reward, models.TxnReward, k.RefType, id, desc); err != nil {
			return "", fmt.Errorf("pay reward: %w", err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`UPDATE %s SET status=$1, completed_at=NOW() WHERE id=$2`, k.Table), models.StatusCompleted, id); err != nil {
			return "", err
		}

		var others []int
		err := tx.Select(&others, fmt.Sprintf(`UPDATE %s SET status=$1, review_note=$2, reviewed_at=NOW()
			WHERE %s=$3 AND status=$4 RETURNING user_id`, k.Participants, k.ForeignKey),
			models.ParticipantRejected, "Another submission was approved", id, models.ParticipantPendingReview)
		if err != nil {
			return "", err
		}
		for _, uid := range others {
			n, err := notify.Insert(tx, uid, notify.ProofRejected,
				fmt.Sprintf("The %s was completed by another participant", k.Label(it)), k.Target(id))
			if err != nil {
				return "", err
			}
			pending = append(pending, n)
		}

		n, err := notify.Insert(tx, p.UserID, notify.ProofApproved,
			fmt.Sprintf("Your proof for %s was approved. %d DRC added to your wallet", k.Label(it), it.Reward), k.Target(id))
		if err != nil {
			return "", err
		}
		pending = append(pending, n)
	} else {
		msg := fmt.Sprintf("Your proof for %s was rejected", k.Label(it))
		if note != "" {
			msg += ": " + note
		}
		n, err := notify.Insert(tx, p.UserID, notify.ProofRejected, msg, k.Target(id))
		if err != nil {
			return "", err
		}
		pending = append(pending, n)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	notify.Publish(ctx, rdb, pending...)
	if outcome == models.ParticipantCompleted {
		expiry.Unschedule(ctx, rdb, k, id)
	}
	log.Printf("[DARES] %s %d: participant %d (user %d) %s by %d", k.Name, id, p.ID, p.UserID, outcome, reviewerID)
	return outcome, nil
}

// pendingSubmissions lists participants awaiting the creator's review.
func pendingSubmissions(db *sqlx.DB, k dares.Kind, id, viewerID int, admin bool) ([]models.Participant, error) {
	var creatorID int
	err := db.Get(&creatorID, fmt.Sprintf(`SELECT creator_id FROM %s WHERE id=$1`, k.Table), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dares.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if creatorID != viewerID && !admin {
		return nil, dares.ErrNotCreator
	}
	rows := []models.Participant{}
	query := participantSelect(k) + fmt.Sprintf(` WHERE p.%s = $1 AND p.status = $2 ORDER BY p.submitted_at`, k.ForeignKey)
	if err := db.Select(&rows, query, id, models.ParticipantPendingReview); err != nil {
		return nil, err
	}
	return withUserRef(rows), nil
}

// validTargets keeps the targeted users that exist and are not banned,
// skipping the creator.
func validTargets(tx *sqlx.Tx, creatorID int, targets []int64) ([]int64, error) {
	ids := uniqueIDs(targets)
	if len(ids) == 0 {
		return ids, nil
	}
	valid := []int64{}
	err := tx.Select(&valid, `SELECT id FROM users WHERE id = ANY($1) AND id <> $2 AND is_banned = FALSE ORDER BY id`, pq.Int64Array(ids), creatorID)
	return valid, err
}

func notifyTargets(tx *sqlx.Tx, targets []int64, typ, message string, target notify.Target) ([]*models.Notification, error) {
	out := make([]*models.Notification, 0, len(targets))
	for _, uid := range targets {
		n, err := notify.Insert(tx, int(uid), typ, message, target)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
