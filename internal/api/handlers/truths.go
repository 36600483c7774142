package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/darecoin/backend/internal/accounts"
	"github.com/darecoin/backend/internal/config"
	"github.com/darecoin/backend/internal/dares"
	"github.com/darecoin/backend/internal/expiry"
	"github.com/darecoin/backend/internal/models"
	"github.com/darecoin/backend/internal/notify"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const truthColumns = `t.id, t.question, t.category, t.difficulty, t.reward, t.creator_id, t.status,
	t.target_users, t.expires_at, t.created_at, t.completed_at,
	u.username AS creator_username, u.avatar AS creator_avatar`

type truthRow struct {
	models.Truth
	CreatorUsername string `db:"creator_username"`
	CreatorAvatar   string `db:"creator_avatar"`
	TotalCount      int    `db:"total_count"`
}

var difficulties = map[string]bool{"easy": true, "medium": true, "hard": true}

// finishTruths attaches creators and participants. Answers are only shown to
// the creator and their author unless revealAnswers is set.
func finishTruths(q sqlx.Queryer, rows []truthRow, viewerID int, revealAnswers bool) ([]models.Truth, error) {
	ids := make([]int, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	byTruth, err := loadParticipants(q, dares.TruthKind, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.Truth, len(rows))
	for i, r := range rows {
		t := r.Truth
		t.Creator = models.UserRef{ID: t.CreatorID, Username: r.CreatorUsername, Avatar: r.CreatorAvatar}
		t.Participants = byTruth[t.ID]
		if t.Participants == nil {
			t.Participants = []models.Participant{}
		}
		if t.TargetUsers == nil {
			t.TargetUsers = pq.Int64Array{}
		}
		joined := false
		for _, p := range t.Participants {
			if p.UserID == viewerID {
				joined = true
			}
		}
		if !revealAnswers && t.CreatorID != viewerID {
			for j := range t.Participants {
				if t.Participants[j].UserID != viewerID {
					t.Participants[j].Answer = ""
				}
			}
		}
		t.CanAccept = dares.CanAccept(dares.Challenge{CreatorID: t.CreatorID, Status: t.Status}, viewerID, joined)
		out[i] = t
	}
	return out, nil
}

func loadTruth(q sqlx.Queryer, id, viewerID int) (*models.Truth, error) {
	var rows []truthRow
	err := sqlx.Select(q, &rows, `SELECT `+truthColumns+`, 0 AS total_count
		FROM truths t JOIN users u ON u.id = t.creator_id WHERE t.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, dares.ErrNotFound
	}
	out, err := finishTruths(q, rows, viewerID, false)
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// ListTruths returns truths filtered like the dare feed.
func ListTruths(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c)
		limit, offset := pagination(c, 50)

		where := []string{"1=1"}
		args := []interface{}{}
		arg := func(v interface{}) string {
			args = append(args, v)
			return "$" + strconv.Itoa(len(args))
		}

		status := c.DefaultQuery("status", models.StatusActive)
		if status != "all" {
			where = append(where, "t.status = "+arg(status))
		}
		if category := c.Query("category"); category != "" && category != "all" {
			where = append(where, "t.category = "+arg(category))
		}
		if difficulty := c.Query("difficulty"); difficulty != "" {
			where = append(where, "t.difficulty = "+arg(difficulty))
		}
		if creator := c.Query("creator"); creator != "" {
			id, err := strconv.Atoi(creator)
			if err != nil {
				respondError(c, http.StatusBadRequest, "Invalid creator")
				return
			}
			where = append(where, "t.creator_id = "+arg(id))
		}
		if c.Query("mine") == "true" {
			me := arg(userID)
			where = append(where, fmt.Sprintf(`(t.creator_id = %s OR EXISTS (
				SELECT 1 FROM truth_participants p WHERE p.truth_id = t.id AND p.user_id = %s))`, me, me))
		}

		query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() AS total_count
			FROM truths t JOIN users u ON u.id = t.creator_id
			WHERE %s ORDER BY t.created_at DESC LIMIT %s OFFSET %s`,
			truthColumns, strings.Join(where, " AND "), arg(limit), arg(offset))

		var rows []truthRow
		if err := db.Select(&rows, query, args...); err != nil {
			log.Printf("[TRUTHS] list: %v", err)
			internalError(c)
			return
		}
		list, err := finishTruths(db, rows, userID, false)
		if err != nil {
			log.Printf("[TRUTHS] list participants: %v", err)
			internalError(c)
			return
		}
		total := 0
		if len(rows) > 0 {
			total = rows[0].TotalCount
		}
		c.JSON(http.StatusOK, gin.H{"truths": list, "total": total, "limit": limit, "offset": offset})
	}
}

type createTruthRequest struct {
	Question    string  `json:"question"`
	Category    string  `json:"category"`
	Difficulty  string  `json:"difficulty"`
	Reward      int64   `json:"reward"`
	Timeframe   string  `json:"timeframe"`
	TargetUsers []int64 `json:"targetUsers"`
}

func (r *createTruthRequest) validate(cfg *config.Config) error {
	r.Question = strings.TrimSpace(r.Question)
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
	if r.Category == "" {
		r.Category = "general"
	}
	r.Difficulty = strings.ToLower(strings.TrimSpace(r.Difficulty))
	if r.Difficulty == "" {
		r.Difficulty = "medium"
	}
	switch {
	case r.Question == "":
		return errors.New("Question is required")
	case len(r.Question) > 1000:
		return errors.New("Question must be at most 1000 characters")
	case !difficulties[r.Difficulty]:
		return errors.New("Difficulty must be easy, medium or hard")
	case r.Reward <= 0:
		return errors.New("Reward must be positive")
	case r.Reward > int64(cfg.Limits().MaxTruthReward):
		return fmt.Errorf("Reward cannot exceed %d DRC", cfg.Limits().MaxTruthReward)
	}
	return nil
}

// CreateTruth posts a truth and escrows its reward.
func CreateTruth(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTruthRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := req.validate(cfg); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		userID := currentUserID(c)
		expiresAt := time.Now().Add(expiresIn(cfg, req.Timeframe))

		tx, err := db.Beginx()
		if err != nil {
			internalError(c)
			return
		}
		defer tx.Rollback()

		targets, err := validTargets(tx, userID, req.TargetUsers)
		if err != nil {
			log.Printf("[TRUTHS] resolve targets: %v", err)
			internalError(c)
			return
		}

		var id int
		err = tx.Get(&id, `INSERT INTO truths (question, category, difficulty, reward, creator_id, status, target_users, expires_at, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id`,
			req.Question, req.Category, req.Difficulty, req.Reward, userID, models.StatusActive, pq.Int64Array(targets), expiresAt)
		if err != nil {
			log.Printf("[TRUTHS] insert: %v", err)
			internalError(c)
			return
		}

		if err := accounts.Escrow(tx, userID, req.Reward, accounts.RefTruth, id, fmt.Sprintf("Stake: truth %q", req.Question)); err != nil {
			respondRule(c, err)
			return
		}

		var creator string
		if err := tx.Get(&creator, `SELECT username FROM users WHERE id=$1`, userID); err != nil {
			internalError(c)
			return
		}
		ns, err := notifyTargets(tx, targets, notify.NewTruth,
			fmt.Sprintf("%s asked you a truth for %d DRC", creator, req.Reward), notify.Truth(id))
		if err != nil {
			log.Printf("[TRUTHS] notify targets: %v", err)
			internalError(c)
			return
		}

		if err := tx.Commit(); err != nil {
			internalError(c)
			return
		}
		notify.Publish(c.Request.Context(), rdb, ns...)
		expiry.Schedule(c.Request.Context(), rdb, dares.TruthKind, id, expiresAt)
		log.Printf("[TRUTHS] user %d created truth %d (reward=%d)", userID, id, req.Reward)

		t, err := loadTruth(db, id, userID)
		if err != nil {
			internalError(c)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

// GetTruth returns one truth with its participants.
func GetTruth(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		t, err := loadTruth(db, id, currentUserID(c))
		if err != nil {
			respondRule(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// JoinTruth accepts a truth without answering yet.
func JoinTruth(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		userID := currentUserID(c)
		joined, err := joinChallenge(c.Request.Context(), db, rdb, dares.TruthKind, id, userID)
		if err != nil {
			respondRule(c, err)
			return
		}
		t, err := loadTruth(db, id, userID)
		if err != nil {
			respondRule(c, err)
			return
		}
		msg := "Truth accepted"
		if !joined {
			msg = "You already accepted this truth"
		}
		c.JSON(http.StatusOK, gin.H{"message": msg, "truth": t})
	}
}

// AnswerTruth submits an answer, joining the truth first when needed.
func AnswerTruth(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Answer string `json:"answer"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		answer := strings.TrimSpace(req.Answer)
		if answer == "" {
			respondError(c, http.StatusBadRequest, "Answer is required")
			return
		}
		if len(answer) > 5000 {
			respondError(c, http.StatusBadRequest, "Answer must be at most 5000 characters")
			return
		}

		p, err := submitProof(c.Request.Context(), db, rdb, dares.TruthKind, id, currentUserID(c), submission{Answer: answer}, true)
		if err != nil {
			respondRule(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Answer submitted for review", "participant": p})
	}
}

// VerifyTruth lets the creator approve or reject an answer.
func VerifyTruth(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return verifyHandler(db, rdb, dares.TruthKind)
}

// PendingTruth lists answers awaiting review.
func PendingTruth(db *sqlx.DB) gin.HandlerFunc {
	return pendingHandler(db, dares.TruthKind)
}
