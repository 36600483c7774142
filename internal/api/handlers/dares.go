package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
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
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const defaultTimeframe = 7 * 24 * time.Hour

const dareColumns = `d.id, d.title, d.description, d.reward, d.category, d.timeframe, d.creator_id,
	d.status, d.target_users, d.expires_at, d.created_at, d.completed_at,
	u.username AS creator_username, u.avatar AS creator_avatar`

type dareRow struct {
	models.Dare
	CreatorUsername string `db:"creator_username"`
	CreatorAvatar   string `db:"creator_avatar"`
	TotalCount      int    `db:"total_count"`
}

var proofExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".mp4": true, ".mov": true, ".webm": true,
}

// expiresIn resolves a client timeframe. Unknown values fall back to the
// configured default rather than failing the request.
func expiresIn(cfg *config.Config, tf string) time.Duration {
	def, err := dares.ParseTimeframe(cfg.DefaultTimeframe, defaultTimeframe)
	if err != nil {
		def = defaultTimeframe
	}
	d, err := dares.ParseTimeframe(tf, def)
	if err != nil {
		log.Printf("[DARES] %v, using %s", err, def)
		return def
	}
	return d
}

// finishDares attaches creators, participants and the viewer's canAccept flag.
func finishDares(q sqlx.Queryer, rows []dareRow, viewerID int) ([]models.Dare, error) {
	ids := make([]int, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	byDare, err := loadParticipants(q, dares.DareKind, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.Dare, len(rows))
	for i, r := range rows {
		d := r.Dare
		d.Creator = models.UserRef{ID: d.CreatorID, Username: r.CreatorUsername, Avatar: r.CreatorAvatar}
		d.Participants = byDare[d.ID]
		if d.Participants == nil {
			d.Participants = []models.Participant{}
		}
		if d.TargetUsers == nil {
			d.TargetUsers = pq.Int64Array{}
		}
		joined := false
		for _, p := range d.Participants {
			if p.UserID == viewerID {
				joined = true
			}
		}
		d.CanAccept = dares.CanAccept(dares.Challenge{CreatorID: d.CreatorID, Status: d.Status}, viewerID, joined)
		out[i] = d
	}
	return out, nil
}

func loadDare(q sqlx.Queryer, id, viewerID int) (*models.Dare, error) {
	var rows []dareRow
	err := sqlx.Select(q, &rows, `SELECT `+dareColumns+`, 0 AS total_count
		FROM dares d JOIN users u ON u.id = d.creator_id WHERE d.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, dares.ErrNotFound
	}
	out, err := finishDares(q, rows, viewerID)
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// ListDares returns the dare feed. By default only active dares the caller has
// not declined are listed.
func ListDares(db *sqlx.DB) gin.HandlerFunc {
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
			where = append(where, "d.status = "+arg(status))
		}
		if category := c.Query("category"); category != "" && category != "all" {
			where = append(where, "d.category = "+arg(category))
		}
		if creator := c.Query("creator"); creator != "" {
			id, err := strconv.Atoi(creator)
			if err != nil {
				respondError(c, http.StatusBadRequest, "Invalid creator")
				return
			}
			where = append(where, "d.creator_id = "+arg(id))
		}
		if c.Query("mine") == "true" {
			me := arg(userID)
			where = append(where, fmt.Sprintf(`(d.creator_id = %s OR EXISTS (
				SELECT 1 FROM dare_participants p WHERE p.dare_id = d.id AND p.user_id = %s))`, me, me))
		} else {
			where = append(where, fmt.Sprintf(`NOT EXISTS (
				SELECT 1 FROM dare_ignores i WHERE i.dare_id = d.id AND i.user_id = %s)`, arg(userID)))
		}
		if search := strings.TrimSpace(c.Query("q")); search != "" {
			where = append(where, "d.title ILIKE "+arg("%"+search+"%"))
		}

		query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() AS total_count
			FROM dares d JOIN users u ON u.id = d.creator_id
			WHERE %s ORDER BY d.created_at DESC LIMIT %s OFFSET %s`,
			dareColumns, strings.Join(where, " AND "), arg(limit), arg(offset))

		var rows []dareRow
		if err := db.Select(&rows, query, args...); err != nil {
			log.Printf("[DARES] list: %v", err)
			internalError(c)
			return
		}
		list, err := finishDares(db, rows, userID)
		if err != nil {
			log.Printf("[DARES] list participants: %v", err)
			internalError(c)
			return
		}
		total := 0
		if len(rows) > 0 {
			total = rows[0].TotalCount
		}
		c.JSON(http.StatusOK, gin.H{"dares": list, "total": total, "limit": limit, "offset": offset})
	}
}

type createDareRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Reward      int64   `json:"reward"`
	Category    string  `json:"category"`
	Timeframe   string  `json:"timeframe"`
	TargetUsers []int64 `json:"targetUsers"`
}

func (r *createDareRequest) validate(cfg *config.Config) error {
	r.Title = strings.TrimSpace(r.Title)
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
	if r.Category == "" {
		r.Category = "general"
	}
	lim := cfg.Limits()
	switch {
	case r.Title == "":
		return errors.New("Title is required")
	case len(r.Title) > 200:
		return errors.New("Title must be at most 200 characters")
	case len(r.Category) > 50:
		return errors.New("Category must be at most 50 characters")
	case r.Reward < int64(lim.MinDareReward):
		return fmt.Errorf("Reward must be at least %d DRC", lim.MinDareReward)
	case lim.MaxDareReward > 0 && r.Reward > int64(lim.MaxDareReward):
		return fmt.Errorf("Reward cannot exceed %d DRC", lim.MaxDareReward)
	}
	return nil
}

// CreateDare posts a dare and escrows its reward from the creator's wallet.
func CreateDare(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createDareRequest
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
			log.Printf("[DARES] resolve targets: %v", err)
			internalError(c)
			return
		}

		var id int
		err = tx.Get(&id, `INSERT INTO dares (title, description, reward, category, timeframe, creator_id, status, target_users, expires_at, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW()) RETURNING id`,
			req.Title, strings.TrimSpace(req.Description), req.Reward, req.Category, req.Timeframe,
			userID, models.StatusActive, pq.Int64Array(targets), expiresAt)
		if err != nil {
			log.Printf("[DARES] insert: %v", err)
			internalError(c)
			return
		}

		if err := accounts.Escrow(tx, userID, req.Reward, accounts.RefDare, id, fmt.Sprintf("Stake: dare %q", req.Title)); err != nil {
			respondRule(c, err)
			return
		}

		var creator string
		if err := tx.Get(&creator, `SELECT username FROM users WHERE id=$1`, userID); err != nil {
			internalError(c)
			return
		}
		ns, err := notifyTargets(tx, targets, notify.NewDare,
			fmt.Sprintf("%s dared you: %s (%d DRC)", creator, req.Title, req.Reward), notify.Dare(id))
		if err != nil {
			log.Printf("[DARES] notify targets: %v", err)
			internalError(c)
			return
		}

		if err := tx.Commit(); err != nil {
			internalError(c)
			return
		}
		notify.Publish(c.Request.Context(), rdb, ns...)
		expiry.Schedule(c.Request.Context(), rdb, dares.DareKind, id, expiresAt)
		log.Printf("[DARES] user %d created dare %d (reward=%d, expires=%s)", userID, id, req.Reward, expiresAt.Format(time.RFC3339))

		d, err := loadDare(db, id, userID)
		if err != nil {
			internalError(c)
			return
		}
		c.JSON(http.StatusCreated, d)
	}
}

// GetDare returns one dare with its participants.
func GetDare(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		d, err := loadDare(db, id, currentUserID(c))
		if err != nil {
			respondRule(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

// JoinDare accepts a dare. Joining twice answers 200 without side effects.
func JoinDare(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		userID := currentUserID(c)
		joined, err := joinChallenge(c.Request.Context(), db, rdb, dares.DareKind, id, userID)
		if err != nil {
			respondRule(c, err)
			return
		}
		d, err := loadDare(db, id, userID)
		if err != nil {
			respondRule(c, err)
			return
		}
		msg := "Dare accepted"
		if !joined {
			msg = "You already accepted this dare"
		}
		c.JSON(http.StatusOK, gin.H{"message": msg, "dare": d})
	}
}

// IgnoreDare hides a dare from the caller's feed.
func IgnoreDare(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		userID := currentUserID(c)

		var creatorID int
		err := db.Get(&creatorID, `SELECT creator_id FROM dares WHERE id=$1`, id)
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, "Dare not found")
			return
		}
		if err != nil {
			internalError(c)
			return
		}
		var joined bool
		if err := db.Get(&joined, `SELECT EXISTS (SELECT 1 FROM dare_participants WHERE dare_id=$1 AND user_id=$2)`, id, userID); err != nil {
			internalError(c)
			return
		}
		var existing *models.Participant
		if joined {
			existing = &models.Participant{UserID: userID}
		}
		if err := dares.CanIgnore(dares.Challenge{CreatorID: creatorID}, userID, existing); err != nil {
			respondRule(c, err)
			return
		}

		if _, err := db.Exec(`INSERT INTO dare_ignores (dare_id, user_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`, id, userID); err != nil {
			log.Printf("[DARES] ignore %d by %d: %v", id, userID, err)
			internalError(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Dare ignored"})
	}
}

// saveProof stores an uploaded proof file and returns its public URL and
// path on disk.
func saveProof(c *gin.Context, cfg *config.Config) (string, string, error) {
	file, err := c.FormFile("proof")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", "", nil
		}
		return "", "", err
	}
	if cfg.MaxUploadMB > 0 && file.Size > int64(cfg.MaxUploadMB)<<20 {
		return "", "", fmt.Errorf("Proof file exceeds %d MB", cfg.MaxUploadMB)
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !proofExtensions[ext] {
		return "", "", fmt.Errorf("Unsupported proof file type %q", ext)
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return "", "", err
	}
	name := uuid.NewString() + ext
	path := filepath.Join(cfg.UploadDir, name)
	if err := c.SaveUploadedFile(file, path); err != nil {
		return "", "", err
	}
	return "/uploads/" + name, path, nil
}

// SubmitDare records proof for a joined participant and moves them to
// pending_review.
func SubmitDare(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var s submission
		var stored string
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			url, path, err := saveProof(c, cfg)
			if err != nil {
				respondError(c, http.StatusBadRequest, err.Error())
				return
			}
			stored = path
			s.ProofURL = url
			if s.ProofURL == "" {
				s.ProofURL = strings.TrimSpace(c.PostForm("proofUrl"))
			}
			s.Description = strings.TrimSpace(c.PostForm("description"))
		} else {
			var req struct {
				ProofURL    string `json:"proofUrl"`
				Description string `json:"description"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "Invalid request body")
				return
			}
			s.ProofURL = strings.TrimSpace(req.ProofURL)
			s.Description = strings.TrimSpace(req.Description)
		}
		if s.ProofURL == "" && s.Description == "" {
			respondError(c, http.StatusBadRequest, "Proof file, proofUrl or description is required")
			return
		}

		p, err := submitProof(c.Request.Context(), db, rdb, dares.DareKind, id, currentUserID(c), s, false)
		if err != nil {
			if stored != "" {
				if rmErr := os.Remove(stored); rmErr != nil {
					log.Printf("[DARES] Failed to remove unused proof %s: %v", stored, rmErr)
				}
			}
			respondRule(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Proof submitted for review", "participant": p})
	}
}

// verifyRequest names the submission by its participant id, the "id" of a
// participant object, not the participant's user id.
type verifyRequest struct {
	ParticipantID int    `json:"participantId"`
	Action        string `json:"action"`
	Note          string `json:"note"`
}

func verifyHandler(db *sqlx.DB, rdb *redis.Client, k dares.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req verifyRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.ParticipantID <= 0 {
			respondError(c, http.StatusBadRequest, "participantId and action are required")
			return
		}
		status, err := reviewSubmission(c.Request.Context(), db, rdb, k, id, currentUserID(c), req.ParticipantID, req.Action, req.Note)
		if err != nil {
			respondRule(c, err)
			return
		}
		msg := "Submission approved"
		if status == models.ParticipantRejected {
			msg = "Submission rejected"
		}
		c.JSON(http.StatusOK, gin.H{"message": msg, "status": status})
	}
}

// VerifyDare lets the creator approve or reject a pending proof.
func VerifyDare(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return verifyHandler(db, rdb, dares.DareKind)
}

func pendingHandler(db *sqlx.DB, k dares.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		ps, err := pendingSubmissions(db, k, id, currentUserID(c), isAdmin(c))
		if err != nil {
			respondRule(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"participants": ps})
	}
}

// PendingDare lists the submissions awaiting the creator's review.
func PendingDare(db *sqlx.DB) gin.HandlerFunc {
	return pendingHandler(db, dares.DareKind)
}
