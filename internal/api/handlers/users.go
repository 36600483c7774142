package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/darecoin/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// publicProfile is what other users see of an account.
type publicProfile struct {
	ID         int           `json:"id"`
	Username   string        `json:"username"`
	Avatar     string        `json:"avatar"`
	Banner     string        `json:"banner"`
	Bio        string        `json:"bio"`
	Highlights []models.Dare `json:"highlights"`
	Stats      profileStats  `json:"stats"`
	CreatedAt  time.Time     `json:"createdAt"`
}

type profileStats struct {
	DaresCreated   int   `db:"dares_created" json:"daresCreated"`
	DaresCompleted int   `db:"dares_completed" json:"daresCompleted"`
	TruthsAnswered int   `db:"truths_answered" json:"truthsAnswered"`
	Earned         int64 `db:"earned" json:"earned"`
}

// GetUserProfile returns a user's public profile with highlighted dares.
// Route: GET /api/users/:handle
func GetUserProfile(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := findUserByHandle(db, c.Param("handle"))
		if errors.Is(err, errUserNotFound) || (err == nil && u.IsBanned && !isAdmin(c)) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			internalError(c)
			return
		}

		p := publicProfile{
			ID: u.ID, Username: u.Username, Avatar: u.Avatar, Banner: u.Banner,
			Bio: u.Bio, CreatedAt: u.CreatedAt, Highlights: []models.Dare{},
		}

		err = db.Get(&p.Stats, `
			SELECT
				(SELECT COUNT(*) FROM dares WHERE creator_id = $1) AS dares_created,
				(SELECT COUNT(*) FROM dare_participants WHERE user_id = $1 AND status = 'completed') AS dares_completed,
				(SELECT COUNT(*) FROM truth_participants WHERE user_id = $1 AND status = 'completed') AS truths_answered,
				(SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1 AND type = 'reward') AS earned`, u.ID)
		if err != nil {
			log.Printf("[USERS] stats for %d: %v", u.ID, err)
		}

		if len(u.Highlights) > 0 {
			var rows []dareRow
			err := db.Select(&rows, `SELECT `+dareColumns+`, 0 AS total_count
				FROM dares d JOIN users u ON u.id = d.creator_id
				WHERE d.id = ANY($1::bigint[]) AND d.status <> 'removed'
				ORDER BY array_position($1::bigint[], d.id::bigint)`, pq.Int64Array(u.Highlights))
			if err != nil {
				log.Printf("[USERS] highlights for %d: %v", u.ID, err)
			} else if p.Highlights, err = finishDares(db, rows, currentUserID(c)); err != nil {
				log.Printf("[USERS] highlight participants for %d: %v", u.ID, err)
				p.Highlights = []models.Dare{}
			}
		}

		c.JSON(http.StatusOK, p)
	}
}

// SearchUsers backs the target-user picker.
// Route: GET /api/users?q=
func SearchUsers(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := strings.TrimSpace(c.Query("q"))
		limit, _ := pagination(c, 20)
		if limit > 50 {
			limit = 50
		}

		users := []models.UserRef{}
		err := db.Select(&users, `
			SELECT id, username, avatar FROM users
			WHERE is_banned = FALSE AND id <> $1
				AND ($2 = '' OR username ILIKE $2 || '%')
			ORDER BY username
			LIMIT $3`, currentUserID(c), q, limit)
		if err != nil {
			log.Printf("[USERS] search %q: %v", q, err)
			internalError(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	}
}
