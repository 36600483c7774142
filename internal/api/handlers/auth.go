package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/darecoin/backend/internal/accounts"
	"github.com/darecoin/backend/internal/auth"
	"github.com/darecoin/backend/internal/config"
	"github.com/darecoin/backend/internal/database"
	"github.com/darecoin/backend/internal/models"
	rdbkeys "github.com/darecoin/backend/internal/redis"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const maxHighlights = 10

func issueToken(cfg *config.Config, u *models.User) (string, error) {
	return auth.IssueToken(cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour, u.ID, u.Role)
}

// Register creates an account, its wallet and the signup bonus.
func Register(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		username := strings.TrimSpace(req.Username)
		email := strings.ToLower(strings.TrimSpace(req.Email))
		if err := auth.ValidateRegistration(username, email, req.Password); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			log.Printf("[AUTH] hash password: %v", err)
			internalError(c)
			return
		}

		tx, err := db.Beginx()
		if err != nil {
			internalError(c)
			return
		}
		defer tx.Rollback()

		var userID int
		err = tx.QueryRowx(`INSERT INTO users (username, email, password_hash, role, created_at, updated_at)
			VALUES ($1, $2, $3, 'user', NOW(), NOW()) RETURNING id`, username, email, hash).Scan(&userID)
		if database.IsUniqueViolation(err) {
			field := "Username"
			if strings.Contains(database.ViolatedConstraint(err), "email") {
				field = "Email"
			}
			respondError(c, http.StatusConflict, field+" is already taken")
			return
		}
		if err != nil {
			log.Printf("[AUTH] insert user %s: %v", username, err)
			internalError(c)
			return
		}

		if _, err := accounts.Wallet(tx, userID); err != nil {
			log.Printf("[AUTH] create wallet for %d: %v", userID, err)
			internalError(c)
			return
		}
		bonus := cfg.Limits().SignupBonus
		if bonus > 0 {
			if err := accounts.CreditExternal(tx, userID, int64(bonus), models.TxnBonus, accounts.RefSignup, 0, "Welcome bonus"); err != nil {
				log.Printf("[AUTH] signup bonus for %d: %v", userID, err)
				internalError(c)
				return
			}
		}
		if err := tx.Commit(); err != nil {
			internalError(c)
			return
		}

		user, err := loadUser(db, userID)
		if err != nil {
			internalError(c)
			return
		}
		token, err := issueToken(cfg, user)
		if err != nil {
			log.Printf("[AUTH] sign token: %v", err)
			internalError(c)
			return
		}

		log.Printf("[AUTH] registered user %d (%s) bonus=%d", userID, username, bonus)
		c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
	}
}

// Login accepts an email or username with a password.
func Login(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email"`
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		identifier := strings.ToLower(strings.TrimSpace(req.Email))
		if identifier == "" {
			identifier = strings.ToLower(strings.TrimSpace(req.Username))
		}
		if identifier == "" || req.Password == "" {
			respondError(c, http.StatusBadRequest, "Email/username and password are required")
			return
		}

		if rdb != nil && cfg.LoginRateLimitSeconds > 0 {
			ok, err := rdb.SetNX(c.Request.Context(), rdbkeys.LoginRateKey(identifier), "1", time.Duration(cfg.LoginRateLimitSeconds)*time.Second).Result()
			if err == nil && !ok {
				respondError(c, http.StatusTooManyRequests, "Too many login attempts, slow down")
				return
			}
		}

		var user models.User
		err := db.Get(&user, userSelect+` WHERE LOWER(u.email) = $1 OR LOWER(u.username) = $1 LIMIT 1`, identifier)
		if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
			respondError(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		if user.IsBanned {
			respondError(c, http.StatusForbidden, "Your account has been suspended")
			return
		}

		token, err := issueToken(cfg, &user)
		if err != nil {
			internalError(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
	}
}

// Me returns the authoritative user record.
func Me(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := loadUser(db, currentUserID(c))
		if err == errUserNotFound {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			internalError(c)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// UpdateProfile changes the optional profile fields that were sent.
func UpdateProfile(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username *string `json:"username"`
			Bio      *string `json:"bio"`
			Avatar   *string `json:"avatar"`
			Banner   *string `json:"banner"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request body")
			return
		}

		sets := []string{}
		args := []interface{}{}
		add := func(col string, v interface{}) {
			args = append(args, v)
			sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
		}
		if req.Username != nil {
			name := strings.TrimSpace(*req.Username)
			if err := auth.ValidateUsername(name); err != nil {
				respondError(c, http.StatusBadRequest, err.Error())
				return
			}
			add("username", name)
		}
		if req.Bio != nil {
			if len(*req.Bio) > 500 {
				respondError(c, http.StatusBadRequest, "Bio must be at most 500 characters")
				return
			}
			add("bio", strings.TrimSpace(*req.Bio))
		}
		if req.Avatar != nil {
			add("avatar", strings.TrimSpace(*req.Avatar))
		}
		if req.Banner != nil {
			add("banner", strings.TrimSpace(*req.Banner))
		}

		userID := currentUserID(c)
		if len(sets) > 0 {
			args = append(args, userID)
			query := fmt.Sprintf(`UPDATE users SET %s, updated_at = NOW() WHERE id = $%d`, strings.Join(sets, ", "), len(args))
			if _, err := db.Exec(query, args...); err != nil {
				if database.IsUniqueViolation(err) {
					respondError(c, http.StatusConflict, "Username is already taken")
					return
				}
				log.Printf("[AUTH] update profile %d: %v", userID, err)
				internalError(c)
				return
			}
		}

		user, err := loadUser(db, userID)
		if err != nil {
			internalError(c)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// UpdateHighlights pins dares the user created or completed to their profile.
func UpdateHighlights(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Highlights []int64 `json:"highlights"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		ids := uniqueIDs(req.Highlights)
		if len(ids) > maxHighlights {
			respondError(c, http.StatusBadRequest, fmt.Sprintf("At most %d highlights are allowed", maxHighlights))
			return
		}

		userID := currentUserID(c)
		if len(ids) > 0 {
			var eligible int
			err := db.Get(&eligible, `
				SELECT COUNT(*) FROM dares d
				WHERE d.id = ANY($1)
				  AND (d.creator_id = $2 OR EXISTS (
					SELECT 1 FROM dare_participants p
					WHERE p.dare_id = d.id AND p.user_id = $2 AND p.status = 'completed'))`,
				pq.Int64Array(ids), userID)
			if err != nil {
				internalError(c)
				return
			}
			if eligible != len(ids) {
				respondError(c, http.StatusBadRequest, "Only dares you created or completed can be highlighted")
				return
			}
		}

		if _, err := db.Exec(`UPDATE users SET highlights = $1, updated_at = NOW() WHERE id = $2`, pq.Int64Array(ids), userID); err != nil {
			internalError(c)
			return
		}
		user, err := loadUser(db, userID)
		if err != nil {
			internalError(c)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func uniqueIDs(in []int64) []int64 {
	seen := make(map[int64]bool, len(in))
	out := make([]int64, 0, len(in))
	for _, id := range in {
		if id > 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
