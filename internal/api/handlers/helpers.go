package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/darecoin/backend/internal/middleware"
	"github.com/darecoin/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

var errUserNotFound = errors.New("user not found")

// respondError writes the API error shape.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

func internalError(c *gin.Context) {
	respondError(c, http.StatusInternalServerError, "Internal server error")
}

func currentUserID(c *gin.Context) int {
	return c.GetInt(middleware.UserIDKey)
}

func isAdmin(c *gin.Context) bool {
	return c.GetString(middleware.RoleKey) == models.RoleAdmin
}

// paramID parses a positive integer path parameter, answering 400 otherwise.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// pagination reads limit/offset with a default page size, capped at 200.
func pagination(c *gin.Context, defLimit int) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defLimit)))
	if err != nil || limit <= 0 {
		limit = defLimit
	}
	if limit > 200 {
		limit = 200
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

const userSelect = `
	SELECT u.id, u.username, u.email, u.password_hash, u.role,
		COALESCE(a.balance, 0) AS wallet_balance,
		u.avatar, u.banner, u.bio, u.highlights, u.is_banned, u.created_at
	FROM users u
	LEFT JOIN accounts a ON a.owner_user_id = u.id AND a.account_type = 'user_wallet'`

func loadUser(q sqlx.Queryer, id int) (*models.User, error) {
	var u models.User
	err := sqlx.Get(q, &u, userSelect+` WHERE u.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// findUserByHandle resolves a username (case-insensitive) or numeric id.
func findUserByHandle(q sqlx.Queryer, handle string) (*models.User, error) {
	if id, err := strconv.Atoi(handle); err == nil && id > 0 {
		if u, err := loadUser(q, id); err == nil {
			return u, nil
		}
	}
	var u models.User
	err := sqlx.Get(q, &u, userSelect+` WHERE LOWER(u.username) = LOWER($1)`, handle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
