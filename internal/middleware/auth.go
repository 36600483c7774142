package middleware

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/darecoin/backend/internal/auth"
	"github.com/darecoin/backend/internal/config"
	"github.com/darecoin/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey   = "user_id"
	RoleKey     = "role"
	UsernameKey = "username"
)

// TokenFromRequest reads a bearer token from the Authorization header, or from
// the token query parameter for websocket upgrades.
func TokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Query("token")
}

// AuthMiddleware validates the bearer JWT and sets user_id and role in the
// context. With a database it also rejects banned users and takes the role
// from the users table so a demotion applies immediately.
func AuthMiddleware(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}

		claims, err := auth.ParseToken(cfg.JWTSecret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}

		role := claims.Role
		if db != nil {
			var u struct {
				Username string `db:"username"`
				Role     string `db:"role"`
				IsBanned bool   `db:"is_banned"`
			}
			err := db.Get(&u, `SELECT username, role, is_banned FROM users WHERE id=$1`, claims.UserID)
			if errors.Is(err, sql.ErrNoRows) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "User no longer exists"})
				return
			}
			if err != nil {
				log.Printf("[AUTH] user lookup %d failed: %v", claims.UserID, err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
				return
			}
			if u.IsBanned {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Your account has been suspended"})
				return
			}
			role = u.Role
			c.Set(UsernameKey, u.Username)
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, role)
		c.Next()
	}
}

// AdminOnly requires the admin role. It must run after AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleKey) != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Admin access required"})
			return
		}
		c.Next()
	}
}
