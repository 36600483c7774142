package handlers

import (
	"log"
	"net/http"

	"github.com/darecoin/backend/internal/models"
	"github.com/darecoin/backend/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// ListNotifications returns the caller's inbox, newest first.
func ListNotifications(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c)
		limit, offset := pagination(c, 50)

		query := `SELECT id, user_id, type, message, dare_id, truth_id, is_read, created_at
			FROM notifications WHERE user_id=$1`
		if c.Query("unread") == "true" {
			query += ` AND is_read = FALSE`
		}
		query += ` ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`

		list := []models.Notification{}
		if err := db.Select(&list, query, userID, limit, offset); err != nil {
			log.Printf("[NOTIFY] list for %d: %v", userID, err)
			internalError(c)
			return
		}
		var unread int
		if err := db.Get(&unread, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND is_read=FALSE`, userID); err != nil {
			internalError(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": list, "unreadCount": unread})
	}
}

// UnreadCount returns the badge count.
func UnreadCount(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var n int
		if err := db.Get(&n, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND is_read=FALSE`, currentUserID(c)); err != nil {
			internalError(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n})
	}
}

// MarkNotificationRead marks one of the caller's notifications read.
func MarkNotificationRead(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		res, err := db.Exec(`UPDATE notifications SET is_read=TRUE WHERE id=$1 AND user_id=$2`, id, currentUserID(c))
		if err != nil {
			internalError(c)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			respondError(c, http.StatusNotFound, "Notification not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
	}
}

// MarkAllNotificationsRead clears the caller's unread badge.
func MarkAllNotificationsRead(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := db.Exec(`UPDATE notifications SET is_read=TRUE WHERE user_id=$1 AND is_read=FALSE`, currentUserID(c))
		if err != nil {
			internalError(c)
			return
		}
		n, _ := res.RowsAffected()
		c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": n})
	}
}

// NotificationsWebSocket upgrades the request and streams the caller's
// notifications. The token comes from the query string.
func NotificationsWebSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c)
		if err := ws.NotificationHub.Serve(c.Writer, c.Request, userID); err != nil {
			log.Printf("[WS] upgrade for user %d failed: %v", userID, err)
		}
	}
}
