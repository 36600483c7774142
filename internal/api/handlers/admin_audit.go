package handlers

import (
	"log"
	"net/http"

	"github.com/darecoin/backend/internal/admin"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// GetAdminAuditLogs returns paginated audit log entries
func GetAdminAuditLogs(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminUsername := c.DefaultQuery("admin_username", "")
		limit, offset := pagination(c, 25)

		logs, total, err := admin.GetAdminAuditLogs(db, adminUsername, limit, offset)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch audit logs: %v", err)
			respondError(c, http.StatusInternalServerError, "Failed to fetch audit logs")
			return
		}

		// viewing the audit log is not itself audited
		c.JSON(http.StatusOK, gin.H{"logs": logs, "total": total, "limit": limit, "offset": offset})
	}
}
