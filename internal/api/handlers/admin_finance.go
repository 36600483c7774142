package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// GetAdminTransactions returns wallet history across all users.
func GetAdminTransactions(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		txnType := c.DefaultQuery("type", "")
		userID := 0
		if v := c.Query("user"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				respondError(c, http.StatusBadRequest, "Invalid user")
				return
			}
			userID = id
		}
		limit, offset := pagination(c, 50)

		type txnRow struct {
			ID          int       `db:"id" json:"id"`
			UserID      int       `db:"user_id" json:"user"`
			Username    string    `db:"username" json:"username"`
			Type        string    `db:"type" json:"type"`
			Amount      int64     `db:"amount" json:"amount"`
			Description string    `db:"description" json:"description"`
			Status      string    `db:"status" json:"status"`
			Reference   string    `db:"reference" json:"reference"`
			CreatedAt   time.Time `db:"created_at" json:"createdAt"`
			TotalCount  int       `db:"total_count" json:"-"`
		}

		rows := []txnRow{}
		err := db.Select(&rows, `
			SELECT t.id, t.user_id, u.username, t.type, t.amount, t.description, t.status, t.reference, t.created_at,
				COUNT(*) OVER() AS total_count
			FROM transactions t
			JOIN users u ON u.id = t.user_id
			WHERE ($1 = '' OR t.type = $1)
				AND ($2 = 0 OR t.user_id = $2)
			ORDER BY t.created_at DESC, t.id DESC
			LIMIT $3 OFFSET $4`, txnType, userID, limit, offset)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch transactions: %v", err)
			internalError(c)
			return
		}

		total := 0
		if len(rows) > 0 {
			total = rows[0].TotalCount
		}
		c.JSON(http.StatusOK, gin.H{"transactions": rows, "total": total, "limit": limit, "offset": offset})
	}
}

// GetAdminPaymentOrders lists DRC purchase orders, newest first.
func GetAdminPaymentOrders(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.DefaultQuery("status", "")
		limit, offset := pagination(c, 50)

		type orderRow struct {
			ID              int       `db:"id" json:"id"`
			UserID          int       `db:"user_id" json:"user"`
			Username        string    `db:"username" json:"username"`
			ProviderOrderID string    `db:"provider_order_id" json:"orderId"`
			DRCAmount       int64     `db:"drc_amount" json:"drcAmount"`
			FiatAmount      string    `db:"fiat_amount" json:"fiatAmount"`
			Currency        string    `db:"currency" json:"currency"`
			Status          string    `db:"status" json:"status"`
			CreatedAt       time.Time `db:"created_at" json:"createdAt"`
			TotalCount      int       `db:"total_count" json:"-"`
		}

		rows := []orderRow{}
		err := db.Select(&rows, `
			SELECT o.id, o.user_id, u.username, o.provider_order_id, o.drc_amount, o.fiat_amount::text AS fiat_amount,
				o.currency, o.status, o.created_at, COUNT(*) OVER() AS total_count
			FROM payment_orders o
			JOIN users u ON u.id = o.user_id
			WHERE ($1 = '' OR o.status = $1)
			ORDER BY o.created_at DESC
			LIMIT $2 OFFSET $3`, status, limit, offset)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch payment orders: %v", err)
			internalError(c)
			return
		}

		total := 0
		if len(rows) > 0 {
			total = rows[0].TotalCount
		}
		c.JSON(http.StatusOK, gin.H{"orders": rows, "total": total, "limit": limit, "offset": offset})
	}
}
