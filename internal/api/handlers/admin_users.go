package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/darecoin/backend/internal/accounts"
	"github.com/darecoin/backend/internal/models"
	"github.com/darecoin/backend/internal/notify"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// GetAdminUsers returns a paginated, searchable list of users.
func GetAdminUsers(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := strings.TrimSpace(c.DefaultQuery("q", ""))
		status := c.DefaultQuery("status", "all")
		role := c.DefaultQuery("role", "")
		limit, offset := pagination(c, 50)

		type userRow struct {
			ID            int       `db:"id" json:"id"`
			Username      string    `db:"username" json:"username"`
			Email         string    `db:"email" json:"email"`
			Role          string    `db:"role" json:"role"`
			WalletBalance int64     `db:"wallet_balance" json:"walletBalance"`
			IsBanned      bool      `db:"is_banned" json:"isBanned"`
			DaresCreated  int       `db:"dares_created" json:"daresCreated"`
			Completed     int       `db:"completed" json:"completed"`
			CreatedAt     time.Time `db:"created_at" json:"createdAt"`
			TotalCount    int       `db:"total_count" json:"-"`
		}

		rows := []userRow{}
		err := db.Select(&rows, `
			SELECT u.id, u.username, u.email, u.role, COALESCE(a.balance, 0) AS wallet_balance, u.is_banned,
				(SELECT COUNT(*) FROM dares d WHERE d.creator_id = u.id) AS dares_created,
				(SELECT COUNT(*) FROM dare_participants p WHERE p.user_id = u.id AND p.status = 'completed') AS completed,
				u.created_at,
				COUNT(*) OVER() AS total_count
			FROM users u
			LEFT JOIN accounts a ON a.owner_user_id = u.id AND a.account_type = 'user_wallet'
			WHERE ($1 = '' OR u.username ILIKE '%' || $1 || '%' OR u.email ILIKE '%' || $1 || '%')
				AND ($2 = 'all' OR ($2 = 'banned' AND u.is_banned) OR ($2 = 'active' AND NOT u.is_banned))
				AND ($3 = '' OR u.role = $3)
			ORDER BY u.created_at DESC
			LIMIT $4 OFFSET $5`, q, status, role, limit, offset)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch users: %v", err)
			internalError(c)
			return
		}

		total := 0
		if len(rows) > 0 {
			total = rows[0].TotalCount
		}
		c.JSON(http.StatusOK, gin.H{"users": rows, "total": total, "limit": limit, "offset": offset})
	}
}

type adminUserUpdate struct {
	Role              *string `json:"role"`
	IsBanned          *bool   `json:"isBanned"`
	BalanceAdjustment int64   `json:"balanceAdjustment"`
	Reason            string  `json:"reason"`
}

func (u *adminUserUpdate) validate(selfEdit bool) error {
	if u.Role != nil && *u.Role != models.RoleUser && *u.Role != models.RoleAdmin {
		return errors.New("Role must be user or admin")
	}
	if selfEdit && ((u.Role != nil && *u.Role != models.RoleAdmin) || (u.IsBanned != nil && *u.IsBanned)) {
		return errors.New("You cannot demote or ban yourself")
	}
	if u.Role == nil && u.IsBanned == nil && u.BalanceAdjustment == 0 {
		return errors.New("Nothing to update")
	}
	return nil
}

// UpdateAdminUser changes a user's role or ban flag and applies balance
// adjustments through the ledger.
func UpdateAdminUser(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req adminUserUpdate
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := req.validate(id == currentUserID(c)); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		details := map[string]interface{}{"user_id": id, "role": req.Role, "is_banned": req.IsBanned, "adjustment": req.BalanceAdjustment, "reason": req.Reason}

		tx, err := db.Beginx()
		if err != nil {
			internalError(c)
			return
		}
		defer tx.Rollback()

		var exists bool
		err = tx.Get(&exists, `SELECT TRUE FROM users WHERE id=$1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			audit(c, db, "update_user", details, false)
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			internalError(c)
			return
		}
		if req.Role != nil {
			if _, err := tx.Exec(`UPDATE users SET role=$1 WHERE id=$2`, *req.Role, id); err != nil {
				internalError(c)
				return
			}
		}
		if req.IsBanned != nil {
			if _, err := tx.Exec(`UPDATE users SET is_banned=$1 WHERE id=$2`, *req.IsBanned, id); err != nil {
				internalError(c)
				return
			}
		}

		var pending []*models.Notification
		if adj := req.BalanceAdjustment; adj != 0 {
			reason := strings.TrimSpace(req.Reason)
			if reason == "" {
				reason = "Admin adjustment"
			}
			if adj > 0 {
				err = accounts.CreditExternal(tx, id, adj, models.TxnDeposit, accounts.RefAdmin, currentUserID(c), reason)
			} else {
				err = accounts.DebitExternal(tx, id, -adj, accounts.RefAdmin, currentUserID(c), reason)
			}
			if err != nil {
				audit(c, db, "update_user", details, false)
				respondRule(c, err)
				return
			}
			verb := "added to"
			amount := adj
			if adj < 0 {
				verb, amount = "removed from", -adj
			}
			n, err := notify.Insert(tx, id, notify.Topup, fmt.Sprintf("%d DRC %s your wallet: %s", amount, verb, reason), notify.Target{})
			if err != nil {
				internalError(c)
				return
			}
			pending = append(pending, n)
		}

		if err := tx.Commit(); err != nil {
			internalError(c)
			return
		}
		notify.Publish(c.Request.Context(), rdb, pending...)
		invalidateStats(c, rdb)
		audit(c, db, "update_user", details, true)
		log.Printf("[ADMIN] %s updated user %d (adjustment=%d)", adminName(c), id, req.BalanceAdjustment)

		u, err := loadUser(db, id)
		if err != nil {
			internalError(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "User updated", "user": u})
	}
}
