package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/darecoin/backend/internal/dares"
	"github.com/darecoin/backend/internal/expiry"
	"github.com/darecoin/backend/internal/models"
	"github.com/darecoin/backend/internal/notify"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// moderationFilter builds the WHERE clause shared by the admin dare and truth
// lists. alias is the table alias, titleCol the searchable text column.
func moderationFilter(c *gin.Context, alias, titleCol string) (string, []interface{}, error) {
	where := []string{"1=1"}
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if status := c.DefaultQuery("status", "all"); status != "all" {
		where = append(where, alias+".status = "+arg(status))
	}
	if creator := c.Query("creator"); creator != "" {
		id, err := strconv.Atoi(creator)
		if err != nil {
			return "", nil, fmt.Errorf("Invalid creator")
		}
		where = append(where, alias+".creator_id = "+arg(id))
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		where = append(where, fmt.Sprintf("(%s.%s ILIKE %s OR u.username ILIKE %s)", alias, titleCol, arg("%"+q+"%"), arg("%"+q+"%")))
	}
	return strings.Join(where, " AND "), args, nil
}

// GetAdminDares lists dares in any status for moderation.
func GetAdminDares(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c, 50)
		where, args, err := moderationFilter(c, "d", "title")
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		args = append(args, limit, offset)
		query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() AS total_count
			FROM dares d JOIN users u ON u.id = d.creator_id
			WHERE %s ORDER BY d.created_at DESC LIMIT $%d OFFSET $%d`, dareColumns, where, len(args)-1, len(args))

		var rows []dareRow
		if err := db.Select(&rows, query, args...); err != nil {
			log.Printf("[ADMIN] Failed to fetch dares: %v", err)
			internalError(c)
			return
		}
		list, err := finishDares(db, rows, currentUserID(c))
		if err != nil {
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

// GetAdminTruths lists truths in any status for moderation.
func GetAdminTruths(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c, 50)
		where, args, err := moderationFilter(c, "t", "question")
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		args = append(args, limit, offset)
		query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() AS total_count
			FROM truths t JOIN users u ON u.id = t.creator_id
			WHERE %s ORDER BY t.created_at DESC LIMIT $%d OFFSET $%d`, truthColumns, where, len(args)-1, len(args))

		var rows []truthRow
		if err := db.Select(&rows, query, args...); err != nil {
			log.Printf("[ADMIN] Failed to fetch truths: %v", err)
			internalError(c)
			return
		}
		// moderators see every answer
		list, err := finishTruths(db, rows, currentUserID(c), true)
		if err != nil {
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

// removeHandler closes an active dare or truth, refunds its escrow to the
// creator and tells them why.
func removeHandler(db *sqlx.DB, rdb *redis.Client, k dares.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Reason string `json:"reason"`
		}
		// the body is optional; the reason may come as a query parameter
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			reason = c.Query("reason")
		}
		action := "remove_" + k.Name
		details := map[string]interface{}{k.Name + "_id": id, "reason": reason}

		tx, err := db.Beginx()
		if err != nil {
			internalError(c)
			return
		}
		defer tx.Rollback()

		it, err := k.Lock(tx, id)
		if err != nil {
			audit(c, db, action, details, false)
			respondRule(c, err)
			return
		}
		if err := k.CloseAndRefund(tx, it, models.StatusRemoved, "removed by a moderator"); err != nil {
			audit(c, db, action, details, false)
			respondRule(c, err)
			return
		}
		msg := fmt.Sprintf("Your %s was removed by a moderator; %d DRC returned to your wallet", k.Label(it), it.Reward)
		if reason != "" {
			msg += ". Reason: " + reason
		}
		n, err := notify.Insert(tx, it.CreatorID, notify.DareRemoved, msg, k.Target(id))
		if err != nil {
			internalError(c)
			return
		}
		if err := tx.Commit(); err != nil {
			internalError(c)
			return
		}
		notify.Publish(c.Request.Context(), rdb, n)
		expiry.Unschedule(c.Request.Context(), rdb, k, id)
		invalidateStats(c, rdb)
		audit(c, db, action, details, true)
		log.Printf("[ADMIN] %s removed %s %d, refunded %d DRC to user %d", adminName(c), k.Name, id, it.Reward, it.CreatorID)
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%s removed and %d DRC refunded", strings.ToUpper(k.Name[:1])+k.Name[1:], it.Reward)})
	}
}

// DeleteAdminDare removes a dare.
func DeleteAdminDare(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return removeHandler(db, rdb, dares.DareKind)
}

// DeleteAdminTruth removes a truth.
func DeleteAdminTruth(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return removeHandler(db, rdb, dares.TruthKind)
}
