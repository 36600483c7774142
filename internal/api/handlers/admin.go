package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/darecoin/backend/internal/admin"
	"github.com/darecoin/backend/internal/config"
	"github.com/darecoin/backend/internal/middleware"
	rdbkeys "github.com/darecoin/backend/internal/redis"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

func adminName(c *gin.Context) string {
	return c.GetString(middleware.UsernameKey)
}

// audit records an admin action for the current request.
func audit(c *gin.Context, db *sqlx.DB, action string, details map[string]interface{}, success bool) {
	if err := admin.LogAdminAction(db, adminName(c), c.ClientIP(), c.Request.URL.Path, action, details, success); err != nil {
		log.Printf("[ADMIN] Failed to write audit log for %s: %v", action, err)
	}
}

// invalidateStats drops the cached dashboard after a mutation.
func invalidateStats(c *gin.Context, rdb *redis.Client) {
	if rdb != nil {
		rdb.Del(c.Request.Context(), rdbkeys.AdminStatsKey)
	}
}

// GetAdminStats returns dashboard counters. The result is cached in Redis for
// STATS_CACHE_SECONDS.
func GetAdminStats(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if rdb != nil && c.Query("refresh") != "true" {
			if cached, err := rdb.Get(ctx, rdbkeys.AdminStatsKey).Bytes(); err == nil {
				c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
				return
			}
		}

		stats := gin.H{}

		var users struct {
			Total  int `db:"total"`
			Banned int `db:"banned"`
			Admins int `db:"admins"`
			New7d  int `db:"new_7d"`
		}
		err := db.Get(&users, `
			SELECT COUNT(*) AS total,
				COUNT(*) FILTER (WHERE is_banned) AS banned,
				COUNT(*) FILTER (WHERE role = 'admin') AS admins,
				COUNT(*) FILTER (WHERE created_at > NOW() - INTERVAL '7 days') AS new_7d
			FROM users`)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch user stats: %v", err)
		} else {
			stats["users"] = gin.H{"total": users.Total, "banned": users.Banned, "admins": users.Admins, "new7d": users.New7d}
		}

		for _, table := range []string{"dares", "truths"} {
			var rows []struct {
				Status string `db:"status"`
				Count  int    `db:"count"`
			}
			if err := db.Select(&rows, `SELECT status, COUNT(*) AS count FROM `+table+` GROUP BY status`); err != nil {
				log.Printf("[ADMIN] Failed to fetch %s stats: %v", table, err)
				continue
			}
			byStatus := gin.H{}
			total := 0
			for _, r := range rows {
				byStatus[r.Status] = r.Count
				total += r.Count
			}
			byStatus["total"] = total
			stats[table] = byStatus
		}

		var pending int
		err = db.Get(&pending, `
			SELECT (SELECT COUNT(*) FROM dare_participants WHERE status = 'pending_review')
				+ (SELECT COUNT(*) FROM truth_participants WHERE status = 'pending_review')`)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch pending reviews: %v", err)
		} else {
			stats["pendingReviews"] = pending
		}

		var balances []struct {
			AccountType string `db:"account_type"`
			Balance     int64  `db:"balance"`
		}
		if err := db.Select(&balances, `SELECT account_type, COALESCE(SUM(balance), 0) AS balance FROM accounts GROUP BY account_type`); err != nil {
			log.Printf("[ADMIN] Failed to fetch account balances: %v", err)
		} else {
			out := gin.H{}
			for _, b := range balances {
				out[b.AccountType] = b.Balance
			}
			stats["accountBalances"] = out
		}

		var volume int64
		if err := db.Get(&volume, `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE amount > 0 AND created_at > NOW() - INTERVAL '24 hours'`); err != nil {
			log.Printf("[ADMIN] Failed to fetch daily volume: %v", err)
		} else {
			stats["volume24h"] = volume
		}
		stats["generatedAt"] = time.Now().UTC().Format(time.RFC3339)

		body, err := json.Marshal(stats)
		if err != nil {
			internalError(c)
			return
		}
		if rdb != nil && cfg.StatsCacheSeconds > 0 {
			if err := rdb.Set(ctx, rdbkeys.AdminStatsKey, body, time.Duration(cfg.StatsCacheSeconds)*time.Second).Err(); err != nil {
				log.Printf("[ADMIN] Failed to cache stats: %v", err)
			}
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	}
}

// GetAdminAnalytics returns per-day signups, content and DRC volume.
func GetAdminAnalytics(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
		if err != nil || days <= 0 {
			days = 30
		}
		if days > 365 {
			days = 365
		}

		type dayRow struct {
			Day           string `db:"day" json:"day"`
			Signups       int    `db:"signups" json:"signups"`
			DaresCreated  int    `db:"dares_created" json:"daresCreated"`
			TruthsCreated int    `db:"truths_created" json:"truthsCreated"`
			Completed     int    `db:"completed" json:"completed"`
			Volume        int64  `db:"volume" json:"volume"`
		}
		rows := []dayRow{}
		err = db.Select(&rows, `
			SELECT to_char(d.day, 'YYYY-MM-DD') AS day,
				(SELECT COUNT(*) FROM users u WHERE u.created_at::date = d.day) AS signups,
				(SELECT COUNT(*) FROM dares x WHERE x.created_at::date = d.day) AS dares_created,
				(SELECT COUNT(*) FROM truths x WHERE x.created_at::date = d.day) AS truths_created,
				(SELECT COUNT(*) FROM dares x WHERE x.status = 'completed' AND x.completed_at::date = d.day) AS completed,
				(SELECT COALESCE(SUM(t.amount), 0) FROM transactions t WHERE t.amount > 0 AND t.created_at::date = d.day) AS volume
			FROM (SELECT generate_series(CURRENT_DATE - ($1::int - 1), CURRENT_DATE, INTERVAL '1 day')::date AS day) d
			ORDER BY d.day`, days)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch analytics: %v", err)
			internalError(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"days": days, "series": rows})
	}
}
