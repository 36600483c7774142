package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthCheck returns server health status. Dependencies are reported but do
// not fail the check so the process is not restarted for a Redis blip.
func HealthCheck(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		deps := gin.H{}
		if db != nil {
			deps["database"] = statusOf(db.PingContext(ctx))
		}
		if rdb != nil {
			deps["redis"] = statusOf(rdb.Ping(ctx).Err())
		}

		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"service":      "darecoin-api",
			"version":      version,
			"uptime":       time.Since(startTime).String(),
			"dependencies": deps,
		})
	}
}

func statusOf(err error) string {
	if err != nil {
		return "down"
	}
	return "up"
}
