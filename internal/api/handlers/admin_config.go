package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/darecoin/backend/internal/admin"
	"github.com/darecoin/backend/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// GetAdminRuntimeConfig returns all runtime config entries
func GetAdminRuntimeConfig(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		configs, err := admin.GetAllRuntimeConfig(db)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch runtime config: %v", err)
			respondError(c, http.StatusInternalServerError, "Failed to fetch config")
			return
		}

		c.JSON(http.StatusOK, gin.H{"configs": configs})
	}
}

// UpdateAdminRuntimeConfig updates a single runtime config value and applies
// it to the running process.
func UpdateAdminRuntimeConfig(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")

		var req struct {
			Value string `json:"value" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Value is required")
			return
		}
		details := map[string]interface{}{"key": key, "value": req.Value}

		rc, err := admin.UpdateRuntimeConfigValue(db, cfg, key, req.Value, adminName(c))
		if err != nil {
			log.Printf("[ADMIN] Failed to update config %s: %v", key, err)
			audit(c, db, "update_config", details, false)
			if errors.Is(err, admin.ErrUnknownConfigKey) {
				respondError(c, http.StatusNotFound, err.Error())
				return
			}
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}

		audit(c, db, "update_config", details, true)
		c.JSON(http.StatusOK, gin.H{"ok": true, "config": rc})
	}
}
