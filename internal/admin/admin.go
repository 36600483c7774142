package admin

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/darecoin/backend/internal/accounts"
	"github.com/darecoin/backend/internal/auth"
	"github.com/darecoin/backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// CreateAdminUser creates an admin user or promotes and resets an existing
// one with the same email (used for seeding).
func CreateAdminUser(db *sqlx.DB, username, email, password string) (int, error) {
	if err := auth.ValidateRegistration(username, email, password); err != nil {
		return 0, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := db.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var id int
	err = tx.QueryRowx(`
		INSERT INTO users (username, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, 'admin', NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			role = 'admin',
			is_banned = FALSE,
			updated_at = NOW()
		RETURNING id
	`, username, strings.ToLower(email), hash).Scan(&id)
	if err != nil {
		return 0, err
	}

	if _, err := accounts.Wallet(tx, id); err != nil {
		return 0, fmt.Errorf("create wallet: %w", err)
	}
	return id, tx.Commit()
}

// LogAdminAction records an admin action in the audit log
func LogAdminAction(db *sqlx.DB, adminUsername, ip, route, action string, details map[string]interface{}, success bool) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		log.Printf("[ADMIN] Failed to marshal audit details: %v", err)
		detailsJSON = []byte("{}")
	}

	_, err = db.Exec(`
		INSERT INTO admin_audit (admin_username, ip, route, action, details, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, adminUsername, ip, route, action, string(detailsJSON), success)

	if err != nil {
		log.Printf("[ADMIN] Failed to log admin action: %v", err)
	}

	return err
}

// GetAdminAuditLogs retrieves recent admin audit logs with pagination.
// An empty adminUsername returns every admin's actions.
func GetAdminAuditLogs(db *sqlx.DB, adminUsername string, limit, offset int) ([]models.AdminAudit, int, error) {
	where := ""
	args := []interface{}{}
	if adminUsername != "" {
		where = "WHERE admin_username = $1"
		args = append(args, adminUsername)
	}

	var total int
	if err := db.Get(&total, `SELECT COUNT(*) FROM admin_audit `+where, args...); err != nil {
		return nil, 0, err
	}

	logs := []models.AdminAudit{}
	query := fmt.Sprintf(`
		SELECT id, admin_username, ip, route, action, details, success, created_at
		FROM admin_audit
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	err := db.Select(&logs, query, append(args, limit, offset)...)
	return logs, total, err
}
