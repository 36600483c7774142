package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/darecoin/backend/internal/accounts"
	"github.com/darecoin/backend/internal/config"
	"github.com/darecoin/backend/internal/models"
	"github.com/darecoin/backend/internal/notify"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const walletHistoryLimit = 50

func recentTransactions(q sqlx.Queryer, userID, limit int) ([]models.Transaction, error) {
	txns := []models.Transaction{}
	err := sqlx.Select(q, &txns, `SELECT id, user_id, type, amount, description, status, reference, created_at
		FROM transactions WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	return txns, err
}

// GetWallet returns the caller's balance and latest transactions.
func GetWallet(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c)
		balance, err := accounts.Balance(db, userID)
		if err != nil {
			log.Printf("[WALLET] balance for %d: %v", userID, err)
			internalError(c)
			return
		}
		txns, err := recentTransactions(db, userID, walletHistoryLimit)
		if err != nil {
			log.Printf("[WALLET] history for %d: %v", userID, err)
			internalError(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": balance, "transactions": txns})
	}
}

// Topup credits DRC directly. Outside mock mode only admins may use it; users
// buy DRC through the payment endpoints.
func Topup(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.MockMode && !isAdmin(c) {
			respondError(c, http.StatusBadRequest, "Direct top-up is disabled; buy DRC via /api/payment/create-order")
			return
		}
		var req struct {
			Amount int64 `json:"amount"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		if maxTopup := cfg.Limits().MaxTopupAmount; req.Amount <= 0 || req.Amount > int64(maxTopup) {
			respondError(c, http.StatusBadRequest, fmt.Sprintf("Amount must be between 1 and %d DRC", maxTopup))
			return
		}
		userID := currentUserID(c)

		tx, err := db.Beginx()
		if err != nil {
			internalError(c)
			return
		}
		defer tx.Rollback()

		desc := fmt.Sprintf("Top-up of %d DRC", req.Amount)
		if err := accounts.CreditExternal(tx, userID, req.Amount, models.TxnTopup, accounts.RefTopup, 0, desc); err != nil {
			log.Printf("[WALLET] topup for %d: %v", userID, err)
			respondRule(c, err)
			return
		}
		n, err := notify.Insert(tx, userID, notify.Topup, fmt.Sprintf("%d DRC added to your wallet", req.Amount), notify.Target{})
		if err != nil {
			internalError(c)
			return
		}
		balance, err := accounts.Balance(tx, userID)
		if err != nil {
			internalError(c)
			return
		}
		if err := tx.Commit(); err != nil {
			internalError(c)
			return
		}
		notify.Publish(c.Request.Context(), rdb, n)
		log.Printf("[WALLET] user %d topped up %d DRC", userID, req.Amount)
		c.JSON(http.StatusOK, gin.H{"message": desc, "balance": balance})
	}
}

// recipientHandle accepts a username or a numeric id, quoted or not.
func recipientHandle(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimPrefix(strings.TrimSpace(s), "@")
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

// Transfer sends DRC to another user.
func Transfer(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			To     json.RawMessage `json:"to"`
			Amount int64           `json:"amount"`
			Note   string          `json:"note"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		userID := currentUserID(c)
		handle := recipientHandle(req.To)
		switch {
		case handle == "":
			respondError(c, http.StatusBadRequest, "Recipient is required")
			return
		case handle == strconv.Itoa(userID):
			respondError(c, http.StatusBadRequest, "You cannot transfer to yourself")
			return
		case req.Amount <= 0:
			respondError(c, http.StatusBadRequest, "Amount must be positive")
			return
		case req.Amount < int64(cfg.Limits().MinTransferAmount):
			respondError(c, http.StatusBadRequest, fmt.Sprintf("Minimum transfer is %d DRC", cfg.Limits().MinTransferAmount))
			return
		}
		note := strings.TrimSpace(req.Note)
		if len(note) > 200 {
			note = note[:200]
		}

		tx, err := db.Beginx()
		if err != nil {
			internalError(c)
			return
		}
		defer tx.Rollback()

		to, err := findUserByHandle(tx, handle)
		if errors.Is(err, errUserNotFound) {
			respondError(c, http.StatusNotFound, "Recipient not found")
			return
		}
		if err != nil {
			internalError(c)
			return
		}
		if to.ID == userID {
			respondError(c, http.StatusBadRequest, "You cannot transfer to yourself")
			return
		}
		if to.IsBanned {
			respondError(c, http.StatusBadRequest, "Recipient cannot receive transfers")
			return
		}
		from, err := loadUser(tx, userID)
		if err != nil {
			internalError(c)
			return
		}

		outDesc := fmt.Sprintf("Transfer to %s", to.Username)
		inDesc := fmt.Sprintf("Transfer from %s", from.Username)
		if note != "" {
			outDesc += ": " + note
			inDesc += ": " + note
		}
		if err := accounts.TransferUsers(tx, userID, to.ID, req.Amount, outDesc, inDesc); err != nil {
			respondRule(c, err)
			return
		}
		n, err := notify.Insert(tx, to.ID, notify.TransferReceived,
			fmt.Sprintf("%s sent you %d DRC", from.Username, req.Amount), notify.Target{})
		if err != nil {
			internalError(c)
			return
		}
		balance, err := accounts.Balance(tx, userID)
		if err != nil {
			internalError(c)
			return
		}
		if err := tx.Commit(); err != nil {
			internalError(c)
			return
		}
		notify.Publish(c.Request.Context(), rdb, n)
		log.Printf("[WALLET] user %d sent %d DRC to %d", userID, req.Amount, to.ID)
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Sent %d DRC to %s", req.Amount, to.Username), "balance": balance})
	}
}
