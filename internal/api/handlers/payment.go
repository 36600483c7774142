package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/darecoin/backend/internal/accounts"
	"github.com/darecoin/backend/internal/config"
	"github.com/darecoin/backend/internal/models"
	"github.com/darecoin/backend/internal/payment"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// openOrder prices drc coins and registers an order with the provider, or
// locally in mock mode.
func openOrder(c *gin.Context, db *sqlx.DB, cfg *config.Config, userID int, drc int64) (*models.PaymentOrder, int64, error) {
	price, err := payment.ParsePrice(cfg.DRCPrice)
	if err != nil {
		return nil, 0, err
	}
	fiat := payment.FiatAmount(drc, price)
	minor := payment.MinorUnits(fiat)
	receipt := payment.NewReceipt()

	o := &models.PaymentOrder{
		UserID:     userID,
		Receipt:    receipt,
		DRCAmount:  drc,
		FiatAmount: fiat,
		Currency:   cfg.PaymentCurrency,
	}
	if payment.Default == nil {
		if !cfg.MockMode {
			return nil, 0, payment.ErrNotConfigured
		}
		o.ProviderOrderID = payment.MockOrderID()
	} else {
		remote, err := payment.Default.CreateOrder(c.Request.Context(), payment.OrderRequest{
			Amount:   minor,
			Currency: cfg.PaymentCurrency,
			Receipt:  receipt,
			Notes:    map[string]string{"user_id": strconv.Itoa(userID), "drc": strconv.FormatInt(drc, 10)},
		})
		if err != nil {
			return nil, 0, err
		}
		o.ProviderOrderID = remote.ID
	}
	if err := payment.InsertOrder(db, o); err != nil {
		return nil, 0, fmt.Errorf("store order: %w", err)
	}
	return o, minor, nil
}

// CreateOrder starts a DRC purchase and returns what the checkout widget needs.
func CreateOrder(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
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

		o, minor, err := openOrder(c, db, cfg, userID, req.Amount)
		if errors.Is(err, payment.ErrNotConfigured) {
			respondError(c, http.StatusServiceUnavailable, "Payments are not available right now")
			return
		}
		if err != nil {
			log.Printf("[PAYMENT] create order for user %d: %v", userID, err)
			respondError(c, http.StatusBadGateway, "Could not create payment order")
			return
		}
		log.Printf("[PAYMENT] order %s created: user=%d drc=%d fiat=%s %s", o.ProviderOrderID, userID, o.DRCAmount, o.FiatAmount.StringFixed(2), o.Currency)
		c.JSON(http.StatusOK, gin.H{
			"orderId":    o.ProviderOrderID,
			"amount":     minor,
			"currency":   o.Currency,
			"keyId":      payment.Default.KeyID(),
			"drcAmount":  o.DRCAmount,
			"fiatAmount": o.FiatAmount.StringFixed(2),
			"mock":       payment.IsMockOrder(o.ProviderOrderID),
		})
	}
}

// settleOrder credits a paid order and writes the response shared by the
// verify and mock endpoints.
func settleOrder(c *gin.Context, db *sqlx.DB, rdb *redis.Client, orderID, paymentID string) {
	userID := currentUserID(c)
	o, err := payment.ProcessOrderPaid(c.Request.Context(), db, rdb, orderID, paymentID)
	switch {
	case errors.Is(err, payment.ErrAlreadyPaid):
		balance, _ := accounts.Balance(db, userID)
		c.JSON(http.StatusOK, gin.H{"message": "Payment already credited", "balance": balance, "order": o})
		return
	case errors.Is(err, payment.ErrOrderClosed):
		respondError(c, http.StatusConflict, "Order is no longer payable")
		return
	case errors.Is(err, payment.ErrOrderNotFound):
		respondError(c, http.StatusNotFound, "Order not found")
		return
	case err != nil:
		log.Printf("[PAYMENT] settle %s: %v", orderID, err)
		internalError(c)
		return
	}
	balance, err := accounts.Balance(db, userID)
	if err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("%d DRC added to your wallet", o.DRCAmount),
		"balance": balance,
		"order":   o,
	})
}

// ownOrder loads an order and hides orders of other users behind a 404.
func ownOrder(c *gin.Context, db *sqlx.DB, orderID string) (*models.PaymentOrder, bool) {
	o, err := payment.GetOrder(db, orderID)
	if errors.Is(err, payment.ErrOrderNotFound) || (err == nil && o.UserID != currentUserID(c)) {
		respondError(c, http.StatusNotFound, "Order not found")
		return nil, false
	}
	if err != nil {
		internalError(c)
		return nil, false
	}
	return o, true
}

// VerifyPayment checks the checkout callback signature and credits the order.
func VerifyPayment(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			OrderID   string `json:"orderId"`
			PaymentID string `json:"paymentId"`
			Signature string `json:"signature"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.OrderID) == "" {
			respondError(c, http.StatusBadRequest, "orderId, paymentId and signature are required")
			return
		}
		o, ok := ownOrder(c, db, req.OrderID)
		if !ok {
			return
		}

		if payment.IsMockOrder(o.ProviderOrderID) {
			if !cfg.MockMode {
				respondError(c, http.StatusBadRequest, "Mock orders cannot be verified")
				return
			}
		} else if !payment.Default.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
			log.Printf("[PAYMENT] invalid signature for order %s (user %d)", req.OrderID, o.UserID)
			if err := payment.MarkOrder(db, req.OrderID, payment.OrderFailed); err != nil {
				log.Printf("[PAYMENT] mark %s failed: %v", req.OrderID, err)
			}
			respondError(c, http.StatusBadRequest, "Invalid payment signature")
			return
		}
		settleOrder(c, db, rdb, req.OrderID, req.PaymentID)
	}
}

// MockPayment credits a purchase without a provider. Only in mock mode.
func MockPayment(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.MockMode {
			respondError(c, http.StatusForbidden, "Mock payments are disabled")
			return
		}
		var req struct {
			Amount  int64  `json:"amount"`
			OrderID string `json:"orderId"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Invalid request body")
			return
		}

		orderID := strings.TrimSpace(req.OrderID)
		if orderID != "" {
			if _, ok := ownOrder(c, db, orderID); !ok {
				return
			}
		} else {
			if maxTopup := cfg.Limits().MaxTopupAmount; req.Amount <= 0 || req.Amount > int64(maxTopup) {
				respondError(c, http.StatusBadRequest, fmt.Sprintf("Amount must be between 1 and %d DRC", maxTopup))
				return
			}
			price, err := payment.ParsePrice(cfg.DRCPrice)
			if err != nil {
				internalError(c)
				return
			}
			o := &models.PaymentOrder{
				UserID:          currentUserID(c),
				ProviderOrderID: payment.MockOrderID(),
				Receipt:         payment.NewReceipt(),
				DRCAmount:       req.Amount,
				FiatAmount:      payment.FiatAmount(req.Amount, price),
				Currency:        cfg.PaymentCurrency,
			}
			if err := payment.InsertOrder(db, o); err != nil {
				log.Printf("[PAYMENT] mock order: %v", err)
				internalError(c)
				return
			}
			orderID = o.ProviderOrderID
		}
		settleOrder(c, db, rdb, orderID, "")
	}
}
