package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/darecoin/backend/internal/config"
	"github.com/darecoin/backend/internal/payment"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const maxWebhookBody = 1 << 20

// PaymentWebhook handles provider callbacks for orders whose checkout
// callback never reached us.
func PaymentWebhook(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid payload")
			return
		}
		if !payment.VerifyWebhookSignature(cfg.RazorpayWebhookSecret, body, c.GetHeader("X-Razorpay-Signature")) {
			log.Printf("[WEBHOOK] Rejected webhook with invalid signature")
			respondError(c, http.StatusUnauthorized, "invalid signature")
			return
		}
		ev, err := payment.ParseWebhook(body)
		if err != nil {
			log.Printf("[WEBHOOK] %v", err)
			respondError(c, http.StatusBadRequest, "invalid payload")
			return
		}
		orderID := ev.OrderID()
		log.Printf("[WEBHOOK] %s order=%s payment=%s", ev.Event, orderID, ev.PaymentID())

		// Log webhook for audit trail
		var webhookID int
		if err := db.Get(&webhookID, `INSERT INTO payment_webhooks (event, provider_order_id, payment_id, payload, processed, created_at)
			VALUES ($1, $2, $3, $4, FALSE, NOW()) RETURNING id`, ev.Event, orderID, ev.PaymentID(), string(body)); err != nil {
			log.Printf("[WEBHOOK] Failed to store webhook: %v", err)
		}

		switch ev.Event {
		case payment.EventPaymentCaptured, payment.EventOrderPaid:
			_, err := payment.ProcessOrderPaid(c.Request.Context(), db, rdb, orderID, ev.PaymentID())
			switch {
			case err == nil, errors.Is(err, payment.ErrAlreadyPaid):
			case errors.Is(err, payment.ErrOrderNotFound):
				respondError(c, http.StatusNotFound, "order not found")
				return
			case errors.Is(err, payment.ErrOrderClosed):
				log.Printf("[WEBHOOK] Order %s is in an unknown state; needs manual review", orderID)
			default:
				log.Printf("[WEBHOOK] Failed to credit order %s: %v", orderID, err)
				// non-2xx makes the provider retry
				internalError(c)
				return
			}
		case payment.EventPaymentFailed:
			// the order stays open for another attempt; the status checker expires it
			log.Printf("[WEBHOOK] Payment attempt %s failed for order %s", ev.PaymentID(), orderID)
		default:
			log.Printf("[WEBHOOK] Ignoring event %s", ev.Event)
		}

		if webhookID > 0 {
			if _, err := db.Exec(`UPDATE payment_webhooks SET processed=TRUE WHERE id=$1`, webhookID); err != nil {
				log.Printf("[WEBHOOK] Failed to mark webhook %d processed: %v", webhookID, err)
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": "webhook processed"})
	}
}
