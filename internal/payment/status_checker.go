package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/darecoin/backend/internal/accounts"
	"github.com/darecoin/backend/internal/config"
	"github.com/darecoin/backend/internal/models"
	"github.com/darecoin/backend/internal/notify"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Order statuses
const (
	OrderCreated = "created"
	OrderPaid    = "paid"
	OrderFailed  = "failed"
	OrderExpired = "expired"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderClosed   = errors.New("order is no longer payable")
	ErrAlreadyPaid   = errors.New("order already paid")
)

const orderColumns = `id, user_id, provider_order_id, receipt, drc_amount, fiat_amount, currency, status, provider_payment_id, created_at, paid_at`

// attemptedGrace is how long an order with a payment attempt in flight is kept
// open past the normal expiry.
const attemptedGrace = 24 * time.Hour

// Creditable reports whether a confirmed payment may still be credited to an
// order in status. Only paid orders are final; a capture confirmed by the
// provider is credited even after we expired or failed the order.
func Creditable(status string) bool {
	switch status {
	case OrderCreated, OrderExpired, OrderFailed:
		return true
	}
	return false
}

// GetOrder loads an order by provider id.
func GetOrder(q sqlx.Queryer, providerOrderID string) (*models.PaymentOrder, error) {
	var o models.PaymentOrder
	err := sqlx.Get(q, &o, `SELECT `+orderColumns+` FROM payment_orders WHERE provider_order_id=$1`, providerOrderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// InsertOrder stores a freshly created order.
func InsertOrder(db *sqlx.DB, o *models.PaymentOrder) error {
	return db.QueryRowx(`INSERT INTO payment_orders (user_id, provider_order_id, receipt, drc_amount, fiat_amount, currency, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,'created',NOW()) RETURNING id, status, created_at`,
		o.UserID, o.ProviderOrderID, o.Receipt, o.DRCAmount, o.FiatAmount, o.Currency).Scan(&o.ID, &o.Status, &o.CreatedAt)
}

// ProcessOrderPaid credits the DRC of a paid order exactly once. It returns
// ErrAlreadyPaid when a previous call (callback or status checker) won.
func ProcessOrderPaid(ctx context.Context, db *sqlx.DB, rdb *redis.Client, providerOrderID, paymentID string) (*models.PaymentOrder, error) {
	log.Printf("[PAYMENT] Processing paid order %s (payment=%s)", providerOrderID, paymentID)

	tx, err := db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var o models.PaymentOrder
	err = tx.Get(&o, `SELECT `+orderColumns+` FROM payment_orders WHERE provider_order_id=$1 FOR UPDATE`, providerOrderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.Status == OrderPaid {
		log.Printf("[PAYMENT] Order %s already paid, skipping", providerOrderID)
		return &o, ErrAlreadyPaid
	}
	if !Creditable(o.Status) {
		return &o, ErrOrderClosed
	}
	if o.Status != OrderCreated {
		log.Printf("[PAYMENT] Order %s was %s; crediting confirmed payment anyway", providerOrderID, o.Status)
	}

	desc := fmt.Sprintf("Purchased %d DRC", o.DRCAmount)
	if err := accounts.CreditExternal(tx, o.UserID, o.DRCAmount, models.TxnDeposit, accounts.RefPayment, o.ID, desc); err != nil {
		return nil, fmt.Errorf("credit wallet: %w", err)
	}

	if _, err := tx.Exec(`UPDATE payment_orders SET status='paid', provider_payment_id=$1, paid_at=NOW() WHERE id=$2`,
		sql.NullString{String: paymentID, Valid: paymentID != ""}, o.ID); err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	n, err := notify.Insert(tx, o.UserID, notify.Topup, fmt.Sprintf("%d DRC added to your wallet", o.DRCAmount), notify.Target{})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	o.Status = OrderPaid
	notify.Publish(ctx, rdb, n)

	log.Printf("[PAYMENT] ✓ Order %s paid: user=%d drc=%d fiat=%s %s", providerOrderID, o.UserID, o.DRCAmount, o.FiatAmount.StringFixed(2), o.Currency)
	return &o, nil
}

// MarkOrder moves a still-open order to a terminal status.
func MarkOrder(db *sqlx.DB, providerOrderID, status string) error {
	_, err := db.Exec(`UPDATE payment_orders SET status=$1 WHERE provider_order_id=$2 AND status='created'`, status, providerOrderID)
	return err
}

// StartStatusChecker polls the provider for orders whose checkout callback
// never reached us, and expires stale ones.
func StartStatusChecker(ctx context.Context, db *sqlx.DB, rdb *redis.Client, cfg *config.Config, intervalMinutes int) {
	if intervalMinutes <= 0 {
		intervalMinutes = 2
	}
	ticker := time.NewTicker(time.Duration(intervalMinutes) * time.Minute)
	defer ticker.Stop()

	log.Printf("[PAYMENT-STATUS] Starting payment status checker (check every %d min)", intervalMinutes)

	checkOpenOrders(ctx, db, rdb, cfg)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[PAYMENT-STATUS] Status checker stopped")
			return
		case <-ticker.C:
			checkOpenOrders(ctx, db, rdb, cfg)
		}
	}
}

func checkOpenOrders(ctx context.Context, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) {
	var orders []models.PaymentOrder
	err := db.Select(&orders, `SELECT `+orderColumns+` FROM payment_orders
		WHERE status='created' AND created_at < NOW() - INTERVAL '1 minute'
		ORDER BY created_at ASC LIMIT 100`)
	if err != nil {
		log.Printf("[PAYMENT-STATUS] Failed to fetch open orders: %v", err)
		return
	}
	if len(orders) == 0 {
		return
	}

	log.Printf("[PAYMENT-STATUS] Checking %d open order(s)", len(orders))
	expiry := time.Duration(cfg.PaymentOrderExpiryMinutes) * time.Minute

	for _, o := range orders {
		if ctx.Err() != nil {
			return
		}
		stale := time.Since(o.CreatedAt) > expiry

		if IsMockOrder(o.ProviderOrderID) || Default == nil {
			if stale {
				expireOrder(db, o.ProviderOrderID)
			}
			continue
		}

		remote, err := Default.FetchOrder(ctx, o.ProviderOrderID)
		if err != nil {
			log.Printf("[PAYMENT-STATUS] Failed to fetch order %s: %v", o.ProviderOrderID, err)
			continue
		}

		switch remote.Status {
		case "paid":
			paymentID := capturedPayment(ctx, o.ProviderOrderID)
			if _, err := ProcessOrderPaid(ctx, db, rdb, o.ProviderOrderID, paymentID); err != nil && !errors.Is(err, ErrAlreadyPaid) {
				log.Printf("[PAYMENT-STATUS] Failed to credit order %s: %v", o.ProviderOrderID, err)
			}
		case "attempted":
			// a payment may still be captured
			if time.Since(o.CreatedAt) > expiry+attemptedGrace {
				expireOrder(db, o.ProviderOrderID)
			}
		default:
			if stale {
				expireOrder(db, o.ProviderOrderID)
			}
		}
	}
}

func capturedPayment(ctx context.Context, orderID string) string {
	payments, err := Default.FetchOrderPayments(ctx, orderID)
	if err != nil {
		log.Printf("[PAYMENT-STATUS] %v", err)
		return ""
	}
	for _, p := range payments {
		if p.Status == "captured" {
			return p.ID
		}
	}
	return ""
}

func expireOrder(db *sqlx.DB, orderID string) {
	if err := MarkOrder(db, orderID, OrderExpired); err != nil {
		log.Printf("[PAYMENT-STATUS] Failed to expire order %s: %v", orderID, err)
		return
	}
	log.Printf("[PAYMENT-STATUS] Order %s expired", orderID)
}
