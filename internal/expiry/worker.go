// Package expiry closes dares and truths whose timeframe ran out and returns
// the escrowed reward to the creator.
package expiry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/darecoin/backend/internal/config"
	"github.com/darecoin/backend/internal/dares"
	"github.com/darecoin/backend/internal/models"
	"github.com/darecoin/backend/internal/notify"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Schedule registers an item with the expiry worker.
func Schedule(ctx context.Context, client *redis.Client, k dares.Kind, id int, at time.Time) {
	if client == nil {
		return
	}
	if err := client.ZAdd(ctx, k.Set, redis.Z{Score: float64(at.Unix()), Member: strconv.Itoa(id)}).Err(); err != nil {
		log.Printf("[EXPIRY] schedule %s %d failed: %v (DB sweep will catch it)", k.Name, id, err)
	}
}

// Unschedule drops an item that closed early.
func Unschedule(ctx context.Context, client *redis.Client, k dares.Kind, id int) {
	if client == nil {
		return
	}
	client.ZRem(ctx, k.Set, strconv.Itoa(id))
}

// Result of an expiry attempt.
type Result int

const (
	Skipped Result = iota
	Expired
	Deferred
)

// Expire closes one item if it is due and has no pending reviews.
func Expire(ctx context.Context, db *sqlx.DB, client *redis.Client, k dares.Kind, id int, now time.Time) (Result, error) {
	tx, err := db.Beginx()
	if err != nil {
		return Skipped, err
	}
	defer tx.Rollback()

	it, err := k.Lock(tx, id)
	if errors.Is(err, dares.ErrNotFound) {
		return Skipped, nil
	}
	if err != nil {
		return Skipped, err
	}
	if it.Status != models.StatusActive {
		return Skipped, nil
	}
	if now.Before(it.ExpiresAt) {
		// extended or rescheduled; put it back at its real deadline
		Schedule(ctx, client, k, id, it.ExpiresAt)
		return Skipped, nil
	}

	pending, err := k.PendingReviews(tx, id)
	if err != nil {
		return Skipped, err
	}
	if !dares.Expirable(it.Challenge(), pending, it.ExpiresAt, now) {
		return Deferred, nil
	}

	if err := k.CloseAndRefund(tx, it, models.StatusExpired, "expired"); err != nil {
		return Skipped, err
	}
	msg := fmt.Sprintf("Your %s expired; %d DRC returned to your wallet", k.Label(it), it.Reward)
	n, err := notify.Insert(tx, it.CreatorID, notify.DareExpired, msg, k.Target(it.ID))
	if err != nil {
		return Skipped, err
	}
	if err := tx.Commit(); err != nil {
		return Skipped, err
	}
	notify.Publish(ctx, client, n)
	log.Printf("[EXPIRY] %s %d expired, refunded %d DRC to user %d", k.Name, id, it.Reward, it.CreatorID)
	return Expired, nil
}

// StartWorker polls the expiry sets and sweeps the database for items the
// sets missed.
func StartWorker(ctx context.Context, db *sqlx.DB, client *redis.Client, cfg *config.Config) {
	if db == nil || cfg == nil {
		log.Println("[EXPIRY] DB or config missing; expiry worker not started")
		return
	}
	interval := time.Duration(cfg.ExpiryPollSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	log.Printf("[EXPIRY] Expiry worker started (poll=%s)", interval)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		sweepEvery := 10
		tick := 0
		for {
			select {
			case <-ctx.Done():
				log.Println("[EXPIRY] Expiry worker stopping")
				return
			case <-ticker.C:
				for _, k := range []dares.Kind{dares.DareKind, dares.TruthKind} {
					processDue(ctx, db, client, k, interval)
					if tick%sweepEvery == 0 {
						sweep(ctx, db, client, k)
					}
				}
				tick++
			}
		}
	}()
}

func processDue(ctx context.Context, db *sqlx.DB, client *redis.Client, k dares.Kind, retry time.Duration) {
	if client == nil {
		return
	}
	now := time.Now()
	members, err := client.ZRangeByScore(ctx, k.Set, &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatInt(now.Unix(), 10)}).Result()
	if err != nil {
		log.Printf("[EXPIRY] Failed to fetch due %ss: %v", k.Name, err)
		return
	}
	for _, m := range members {
		// only the worker that removes the member handles it
		if removed, _ := client.ZRem(ctx, k.Set, m).Result(); removed == 0 {
			continue
		}
		id, err := strconv.Atoi(m)
		if err != nil {
			log.Printf("[EXPIRY] dropping malformed member %q from %s", m, k.Set)
			continue
		}
		res, err := Expire(ctx, db, client, k, id, now)
		if err != nil {
			log.Printf("[EXPIRY] %s %d: %v", k.Name, id, err)
			Schedule(ctx, client, k, id, now.Add(retry))
			continue
		}
		if res == Deferred {
			log.Printf("[EXPIRY] %s %d has pending reviews; checking again later", k.Name, id)
			Schedule(ctx, client, k, id, now.Add(retry))
		}
	}
}

func sweep(ctx context.Context, db *sqlx.DB, client *redis.Client, k dares.Kind) {
	var ids []int
	err := db.Select(&ids, fmt.Sprintf(`SELECT t.id FROM %s t WHERE t.status='active' AND t.expires_at <= NOW()
		AND NOT EXISTS (SELECT 1 FROM %s p WHERE p.%s = t.id AND p.status='pending_review')
		ORDER BY t.expires_at LIMIT 100`, k.Table, k.Participants, k.ForeignKey))
	if err != nil {
		log.Printf("[EXPIRY] sweep %s failed: %v", k.Table, err)
		return
	}
	now := time.Now()
	for _, id := range ids {
		if _, err := Expire(ctx, db, client, k, id, now); err != nil {
			log.Printf("[EXPIRY] sweep %s %d: %v", k.Name, id, err)
		}
	}
}
