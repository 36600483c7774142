package ws

import (
	"context"
	"log"

	"github.com/darecoin/backend/internal/notify"
	rdb "github.com/darecoin/backend/internal/redis"
	"github.com/redis/go-redis/v9"
)

// StartNotificationSubscriber forwards published notifications to the
// connections of their recipient until ctx is cancelled.
func StartNotificationSubscriber(ctx context.Context, client *redis.Client, hub *Hub) {
	if client == nil {
		log.Println("[WS] Redis client not set; notification subscriber not started")
		return
	}

	pubsub := client.Subscribe(ctx, rdb.NotificationChannel)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Printf("[WS] %s subscriber started", rdb.NotificationChannel)
		for {
			select {
			case <-ctx.Done():
				log.Println("[WS] notification subscriber stopped")
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				hub.dispatch(msg.Payload)
			}
		}
	}()
}

func (h *Hub) dispatch(payload string) {
	ev, err := notify.Decode(payload)
	if err != nil {
		log.Printf("[WS] invalid notification payload: %v", err)
		return
	}
	if !h.Online(ev.UserID) {
		return
	}
	h.SendToUser(ev.UserID, map[string]interface{}{
		"type":         "notification",
		"notification": ev.Notification,
	})
}
