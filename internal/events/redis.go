package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// Channel is the Redis pub/sub channel events travel on.
	Channel        = "hackbot:events"
	publishTimeout = 5 * time.Second
)

// redisPayload is the message published to Redis. Origin lets an instance
// skip its own events, which it already delivered locally.
type redisPayload struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisBridge shares events between bot instances over Redis pub/sub.
type RedisBridge struct {
	client *redis.Client
	origin string
	logger *zap.Logger
}

// NewRedisBridge creates a bridge with a fresh instance id.
func NewRedisBridge(client *redis.Client, logger *zap.Logger) *RedisBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{client: client, origin: uuid.NewString(), logger: logger}
}

// Publish implements Publisher.
func (r *RedisBridge) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(redisPayload{Origin: r.origin, Event: e})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, Channel, body).Err()
}

// Run delivers events published by other instances to bus until ctx is
// done. It returns once the subscription is confirmed.
func (r *RedisBridge) Run(ctx context.Context, bus *Bus) error {
	pubsub := r.client.Subscribe(ctx, Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				e, remote := r.decode(msg.Payload)
				if remote {
					bus.Deliver(ctx, e)
				}
			}
		}
	}()
	r.logger.Info("event bridge subscribed", zap.String("channel", Channel), zap.String("origin", r.origin))
	return nil
}

// decode parses a payload and reports whether it came from another instance.
func (r *RedisBridge) decode(payload string) (Event, bool) {
	var p redisPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		r.logger.Warn("malformed event payload", zap.Error(err))
		return Event{}, false
	}
	return p.Event, p.Origin != r.origin
}
