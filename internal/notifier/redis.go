package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"media-pipeline/internal/logging"
)

// Redis is a notifier backend for multi-process deployments. Events are
// published to one Redis pub/sub channel; a forwarder goroutine feeds
// received events into a local in-memory bus, so Subscribe behaves the
// same as with the Memory backend regardless of which process published.
type Redis struct {
	rdb     *goredis.Client
	channel string
	local   *Memory
	cancel  context.CancelFunc
}

// NewRedis connects to Redis at addr and starts the event forwarder.
func NewRedis(addr, channel string) (*Redis, error) {
	if channel == "" {
		channel = "media-pipeline:events"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Redis{
		rdb:     rdb,
		channel: channel,
		local:   NewMemory(),
		cancel:  cancel,
	}

	if err := r.startForwarder(ctx); err != nil {
		cancel()
		_ = rdb.Close()
		return nil, err
	}

	logging.Info("Redis notifier connected to %s (channel %s)", addr, channel)
	return r, nil
}

// Publish sends the event over the Redis channel. Local subscribers
// receive it through the forwarder like every other process.
func (r *Redis) Publish(scope, name string, payload any) {
	raw, err := json.Marshal(Event{Scope: scope, Name: name, Payload: payload})
	if err != nil {
		logging.Error("notifier: failed to marshal %s event: %v", name, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.rdb.Publish(ctx, r.channel, raw).Err(); err != nil {
		logging.Error("notifier: redis publish failed: %v", err)
	}
}

// Subscribe registers a local subscriber for the scope.
func (r *Redis) Subscribe(scope string) (<-chan Event, func()) {
	return r.local.Subscribe(scope)
}

func (r *Redis) startForwarder(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)

	// Ensures the subscription is established before returning.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					logging.Warn("notifier: bad redis event payload: %v", err)
					continue
				}
				r.local.Publish(ev.Scope, ev.Name, ev.Payload)
			}
		}
	}()

	return nil
}

// Close stops the forwarder and closes the Redis connection.
func (r *Redis) Close() error {
	r.cancel()
	return r.rdb.Close()
}
