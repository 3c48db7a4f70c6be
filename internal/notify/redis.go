package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishpool/internal/models"
)

// DefaultRedisChannel is the pub/sub channel used when none is configured.
const DefaultRedisChannel = "wishpool.notifications"

// RedisChannel publishes notification events as JSON on a Redis pub/sub
// channel for real-time consumers.
type RedisChannel struct {
	rdb     *goredis.Client
	channel string
	logger  *logrus.Logger
}

// NewRedisChannel connects to addr and verifies the connection.
func NewRedisChannel(ctx context.Context, addr, channel string, logger *logrus.Logger) (*RedisChannel, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if channel == "" {
		channel = DefaultRedisChannel
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.WithFields(logrus.Fields{"addr": addr, "channel": channel}).Info("Redis notification channel connected")
	return &RedisChannel{rdb: rdb, channel: channel, logger: logger}, nil
}

func (c *RedisChannel) Name() string { return "redis" }

// Deliver publishes the event regardless of whether anyone is subscribed.
func (c *RedisChannel) Deliver(ctx context.Context, _ *models.User, n *models.Notification) error {
	raw, err := json.Marshal(NewEvent(n))
	if err != nil {
		return fmt.Errorf("failed to encode notification event: %w", err)
	}
	if err := c.rdb.Publish(ctx, c.channel, raw).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Subscribe calls onEvent for every event published on the channel until
// ctx is cancelled. It returns once the subscription is active.
func (c *RedisChannel) Subscribe(ctx context.Context, onEvent func(Event)) error {
	sub := c.rdb.Subscribe(ctx, c.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", c.channel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					c.logger.WithError(err).Warn("Bad notification payload on redis channel")
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

// Close closes the Redis client.
func (c *RedisChannel) Close() error {
	return c.rdb.Close()
}
