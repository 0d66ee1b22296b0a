// Package redis owns the shared Redis connection used for notification
// pub/sub and auth rate-limit counters.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/imimarket/imimarket-backend/pkg/config"
	"github.com/imimarket/imimarket-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const keyNamespace = "imi"

var errNotInitialized = errors.New("redis client not initialized")

// Client wraps the connection helpers the platform needs.
type Client struct {
	conn *redis.Client
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// New opens a pooled connection and verifies it responds.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := buildOptions(cfg)
	if err != nil {
		return nil, err
	}

	conn := redis.NewClient(opts)
	if err := conn.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(ctx, "redis connection established")
	}
	return &Client{conn: conn}, nil
}

// buildOptions prefers a full URL; the address/password/db fields are the
// fallback for environments that configure redis piecemeal.
func buildOptions(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	default:
		return nil, errors.New("redis url or address is required")
	}

	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// IncrWithTTL increments the counter at key, starting the expiry window on
// the first hit so abandoned counters age out.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c.conn == nil {
		return 0, errNotInitialized
	}
	count, err := c.conn.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 && ttl > 0 {
		if err := c.conn.Expire(ctx, key, ttl).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Publish pushes a payload to subscribers of the given channel.
func (c *Client) Publish(ctx context.Context, channel string, payload any) error {
	if c.conn == nil {
		return errNotInitialized
	}
	return c.conn.Publish(ctx, channel, payload).Err()
}

// NotificationChannel returns the pub/sub channel streaming transports
// subscribe to for a user's notifications. An empty userID addresses the
// broadcast channel.
func (c *Client) NotificationChannel(userID string) string {
	if userID == "" {
		return namespaced("notify", "broadcast")
	}
	return namespaced("notify", "user", userID)
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.conn == nil {
		return errNotInitialized
	}
	return c.conn.Ping(ctx).Err()
}

// Close shuts down the pooled connections.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func namespaced(parts ...string) string {
	key := keyNamespace
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			key += ":" + part
		}
	}
	return key
}
