package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/internal/adapters/config"
	"github.com/vantage-intel/vantage/pkg/logger"
)

// Client provides distributed job locks over the redlock algorithm, plus a
// plain connection for health probes. Horizontally scaled deployments use
// it so only one instance runs a given scheduler job; single instances run
// without it.
type Client struct {
	locks *redlock.RedLock
	conn  *redis.Client
	log   *zap.Logger
}

func New(cfg *config.RedisConfig) (*Client, error) {
	addr := cfg.RedisAddr()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// A cluster deployment would list every node here.
	locks, err := redlock.NewRedLock(ctx, []string{"tcp://" + addr})
	if err != nil {
		return nil, fmt.Errorf("failed to create redlock manager: %w", err)
	}

	conn := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := conn.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log := logger.Named("redis")
	log.Info("redis lock backend initialized", zap.String("address", addr))

	return &Client{locks: locks, conn: conn, log: log}, nil
}

// Acquire takes the named job lock. It returns false when another instance
// holds the name or the backend is unreachable; the caller skips its tick
// and retries on the next one. The lock renews itself until released, so a
// job running past the TTL keeps its exclusivity.
func (c *Client) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), bool) {
	key := "job:lock:" + name

	expiry, err := c.locks.Lock(ctx, key, ttl)
	if err != nil || expiry <= 0 {
		c.log.Debug("job lock held elsewhere",
			zap.String("lock", key),
			zap.Error(err),
		)
		return nil, false
	}

	stop := make(chan struct{})
	go c.renew(key, ttl, stop)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := c.locks.UnLock(unlockCtx, key); err != nil {
				// An expired lock unlocks with an error; the TTL already freed it.
				c.log.Debug("job lock release",
					zap.String("lock", key),
					zap.Error(err),
				)
			}
		})
	}
	return release, true
}

// renew extends the lock at two thirds of its TTL until released. The
// redlock API has no extend call, so renewal is an unlock and relock.
func (c *Client) renew(key string, ttl time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(ttl * 2 / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err := c.locks.UnLock(ctx, key)
			if err == nil {
				var expiry time.Duration
				expiry, err = c.locks.Lock(ctx, key, ttl)
				if err == nil && expiry <= 0 {
					err = fmt.Errorf("invalid expiry %v", expiry)
				}
			}
			cancel()
			if err != nil {
				c.log.Warn("job lock lost during renewal",
					zap.String("lock", key),
					zap.Error(err),
				)
				return
			}
			c.log.Debug("job lock renewed", zap.String("lock", key))
		}
	}
}

// Health pings the backend.
func (c *Client) Health(ctx context.Context) error {
	if err := c.conn.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close shuts the probe connection; redlock connections close on their own.
func (c *Client) Close() error {
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}
	return nil
}
