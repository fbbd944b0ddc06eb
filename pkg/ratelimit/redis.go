package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindow shares one rate-limit budget between several client processes
// through a Redis counter that expires after the period (a fixed window).
// Use it when multiple instances hit the same upstream API key.
type RedisWindow struct {
	client   *redis.Client
	key      string
	maxCalls int64
	period   time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

var _ Limiter = (*RedisWindow)(nil)

// RedisOptions configure the connection and counter key of a RedisWindow.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Key is the counter key. Defaults to "datagov:ratelimit".
	Key string
}

// NewRedisWindow connects to Redis and verifies the connection with a ping.
func NewRedisWindow(opts RedisOptions, maxCalls int, period time.Duration) (*RedisWindow, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if opts.Key == "" {
		opts.Key = "datagov:ratelimit"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisWindow{
		client:   client,
		key:      opts.Key,
		maxCalls: int64(maxCalls),
		period:   period,
		sleep:    sleepContext,
	}, nil
}

// Wait increments the shared counter; whenever the counter is over capacity
// it sleeps out the remainder of the current window and tries again.
func (r *RedisWindow) Wait(ctx context.Context) error {
	for {
		pipe := r.client.TxPipeline()
		count := pipe.Incr(ctx, r.key)
		pipe.ExpireNX(ctx, r.key, r.period)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("ratelimit: redis incr: %w", err)
		}
		if count.Val() <= r.maxCalls {
			return nil
		}

		ttl, err := r.client.PTTL(ctx, r.key).Result()
		if err != nil {
			return fmt.Errorf("ratelimit: redis pttl: %w", err)
		}
		if ttl <= 0 {
			ttl = r.period
		}
		if err := r.sleep(ctx, ttl); err != nil {
			return err
		}
	}
}

// Close releases the Redis connection.
func (r *RedisWindow) Close() error {
	return r.client.Close()
}
