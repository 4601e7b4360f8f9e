// Package redis backs the per-IP request limiter.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dialTimeout = 3 * time.Second

type Config struct {
	Addr     string
	Password string
	DB       int
	// Timeout bounds the startup ping and every command; 3s when zero.
	Timeout time.Duration
}

// Connect returns a client that has answered a PING. Limiter calls sit on the
// request path, so read and write timeouts are kept as short as the dial.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = dialTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Checker is the readiness check for the limiter backend.
type Checker struct {
	client *redis.Client
}

func NewChecker(client *redis.Client) *Checker {
	return &Checker{client: client}
}

func (c *Checker) Name() string { return "redis" }

func (c *Checker) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
