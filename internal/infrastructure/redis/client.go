package redis

import (
	"context"
	"fmt"
	"time"

	goRedis "github.com/redis/go-redis/v9"

	"github.com/fastygo/botgateway/internal/config"
)

const defaultTimeout = 2 * time.Second

// NewClient connects to the redis that holds health tick leases and pings it.
// It returns nil, nil when no URL is configured, which leaves every replica
// checking on its own.
func NewClient(cfg config.RedisConfig, name string) (*goRedis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := goRedis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse REDIS_URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts.ClientName = name
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout
	// one SETNX per tick
	opts.PoolSize = 2
	opts.MaxRetries = 1

	client := goRedis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}

	return client, nil
}
