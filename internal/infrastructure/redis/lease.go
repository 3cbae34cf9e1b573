package redis

import (
	"context"
	"strconv"
	"time"

	goRedis "github.com/redis/go-redis/v9"
)

const defaultLeasePrefix = "botgateway:health:tick"

// Lease lets one gateway replica claim a scheduled health check. Each slot has
// its own key, so a claim never blocks the next slot. Keys expire on their own.
type Lease struct {
	client goRedis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewLease(client goRedis.Cmdable, prefix string, ttl time.Duration) *Lease {
	if prefix == "" {
		prefix = defaultLeasePrefix
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Lease{client: client, prefix: prefix, ttl: ttl}
}

// Acquire claims slot for owner. It reports false when another replica already
// claimed the same slot.
func (l *Lease) Acquire(ctx context.Context, slot time.Time, owner string) (bool, error) {
	return l.client.SetNX(ctx, l.key(slot), owner, l.ttl).Result()
}

func (l *Lease) key(slot time.Time) string {
	return l.prefix + ":" + strconv.FormatInt(slot.Unix(), 10)
}
