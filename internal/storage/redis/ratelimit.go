package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xenking/shop-api/pkg/httpmiddleware"
)

var _ httpmiddleware.Limiter = (*FixedWindow)(nil)

// FixedWindow is a rate limiter shared by every API replica. Each key gets
// one counter per window, created with INCR and expired after the window.
type FixedWindow struct {
	rdb    redis.Cmdable
	max    int
	period time.Duration
}

// NewFixedWindow allows max requests per period and key.
func NewFixedWindow(rdb redis.Cmdable, max int, period time.Duration) *FixedWindow {
	return &FixedWindow{rdb: rdb, max: max, period: period}
}

func (f *FixedWindow) key(key string, start time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", key, start.Unix())
}

// Allow implements httpmiddleware.Limiter.
func (f *FixedWindow) Allow(ctx context.Context, key string, now time.Time) (httpmiddleware.Decision, error) {
	start := now.Truncate(f.period)
	k := f.key(key, start)

	var incr *redis.IntCmd
	if _, err := f.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, f.period)
		return nil
	}); err != nil {
		return httpmiddleware.Decision{}, fmt.Errorf("incrementing %s: %w", k, err)
	}

	n := int(incr.Val())
	return httpmiddleware.Decision{
		Allowed:   n <= f.max,
		Limit:     f.max,
		Remaining: max(f.max-n, 0),
		ResetAt:   start.Add(f.period),
	}, nil
}
