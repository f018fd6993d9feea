//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindow(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, rdb.FlushDB(ctx).Err())

	fw := NewFixedWindow(rdb, 2, time.Minute)
	now := time.Now().Truncate(time.Minute).Add(10 * time.Second)

	for want := 1; want >= 0; want-- {
		d, err := fw.Allow(ctx, "10.0.0.1", now)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, want, d.Remaining)
	}

	d, err := fw.Allow(ctx, "10.0.0.1", now)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, now.Truncate(time.Minute).Add(time.Minute), d.ResetAt)

	d, err = fw.Allow(ctx, "10.0.0.2", now)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = fw.Allow(ctx, "10.0.0.1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, d.Allowed, "next window starts fresh")

	ttl, err := rdb.TTL(ctx, fw.key("10.0.0.1", now.Truncate(time.Minute))).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}
