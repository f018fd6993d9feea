// Package redis provides a Redis read-through cache in front of the
// product catalog.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/shop-api/internal/domain/product"
)

// DefaultTTL is used when NewProductCache receives a non-positive TTL.
const DefaultTTL = 5 * time.Minute

const keyPrefix = "product:"

var _ product.Repository = (*ProductCache)(nil)

// ProductCache caches product.Repository GetByID lookups in Redis. Writes go
// to the underlying repository and evict the affected keys. Cache failures
// are logged and never fail the request.
type ProductCache struct {
	product.Repository

	rdb redis.Cmdable
	ttl time.Duration
}

// NewProductCache wraps next with a cache stored in rdb.
func NewProductCache(next product.Repository, rdb redis.Cmdable, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ProductCache{Repository: next, rdb: rdb, ttl: ttl}
}

func productKey(id string) string {
	return keyPrefix + id
}

// GetByID returns the cached product or loads and caches it.
func (c *ProductCache) GetByID(ctx context.Context, id string) (*product.Product, error) {
	key := productKey(id)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p product.Product
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		zctx.From(ctx).Warn("Corrupt product cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		zctx.From(ctx).Warn("Product cache read failed", zap.String("key", key), zap.Error(err))
	}

	p, err := c.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			zctx.From(ctx).Warn("Product cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return p, nil
}

// Update writes through and evicts the product.
func (c *ProductCache) Update(ctx context.Context, p *product.Product) error {
	if err := c.Repository.Update(ctx, p); err != nil {
		return err
	}
	c.evict(ctx, p.ID)
	return nil
}

// Delete removes the product and evicts it.
func (c *ProductCache) Delete(ctx context.Context, id string) (int64, error) {
	n, err := c.Repository.Delete(ctx, id)
	if err != nil {
		return 0, err
	}
	c.evict(ctx, id)
	return n, nil
}

// AddReview stores the review and evicts the reviewed product.
func (c *ProductCache) AddReview(ctx context.Context, r *product.Review, p *product.Product) error {
	if err := c.Repository.AddReview(ctx, r, p); err != nil {
		return err
	}
	c.evict(ctx, p.ID)
	return nil
}

// DeleteAll empties the catalog and every cached product.
func (c *ProductCache) DeleteAll(ctx context.Context) error {
	if err := c.Repository.DeleteAll(ctx); err != nil {
		return err
	}
	if err := c.flush(ctx); err != nil {
		zctx.From(ctx).Warn("Product cache flush failed", zap.Error(err))
	}
	return nil
}

// Ping checks the Redis connection.
func (c *ProductCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *ProductCache) evict(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, productKey(id)).Err(); err != nil {
		zctx.From(ctx).Warn("Product cache evict failed", zap.String("id", id), zap.Error(err))
	}
}

func (c *ProductCache) flush(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("scanning product keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("deleting product keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
