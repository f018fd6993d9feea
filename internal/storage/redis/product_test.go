//go:build integration

package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/shop-api/internal/domain/product"
)

var rdb *redis.Client

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start redis: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			log.Printf("terminate redis: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	rdb = redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	defer func() { _ = rdb.Close() }()

	return m.Run()
}

// countingRepo serves a fixed catalog and counts lookups.
type countingRepo struct {
	product.Repository
	byID  map[string]product.Product
	gets  int
	wiped bool
}

func (r *countingRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.gets++
	p, ok := r.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (r *countingRepo) Update(_ context.Context, p *product.Product) error {
	r.byID[p.ID] = *p
	return nil
}

func (r *countingRepo) DeleteAll(_ context.Context) error {
	r.wiped = true
	return nil
}

func newCountingRepo() *countingRepo {
	return &countingRepo{byID: map[string]product.Product{
		"p1": {
			ID:           "p1",
			Name:         "Phone",
			Images:       []string{"/images/p1.jpg"},
			Price:        decimal.RequireFromString("599.99"),
			CountInStock: 7,
		},
	}}
}

func TestProductCache_ReadThrough(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, rdb.FlushDB(ctx).Err())

	repo := newCountingRepo()
	cache := NewProductCache(repo, rdb, time.Minute)

	first, err := cache.GetByID(ctx, "p1")
	require.NoError(t, err)
	second, err := cache.GetByID(ctx, "p1")
	require.NoError(t, err)

	assert.Equal(t, 1, repo.gets)
	assert.Equal(t, first.Name, second.Name)
	assert.True(t, first.Price.Equal(second.Price))

	ttl, err := rdb.TTL(ctx, productKey("p1")).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}

func TestProductCache_NotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, rdb.FlushDB(ctx).Err())

	repo := newCountingRepo()
	cache := NewProductCache(repo, rdb, time.Minute)

	for range 2 {
		_, err := cache.GetByID(ctx, "missing")
		require.ErrorIs(t, err, product.ErrNotFound)
	}
	assert.Equal(t, 2, repo.gets)
}

func TestProductCache_UpdateEvicts(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, rdb.FlushDB(ctx).Err())

	repo := newCountingRepo()
	cache := NewProductCache(repo, rdb, time.Minute)

	p, err := cache.GetByID(ctx, "p1")
	require.NoError(t, err)

	p.CountInStock = 1
	require.NoError(t, cache.Update(ctx, p))

	got, err := cache.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.CountInStock)
	assert.Equal(t, 2, repo.gets)
}

func TestProductCache_DeleteAllFlushes(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, rdb.FlushDB(ctx).Err())
	require.NoError(t, rdb.Set(ctx, "unrelated", "1", 0).Err())

	repo := newCountingRepo()
	cache := NewProductCache(repo, rdb, time.Minute)

	_, err := cache.GetByID(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, cache.DeleteAll(ctx))
	assert.True(t, repo.wiped)

	n, err := rdb.Exists(ctx, productKey("p1")).Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = rdb.Exists(ctx, "unrelated").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
