package catalogio

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shop-api/db"
)

func TestParseArray_Seed(t *testing.T) {
	products, err := ParseArray(db.SeedProducts)
	require.NoError(t, err)
	require.NotEmpty(t, products)

	for _, p := range products {
		assert.NoError(t, p.Validate(), p.Name)
		assert.Empty(t, p.ID)
		assert.NotEmpty(t, p.Images, p.Name)
	}
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("89.99")))
}

func TestParseArray_Invalid(t *testing.T) {
	_, err := ParseArray([]byte(`{"name":"not an array"}`))
	require.Error(t, err)
}

func TestRecord(t *testing.T) {
	r := Record{Name: "  Echo Dot ", Brand: "Amazon", Price: decimal.RequireFromString("29.99")}
	p := r.Product()
	assert.Equal(t, "Echo Dot", p.Name)
	assert.Equal(t, "Amazon", p.Brand)

	assert.Equal(t, r.Key(), Record{Name: "echo dot", Brand: " AMAZON"}.Key())
	assert.NotEqual(t, r.Key(), Record{Name: "Echo Dot", Brand: "Google"}.Key())
}

func TestStreamLines(t *testing.T) {
	input := strings.Join([]string{
		`{"name":"Mouse","brand":"Logitech","price":"19.99","countInStock":3}`,
		``,
		`{"name":`,
		`{"name":"Keyboard","brand":"Keychron","price":"89.00"}`,
	}, "\n")

	t.Run("SkipBad", func(t *testing.T) {
		var names []string
		var bad []*LineError
		err := StreamLines(context.Background(), strings.NewReader(input),
			func(r Record) error {
				names = append(names, r.Name)
				return nil
			},
			func(e *LineError) { bad = append(bad, e) },
		)
		require.NoError(t, err)
		assert.Equal(t, []string{"Mouse", "Keyboard"}, names)
		require.Len(t, bad, 1)
		assert.Equal(t, 3, bad[0].Line)
		assert.Contains(t, bad[0].Error(), "line 3")
	})
	t.Run("AbortOnBad", func(t *testing.T) {
		err := StreamLines(context.Background(), strings.NewReader(input),
			func(Record) error { return nil }, nil)
		var lineErr *LineError
		require.ErrorAs(t, err, &lineErr)
		assert.Equal(t, 3, lineErr.Line)
	})
	t.Run("CallbackError", func(t *testing.T) {
		stop := errors.New("stop")
		err := StreamLines(context.Background(), strings.NewReader(input),
			func(Record) error { return stop }, nil)
		require.ErrorIs(t, err, stop)
	})
	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := StreamLines(ctx, strings.NewReader(input),
			func(Record) error { return nil }, nil)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestStreamLines_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	for range 3 {
		_, err := gz.Write([]byte(`{"name":"Lamp","price":"12.50"}` + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())

	r, err := pgzip.NewReader(&buf)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	var count int
	require.NoError(t, StreamLines(context.Background(), r, func(rec Record) error {
		count++
		assert.True(t, rec.Price.Equal(decimal.RequireFromString("12.5")))
		return nil
	}, nil))
	assert.Equal(t, 3, count)
}

func TestDedup(t *testing.T) {
	d := NewDedup(1000, 0.001)
	assert.False(t, d.Seen("a"))
	assert.True(t, d.Seen("a"))
	assert.False(t, d.Seen("b"))

	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !d.Seen("shared") {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fresh)
}
