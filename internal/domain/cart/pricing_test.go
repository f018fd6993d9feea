package cart

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		want  Prices
	}{
		{
			name:  "empty",
			lines: nil,
			want:  Prices{},
		},
		{
			name:  "free shipping",
			lines: []Line{{Price: 60, Qty: 2}},
			want:  Prices{Items: 120, Tax: 18, Shipping: 0, Total: 138},
		},
		{
			name:  "paid shipping",
			lines: []Line{{Price: 20, Qty: 1}},
			want:  Prices{Items: 20, Tax: 3, Shipping: 10, Total: 33},
		},
		{
			name:  "exactly at threshold",
			lines: []Line{{Price: 50, Qty: 2}},
			want:  Prices{Items: 100, Tax: 15, Shipping: 10, Total: 125},
		},
		{
			name:  "just above threshold",
			lines: []Line{{Price: 100.4, Qty: 1}},
			want:  Prices{Items: 100.4, Tax: 15.06, Shipping: 0},
		},
		{
			name:  "tax rounds up",
			lines: []Line{{Price: 19.99, Qty: 1}},
			want:  Prices{Items: 19.99, Tax: 3, Shipping: 10},
		},
		{
			name:  "tax rounds down",
			lines: []Line{{Price: 12.34, Qty: 1}},
			want:  Prices{Items: 12.34, Tax: 1.85, Shipping: 10},
		},
		{
			name:  "several lines",
			lines: []Line{{Price: 10.5, Qty: 3}, {Price: 4.25, Qty: 2}},
			want:  Prices{Items: 40, Tax: 6, Shipping: 10, Total: 56},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.lines)
			assert.Equal(t, tt.want.Items, got.Items)
			assert.Equal(t, tt.want.Tax, got.Tax)
			assert.Equal(t, tt.want.Shipping, got.Shipping)
			if tt.want.Total != 0 {
				assert.Equal(t, tt.want.Total, got.Total)
			}
			assert.Equal(t, got.Items+got.Tax+got.Shipping, got.Total)
		})
	}
}

func TestCalculate_Invariants(t *testing.T) {
	prices := []float64{0.01, 0.99, 1.5, 3.33, 9.99, 33.33, 49.99, 99.99, 100, 100.01, 249.95, 1234.56}

	for _, price := range prices {
		for qty := 1; qty <= 4; qty++ {
			got := Calculate([]Line{{Price: price, Qty: qty}})

			assert.Equal(t, got.Items+got.Tax+got.Shipping, got.Total)

			if got.Items > FreeShippingThreshold {
				assert.Zero(t, got.Shipping)
			} else {
				assert.Equal(t, ShippingFee, got.Shipping)
			}

			// Tax is whole cents and within half a cent of the exact rate.
			cents := got.Tax * 100
			assert.InDelta(t, math.Round(cents), cents, 1e-6)
			assert.InDelta(t, TaxRate*got.Items, got.Tax, 0.005+1e-9)
		}
	}
}
