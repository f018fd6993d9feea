package cart

import "github.com/shopspring/decimal"

// Pricing constants.
const (
	TaxRate               = 0.15
	FreeShippingThreshold = 100.0
	ShippingFee           = 10.0
)

// Prices holds the derived totals of a list of lines.
type Prices struct {
	Items    float64
	Tax      float64
	Shipping float64
	Total    float64
}

// Calculate prices lines. Items and Total accumulate as float64 without
// rounding; only Tax is rounded half-up to cents. Shipping is free above
// FreeShippingThreshold. An empty list prices to all zeros, with no shipping
// charge, so a cleared cart shows a zero total.
func Calculate(lines []Line) Prices {
	if len(lines) == 0 {
		return Prices{}
	}

	var items float64
	for _, l := range lines {
		items += l.Price * float64(l.Qty)
	}

	tax := decimal.NewFromFloat(TaxRate * items).Round(2).InexactFloat64()

	shipping := ShippingFee
	if items > FreeShippingThreshold {
		shipping = 0
	}

	return Prices{
		Items:    items,
		Tax:      tax,
		Shipping: shipping,
		Total:    items + tax + shipping,
	}
}
