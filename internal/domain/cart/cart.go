package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/shop-api/internal/domain/product"
)

// Sentinel errors for cart operations.
var (
	// ErrNotFound is returned by a Repository when the owner has no cart yet.
	ErrNotFound = errors.New("cart not found")
	// ErrAlreadyExists is returned by Repository.Create when the owner already has a cart.
	ErrAlreadyExists = errors.New("cart already exists")
	// ErrConflict is returned by Repository.Save when the cart changed since it was loaded.
	ErrConflict = errors.New("cart was modified concurrently, retry")
	// ErrItemNotFound is returned when the cart has no line for the product.
	ErrItemNotFound = errors.New("item not found in cart")
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrInvalidShipping is returned when a shipping field is missing.
	ErrInvalidShipping = errors.New("address, city, postal code and country are required")
	// ErrInvalidPaymentMethod is returned for an unsupported payment method.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)

// InsufficientStockError indicates the requested quantity exceeds available stock.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("only %d of product %s in stock, requested %d", e.Available, e.ProductID, e.Requested)
}

// Supported payment methods.
const (
	PaymentPayPal = "PayPal"
	PaymentStripe = "Stripe"

	DefaultPaymentMethod = PaymentPayPal
)

// Cart is the per-user shopping cart aggregate. Prices are derived from Items
// by Recalculate and never set directly.
type Cart struct {
	ID              string
	OwnerID         string
	Items           []Line
	ShippingDetails *ShippingDetails
	PaymentMethod   string
	ItemsPrice      float64
	TaxPrice        float64
	ShippingPrice   float64
	TotalPrice      float64
	// Version is bumped on every successful save.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Line is a product snapshot captured when the item was added.
type Line struct {
	ProductID    string  `json:"productId"`
	Name         string  `json:"name"`
	Image        string  `json:"image"`
	Price        float64 `json:"price"`
	CountInStock int     `json:"countInStock"`
	Qty          int     `json:"qty"`
}

// ShippingDetails is the delivery address attached to a cart or order.
type ShippingDetails struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Line returns the index of the line for productID, or -1.
func (c *Cart) Line(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Recalculate refreshes the derived price fields from Items.
func (c *Cart) Recalculate() {
	p := Calculate(c.Items)
	c.ItemsPrice = p.Items
	c.TaxPrice = p.Tax
	c.ShippingPrice = p.Shipping
	c.TotalPrice = p.Total
}

// Repository defines persistence operations for carts.
type Repository interface {
	GetByOwner(ctx context.Context, ownerID string) (*Cart, error)
	Create(ctx context.Context, c *Cart) error
	// Save persists c if its stored version still equals c.Version and
	// increments c.Version on success.
	Save(ctx context.Context, c *Cart) error
}

// Catalog is the product lookup the cart needs for stock and snapshots.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}
