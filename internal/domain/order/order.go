package order

import (
	"context"
	"time"

	"github.com/xenking/shop-api/internal/domain/cart"
)

// Order is an immutable purchase record. Only the paid and delivered flags
// change after creation, and only from false to true.
type Order struct {
	ID              string
	UserID          string
	Items           []Line
	ShippingDetails cart.ShippingDetails
	PaymentMethod   string
	PaymentResult   *PaymentResult
	ItemsPrice      float64
	TaxPrice        float64
	ShippingPrice   float64
	TotalPrice      float64
	IsPaid          bool
	PaidAt          *time.Time
	IsDelivered     bool
	DeliveredAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Line is a by-value copy of a purchased item.
type Line struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Qty       int     `json:"qty"`
	Image     string  `json:"image"`
	Price     float64 `json:"price"`
}

// PaymentResult is the confirmation reported by the payment provider.
type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"updateTime"`
	EmailAddress string `json:"emailAddress"`
	Provider     string `json:"provider,omitempty"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	Save(ctx context.Context, o *Order) error
	// HasOrdered reports whether userID has an order, containing productID
	// when it is not empty.
	HasOrdered(ctx context.Context, userID, productID string) (bool, error)
}
