package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/shop-api/internal/domain/auth"
	"github.com/xenking/shop-api/internal/domain/cart"
)

// Sentinel errors for order operations.
var (
	ErrNotFound   = fmt.Errorf("order not found")
	ErrEmptyItems = fmt.Errorf("no order items received")
)

// CreateRequest holds the caller-supplied snapshot for a new order. Its
// values are stored as given.
type CreateRequest struct {
	Items           []Line
	ShippingDetails cart.ShippingDetails
	PaymentMethod   string
	Prices          cart.Prices
}

// Service encapsulates order lifecycle business logic.
type Service struct {
	orders Repository
	now    func() time.Time
}

// NewService creates an order Service.
func NewService(orders Repository) *Service {
	return &Service{
		orders: orders,
		now:    time.Now,
	}
}

// Create persists a new order for the principal.
func (s *Service) Create(ctx context.Context, owner auth.Principal, req CreateRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	now := s.now()
	o := &Order{
		ID:              uuid.New().String(),
		UserID:          owner.ID,
		Items:           req.Items,
		ShippingDetails: req.ShippingDetails,
		PaymentMethod:   req.PaymentMethod,
		ItemsPrice:      req.Prices.Items,
		TaxPrice:        req.Prices.Tax,
		ShippingPrice:   req.Prices.Shipping,
		TotalPrice:      req.Prices.Total,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return o, nil
}

// Get returns the order with the given ID.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// List returns every order.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// ListForOwner returns the orders placed by the principal.
func (s *Service) ListForOwner(ctx context.Context, owner auth.Principal) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("list user orders: %w", err)
	}
	return orders, nil
}

// MarkPaid flags the order as paid and records result. Repeated calls keep
// the order paid and overwrite the result and payment time.
func (s *Service) MarkPaid(ctx context.Context, id string, result PaymentResult) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o.IsPaid = true
	o.PaidAt = &now
	o.PaymentResult = &result
	o.UpdatedAt = now

	if err := s.orders.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	return o, nil
}

// MarkDelivered flags the order as delivered.
func (s *Service) MarkDelivered(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o.IsDelivered = true
	o.DeliveredAt = &now
	o.UpdatedAt = now

	if err := s.orders.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	return o, nil
}

// HasOrdered reports whether the user placed an order, containing productID
// when it is not empty. It satisfies product.PurchaseChecker.
func (s *Service) HasOrdered(ctx context.Context, userID, productID string) (bool, error) {
	ok, err := s.orders.HasOrdered(ctx, userID, productID)
	if err != nil {
		return false, fmt.Errorf("check orders: %w", err)
	}
	return ok, nil
}
