package cart

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/shop-api/internal/domain/auth"
)

// Service encapsulates cart mutation and pricing business logic.
type Service struct {
	carts   Repository
	catalog Catalog
	now     func() time.Time
}

// NewService creates a cart Service.
func NewService(carts Repository, catalog Catalog) *Service {
	return &Service{
		carts:   carts,
		catalog: catalog,
		now:     time.Now,
	}
}

// Get returns the principal's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, owner auth.Principal) (*Cart, error) {
	c, err := s.carts.GetByOwner(ctx, owner.ID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "get cart")
	}

	now := s.now()
	c = &Cart{
		ID:            uuid.New().String(),
		OwnerID:       owner.ID,
		Items:         []Line{},
		PaymentMethod: DefaultPaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.carts.Create(ctx, c)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, ErrAlreadyExists):
		// Lost a concurrent first read; use the winner's cart.
		c, err = s.carts.GetByOwner(ctx, owner.ID)
		if err != nil {
			return nil, errors.Wrap(err, "get cart")
		}
		return c, nil
	default:
		return nil, errors.Wrap(err, "create cart")
	}
}

// AddItem puts qty units of the product into the cart. An existing line has
// its quantity replaced, not incremented. The quantity is checked against
// live catalog stock.
func (s *Service) AddItem(ctx context.Context, owner auth.Principal, productID string, qty int) (*Cart, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if qty > p.CountInStock {
		return nil, &InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: p.CountInStock,
		}
	}

	c, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}

	if i := c.Line(productID); i >= 0 {
		c.Items[i].Qty = qty
	} else {
		c.Items = append(c.Items, Line{
			ProductID:    p.ID,
			Name:         p.Name,
			Image:        p.PrimaryImage(),
			Price:        p.Price.InexactFloat64(),
			CountInStock: p.CountInStock,
			Qty:          qty,
		})
	}

	return s.save(ctx, c)
}

// UpdateItemQty sets the quantity of an existing line. The quantity is
// checked against the stock captured when the line was added.
func (s *Service) UpdateItemQty(ctx context.Context, owner auth.Principal, productID string, qty int) (*Cart, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}

	i := c.Line(productID)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	if qty > c.Items[i].CountInStock {
		return nil, &InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: c.Items[i].CountInStock,
		}
	}
	c.Items[i].Qty = qty

	return s.save(ctx, c)
}

// RemoveItem drops the line for productID. Removing an absent line is not an error.
func (s *Service) RemoveItem(ctx context.Context, owner auth.Principal, productID string) (*Cart, error) {
	c, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}

	c.Items = slices.DeleteFunc(c.Items, func(l Line) bool {
		return l.ProductID == productID
	})

	return s.save(ctx, c)
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, owner auth.Principal) (*Cart, error) {
	c, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}

	c.Items = []Line{}

	return s.save(ctx, c)
}

func (s *Service) save(ctx context.Context, c *Cart) (*Cart, error) {
	c.Recalculate()
	c.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, c); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// ValidateShippingDetails checks that every address field is present.
func ValidateShippingDetails(d ShippingDetails) (ShippingDetails, error) {
	for _, v := range []string{d.Address, d.City, d.PostalCode, d.Country} {
		if strings.TrimSpace(v) == "" {
			return ShippingDetails{}, ErrInvalidShipping
		}
	}
	return d, nil
}

// ValidatePaymentMethod checks that method is a supported payment method.
func ValidatePaymentMethod(method string) (string, error) {
	switch method {
	case PaymentPayPal, PaymentStripe:
		return method, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}
