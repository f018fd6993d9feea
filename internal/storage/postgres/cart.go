package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-api/internal/domain/auth"
	"github.com/xenking/shop-api/internal/domain/cart"
)

const (
	getCartByOwnerSQL = `SELECT id, owner_id, items, shipping_details, payment_method,
		items_price, tax_price, shipping_price, total_price, version, created_at, updated_at
		FROM carts WHERE owner_id = $1`

	createCartSQL = `INSERT INTO carts (id, owner_id, items, shipping_details, payment_method,
		items_price, tax_price, shipping_price, total_price, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	saveCartSQL = `UPDATE carts SET items = $3, shipping_details = $4, payment_method = $5,
		items_price = $6, tax_price = $7, shipping_price = $8, total_price = $9,
		version = version + 1, updated_at = $10
		WHERE id = $1 AND version = $2`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Line
// items and shipping details are stored as JSONB.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetByOwner returns the cart of the given user.
func (r *CartRepository) GetByOwner(ctx context.Context, ownerID string) (*cart.Cart, error) {
	rows, err := r.pool.Query(ctx, getCartByOwnerSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("getting cart of %q: %w", ownerID, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart of %q: %w", ownerID, err)
	}
	return &c, nil
}

// Create inserts a new cart. It returns cart.ErrAlreadyExists when the owner
// already has one.
func (r *CartRepository) Create(ctx context.Context, c *cart.Cart) error {
	items, shipping, err := marshalCart(c)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, createCartSQL,
		c.ID, c.OwnerID, items, shipping, c.PaymentMethod,
		c.ItemsPrice, c.TaxPrice, c.ShippingPrice, c.TotalPrice,
		c.Version, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return cart.ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return auth.ErrUnknownPrincipal
		}
		return fmt.Errorf("creating cart %q: %w", c.ID, err)
	}
	return nil
}

// Save writes c if the stored version still matches c.Version, then bumps
// c.Version. A mismatch returns cart.ErrConflict.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	items, shipping, err := marshalCart(c)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, saveCartSQL,
		c.ID, c.Version, items, shipping, c.PaymentMethod,
		c.ItemsPrice, c.TaxPrice, c.ShippingPrice, c.TotalPrice, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving cart %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrConflict
	}
	c.Version++
	return nil
}

func marshalCart(c *cart.Cart) (items, shipping []byte, err error) {
	lines := c.Items
	if lines == nil {
		lines = []cart.Line{}
	}
	items, err = json.Marshal(lines)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling cart items: %w", err)
	}
	if c.ShippingDetails != nil {
		shipping, err = json.Marshal(c.ShippingDetails)
		if err != nil {
			return nil, nil, fmt.Errorf("marshaling shipping details: %w", err)
		}
	}
	return items, shipping, nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var (
		c        cart.Cart
		items    []byte
		shipping []byte
	)
	err := row.Scan(
		&c.ID, &c.OwnerID, &items, &shipping, &c.PaymentMethod,
		&c.ItemsPrice, &c.TaxPrice, &c.ShippingPrice, &c.TotalPrice,
		&c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(items, &c.Items); err != nil {
		return c, fmt.Errorf("unmarshaling cart items: %w", err)
	}
	if c.Items == nil {
		c.Items = []cart.Line{}
	}
	if shipping != nil {
		c.ShippingDetails = new(cart.ShippingDetails)
		if err := json.Unmarshal(shipping, c.ShippingDetails); err != nil {
			return c, fmt.Errorf("unmarshaling shipping details: %w", err)
		}
	}
	return c, nil
}
