package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-api/internal/domain/auth"
	"github.com/xenking/shop-api/internal/domain/order"
)

const (
	orderColumns = `id, user_id, items, shipping_details, payment_method, payment_result,
		items_price, tax_price, shipping_price, total_price,
		is_paid, paid_at, is_delivered, delivered_at, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1
		ORDER BY created_at DESC, id`

	saveOrderSQL = `UPDATE orders SET payment_result = $2, is_paid = $3, paid_at = $4,
		is_delivered = $5, delivered_at = $6, updated_at = $7
		WHERE id = $1`

	hasOrderedSQL = `SELECT EXISTS (
		SELECT 1 FROM orders WHERE user_id = $1
		AND ($2 = '' OR items @> jsonb_build_array(jsonb_build_object('productId', $2::text)))
	)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Items, shipping details and the payment
// result are serialized to JSON for storage in JSONB columns.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	shipping, err := json.Marshal(o.ShippingDetails)
	if err != nil {
		return fmt.Errorf("marshaling shipping details: %w", err)
	}
	result, err := marshalPaymentResult(o.PaymentResult)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, items, shipping, o.PaymentMethod, result,
		o.ItemsPrice, o.TaxPrice, o.ShippingPrice, o.TotalPrice,
		o.IsPaid, o.PaidAt, o.IsDelivered, o.DeliveredAt, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return auth.ErrUnknownPrincipal
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// List returns every order, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListByUser returns the orders of one user, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Save writes the mutable status fields of an order.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	result, err := marshalPaymentResult(o.PaymentResult)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, saveOrderSQL,
		o.ID, result, o.IsPaid, o.PaidAt, o.IsDelivered, o.DeliveredAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// HasOrdered reports whether the user has an order, containing productID
// when it is not empty.
func (r *OrderRepository) HasOrdered(ctx context.Context, userID, productID string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, hasOrderedSQL, userID, productID).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking orders of %q: %w", userID, err)
	}
	return ok, nil
}

func marshalPaymentResult(pr *order.PaymentResult) ([]byte, error) {
	if pr == nil {
		return nil, nil
	}
	data, err := json.Marshal(pr)
	if err != nil {
		return nil, fmt.Errorf("marshaling payment result: %w", err)
	}
	return data, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o        order.Order
		items    []byte
		shipping []byte
		result   []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &items, &shipping, &o.PaymentMethod, &result,
		&o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.IsPaid, &o.PaidAt, &o.IsDelivered, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(shipping, &o.ShippingDetails); err != nil {
		return o, fmt.Errorf("unmarshaling shipping details: %w", err)
	}
	if result != nil {
		o.PaymentResult = new(order.PaymentResult)
		if err := json.Unmarshal(result, o.PaymentResult); err != nil {
			return o, fmt.Errorf("unmarshaling payment result: %w", err)
		}
	}
	return o, nil
}
