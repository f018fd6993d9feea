package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-api/internal/domain/product"
)

const (
	productColumns = `id, name, brand, brand_logo, category, images, description,
		rating, num_reviews, price, count_in_stock, created_at, updated_at`

	keywordFilter = `($1 = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%'
		OR brand ILIKE '%' || $1 || '%' OR category ILIKE '%' || $1 || '%')`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products WHERE ` + keywordFilter + `
		ORDER BY created_at, id LIMIT $2 OFFSET $3`

	countProductsSQL = `SELECT count(*) FROM products WHERE ` + keywordFilter

	topRatedProductsSQL = `SELECT ` + productColumns + ` FROM products
		ORDER BY rating DESC, num_reviews DESC, id LIMIT $1`

	createProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	updateProductSQL = `UPDATE products SET name = $2, brand = $3, brand_logo = $4, category = $5,
		images = $6, description = $7, price = $8, count_in_stock = $9, updated_at = $10
		WHERE id = $1`

	deleteProductSQL     = `DELETE FROM products WHERE id = $1`
	deleteAllProductsSQL = `DELETE FROM products`

	listReviewsSQL = `SELECT id, product_id, user_id, name, rating, comment, created_at
		FROM reviews WHERE product_id = $1 ORDER BY created_at, id`

	createReviewSQL = `INSERT INTO reviews (id, product_id, user_id, name, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	updateProductRatingSQL = `UPDATE products SET rating = $2, num_reviews = $3, updated_at = $4
		WHERE id = $1`
)

var productCopyColumns = []string{
	"id", "name", "brand", "brand_logo", "category", "images", "description",
	"rating", "num_reviews", "price", "count_in_stock", "created_at", "updated_at",
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// List returns one page of products matching the filter and the total
// number of matches.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, countProductsSQL, f.Keyword).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	rows, err := r.pool.Query(ctx, listProductsSQL, f.Keyword, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	return products, total, nil
}

// TopRated returns up to limit products ordered by rating.
func (r *ProductRepository) TopRated(ctx context.Context, limit int) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, topRatedProductsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing top rated products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, createProductSQL, productValues(p)...)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// CreateMany bulk-inserts products with COPY.
func (r *ProductRepository) CreateMany(ctx context.Context, products []product.Product) error {
	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"products"},
		productCopyColumns,
		pgx.CopyFromSlice(len(products), func(i int) ([]any, error) {
			return productValues(&products[i]), nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copying %d products: %w", len(products), err)
	}
	return nil
}

// Update overwrites the editable fields of a product.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Brand, p.BrandLogo, p.Category,
		p.Images, p.Description, p.Price, p.CountInStock, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes a product and its reviews.
func (r *ProductRepository) Delete(ctx context.Context, id string) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return 0, fmt.Errorf("deleting product %q: %w", id, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAll removes every product and review.
func (r *ProductRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, deleteAllProductsSQL); err != nil {
		return fmt.Errorf("deleting all products: %w", err)
	}
	return nil
}

// Reviews returns the reviews of a product in insertion order.
func (r *ProductRepository) Reviews(ctx context.Context, productID string) ([]product.Review, error) {
	rows, err := r.pool.Query(ctx, listReviewsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing reviews of %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[product.Review])
}

// AddReview inserts the review and stores the product's recomputed rating in
// one transaction. A second review by the same user maps to
// product.ErrAlreadyReviewed.
func (r *ProductRepository) AddReview(ctx context.Context, rv *product.Review, p *product.Product) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, createReviewSQL,
			rv.ID, rv.ProductID, rv.UserID, rv.Name, rv.Rating, rv.Comment, rv.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return product.ErrAlreadyReviewed
			}
			return fmt.Errorf("inserting review: %w", err)
		}

		tag, err := tx.Exec(ctx, updateProductRatingSQL, p.ID, p.Rating, p.NumReviews, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("updating rating: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return product.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, product.ErrAlreadyReviewed) || errors.Is(err, product.ErrNotFound) {
			return err
		}
		return fmt.Errorf("adding review to %q: %w", rv.ProductID, err)
	}
	return nil
}

func productValues(p *product.Product) []any {
	return []any{
		p.ID, p.Name, p.Brand, p.BrandLogo, p.Category, p.Images, p.Description,
		p.Rating, p.NumReviews, p.Price, p.CountInStock, p.CreatedAt, p.UpdatedAt,
	}
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Brand, &p.BrandLogo, &p.Category, &p.Images, &p.Description,
		&p.Rating, &p.NumReviews, &p.Price, &p.CountInStock, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
