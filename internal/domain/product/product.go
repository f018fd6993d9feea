package product

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog and review operations.
var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrAlreadyReviewed is returned when the author already reviewed the product.
	ErrAlreadyReviewed = errors.New("product already reviewed")
	// ErrNotPurchased is returned when the author has no qualifying order.
	ErrNotPurchased = errors.New("you can only review products you have purchased")
	// ErrInvalidRating is returned when a rating falls outside [MinRating, MaxRating].
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// Rating bounds accepted by AddReview.
const (
	MinRating = 1
	MaxRating = 5
)

// ValidationError reports an invalid product attribute.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID           string
	Name         string
	Brand        string
	BrandLogo    string
	Category     string
	Images       []string
	Description  string
	Rating       float64
	NumReviews   int
	Price        decimal.Decimal
	CountInStock int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PrimaryImage returns the first product image, or "" when there is none.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Review is a rating left by a user on a product.
type Review struct {
	ID        string
	ProductID string
	UserID    string
	Name      string
	Rating    float64
	Comment   string
	CreatedAt time.Time
}

// Filter narrows a catalog listing. Keyword matches name, description, brand
// or category case-insensitively.
type Filter struct {
	Keyword string
	Limit   int
	Offset  int
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	// List returns one page of products matching f and the total match count.
	List(ctx context.Context, f Filter) ([]Product, int, error)
	TopRated(ctx context.Context, limit int) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	CreateMany(ctx context.Context, products []Product) error
	Update(ctx context.Context, p *Product) error
	// Delete removes a product and reports how many rows were affected.
	Delete(ctx context.Context, id string) (int64, error)
	DeleteAll(ctx context.Context) error
	Reviews(ctx context.Context, productID string) ([]Review, error)
	// AddReview stores r and the recomputed rating fields of p as one unit.
	AddReview(ctx context.Context, r *Review, p *Product) error
}

// PurchaseChecker reports whether a user has placed a qualifying order.
// An empty productID asks whether the user has placed any order at all.
type PurchaseChecker interface {
	HasOrdered(ctx context.Context, userID, productID string) (bool, error)
}
