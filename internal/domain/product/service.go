package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-api/internal/domain/auth"
)

// Listing defaults.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	topRatedLimit   = 3
)

// ListParams holds the input for a paginated catalog listing.
type ListParams struct {
	Keyword string
	Page    int
	Limit   int
}

// Page is one page of a catalog listing.
type Page struct {
	Items []Product
	Total int
	Page  int
	Pages int
}

// Patch describes a partial product update. Nil fields keep their current value.
type Patch struct {
	Name         *string
	Price        *decimal.Decimal
	Description  *string
	Images       []string
	BrandLogo    *string
	Brand        *string
	Category     *string
	CountInStock *int
}

// ServiceConfig holds non-dependency configuration for the Service.
type ServiceConfig struct {
	// StrictPurchaseGate requires an order containing the reviewed product
	// rather than any order at all.
	StrictPurchaseGate bool
}

// Service encapsulates catalog and review business logic.
type Service struct {
	products  Repository
	purchases PurchaseChecker
	strict    bool
	now       func() time.Time
}

// NewService creates a product Service.
func NewService(cfg ServiceConfig, products Repository, purchases PurchaseChecker) *Service {
	return &Service{
		products:  products,
		purchases: purchases,
		strict:    cfg.StrictPurchaseGate,
		now:       time.Now,
	}
}

// List returns a page of products matching the keyword.
func (s *Service) List(ctx context.Context, params ListParams) (*Page, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)
	page := max(params.Page, 1)

	items, total, err := s.products.List(ctx, Filter{
		Keyword: strings.TrimSpace(params.Keyword),
		Limit:   limit,
		Offset:  limit * (page - 1),
	})
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}

	return &Page{
		Items: items,
		Total: total,
		Page:  page,
		Pages: (total + limit - 1) / limit,
	}, nil
}

// TopRated returns the best rated products. An empty catalog yields an
// empty result, not ErrNotFound.
func (s *Service) TopRated(ctx context.Context) ([]Product, error) {
	products, err := s.products.TopRated(ctx, topRatedLimit)
	if err != nil {
		return nil, errors.Wrap(err, "top rated products")
	}
	return products, nil
}

// Get returns a single product by ID.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.products.GetByID(ctx, id)
}

// Reviews returns the reviews of a product, oldest first.
func (s *Service) Reviews(ctx context.Context, productID string) ([]Review, error) {
	reviews, err := s.products.Reviews(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "list reviews")
	}
	return reviews, nil
}

// Create validates and persists a new product with an empty review history.
func (s *Service) Create(ctx context.Context, p Product) (*Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s.prepare(&p)
	if err := s.products.Create(ctx, &p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return &p, nil
}

// CreateSample persists a placeholder product for administrators to edit.
func (s *Service) CreateSample(ctx context.Context) (*Product, error) {
	return s.Create(ctx, Product{
		Name:        "Sample name",
		Brand:       "Sample brand",
		BrandLogo:   "/images/sample-brand.png",
		Category:    "Sample category",
		Images:      []string{"/images/sample.jpg"},
		Description: "Sample description",
		Price:       decimal.Zero,
	})
}

// CreateMany validates and persists products in bulk.
func (s *Service) CreateMany(ctx context.Context, products []Product) ([]Product, error) {
	for i := range products {
		if err := products[i].Validate(); err != nil {
			return nil, err
		}
		s.prepare(&products[i])
	}
	if err := s.products.CreateMany(ctx, products); err != nil {
		return nil, errors.Wrap(err, "create products")
	}
	return products, nil
}

// Update applies patch to the product with the given ID.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Images != nil {
		p.Images = patch.Images
	}
	if patch.BrandLogo != nil {
		p.BrandLogo = *patch.BrandLogo
	}
	if patch.Brand != nil {
		p.Brand = *patch.Brand
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.CountInStock != nil {
		p.CountInStock = *patch.CountInStock
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	p.UpdatedAt = s.now()
	if err := s.products.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	return p, nil
}

// Delete removes the product with the given ID.
func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.products.Delete(ctx, id)
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every product from the catalog.
func (s *Service) DeleteAll(ctx context.Context) error {
	if err := s.products.DeleteAll(ctx); err != nil {
		return errors.Wrap(err, "delete all products")
	}
	return nil
}

// AddReview records a review by author and recomputes the product's mean
// rating and review count. Each author may review a product once, and only
// after placing an order.
func (s *Service) AddReview(ctx context.Context, productID string, author auth.Principal, rating float64, comment string) (*Product, error) {
	if rating < MinRating || rating > MaxRating {
		return nil, ErrInvalidRating
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	reviews, err := s.products.Reviews(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "load reviews")
	}
	for _, r := range reviews {
		if r.UserID == author.ID {
			return nil, ErrAlreadyReviewed
		}
	}

	gate := ""
	if s.strict {
		gate = productID
	}
	purchased, err := s.purchases.HasOrdered(ctx, author.ID, gate)
	if err != nil {
		return nil, errors.Wrap(err, "check purchase")
	}
	if !purchased {
		return nil, ErrNotPurchased
	}

	now := s.now()
	review := Review{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    author.ID,
		Name:      author.Name,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: now,
	}
	reviews = append(reviews, review)

	p.Rating = meanRating(reviews)
	p.NumReviews = len(reviews)
	p.UpdatedAt = now

	if err := s.products.AddReview(ctx, &review, p); err != nil {
		return nil, errors.Wrap(err, "save review")
	}
	return p, nil
}

func meanRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	var sum float64
	for _, r := range reviews {
		sum += r.Rating
	}
	return sum / float64(len(reviews))
}

func (s *Service) prepare(p *Product) {
	now := s.now()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	p.Rating = 0
	p.NumReviews = 0
	p.CreatedAt = now
	p.UpdatedAt = now
}

// Validate reports the first invalid attribute of p as a *ValidationError.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if p.Price.IsNegative() {
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if p.CountInStock < 0 {
		return &ValidationError{Field: "countInStock", Reason: "must not be negative"}
	}
	return nil
}
