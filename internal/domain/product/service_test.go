package product

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shop-api/internal/domain/auth"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID      map[string]*Product
	order     []string
	reviews   map[string][]Review
	addErr    error
	deleteAll bool
}

func newProductRepo(products ...Product) *mockProductRepo {
	m := &mockProductRepo{
		byID:    make(map[string]*Product),
		reviews: make(map[string][]Review),
	}
	for i := range products {
		m.put(products[i])
	}
	return m
}

func (m *mockProductRepo) put(p Product) {
	if _, ok := m.byID[p.ID]; !ok {
		m.order = append(m.order, p.ID)
	}
	m.byID[p.ID] = &p
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) List(_ context.Context, f Filter) ([]Product, int, error) {
	var matched []Product
	for _, id := range m.order {
		p := m.byID[id]
		if f.Keyword == "" || strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Keyword)) {
			matched = append(matched, *p)
		}
	}
	total := len(matched)
	start := min(f.Offset, total)
	end := min(start+f.Limit, total)
	return matched[start:end], total, nil
}

func (m *mockProductRepo) TopRated(_ context.Context, limit int) ([]Product, error) {
	var all []Product
	for _, id := range m.order {
		all = append(all, *m.byID[id])
	}
	slices.SortStableFunc(all, func(a, b Product) int {
		switch {
		case a.Rating > b.Rating:
			return -1
		case a.Rating < b.Rating:
			return 1
		}
		return 0
	})
	return all[:min(limit, len(all))], nil
}

func (m *mockProductRepo) Create(_ context.Context, p *Product) error {
	m.put(*p)
	return nil
}

func (m *mockProductRepo) CreateMany(_ context.Context, products []Product) error {
	for _, p := range products {
		m.put(p)
	}
	return nil
}

func (m *mockProductRepo) Update(_ context.Context, p *Product) error {
	if _, ok := m.byID[p.ID]; !ok {
		return ErrNotFound
	}
	m.put(*p)
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id string) (int64, error) {
	if _, ok := m.byID[id]; !ok {
		return 0, nil
	}
	delete(m.byID, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return 1, nil
}

func (m *mockProductRepo) DeleteAll(_ context.Context) error {
	m.byID = make(map[string]*Product)
	m.order = nil
	m.deleteAll = true
	return nil
}

func (m *mockProductRepo) Reviews(_ context.Context, productID string) ([]Review, error) {
	return slices.Clone(m.reviews[productID]), nil
}

func (m *mockProductRepo) AddReview(_ context.Context, r *Review, p *Product) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.reviews[r.ProductID] = append(m.reviews[r.ProductID], *r)
	m.put(*p)
	return nil
}

// mockPurchases maps user IDs to the product IDs they have ordered.
type mockPurchases map[string][]string

func (m mockPurchases) HasOrdered(_ context.Context, userID, productID string) (bool, error) {
	ordered, ok := m[userID]
	if !ok {
		return false, nil
	}
	if productID == "" {
		return true, nil
	}
	return slices.Contains(ordered, productID), nil
}

// --- Helpers ---

func newTestProduct(id, name string, price decimal.Decimal) Product {
	return Product{
		ID:           id,
		Name:         name,
		Brand:        "Acme",
		Category:     "test",
		Images:       []string{"/images/" + id + ".jpg"},
		Price:        price,
		CountInStock: 5,
	}
}

var (
	alice = auth.Principal{ID: "alice", Name: "Alice"}
	bob   = auth.Principal{ID: "bob", Name: "Bob"}
)

// --- Tests ---

func TestAddReview_ProductNotFound(t *testing.T) {
	svc := NewService(ServiceConfig{}, newProductRepo(), mockPurchases{"alice": {"p1"}})

	_, err := svc.AddReview(context.Background(), "missing", alice, 5, "great")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAddReview_NoOrders(t *testing.T) {
	for _, rating := range []float64{1, 3, 5} {
		repo := newProductRepo(newTestProduct("p1", "Phone", decimal.NewFromInt(100)))
		svc := NewService(ServiceConfig{}, repo, mockPurchases{})

		_, err := svc.AddReview(context.Background(), "p1", alice, rating, "whatever")
		require.ErrorIs(t, err, ErrNotPurchased)
		assert.Empty(t, repo.reviews["p1"])
	}
}

func TestAddReview_Duplicate(t *testing.T) {
	repo := newProductRepo(newTestProduct("p1", "Phone", decimal.NewFromInt(100)))
	svc := NewService(ServiceConfig{}, repo, mockPurchases{"alice": {"p1"}})

	_, err := svc.AddReview(context.Background(), "p1", alice, 4, "good")
	require.NoError(t, err)

	_, err = svc.AddReview(context.Background(), "p1", alice, 1, "changed my mind")
	require.ErrorIs(t, err, ErrAlreadyReviewed)

	p, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.NumReviews)
	assert.Equal(t, 4.0, p.Rating)
}

func TestAddReview_MeanRating(t *testing.T) {
	repo := newProductRepo(newTestProduct("p1", "Phone", decimal.NewFromInt(100)))
	svc := NewService(ServiceConfig{}, repo, mockPurchases{"alice": {"p1"}, "bob": {"p9"}})

	_, err := svc.AddReview(context.Background(), "p1", alice, 5, "great")
	require.NoError(t, err)

	p, err := svc.AddReview(context.Background(), "p1", bob, 2, "meh")
	require.NoError(t, err)

	assert.Equal(t, 3.5, p.Rating)
	assert.Equal(t, 2, p.NumReviews)
	require.Len(t, repo.reviews["p1"], 2)
	assert.Equal(t, "Bob", repo.reviews["p1"][1].Name)
	assert.Equal(t, "meh", repo.reviews["p1"][1].Comment)
}

// The default gate only requires that the author has placed some order,
// not one containing the reviewed product.
func TestAddReview_LoosePurchaseGate(t *testing.T) {
	repo := newProductRepo(newTestProduct("p1", "Phone", decimal.NewFromInt(100)))
	svc := NewService(ServiceConfig{}, repo, mockPurchases{"alice": {"other"}})

	p, err := svc.AddReview(context.Background(), "p1", alice, 5, "never bought it")
	require.NoError(t, err)
	assert.Equal(t, 1, p.NumReviews)
}

func TestAddReview_StrictPurchaseGate(t *testing.T) {
	repo := newProductRepo(newTestProduct("p1", "Phone", decimal.NewFromInt(100)))
	svc := NewService(ServiceConfig{StrictPurchaseGate: true}, repo,
		mockPurchases{"alice": {"other"}, "bob": {"p1"}})

	_, err := svc.AddReview(context.Background(), "p1", alice, 5, "never bought it")
	require.ErrorIs(t, err, ErrNotPurchased)

	p, err := svc.AddReview(context.Background(), "p1", bob, 4, "bought it")
	require.NoError(t, err)
	assert.Equal(t, 1, p.NumReviews)
}

func TestAddReview_InvalidRating(t *testing.T) {
	repo := newProductRepo(newTestProduct("p1", "Phone", decimal.NewFromInt(100)))
	svc := NewService(ServiceConfig{}, repo, mockPurchases{"alice": {"p1"}})

	for _, rating := range []float64{0, -1, 5.5} {
		_, err := svc.AddReview(context.Background(), "p1", alice, rating, "x")
		require.ErrorIs(t, err, ErrInvalidRating)
	}
}

func TestAddReview_SaveError(t *testing.T) {
	repo := newProductRepo(newTestProduct("p1", "Phone", decimal.NewFromInt(100)))
	repo.addErr = errors.New("db write failed")
	svc := NewService(ServiceConfig{}, repo, mockPurchases{"alice": {"p1"}})

	_, err := svc.AddReview(context.Background(), "p1", alice, 5, "great")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save review")
}

func TestList_Pagination(t *testing.T) {
	var products []Product
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		products = append(products, newTestProduct(id, "Item "+id, decimal.NewFromInt(1)))
	}
	svc := NewService(ServiceConfig{}, newProductRepo(products...), mockPurchases{})

	tests := []struct {
		name      string
		params    ListParams
		wantIDs   []string
		wantPage  int
		wantPages int
	}{
		{
			name:      "defaults",
			params:    ListParams{},
			wantIDs:   []string{"a", "b", "c", "d", "e"},
			wantPage:  1,
			wantPages: 1,
		},
		{
			name:      "second page",
			params:    ListParams{Page: 2, Limit: 2},
			wantIDs:   []string{"c", "d"},
			wantPage:  2,
			wantPages: 3,
		},
		{
			name:      "page past the end",
			params:    ListParams{Page: 9, Limit: 2},
			wantIDs:   nil,
			wantPage:  9,
			wantPages: 3,
		},
		{
			name:      "keyword",
			params:    ListParams{Keyword: "item C"},
			wantIDs:   []string{"c"},
			wantPage:  1,
			wantPages: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.List(context.Background(), tt.params)
			require.NoError(t, err)

			var ids []string
			for _, p := range page.Items {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantPage, page.Page)
			assert.Equal(t, tt.wantPages, page.Pages)
		})
	}
}

func TestTopRated(t *testing.T) {
	low := newTestProduct("low", "Low", decimal.NewFromInt(1))
	low.Rating = 1
	mid := newTestProduct("mid", "Mid", decimal.NewFromInt(1))
	mid.Rating = 3
	high := newTestProduct("high", "High", decimal.NewFromInt(1))
	high.Rating = 5
	top := newTestProduct("top", "Top", decimal.NewFromInt(1))
	top.Rating = 4.5
	svc := NewService(ServiceConfig{}, newProductRepo(low, mid, high, top), mockPurchases{})

	products, err := svc.TopRated(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "high", products[0].ID)
	assert.Equal(t, "top", products[1].ID)
	assert.Equal(t, "mid", products[2].ID)
}

func TestTopRated_EmptyCatalog(t *testing.T) {
	svc := NewService(ServiceConfig{}, newProductRepo(), mockPurchases{})

	products, err := svc.TopRated(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestCreate_ResetsRating(t *testing.T) {
	repo := newProductRepo()
	svc := NewService(ServiceConfig{}, repo, mockPurchases{})

	in := newTestProduct("", "Phone", decimal.RequireFromString("99.99"))
	in.Rating = 5
	in.NumReviews = 10

	p, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Zero(t, p.Rating)
	assert.Zero(t, p.NumReviews)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Contains(t, repo.byID, p.ID)
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(ServiceConfig{}, newProductRepo(), mockPurchases{})

	tests := []struct {
		name  string
		in    Product
		field string
	}{
		{name: "empty name", in: Product{Price: decimal.NewFromInt(1)}, field: "name"},
		{name: "negative price", in: Product{Name: "x", Price: decimal.NewFromInt(-1)}, field: "price"},
		{name: "negative stock", in: Product{Name: "x", CountInStock: -1}, field: "countInStock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestCreateSample(t *testing.T) {
	repo := newProductRepo()
	svc := NewService(ServiceConfig{}, repo, mockPurchases{})

	p, err := svc.CreateSample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Sample name", p.Name)
	assert.True(t, p.Price.IsZero())
	assert.Len(t, repo.byID, 1)
}

func TestUpdate_Patch(t *testing.T) {
	repo := newProductRepo(newTestProduct("p1", "Phone", decimal.NewFromInt(100)))
	svc := NewService(ServiceConfig{}, repo, mockPurchases{})

	name := "Phone 2"
	stock := 42
	p, err := svc.Update(context.Background(), "p1", Patch{Name: &name, CountInStock: &stock})
	require.NoError(t, err)
	assert.Equal(t, "Phone 2", p.Name)
	assert.Equal(t, 42, p.CountInStock)
	assert.Equal(t, "Acme", p.Brand)
	assert.True(t, decimal.NewFromInt(100).Equal(p.Price))
}

func TestUpdate_NotFound(t *testing.T) {
	svc := NewService(ServiceConfig{}, newProductRepo(), mockPurchases{})

	_, err := svc.Update(context.Background(), "missing", Patch{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	repo := newProductRepo(newTestProduct("p1", "Phone", decimal.NewFromInt(100)))
	svc := NewService(ServiceConfig{}, repo, mockPurchases{})

	require.NoError(t, svc.Delete(context.Background(), "p1"))
	require.ErrorIs(t, svc.Delete(context.Background(), "p1"), ErrNotFound)
}

func TestDeleteAll(t *testing.T) {
	repo := newProductRepo(newTestProduct("p1", "Phone", decimal.NewFromInt(100)))
	svc := NewService(ServiceConfig{}, repo, mockPurchases{})

	require.NoError(t, svc.DeleteAll(context.Background()))
	assert.True(t, repo.deleteAll)
	assert.Empty(t, repo.byID)
}
