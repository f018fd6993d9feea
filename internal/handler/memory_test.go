package handler

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/xenking/shop-api/internal/domain/auth"
	"github.com/xenking/shop-api/internal/domain/cart"
	"github.com/xenking/shop-api/internal/domain/order"
	"github.com/xenking/shop-api/internal/domain/product"
	"github.com/xenking/shop-api/internal/domain/user"
)

// In-memory repositories backing the handler tests.

type memProducts struct {
	mu      sync.Mutex
	byID    map[string]product.Product
	order   []string
	reviews map[string][]product.Review
	failAll error
}

func newMemProducts(products ...product.Product) *memProducts {
	m := &memProducts{byID: map[string]product.Product{}, reviews: map[string][]product.Review{}}
	for _, p := range products {
		m.byID[p.ID] = p
		m.order = append(m.order, p.ID)
	}
	return m
}

func (m *memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *memProducts) List(_ context.Context, f product.Filter) ([]product.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, 0, m.failAll
	}
	var matched []product.Product
	for _, id := range m.order {
		p := m.byID[id]
		if f.Keyword == "" || strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Keyword)) {
			matched = append(matched, p)
		}
	}
	total := len(matched)
	start := min(f.Offset, total)
	end := min(start+f.Limit, total)
	return matched[start:end], total, nil
}

func (m *memProducts) TopRated(_ context.Context, limit int) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []product.Product
	for _, id := range m.order {
		all = append(all, m.byID[id])
	}
	slices.SortStableFunc(all, func(a, b product.Product) int {
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

func (m *memProducts) Create(_ context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.ID] = *p
	m.order = append(m.order, p.ID)
	return nil
}

func (m *memProducts) CreateMany(ctx context.Context, products []product.Product) error {
	for i := range products {
		if err := m.Create(ctx, &products[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memProducts) Update(_ context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; !ok {
		return product.ErrNotFound
	}
	m.byID[p.ID] = *p
	return nil
}

func (m *memProducts) Delete(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return 0, nil
	}
	delete(m.byID, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return 1, nil
}

func (m *memProducts) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.byID)
	m.order = nil
	return nil
}

func (m *memProducts) Reviews(_ context.Context, productID string) ([]product.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.reviews[productID]), nil
}

func (m *memProducts) AddReview(_ context.Context, r *product.Review, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews[p.ID] = append(m.reviews[p.ID], *r)
	m.byID[p.ID] = *p
	return nil
}

type memCarts struct {
	mu      sync.Mutex
	byOwner map[string]cart.Cart
	users   *memUsers
}

func newMemCarts(users *memUsers) *memCarts {
	return &memCarts{byOwner: map[string]cart.Cart{}, users: users}
}

func (m *memCarts) GetByOwner(_ context.Context, ownerID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byOwner[ownerID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	c.Items = slices.Clone(c.Items)
	return &c, nil
}

func (m *memCarts) Create(_ context.Context, c *cart.Cart) error {
	if m.users.deleted(c.OwnerID) {
		return auth.ErrUnknownPrincipal
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byOwner[c.OwnerID]; ok {
		return cart.ErrAlreadyExists
	}
	stored := *c
	stored.Items = slices.Clone(c.Items)
	m.byOwner[c.OwnerID] = stored
	return nil
}

func (m *memCarts) Save(_ context.Context, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byOwner[c.OwnerID]
	if !ok || stored.Version != c.Version {
		return cart.ErrConflict
	}
	c.Version++
	stored = *c
	stored.Items = slices.Clone(c.Items)
	m.byOwner[c.OwnerID] = stored
	return nil
}

type memOrders struct {
	mu    sync.Mutex
	byID  map[string]order.Order
	ids   []string
	users *memUsers
}

func newMemOrders(users *memUsers) *memOrders {
	return &memOrders{byID: map[string]order.Order{}, users: users}
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	if m.users.deleted(o.UserID) {
		return auth.ErrUnknownPrincipal
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[o.ID] = *o
	m.ids = append(m.ids, o.ID)
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

func (m *memOrders) List(_ context.Context) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]order.Order, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, m.byID[id])
	}
	return out, nil
}

func (m *memOrders) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	all, _ := m.List(ctx)
	return slices.DeleteFunc(all, func(o order.Order) bool { return o.UserID != userID }), nil
}

func (m *memOrders) Save(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[o.ID] = *o
	return nil
}

func (m *memOrders) HasOrdered(ctx context.Context, userID, productID string) (bool, error) {
	orders, _ := m.ListByUser(ctx, userID)
	for _, o := range orders {
		if productID == "" {
			return true, nil
		}
		for _, l := range o.Items {
			if l.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

// memUsers remembers deleted IDs so that carts and orders can reject them
// the way the foreign keys in postgres do.
type memUsers struct {
	mu      sync.Mutex
	byID    map[string]user.User
	removed map[string]bool
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]user.User{}, removed: map[string]bool{}}
}

func (m *memUsers) deleted(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removed[id]
}

func (m *memUsers) emailTaken(email, except string) bool {
	for _, u := range m.byID {
		if u.Email == email && u.ID != except {
			return true
		}
	}
	return false
}

func (m *memUsers) Create(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailTaken(u.Email, "") {
		return user.ErrEmailTaken
	}
	m.byID[u.ID] = *u
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *memUsers) List(_ context.Context) ([]user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]user.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b user.User) int { return strings.Compare(a.Email, b.Email) })
	return out, nil
}

func (m *memUsers) Update(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; !ok {
		return user.ErrNotFound
	}
	if m.emailTaken(u.Email, u.ID) {
		return user.ErrEmailTaken
	}
	m.byID[u.ID] = *u
	return nil
}

func (m *memUsers) Delete(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return 0, nil
	}
	delete(m.byID, id)
	m.removed[id] = true
	return 1, nil
}
