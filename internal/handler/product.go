package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-api/internal/domain/expert"
	"github.com/xenking/shop-api/internal/domain/product"
)

type reviewResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Rating    float64   `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

type productResponse struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Brand        string           `json:"brand"`
	BrandLogo    string           `json:"brandLogo"`
	Category     string           `json:"category"`
	Images       []string         `json:"images"`
	Description  string           `json:"description"`
	Rating       float64          `json:"rating"`
	NumReviews   int              `json:"numReviews"`
	Price        float64          `json:"price"`
	CountInStock int              `json:"countInStock"`
	Reviews      []reviewResponse `json:"reviews,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

type productPageResponse struct {
	Products []productResponse `json:"products"`
	Page     int               `json:"page"`
	Pages    int               `json:"pages"`
	Total    int               `json:"total"`
}

// productRequest is the body of create and update calls. Absent fields keep
// their current value on update and their zero value on create.
type productRequest struct {
	Name         *string          `json:"name"`
	Price        *decimal.Decimal `json:"price"`
	Description  *string          `json:"description"`
	Images       []string         `json:"images"`
	BrandLogo    *string          `json:"brandLogo"`
	Brand        *string          `json:"brand"`
	Category     *string          `json:"category"`
	CountInStock *int             `json:"countInStock"`
}

func (req productRequest) patch() product.Patch {
	return product.Patch{
		Name:         req.Name,
		Price:        req.Price,
		Description:  req.Description,
		Images:       req.Images,
		BrandLogo:    req.BrandLogo,
		Brand:        req.Brand,
		Category:     req.Category,
		CountInStock: req.CountInStock,
	}
}

func deref[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

func (req productRequest) toProduct() product.Product {
	return product.Product{
		Name:         deref(req.Name),
		Price:        deref(req.Price),
		Description:  deref(req.Description),
		Images:       req.Images,
		BrandLogo:    deref(req.BrandLogo),
		Brand:        deref(req.Brand),
		Category:     deref(req.Category),
		CountInStock: deref(req.CountInStock),
	}
}

type reviewRequest struct {
	Rating  float64 `json:"rating"`
	Comment string  `json:"comment"`
}

type messageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type expertRequest struct {
	Messages []messageDTO `json:"messages"`
}

// imageURL prefixes relative image paths with the configured base URL.
func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" || strings.Contains(path, "://") {
		return path
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func (h *Handler) toProductResponse(p product.Product) productResponse {
	images := make([]string, len(p.Images))
	for i, img := range p.Images {
		images[i] = h.imageURL(img)
	}
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		Brand:        p.Brand,
		BrandLogo:    h.imageURL(p.BrandLogo),
		Category:     p.Category,
		Images:       images,
		Description:  p.Description,
		Rating:       p.Rating,
		NumReviews:   p.NumReviews,
		Price:        p.Price.InexactFloat64(),
		CountInStock: p.CountInStock,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (h *Handler) toProductResponses(products []product.Product) []productResponse {
	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = h.toProductResponse(p)
	}
	return out
}

// ListProducts returns one page of the catalog filtered by ?keyword.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.products.List(r.Context(), product.ListParams{
		Keyword: r.URL.Query().Get("keyword"),
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productPageResponse{
		Products: h.toProductResponses(res.Items),
		Page:     res.Page,
		Pages:    res.Pages,
		Total:    res.Total,
	})
}

// TopRatedProducts returns the best rated products.
func (h *Handler) TopRatedProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.TopRated(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProductResponses(products))
}

// GetProduct returns a product with its reviews.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	p, err := h.products.Get(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	reviews, err := h.products.Reviews(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := h.toProductResponse(*p)
	resp.Reviews = make([]reviewResponse, len(reviews))
	for i, rv := range reviews {
		resp.Reviews[i] = reviewResponse{
			ID:        rv.ID,
			UserID:    rv.UserID,
			Name:      rv.Name,
			Rating:    rv.Rating,
			Comment:   rv.Comment,
			CreatedAt: rv.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateProduct creates a product from the body, or a sample product when
// the body is empty.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	var (
		p   *product.Product
		err error
	)
	switch derr := decodeJSON(r, &req); {
	case errors.Is(derr, io.EOF):
		p, err = h.products.CreateSample(r.Context())
	case derr != nil:
		err = derr
	default:
		p, err = h.products.Create(r.Context(), req.toProduct())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toProductResponse(*p))
}

// UpdateProduct applies a partial update.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeRequired(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), req.patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProductResponse(*p))
}

// DeleteProduct removes a product.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddReview records the caller's review and returns the updated product.
func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeRequired(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.products.AddReview(r.Context(), chi.URLParam(r, "id"), principal(r), req.Rating, req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toProductResponse(*p))
}

// AskExpert forwards a shopper conversation about a product to the expert.
func (h *Handler) AskExpert(w http.ResponseWriter, r *http.Request) {
	var req expertRequest
	if err := decodeRequired(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	conversation := make([]expert.Message, len(req.Messages))
	for i, m := range req.Messages {
		conversation[i] = expert.Message{Role: m.Role, Content: m.Content}
	}
	reply, err := h.expert.Ask(r.Context(), chi.URLParam(r, "id"), conversation)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageDTO{Role: reply.Role, Content: reply.Content})
}
