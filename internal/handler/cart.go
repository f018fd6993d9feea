package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/shop-api/internal/domain/cart"
)

type cartLineResponse struct {
	ProductID    string  `json:"productId"`
	Name         string  `json:"name"`
	Image        string  `json:"image"`
	Price        float64 `json:"price"`
	CountInStock int     `json:"countInStock"`
	Qty          int     `json:"qty"`
}

type shippingDTO struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

func toShippingDTO(d cart.ShippingDetails) shippingDTO {
	return shippingDTO(d)
}

func (d shippingDTO) details() cart.ShippingDetails {
	return cart.ShippingDetails(d)
}

type cartResponse struct {
	ID              string             `json:"id"`
	Items           []cartLineResponse `json:"cartItems"`
	ShippingDetails *shippingDTO       `json:"shippingDetails"`
	PaymentMethod   string             `json:"paymentMethod"`
	ItemsPrice      float64            `json:"itemsPrice"`
	TaxPrice        float64            `json:"taxPrice"`
	ShippingPrice   float64            `json:"shippingPrice"`
	TotalPrice      float64            `json:"totalPrice"`
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

type paymentMethodDTO struct {
	PaymentMethod string `json:"paymentMethod"`
}

func (h *Handler) toCartResponse(c *cart.Cart) cartResponse {
	items := make([]cartLineResponse, len(c.Items))
	for i, l := range c.Items {
		items[i] = cartLineResponse{
			ProductID:    l.ProductID,
			Name:         l.Name,
			Image:        h.imageURL(l.Image),
			Price:        l.Price,
			CountInStock: l.CountInStock,
			Qty:          l.Qty,
		}
	}
	resp := cartResponse{
		ID:            c.ID,
		Items:         items,
		PaymentMethod: c.PaymentMethod,
		ItemsPrice:    c.ItemsPrice,
		TaxPrice:      c.TaxPrice,
		ShippingPrice: c.ShippingPrice,
		TotalPrice:    c.TotalPrice,
	}
	if c.ShippingDetails != nil {
		d := toShippingDTO(*c.ShippingDetails)
		resp.ShippingDetails = &d
	}
	return resp
}

func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, c *cart.Cart, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCartResponse(c))
}

// GetCart returns the caller's cart, creating it on first access.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), principal(r))
	h.respondCart(w, r, c, err)
}

// AddCartItem adds a product to the cart or replaces its quantity.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeRequired(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProductID == "" {
		writeError(w, r, badRequest("productId is required"))
		return
	}
	c, err := h.carts.AddItem(r.Context(), principal(r), req.ProductID, req.Qty)
	h.respondCart(w, r, c, err)
}

// UpdateCartItem changes the quantity of a cart line.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeRequired(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.UpdateItemQty(r.Context(), principal(r), chi.URLParam(r, "productId"), req.Qty)
	h.respondCart(w, r, c, err)
}

// RemoveCartItem drops a line from the cart.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(), principal(r), chi.URLParam(r, "productId"))
	h.respondCart(w, r, c, err)
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Clear(r.Context(), principal(r))
	h.respondCart(w, r, c, err)
}

// ValidateShipping checks a shipping address and echoes it back.
func (h *Handler) ValidateShipping(w http.ResponseWriter, r *http.Request) {
	var req shippingDTO
	if err := decodeRequired(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := cart.ValidateShippingDetails(req.details())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toShippingDTO(d))
}

// ValidatePayment checks a payment method and echoes it back.
func (h *Handler) ValidatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodDTO
	if err := decodeRequired(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	method, err := cart.ValidatePaymentMethod(req.PaymentMethod)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentMethodDTO{PaymentMethod: method})
}
