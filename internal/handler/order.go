package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/shop-api/internal/domain/auth"
	"github.com/xenking/shop-api/internal/domain/cart"
	"github.com/xenking/shop-api/internal/domain/order"
)

type orderLineDTO struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Qty       int     `json:"qty"`
	Image     string  `json:"image"`
	Price     float64 `json:"price"`
}

type paymentResultDTO struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
	Provider     string `json:"provider,omitempty"`
}

type orderRequest struct {
	Items           []orderLineDTO `json:"orderItems"`
	ShippingDetails shippingDTO    `json:"shippingDetails"`
	PaymentMethod   string         `json:"paymentMethod"`
	ItemsPrice      float64        `json:"itemsPrice"`
	TaxPrice        float64        `json:"taxPrice"`
	ShippingPrice   float64        `json:"shippingPrice"`
	TotalPrice      float64        `json:"totalPrice"`
}

type orderResponse struct {
	ID              string            `json:"id"`
	UserID          string            `json:"userId"`
	Items           []orderLineDTO    `json:"orderItems"`
	ShippingDetails shippingDTO       `json:"shippingDetails"`
	PaymentMethod   string            `json:"paymentMethod"`
	PaymentResult   *paymentResultDTO `json:"paymentResult,omitempty"`
	ItemsPrice      float64           `json:"itemsPrice"`
	TaxPrice        float64           `json:"taxPrice"`
	ShippingPrice   float64           `json:"shippingPrice"`
	TotalPrice      float64           `json:"totalPrice"`
	IsPaid          bool              `json:"isPaid"`
	PaidAt          *time.Time        `json:"paidAt,omitempty"`
	IsDelivered     bool              `json:"isDelivered"`
	DeliveredAt     *time.Time        `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderLineDTO, len(o.Items))
	for i, l := range o.Items {
		items[i] = orderLineDTO(l)
	}
	resp := orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           items,
		ShippingDetails: toShippingDTO(o.ShippingDetails),
		PaymentMethod:   o.PaymentMethod,
		ItemsPrice:      o.ItemsPrice,
		TaxPrice:        o.TaxPrice,
		ShippingPrice:   o.ShippingPrice,
		TotalPrice:      o.TotalPrice,
		IsPaid:          o.IsPaid,
		PaidAt:          o.PaidAt,
		IsDelivered:     o.IsDelivered,
		DeliveredAt:     o.DeliveredAt,
		CreatedAt:       o.CreatedAt,
	}
	if o.PaymentResult != nil {
		pr := paymentResultDTO(*o.PaymentResult)
		resp.PaymentResult = &pr
	}
	return resp
}

func toOrderResponses(orders []order.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	return out
}

// ownedOrder loads an order visible to the caller: its owner or an admin.
func (h *Handler) ownedOrder(ctx context.Context, p auth.Principal, id string) (*order.Order, error) {
	o, err := h.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != p.ID && !p.IsAdmin {
		return nil, errForbidden
	}
	return o, nil
}

// CreateOrder stores the submitted order snapshot for the caller.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeRequired(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]order.Line, len(req.Items))
	for i, l := range req.Items {
		items[i] = order.Line(l)
	}
	o, err := h.orders.Create(r.Context(), principal(r), order.CreateRequest{
		Items:           items,
		ShippingDetails: req.ShippingDetails.details(),
		PaymentMethod:   req.PaymentMethod,
		Prices: cart.Prices{
			Items:    req.ItemsPrice,
			Tax:      req.TaxPrice,
			Shipping: req.ShippingPrice,
			Total:    req.TotalPrice,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// MyOrders lists the caller's orders.
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListForOwner(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// ListOrders lists every order.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// GetOrder returns one order to its owner or an admin.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.ownedOrder(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// PayOrder records the payment provider confirmation.
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	var req paymentResultDTO
	if err := decodeRequired(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	o, err := h.ownedOrder(ctx, principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err = h.orders.MarkPaid(ctx, o.ID, order.PaymentResult(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// DeliverOrder marks an order delivered.
func (h *Handler) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.MarkDelivered(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
