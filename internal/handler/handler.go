// Package handler exposes the shop domain services over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/shop-api/internal/domain/auth"
	"github.com/xenking/shop-api/internal/domain/cart"
	"github.com/xenking/shop-api/internal/domain/expert"
	"github.com/xenking/shop-api/internal/domain/order"
	"github.com/xenking/shop-api/internal/domain/product"
	"github.com/xenking/shop-api/internal/domain/user"
)

// TokenParser resolves a bearer token into the caller's identity.
type TokenParser interface {
	Parse(token string) (auth.Principal, error)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product and cart
	// responses. When empty, image paths are returned as stored.
	ImageBaseURL string
}

// Services bundles the domain services the Handler delegates to.
type Services struct {
	Products *product.Service
	Carts    *cart.Service
	Orders   *order.Service
	Users    *user.Service
	Expert   *expert.Service
}

// Handler serves the /api surface.
type Handler struct {
	products *product.Service
	carts    *cart.Service
	orders   *order.Service
	users    *user.Service
	expert   *expert.Service

	tokens       TokenParser
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, svc Services, tokens TokenParser) *Handler {
	return &Handler{
		products:     svc.Products,
		carts:        svc.Carts,
		orders:       svc.Orders,
		users:        svc.Users,
		expert:       svc.Expert,
		tokens:       tokens,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Router returns the API routes mounted under /api. Middlewares run inside
// the router, after route matching has started.
func (h *Handler) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares...)
	r.Use(h.authenticate)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: http.StatusNotFound, Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Code: http.StatusMethodNotAllowed, Message: "method not allowed"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.With(requireUser).Get("/profile", h.Profile)
			r.With(requireUser).Put("/profile", h.UpdateProfile)
			r.With(requireAdmin).Get("/", h.ListUsers)
			r.With(requireAdmin).Delete("/{id}", h.DeleteUser)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/top", h.TopRatedProducts)
			r.Get("/{id}", h.GetProduct)
			r.Post("/{id}/expert", h.AskExpert)
			r.With(requireUser).Post("/{id}/reviews", h.AddReview)
			r.With(requireAdmin).Post("/", h.CreateProduct)
			r.With(requireAdmin).Put("/{id}", h.UpdateProduct)
			r.With(requireAdmin).Delete("/{id}", h.DeleteProduct)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Put("/items/{productId}", h.UpdateCartItem)
			r.Delete("/items/{productId}", h.RemoveCartItem)
			r.Post("/shipping", h.ValidateShipping)
			r.Post("/payment", h.ValidatePayment)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/", h.CreateOrder)
			r.Get("/mine", h.MyOrders)
			r.With(requireAdmin).Get("/", h.ListOrders)
			r.Get("/{id}", h.GetOrder)
			r.Put("/{id}/pay", h.PayOrder)
			r.With(requireAdmin).Put("/{id}/deliver", h.DeliverOrder)
		})
	})
	return r
}
