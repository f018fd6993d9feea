package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shop-api/internal/domain/auth"
	"github.com/xenking/shop-api/internal/domain/cart"
	"github.com/xenking/shop-api/internal/domain/expert"
	"github.com/xenking/shop-api/internal/domain/order"
	"github.com/xenking/shop-api/internal/domain/product"
	"github.com/xenking/shop-api/internal/domain/user"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// badRequestError wraps request decoding failures.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &badRequestError{msg: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a single JSON object into dst. An empty body is reported
// as io.EOF so callers can treat it as "no input".
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		return badRequest("malformed JSON body: " + err.Error())
	}
	return nil
}

// decodeRequired is decodeJSON for endpoints that need a body.
func decodeRequired(r *http.Request, dst any) error {
	if err := decodeJSON(r, dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is required")
		}
		return err
	}
	return nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("invalid " + name + " parameter")
	}
	return n, nil
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	var (
		stockErr      *cart.InsufficientStockError
		validationErr *product.ValidationError
		requestErr    *badRequestError
	)
	switch {
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &stockErr),
		errors.As(err, &validationErr),
		errors.As(err, &requestErr),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidShipping),
		errors.Is(err, cart.ErrInvalidPaymentMethod),
		errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, product.ErrAlreadyReviewed),
		errors.Is(err, product.ErrNotPurchased),
		errors.Is(err, product.ErrInvalidRating),
		errors.Is(err, user.ErrInvalidInput),
		errors.Is(err, expert.ErrEmptyConversation):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthorized),
		errors.Is(err, auth.ErrUnknownPrincipal),
		errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden),
		errors.Is(err, errAdminOnly):
		return http.StatusForbidden
	case errors.Is(err, cart.ErrConflict),
		errors.Is(err, user.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, expert.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err in the {"code","message"} shape. Server errors are
// logged and their details hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}
