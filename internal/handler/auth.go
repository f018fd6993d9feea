package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/shop-api/internal/domain/auth"
)

var (
	errUnauthorized = errors.New("not authorized, no valid token")
	errAdminOnly    = errors.New("not authorized as an admin")
	errForbidden    = errors.New("not allowed to access this resource")
)

// authenticate stores the principal of a valid bearer token in the request
// context. Requests without a token pass through anonymously; an invalid
// token is rejected.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			writeError(w, r, errUnauthorized)
			return
		}
		p, err := h.tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			writeError(w, r, errUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
			writeError(w, r, errUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFromContext(r.Context())
		switch {
		case !ok:
			writeError(w, r, errUnauthorized)
		case !p.IsAdmin:
			writeError(w, r, errAdminOnly)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// principal returns the caller set by requireUser.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}
