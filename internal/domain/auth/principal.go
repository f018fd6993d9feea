package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnknownPrincipal is returned by storage when a still valid token refers
// to an account that no longer exists.
var ErrUnknownPrincipal = errors.New("account no longer exists")

// Principal is the authenticated identity making a request.
type Principal struct {
	ID      string
	Name    string
	IsAdmin bool
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext extracts the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
