package pipeline

import (
	"context"
	"reflect"

	authdomain "clan-portal/backend/internal/auth/domain"
)

type contextKey struct{ name string }

var (
	authKey     = contextKey{"auth"}
	clientIPKey = contextKey{"client_ip"}
)

// bodyKey keys a validated request body by its type.
type bodyKey struct{ t reflect.Type }

// WithAuth returns a context carrying the authenticated account.
func WithAuth(ctx context.Context, a *authdomain.Auth) context.Context {
	return context.WithValue(ctx, authKey, a)
}

// AuthFromContext returns the authenticated account and true if set; otherwise nil, false.
// Requests passing the optional gate without a token have no account.
func AuthFromContext(ctx context.Context) (*authdomain.Auth, bool) {
	a, ok := ctx.Value(authKey).(*authdomain.Auth)
	return a, ok && a != nil
}

// WithClientIP returns a context carrying the client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the client IP stored by TrustedProxies.Middleware, or "".
func ClientIPFromContext(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}

func withBody[T any](ctx context.Context, body *T) context.Context {
	return context.WithValue(ctx, bodyKey{reflect.TypeFor[T]()}, body)
}

// Body returns the request body decoded and validated by the Validate step for T,
// or nil if the step did not run.
func Body[T any](ctx context.Context) *T {
	v, _ := ctx.Value(bodyKey{reflect.TypeFor[T]()}).(*T)
	return v
}
