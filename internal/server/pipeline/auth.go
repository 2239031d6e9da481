package pipeline

import (
	"context"
	"net/http"
	"strings"

	"clan-portal/backend/internal/apperror"
	authdomain "clan-portal/backend/internal/auth/domain"
	"clan-portal/backend/internal/security"
)

const bearerPrefix = "bearer "

// AuthLoader loads the account named by a token subject. It returns (nil, nil) when not found.
type AuthLoader interface {
	GetByID(ctx context.Context, id string) (*authdomain.Auth, error)
}

// Gate verifies bearer tokens and attaches the account to the request context.
type Gate struct {
	tokens *security.TokenProvider
	loader AuthLoader
}

// NewGate returns a Gate that verifies tokens with tokens and resolves subjects with loader.
func NewGate(tokens *security.TokenProvider, loader AuthLoader) *Gate {
	return &Gate{tokens: tokens, loader: loader}
}

// Required rejects requests without a valid bearer token for an existing account.
func (g *Gate) Required() Step {
	return Step{Name: "auth.required", Run: func(_ http.ResponseWriter, r *http.Request) (*http.Request, error) {
		token, ok := extractBearer(r)
		if !ok {
			return nil, apperror.Unauthorized("No token provided")
		}
		return g.attach(r, token)
	}}
}

// Optional lets requests without an Authorization header through anonymously.
// A header that is present must still carry a valid token.
func (g *Gate) Optional() Step {
	return Step{Name: "auth.optional", Run: func(_ http.ResponseWriter, r *http.Request) (*http.Request, error) {
		if r.Header.Get("Authorization") == "" {
			return r, nil
		}
		token, ok := extractBearer(r)
		if !ok {
			return nil, apperror.Unauthorized("Invalid token")
		}
		return g.attach(r, token)
	}}
}

func (g *Gate) attach(r *http.Request, token string) (*http.Request, error) {
	claims, err := g.tokens.VerifyBearerToken(token)
	if err != nil {
		return nil, apperror.Unauthorized("Invalid token")
	}
	a, err := g.loader.GetByID(r.Context(), claims.Subject)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperror.Unauthorized("Invalid token")
	}
	return r.WithContext(WithAuth(r.Context(), a)), nil
}

// extractBearer returns the token from "Authorization: Bearer <token>". The
// scheme is matched case-insensitively.
func extractBearer(r *http.Request) (string, bool) {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) <= len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(v[len(bearerPrefix):])
	return token, token != ""
}
