// Package rbac authorizes requests against the scopes granted by the caller's role.
package rbac

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clan-portal/backend/internal/apperror"
	authdomain "clan-portal/backend/internal/auth/domain"
	"clan-portal/backend/internal/policy/engine"
	"clan-portal/backend/internal/server/pipeline"
)

// SelfSuffix marks the scope variant that applies when a caller acts on their own profile.
const SelfSuffix = "-self"

// ErrInsufficientPermissions is returned when the caller's role does not grant the required scope.
var ErrInsufficientPermissions = errors.New("insufficient permissions")

// Engine authorizes callers through an Evaluator.
type Engine struct {
	eval engine.Evaluator
}

// NewEngine returns an Engine using eval, or the in-memory scope set check when eval is nil.
func NewEngine(eval engine.Evaluator) *Engine {
	if eval == nil {
		eval = engine.ScopeSetEvaluator{}
	}
	return &Engine{eval: eval}
}

// RequiredScope returns the scope a caller needs to act on targetProfileID:
// base+SelfSuffix when the target is the caller's own profile, else base.
func RequiredScope(base, targetProfileID, callerProfileID string) string {
	if targetProfileID != "" && targetProfileID == callerProfileID {
		return base + SelfSuffix
	}
	return base
}

// Authorize returns nil if a's role grants scope, ErrInsufficientPermissions if
// it does not, or the evaluator's error.
func (e *Engine) Authorize(ctx context.Context, a *authdomain.Auth, scope string) error {
	in := engine.Input{Scopes: a.Scopes(), Required: scope}
	if a != nil && a.Profile != nil {
		in.Role = a.Profile.RoleName
	}
	ok, err := e.eval.Allowed(ctx, in)
	if err != nil {
		return fmt.Errorf("authorize %s: %w", scope, err)
	}
	if !ok {
		return ErrInsufficientPermissions
	}
	return nil
}

// AuthorizeSelf authorizes a against the self-aware variant of base for targetProfileID.
func (e *Engine) AuthorizeSelf(ctx context.Context, a *authdomain.Auth, base, targetProfileID string) error {
	return e.Authorize(ctx, a, RequiredScope(base, targetProfileID, a.ProfileID()))
}

// RequireScope is a pipeline step that requires scope. It must follow the required gate.
func (e *Engine) RequireScope(scope string) pipeline.Step {
	return pipeline.Step{Name: "authorize", Run: func(_ http.ResponseWriter, r *http.Request) (*http.Request, error) {
		a, ok := pipeline.AuthFromContext(r.Context())
		if !ok {
			return nil, apperror.Unauthorized("No token provided")
		}
		return r, toAppError(e.Authorize(r.Context(), a, scope))
	}}
}

// RequireScopeSelf is a pipeline step that requires base, or base+SelfSuffix
// when the route parameter param names the caller's own profile.
func (e *Engine) RequireScopeSelf(base, param string) pipeline.Step {
	return pipeline.Step{Name: "authorize.self", Run: func(_ http.ResponseWriter, r *http.Request) (*http.Request, error) {
		a, ok := pipeline.AuthFromContext(r.Context())
		if !ok {
			return nil, apperror.Unauthorized("No token provided")
		}
		return r, toAppError(e.AuthorizeSelf(r.Context(), a, base, chi.URLParam(r, param)))
	}}
}

func toAppError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInsufficientPermissions):
		return apperror.Forbidden("Insufficient permissions")
	default:
		return apperror.Internal(err)
	}
}
