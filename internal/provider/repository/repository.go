package repository

import (
	"context"
	"time"

	"clan-portal/backend/internal/provider/domain"
)

// Repository defines persistence for provider bindings.
type Repository interface {
	// Create persists p. A second binding for the same (name, apiIdentifier) is a conflict.
	Create(ctx context.Context, p *domain.Provider) error
	// UpdateTokens stores a refreshed token set on provider id.
	UpdateTokens(ctx context.Context, id string, t domain.Tokens) error
	// UpdateIdentifier re-points the binding of authID with the given name to a new identifier.
	UpdateIdentifier(ctx context.Context, authID string, name domain.Name, apiIdentifier string) error
	// ListExpiring returns bindings of the given name holding a refresh token whose access
	// token expires before the deadline, soonest first.
	ListExpiring(ctx context.Context, name domain.Name, before time.Time, limit int32) ([]*domain.Provider, error)
}
