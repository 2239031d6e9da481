package repository

import (
	"context"

	"clan-portal/backend/internal/auth/domain"
	providerdomain "clan-portal/backend/internal/provider/domain"
)

// Repository is the credential store. Reads return the Auth with its Profile,
// Role and Providers attached, or nil if not found; they return an error only
// for database failures. Writes return errors already classified by db.TranslateError.
type Repository interface {
	// Create persists the auth, its profile and its providers in one transaction.
	Create(ctx context.Context, a *domain.Auth) error
	GetByID(ctx context.Context, id string) (*domain.Auth, error)
	GetByEmail(ctx context.Context, email string) (*domain.Auth, error)
	GetByProvider(ctx context.Context, name providerdomain.Name, apiIdentifier string) (*domain.Auth, error)
	// Update applies the non-nil fields of u. A missing id is NotFound.
	Update(ctx context.Context, id string, u domain.Update) error
	// SetLocalPassword sets the password hash and creates the local provider
	// binding for the auth email if missing, in one transaction. A missing id is NotFound.
	SetLocalPassword(ctx context.Context, id, hash string) error
	// ChangeEmail sets the auth email and re-points its local provider binding
	// in one transaction. A missing id is NotFound.
	ChangeEmail(ctx context.Context, id, email string) error
	// Delete removes the auth; profile and providers cascade. A missing id is NotFound.
	Delete(ctx context.Context, id string) error
}
