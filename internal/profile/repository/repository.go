package repository

import (
	"context"

	"clan-portal/backend/internal/profile/domain"
)

// Repository defines persistence for profiles. Profiles are created together
// with their Auth by the auth repository. Reads attach the profile's Role.
type Repository interface {
	List(ctx context.Context) ([]*domain.Profile, error)
	// GetByID returns the profile for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	// GetByAuthID returns the profile owned by authID, or nil if not found.
	GetByAuthID(ctx context.Context, authID string) (*domain.Profile, error)
	// Update applies u and returns the updated profile, or nil if id does not exist.
	Update(ctx context.Context, id string, u domain.Update) (*domain.Profile, error)
	// UpdateRole points the profile at another role and returns it, or nil if id does not exist.
	UpdateRole(ctx context.Context, id, role string) (*domain.Profile, error)
	// UpdateDiscordData replaces the Discord identity shown on the profile owned by authID.
	UpdateDiscordData(ctx context.Context, authID string, data *domain.DiscordData) error
}
