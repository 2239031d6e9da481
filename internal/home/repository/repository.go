package repository

import (
	"context"

	"clan-portal/backend/internal/home/domain"
)

// Repository defines persistence for the singleton home document.
type Repository interface {
	// Get returns the home document, or nil if none has been seeded.
	Get(ctx context.Context) (*domain.Home, error)
	// Update replaces the content of the home document and returns it, or nil if none exists.
	Update(ctx context.Context, c domain.Content) (*domain.Home, error)
	// EnsureExists creates the home document with c when none exists. It reports whether a row was created.
	EnsureExists(ctx context.Context, c domain.Content) (bool, error)
}
