package repository

import (
	"context"

	"clan-portal/backend/internal/role/domain"
)

// Repository defines persistence for roles.
type Repository interface {
	// GetByName returns the role with name, or nil if not found.
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	List(ctx context.Context) ([]*domain.Role, error)
	// Upsert creates the role or replaces the scopes of the existing role with the same name.
	Upsert(ctx context.Context, r *domain.Role) error
}
