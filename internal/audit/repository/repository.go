package repository

import (
	"context"

	"clan-portal/backend/internal/audit/domain"
)

// Repository persists audit logs. Entries are append-only.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
}
