package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"clan-portal/backend/internal/role/domain"
)

// scopes are read back as JSON so the TEXT[] column scans into a plain []string.
const roleColumns = `id, name, to_json(scopes), created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a role repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByName returns the role for name, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return role, nil
}

// List returns every role ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// Upsert inserts the role, or updates scopes when a role with the same name exists.
// ID is generated when empty.
func (r *PostgresRepository) Upsert(ctx context.Context, role *domain.Role) error {
	if role.ID == "" {
		role.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	scopes := role.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO roles (id, name, scopes, created_at, updated_at)
VALUES ($1, $2, $3::text[], $4, $4)
ON CONFLICT (name) DO UPDATE SET scopes = EXCLUDED.scopes, updated_at = EXCLUDED.updated_at`,
		role.ID, role.Name, scopes, now)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (*domain.Role, error) {
	var (
		role   domain.Role
		scopes []byte
	)
	if err := row.Scan(&role.ID, &role.Name, &scopes, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scopes, &role.Scopes); err != nil {
		return nil, fmt.Errorf("decode scopes of role %s: %w", role.Name, err)
	}
	return &role, nil
}
