package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"clan-portal/backend/internal/db"
	"clan-portal/backend/internal/home/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a home repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the oldest home row, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) Get(ctx context.Context) (*domain.Home, error) {
	return r.getOne(ctx, `SELECT id, content, created_at, updated_at FROM homes ORDER BY created_at LIMIT 1`)
}

// Update replaces the content of the home row, or returns nil if none exists.
func (r *PostgresRepository) Update(ctx context.Context, c domain.Content) (*domain.Home, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return r.getOne(ctx, `
UPDATE homes SET content = $1::jsonb, updated_at = $2
WHERE id = (SELECT id FROM homes ORDER BY created_at LIMIT 1)
RETURNING id, content, created_at, updated_at`, string(b), time.Now().UTC())
}

// EnsureExists inserts a home row holding c unless one already exists.
func (r *PostgresRepository) EnsureExists(ctx context.Context, c domain.Content) (bool, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
INSERT INTO homes (id, content, created_at, updated_at)
SELECT $1, $2::jsonb, $3, $3
WHERE NOT EXISTS (SELECT 1 FROM homes)`, uuid.New().String(), string(b), now)
	if err != nil {
		return false, db.TranslateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, db.TranslateError(err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Home, error) {
	var (
		h       domain.Home
		content []byte
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&h.ID, &content, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, db.TranslateError(err)
	}
	if err := json.Unmarshal(content, &h.Content); err != nil {
		return nil, fmt.Errorf("decode home %s: %w", h.ID, err)
	}
	return &h, nil
}
