package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clan-portal/backend/internal/db"
	"clan-portal/backend/internal/profile/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a profile repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// List returns every profile, oldest first.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+Columns+` FROM `+FromJoin+` ORDER BY p.created_at`)
	if err != nil {
		return nil, db.TranslateError(err)
	}
	defer rows.Close()
	var out []*domain.Profile
	for rows.Next() {
		var row Row
		if err := rows.Scan(row.Dest()...); err != nil {
			return nil, db.TranslateError(err)
		}
		p, err := row.Profile()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, db.TranslateError(rows.Err())
}

// GetByID returns the profile for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	return r.getOne(ctx, `SELECT `+Columns+` FROM `+FromJoin+` WHERE p.id = $1`, id)
}

// GetByAuthID returns the profile owned by authID, or nil if not found.
func (r *PostgresRepository) GetByAuthID(ctx context.Context, authID string) (*domain.Profile, error) {
	return r.getOne(ctx, `SELECT `+Columns+` FROM `+FromJoin+` WHERE p.auth_id = $1`, authID)
}

// Update replaces the editable fields of profile id and returns the result, or nil if not found.
func (r *PostgresRepository) Update(ctx context.Context, id string, u domain.Update) (*domain.Profile, error) {
	return r.getOne(ctx, `
WITH p AS (
	UPDATE profiles SET user_name = $2, email = $3, name = $4, picture = $5, biography = $6,
		gender = $7, date_of_birth = $8, updated_at = $9
	WHERE id = $1
	RETURNING *
)
SELECT `+Columns+` FROM p JOIN roles r ON r.name = p.role`,
		id, u.UserName, u.Email, NullString(u.Name), NullString(u.Picture), NullString(u.Biography),
		NullString(u.Gender), NullString(u.DateOfBirth), time.Now().UTC())
}

// UpdateRole sets the role of profile id and returns the result, or nil if not found.
// An unknown role violates the roles foreign key and is reported as a conflict.
func (r *PostgresRepository) UpdateRole(ctx context.Context, id, role string) (*domain.Profile, error) {
	return r.getOne(ctx, `
WITH p AS (
	UPDATE profiles SET role = $2, updated_at = $3 WHERE id = $1 RETURNING *
)
SELECT `+Columns+` FROM p JOIN roles r ON r.name = p.role`,
		id, role, time.Now().UTC())
}

// UpdateDiscordData replaces discord_data on the profile owned by authID.
func (r *PostgresRepository) UpdateDiscordData(ctx context.Context, authID string, data *domain.DiscordData) error {
	v, err := EncodeDiscordData(data)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE profiles SET discord_data = $2::jsonb, updated_at = $3 WHERE auth_id = $1`,
		authID, v, time.Now().UTC())
	return db.TranslateError(err)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Profile, error) {
	var row Row
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(row.Dest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, db.TranslateError(err)
	}
	return row.Profile()
}
