package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"clan-portal/backend/internal/db"
	"clan-portal/backend/internal/provider/domain"
)

// Columns selects a provider row aliased pr in the order expected by Scan.
const Columns = `pr.id, pr.auth_id, pr.name, pr.api_identifier, pr.api_token, pr.api_refresh_token,
pr.expires_at, pr.created_at, pr.updated_at`

// Execer is the subset of *sql.DB and *sql.Tx used for inserts.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a provider repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the provider. ID and timestamps are set when empty.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Provider) error {
	return db.TranslateError(Insert(ctx, r.db, p))
}

// UpdateTokens stores a refreshed token set on provider id.
func (r *PostgresRepository) UpdateTokens(ctx context.Context, id string, t domain.Tokens) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE providers SET api_token = $2, api_refresh_token = $3, expires_at = $4, updated_at = $5 WHERE id = $1`,
		id, nullString(t.AccessToken), nullString(t.RefreshToken), nullTime(t.ExpiresAt), time.Now().UTC())
	return db.TranslateError(err)
}

// UpdateIdentifier re-points the authID binding with the given name.
func (r *PostgresRepository) UpdateIdentifier(ctx context.Context, authID string, name domain.Name, apiIdentifier string) error {
	return db.TranslateError(UpdateIdentifier(ctx, r.db, authID, name, apiIdentifier))
}

// ListExpiring returns refreshable bindings expiring before the deadline.
func (r *PostgresRepository) ListExpiring(ctx context.Context, name domain.Name, before time.Time, limit int32) ([]*domain.Provider, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+Columns+` FROM providers pr
WHERE pr.name = $1 AND pr.api_refresh_token IS NOT NULL AND pr.expires_at < $2
ORDER BY pr.expires_at
LIMIT $3`, string(name), before, limit)
	if err != nil {
		return nil, db.TranslateError(err)
	}
	defer rows.Close()
	var out []*domain.Provider
	for rows.Next() {
		p, err := Scan(rows)
		if err != nil {
			return nil, db.TranslateError(err)
		}
		out = append(out, p)
	}
	return out, db.TranslateError(rows.Err())
}

// Insert writes p through ex, which may be a transaction. Errors are not translated.
func Insert(ctx context.Context, ex Execer, p *domain.Provider) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	_, err := ex.ExecContext(ctx, `
INSERT INTO providers (id, auth_id, name, api_identifier, api_token, api_refresh_token, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.AuthID, string(p.Name), p.APIIdentifier, nullString(p.APIToken), nullString(p.APIRefreshToken),
		nullTime(p.ExpiresAt), p.CreatedAt, p.UpdatedAt)
	return err
}

// UpdateIdentifier is the statement behind PostgresRepository.UpdateIdentifier, usable in a transaction.
func UpdateIdentifier(ctx context.Context, ex Execer, authID string, name domain.Name, apiIdentifier string) error {
	_, err := ex.ExecContext(ctx,
		`UPDATE providers SET api_identifier = $3, updated_at = $4 WHERE auth_id = $1 AND name = $2`,
		authID, string(name), apiIdentifier, time.Now().UTC())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Scan reads one row selected with Columns.
func Scan(row rowScanner) (*domain.Provider, error) {
	var (
		p       domain.Provider
		name    string
		token   sql.NullString
		refresh sql.NullString
		expires sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.AuthID, &name, &p.APIIdentifier, &token, &refresh, &expires, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Name = domain.Name(name)
	p.APIToken = token.String
	p.APIRefreshToken = refresh.String
	if expires.Valid {
		t := expires.Time
		p.ExpiresAt = &t
	}
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
