package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"clan-portal/backend/internal/auth/domain"
	"clan-portal/backend/internal/db"
	profilerepo "clan-portal/backend/internal/profile/repository"
	providerdomain "clan-portal/backend/internal/provider/domain"
	providerrepo "clan-portal/backend/internal/provider/repository"
	roledomain "clan-portal/backend/internal/role/domain"
)

const selectAuth = `SELECT a.id, a.email, a.password, a.confirmed, a.created_at, a.updated_at, ` +
	profilerepo.Columns + `
FROM auths a
JOIN profiles p ON p.auth_id = a.id
JOIN roles r ON r.name = p.role`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a credential store that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a, a.Profile and a.Providers in one transaction. Missing IDs
// and timestamps are filled in; the profile role defaults to "user".
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Auth) error {
	if a.Profile == nil {
		return errors.New("auth repository: create requires a profile")
	}
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = a.CreatedAt

	p := a.Profile
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.AuthID = a.ID
	if p.RoleName == "" {
		p.RoleName = roledomain.RoleUser
	}
	p.CreatedAt, p.UpdatedAt = a.CreatedAt, a.CreatedAt
	discord, err := profilerepo.EncodeDiscordData(p.DiscordData)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return db.TranslateError(err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO auths (id, email, password, confirmed, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Email, a.PasswordHash, a.Confirmed, a.CreatedAt, a.UpdatedAt); err != nil {
		return db.TranslateError(err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO profiles (id, auth_id, email, user_name, name, picture, biography, gender, date_of_birth, discord_data, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13)`,
		p.ID, p.AuthID, p.Email, p.UserName, profilerepo.NullString(p.Name), profilerepo.NullString(p.Picture),
		profilerepo.NullString(p.Biography), profilerepo.NullString(p.Gender), profilerepo.NullString(p.DateOfBirth),
		discord, p.RoleName, p.CreatedAt, p.UpdatedAt); err != nil {
		return db.TranslateError(err)
	}
	for _, pr := range a.Providers {
		pr.AuthID = a.ID
		if err := providerrepo.Insert(ctx, tx, pr); err != nil {
			return db.TranslateError(err)
		}
	}
	return db.TranslateError(tx.Commit())
}

// GetByID returns the auth for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Auth, error) {
	return r.getOne(ctx, selectAuth+` WHERE a.id = $1`, id)
}

// GetByEmail returns the auth whose credential email equals email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Auth, error) {
	return r.getOne(ctx, selectAuth+` WHERE a.email = $1`, email)
}

// GetByProvider returns the auth bound to (name, apiIdentifier), or nil if not found.
func (r *PostgresRepository) GetByProvider(ctx context.Context, name providerdomain.Name, apiIdentifier string) (*domain.Auth, error) {
	return r.getOne(ctx, selectAuth+`
JOIN providers b ON b.auth_id = a.id
WHERE b.name = $1 AND b.api_identifier = $2`, string(name), apiIdentifier)
}

// Update applies the non-nil fields of u to auth id.
func (r *PostgresRepository) Update(ctx context.Context, id string, u domain.Update) error {
	sets := []string{}
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.Email != nil {
		add("email", *u.Email)
	}
	if u.PasswordHash != nil {
		add("password", *u.PasswordHash)
	}
	if u.Confirmed != nil {
		add("confirmed", *u.Confirmed)
	}
	add("updated_at", time.Now().UTC())

	res, err := r.db.ExecContext(ctx, `UPDATE auths SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return db.TranslateError(err)
	}
	return requireRow(res)
}

// SetLocalPassword stores hash as the password of auth id and binds the local
// provider to the auth email when the account has no local binding yet.
func (r *PostgresRepository) SetLocalPassword(ctx context.Context, id, hash string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return db.TranslateError(err)
	}
	defer rollback(tx)

	now := time.Now().UTC()
	var email string
	if err := tx.QueryRowContext(ctx,
		`UPDATE auths SET password = $2, updated_at = $3 WHERE id = $1 RETURNING email`, id, hash, now).Scan(&email); err != nil {
		return db.TranslateError(err)
	}
	var bound bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM providers WHERE auth_id = $1 AND name = $2)`, id, string(providerdomain.NameLocal)).Scan(&bound); err != nil {
		return db.TranslateError(err)
	}
	if !bound {
		p := &providerdomain.Provider{AuthID: id, Name: providerdomain.NameLocal, APIIdentifier: email, CreatedAt: now}
		if err := providerrepo.Insert(ctx, tx, p); err != nil {
			return db.TranslateError(err)
		}
	}
	return db.TranslateError(tx.Commit())
}

// ChangeEmail updates the credential email and the local binding together.
func (r *PostgresRepository) ChangeEmail(ctx context.Context, id, email string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return db.TranslateError(err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `UPDATE auths SET email = $2, updated_at = $3 WHERE id = $1`, id, email, time.Now().UTC())
	if err != nil {
		return db.TranslateError(err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	if err := providerrepo.UpdateIdentifier(ctx, tx, id, providerdomain.NameLocal, email); err != nil {
		return db.TranslateError(err)
	}
	return db.TranslateError(tx.Commit())
}

// Delete removes auth id. Profile and providers are removed by ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM auths WHERE id = $1`, id)
	if err != nil {
		return db.TranslateError(err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Auth, error) {
	var (
		a   domain.Auth
		row profilerepo.Row
	)
	dest := append([]any{&a.ID, &a.Email, &a.PasswordHash, &a.Confirmed, &a.CreatedAt, &a.UpdatedAt}, row.Dest()...)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, db.TranslateError(err)
	}
	p, err := row.Profile()
	if err != nil {
		return nil, err
	}
	a.Profile = p
	providers, err := r.listProviders(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.Providers = providers
	return &a, nil
}

func (r *PostgresRepository) listProviders(ctx context.Context, authID string) ([]*providerdomain.Provider, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+providerrepo.Columns+` FROM providers pr WHERE pr.auth_id = $1 ORDER BY pr.created_at`, authID)
	if err != nil {
		return nil, db.TranslateError(err)
	}
	defer rows.Close()
	var out []*providerdomain.Provider
	for rows.Next() {
		p, err := providerrepo.Scan(rows)
		if err != nil {
			return nil, db.TranslateError(err)
		}
		out = append(out, p)
	}
	return out, db.TranslateError(rows.Err())
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return db.TranslateError(err)
	}
	if n == 0 {
		return db.TranslateError(sql.ErrNoRows)
	}
	return nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Printf("auth repository: rollback: %v", err)
	}
}
