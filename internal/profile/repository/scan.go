package repository

import (
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"clan-portal/backend/internal/profile/domain"
	roledomain "clan-portal/backend/internal/role/domain"
)

// Columns selects a profile aliased p joined with its role aliased r, in the
// order expected by Row.Dest.
const Columns = `p.id, p.auth_id, p.email, p.user_name, p.name, p.picture, p.biography, p.gender,
p.date_of_birth, p.discord_data, p.role, p.created_at, p.updated_at,
r.id, r.name, to_json(r.scopes), r.created_at, r.updated_at`

// FromJoin is the FROM clause matching Columns.
const FromJoin = `profiles p JOIN roles r ON r.name = p.role`

// Row receives one scanned profile and role. Other repositories that load a
// profile next to their own columns append Dest() to their scan targets.
type Row struct {
	p           domain.Profile
	r           roledomain.Role
	name        sql.NullString
	picture     sql.NullString
	biography   sql.NullString
	gender      sql.NullString
	dateOfBirth sql.NullString
	discord     []byte
	scopes      []byte
}

// Dest returns the scan destinations for Columns.
func (s *Row) Dest() []any {
	return []any{
		&s.p.ID, &s.p.AuthID, &s.p.Email, &s.p.UserName, &s.name, &s.picture, &s.biography, &s.gender,
		&s.dateOfBirth, &s.discord, &s.p.RoleName, &s.p.CreatedAt, &s.p.UpdatedAt,
		&s.r.ID, &s.r.Name, &s.scopes, &s.r.CreatedAt, &s.r.UpdatedAt,
	}
}

// Profile converts the scanned row, decoding discord data and role scopes.
func (s *Row) Profile() (*domain.Profile, error) {
	p := s.p
	p.Name = nullableString(s.name)
	p.Picture = nullableString(s.picture)
	p.Biography = nullableString(s.biography)
	p.Gender = nullableString(s.gender)
	p.DateOfBirth = nullableString(s.dateOfBirth)
	if len(s.discord) > 0 && string(s.discord) != "null" {
		var d domain.DiscordData
		if err := json.Unmarshal(s.discord, &d); err != nil {
			return nil, fmt.Errorf("decode discord data of profile %s: %w", p.ID, err)
		}
		p.DiscordData = &d
	}
	r := s.r
	if err := json.Unmarshal(s.scopes, &r.Scopes); err != nil {
		return nil, fmt.Errorf("decode scopes of role %s: %w", r.Name, err)
	}
	p.Role = &r
	return &p, nil
}

// EncodeDiscordData returns the JSONB value for d; nil clears the column.
func EncodeDiscordData(d *domain.DiscordData) (any, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// NullString maps an optional field to a nullable column value.
func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
