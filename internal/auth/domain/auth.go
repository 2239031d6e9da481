package domain

import (
	"time"

	profiledomain "clan-portal/backend/internal/profile/domain"
	providerdomain "clan-portal/backend/internal/provider/domain"
)

// Auth is the credential root of an account. It owns one Profile and any
// number of Providers; deleting it removes both.
type Auth struct {
	ID           string
	Email        string
	PasswordHash string
	Confirmed    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Profile   *profiledomain.Profile
	Providers []*providerdomain.Provider
}

// ProfileID returns the id of the attached profile, or "" when none is loaded.
func (a *Auth) ProfileID() string {
	if a == nil || a.Profile == nil {
		return ""
	}
	return a.Profile.ID
}

// HasScope reports whether the account's role grants scope.
func (a *Auth) HasScope(scope string) bool {
	if a == nil || a.Profile == nil {
		return false
	}
	return a.Profile.Role.HasScope(scope)
}

// Scopes returns the scopes granted by the account's role.
func (a *Auth) Scopes() []string {
	if a == nil || a.Profile == nil || a.Profile.Role == nil {
		return nil
	}
	return a.Profile.Role.Scopes
}

// Provider returns the first provider binding with the given name, or nil.
func (a *Auth) Provider(name providerdomain.Name) *providerdomain.Provider {
	if a == nil {
		return nil
	}
	for _, p := range a.Providers {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Update holds partial changes to an Auth. Nil fields are left unchanged.
type Update struct {
	Email        *string
	PasswordHash *string
	Confirmed    *bool
}
