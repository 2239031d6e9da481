package domain

import (
	"slices"
	"time"
)

// Role names. Roles are seeded reference data; profiles reference them by name.
const (
	RoleUser         = "user"
	RoleModerator    = "moderator"
	RoleCollaborator = "collaborator"
	RoleAdmin        = "admin"
)

// Scopes checked by the HTTP routes.
const (
	ScopeProfileGet        = "profile:get"
	ScopeProfileGetSelf    = "profile:get-self"
	ScopeProfileUpdate     = "profile:update"
	ScopeProfileUpdateSelf = "profile:update-self"
	ScopeProfileUpdateRole = "profile:update-role"
	ScopeHomeGet           = "home:get"
	ScopeHomeUpdate        = "home:update"
)

// Role is a named permission bundle.
type Role struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasScope reports whether scope is in the role's scope set. A nil role has no scopes.
func (r *Role) HasScope(scope string) bool {
	if r == nil {
		return false
	}
	return slices.Contains(r.Scopes, scope)
}

// DefaultRoles returns the seeded role set. Each role extends the one before it.
func DefaultRoles() []Role {
	user := []string{ScopeProfileGetSelf, ScopeProfileUpdateSelf, ScopeHomeGet}
	moderator := slices.Clone(user)
	collaborator := append(slices.Clone(moderator), ScopeHomeUpdate)
	admin := append(slices.Clone(collaborator), ScopeProfileGet, ScopeProfileUpdate, ScopeProfileUpdateRole)
	return []Role{
		{Name: RoleUser, Scopes: user},
		{Name: RoleModerator, Scopes: moderator},
		{Name: RoleCollaborator, Scopes: collaborator},
		{Name: RoleAdmin, Scopes: admin},
	}
}
