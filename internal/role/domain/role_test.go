package domain

import "testing"

func TestRole_HasScope(t *testing.T) {
	r := &Role{Name: RoleUser, Scopes: []string{ScopeProfileGetSelf}}
	if !r.HasScope(ScopeProfileGetSelf) {
		t.Error("HasScope should find profile:get-self")
	}
	if r.HasScope(ScopeProfileGet) {
		t.Error("HasScope should not find profile:get")
	}
	var nilRole *Role
	if nilRole.HasScope(ScopeProfileGetSelf) {
		t.Error("nil role should have no scopes")
	}
}

func TestDefaultRoles(t *testing.T) {
	roles := DefaultRoles()
	byName := map[string]Role{}
	for _, r := range roles {
		byName[r.Name] = r
	}
	if len(byName) != 4 {
		t.Fatalf("got %d roles, want 4", len(byName))
	}

	user := byName[RoleUser]
	if user.HasScope(ScopeProfileGet) || user.HasScope(ScopeProfileUpdate) || user.HasScope(ScopeHomeUpdate) {
		t.Errorf("user role too broad: %v", user.Scopes)
	}
	for _, name := range []string{RoleUser, RoleModerator, RoleCollaborator, RoleAdmin} {
		r := byName[name]
		for _, s := range []string{ScopeProfileGetSelf, ScopeProfileUpdateSelf, ScopeHomeGet} {
			if !r.HasScope(s) {
				t.Errorf("%s missing %s", name, s)
			}
		}
	}
	collaborator := byName[RoleCollaborator]
	if !collaborator.HasScope(ScopeHomeUpdate) {
		t.Error("collaborator should update home")
	}
	admin := byName[RoleAdmin]
	for _, s := range []string{ScopeProfileGet, ScopeProfileUpdate, ScopeProfileUpdateRole, ScopeHomeUpdate} {
		if !admin.HasScope(s) {
			t.Errorf("admin missing %s", s)
		}
	}
}

func TestDefaultRoles_IndependentSlices(t *testing.T) {
	roles := DefaultRoles()
	roles[0].Scopes[0] = "mutated"
	if DefaultRoles()[0].Scopes[0] == "mutated" {
		t.Error("DefaultRoles must return fresh slices")
	}
	if roles[1].Scopes[0] == "mutated" {
		t.Error("roles must not share backing arrays")
	}
}
