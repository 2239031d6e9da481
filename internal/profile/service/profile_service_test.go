package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"clan-portal/backend/internal/profile/domain"
	roledomain "clan-portal/backend/internal/role/domain"
)

type memProfiles struct {
	mu sync.Mutex
	m  map[string]*domain.Profile
}

func (r *memProfiles) List(context.Context) ([]*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Profile
	for _, p := range r.m {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memProfiles) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.m[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, nil
}

func (r *memProfiles) GetByAuthID(_ context.Context, authID string) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.m {
		if p.AuthID == authID {
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memProfiles) Update(_ context.Context, id string, u domain.Update) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	p.UserName, p.Email, p.Name, p.Picture = u.UserName, u.Email, u.Name, u.Picture
	p.Biography, p.Gender, p.DateOfBirth = u.Biography, u.Gender, u.DateOfBirth
	c := *p
	return &c, nil
}

func (r *memProfiles) UpdateRole(_ context.Context, id, role string) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	p.RoleName = role
	c := *p
	return &c, nil
}

type memRoles map[string]*roledomain.Role

func (m memRoles) GetByName(_ context.Context, name string) (*roledomain.Role, error) {
	return m[name], nil
}

func newService() (*ProfileService, *memProfiles) {
	profiles := &memProfiles{m: map[string]*domain.Profile{
		"p-1": {ID: "p-1", AuthID: "a-1", Email: "one@example.com", UserName: "one", RoleName: roledomain.RoleUser},
		"p-2": {ID: "p-2", AuthID: "a-2", Email: "two@example.com", UserName: "two", RoleName: roledomain.RoleAdmin},
	}}
	roles := memRoles{}
	for _, r := range roledomain.DefaultRoles() {
		r := r
		roles[r.Name] = &r
	}
	return NewProfileService(profiles, roles), profiles
}

func TestProfileService_Get(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	p, err := svc.Get(ctx, "p-1")
	if err != nil || p.UserName != "one" {
		t.Fatalf("Get = %+v, %v", p, err)
	}
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("missing err = %v", err)
	}
	p, err = svc.GetByAuth(ctx, "a-2")
	if err != nil || p.ID != "p-2" {
		t.Errorf("GetByAuth = %+v, %v", p, err)
	}
	list, err := svc.List(ctx)
	if err != nil || len(list) != 2 {
		t.Errorf("List = %d, %v", len(list), err)
	}
}

func TestProfileService_Update(t *testing.T) {
	svc, _ := newService()
	bio := "tank main"
	p, err := svc.Update(context.Background(), "p-1", domain.Update{UserName: " renamed ", Email: "One@Example.com", Biography: &bio})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.UserName != "renamed" || p.Email != "one@example.com" || p.Biography == nil || *p.Biography != bio {
		t.Errorf("profile = %+v", p)
	}
	if _, err := svc.Update(context.Background(), "missing", domain.Update{UserName: "x", Email: "x@example.com"}); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestProfileService_UpdateRole(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	p, err := svc.UpdateRole(ctx, "p-1", roledomain.RoleModerator)
	if err != nil || p.RoleName != roledomain.RoleModerator {
		t.Fatalf("UpdateRole = %+v, %v", p, err)
	}
	if _, err := svc.UpdateRole(ctx, "p-1", "overlord"); !errors.Is(err, ErrRoleNotFound) {
		t.Errorf("unknown role err = %v", err)
	}
	if _, err := svc.UpdateRole(ctx, "missing", roledomain.RoleUser); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("missing profile err = %v", err)
	}
}
