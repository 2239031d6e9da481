package service

import (
	"context"
	"errors"
	"strings"

	"clan-portal/backend/internal/profile/domain"
	roledomain "clan-portal/backend/internal/role/domain"
)

// Sentinel errors for the profile service.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrRoleNotFound    = errors.New("role not found")
)

// ProfileRepo is the profile persistence used by the service.
type ProfileRepo interface {
	List(ctx context.Context) ([]*domain.Profile, error)
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	GetByAuthID(ctx context.Context, authID string) (*domain.Profile, error)
	Update(ctx context.Context, id string, u domain.Update) (*domain.Profile, error)
	UpdateRole(ctx context.Context, id, role string) (*domain.Profile, error)
}

// RoleRepo resolves role names.
type RoleRepo interface {
	GetByName(ctx context.Context, name string) (*roledomain.Role, error)
}

// ProfileService reads and edits profiles. Authorization happens before these calls.
type ProfileService struct {
	profiles ProfileRepo
	roles    RoleRepo
}

// NewProfileService returns a ProfileService.
func NewProfileService(profiles ProfileRepo, roles RoleRepo) *ProfileService {
	return &ProfileService{profiles: profiles, roles: roles}
}

// List returns every profile with its role.
func (s *ProfileService) List(ctx context.Context) ([]*domain.Profile, error) {
	return s.profiles.List(ctx)
}

// Get returns the profile with id or ErrProfileNotFound.
func (s *ProfileService) Get(ctx context.Context, id string) (*domain.Profile, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// GetByAuth returns the profile owned by authID or ErrProfileNotFound.
func (s *ProfileService) GetByAuth(ctx context.Context, authID string) (*domain.Profile, error) {
	p, err := s.profiles.GetByAuthID(ctx, authID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// Update replaces the editable fields of profile id.
func (s *ProfileService) Update(ctx context.Context, id string, u domain.Update) (*domain.Profile, error) {
	u.UserName = strings.TrimSpace(u.UserName)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	p, err := s.profiles.Update(ctx, id, u)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// UpdateRole assigns an existing role to profile id.
func (s *ProfileService) UpdateRole(ctx context.Context, id, role string) (*domain.Profile, error) {
	r, err := s.roles.GetByName(ctx, role)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrRoleNotFound
	}
	p, err := s.profiles.UpdateRole(ctx, id, r.Name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}
