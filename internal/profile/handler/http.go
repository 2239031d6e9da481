package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clan-portal/backend/internal/apperror"
	"clan-portal/backend/internal/profile/domain"
	"clan-portal/backend/internal/profile/service"
	"clan-portal/backend/internal/server/pipeline"
)

// ProfileService is the profile CMS the handler drives.
type ProfileService interface {
	List(ctx context.Context) ([]*domain.Profile, error)
	Get(ctx context.Context, id string) (*domain.Profile, error)
	GetByAuth(ctx context.Context, authID string) (*domain.Profile, error)
	Update(ctx context.Context, id string, u domain.Update) (*domain.Profile, error)
	UpdateRole(ctx context.Context, id, role string) (*domain.Profile, error)
}

// UpdateProfileRequest is the body of PUT /profile/me and PUT /profile/{id}.
// Omitted optional fields are cleared.
type UpdateProfileRequest struct {
	UserName    string  `json:"userName" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	Name        *string `json:"name" validate:"omitempty"`
	Picture     *string `json:"picture" validate:"omitempty,url"`
	Biography   *string `json:"biography" validate:"omitempty"`
	Gender      *string `json:"gender" validate:"omitempty"`
	DateOfBirth *string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
}

func (r *UpdateProfileRequest) toUpdate() domain.Update {
	return domain.Update{
		UserName:    r.UserName,
		Email:       r.Email,
		Name:        r.Name,
		Picture:     r.Picture,
		Biography:   r.Biography,
		Gender:      r.Gender,
		DateOfBirth: r.DateOfBirth,
	}
}

// RoleRequest is the body of PUT /profile/{id}/role.
type RoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// Handler serves the /profile routes.
type Handler struct {
	svc ProfileService
	rs  *pipeline.Responder
}

// NewHandler returns a Handler writing through rs.
func NewHandler(svc ProfileService, rs *pipeline.Responder) *Handler {
	return &Handler{svc: svc, rs: rs}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) error {
	profiles, err := h.svc.List(r.Context())
	if err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "profiles retrieved", profiles)
	return nil
}

// Me returns the caller's own profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) error {
	caller, _ := pipeline.AuthFromContext(r.Context())
	p, err := h.svc.GetByAuth(r.Context(), caller.ID)
	if err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "profile retrieved", p)
	return nil
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) error {
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "profile retrieved", p)
	return nil
}

// UpdateMe edits the caller's own profile.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) error {
	caller, _ := pipeline.AuthFromContext(r.Context())
	id := caller.ProfileID()
	if id == "" {
		return apperror.NotFound("Profile not found")
	}
	body := pipeline.Body[UpdateProfileRequest](r.Context())
	p, err := h.svc.Update(r.Context(), id, body.toUpdate())
	if err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "profile updated", p)
	return nil
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) error {
	body := pipeline.Body[UpdateProfileRequest](r.Context())
	p, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), body.toUpdate())
	if err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "profile updated", p)
	return nil
}

// UpdateRole assigns a role to the profile in the path.
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) error {
	body := pipeline.Body[RoleRequest](r.Context())
	p, err := h.svc.UpdateRole(r.Context(), chi.URLParam(r, "id"), body.Role)
	if err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "profile role updated", p)
	return nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrProfileNotFound):
		return apperror.NotFound("Profile not found")
	case errors.Is(err, service.ErrRoleNotFound):
		return apperror.BadRequest("Role not found")
	}
	if _, ok := apperror.From(err); ok {
		return err
	}
	return apperror.Internal(err)
}
