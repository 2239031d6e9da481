package handler

import (
	"context"
	"errors"
	"net/http"

	"clan-portal/backend/internal/apperror"
	"clan-portal/backend/internal/home/domain"
	"clan-portal/backend/internal/home/service"
	"clan-portal/backend/internal/server/pipeline"
)

// HomeService reads and replaces the home document.
type HomeService interface {
	Get(ctx context.Context) (*domain.Home, error)
	Update(ctx context.Context, c domain.Content) (*domain.Home, error)
}

// Handler serves GET and PUT /home.
type Handler struct {
	svc HomeService
	rs  *pipeline.Responder
}

func NewHandler(svc HomeService, rs *pipeline.Responder) *Handler {
	return &Handler{svc: svc, rs: rs}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) error {
	home, err := h.svc.Get(r.Context())
	if err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "retrieved home", home)
	return nil
}

// Update replaces the document with the validated body.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) error {
	body := pipeline.Body[domain.Content](r.Context())
	home, err := h.svc.Update(r.Context(), *body)
	if err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "updated home", home)
	return nil
}

func mapError(err error) error {
	if errors.Is(err, service.ErrHomeNotFound) {
		return apperror.NotFound("Home not found")
	}
	if _, ok := apperror.From(err); ok {
		return err
	}
	return apperror.Internal(err)
}
