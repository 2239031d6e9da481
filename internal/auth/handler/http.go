package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"clan-portal/backend/internal/apperror"
	authdomain "clan-portal/backend/internal/auth/domain"
	"clan-portal/backend/internal/auth/service"
	profiledomain "clan-portal/backend/internal/profile/domain"
	"clan-portal/backend/internal/server/pipeline"
)

// AuthService is the orchestration the HTTP handler drives.
type AuthService interface {
	Register(ctx context.Context, email, password, userName string) (*authdomain.Auth, error)
	Login(ctx context.Context, email, password string, trusted bool) (*service.Session, error)
	OAuthLogin(ctx context.Context, code string, caller *authdomain.Auth) (*service.Session, error)
	ConnectLocal(ctx context.Context, caller *authdomain.Auth, password string) error
	Verify(ctx context.Context, token string) (*service.Session, error)
	ResendVerify(ctx context.Context, email string) error
	SendRecoverPassword(ctx context.Context, email string) error
	RecoverPassword(ctx context.Context, token, password string) error
	ChangePassword(ctx context.Context, caller *authdomain.Auth, password string) error
	RequestEmailChange(ctx context.Context, caller *authdomain.Auth, newEmail string) error
	ChangeEmail(ctx context.Context, caller *authdomain.Auth, token string) error
	DeleteAccount(ctx context.Context, caller *authdomain.Auth) error
}

// Request bodies. Field rules are enforced by pipeline.Validate.
type (
	RegisterRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
		UserName string `json:"userName" validate:"required"`
	}
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
		Trusted  *bool  `json:"trusted" validate:"required"`
	}
	// DiscordRequest leaves code unchecked; an empty code is an authentication failure.
	DiscordRequest struct {
		Code string `json:"code"`
	}
	PasswordRequest struct {
		Password string `json:"password" validate:"required,min=6"`
	}
	TokenRequest struct {
		Token string `json:"token" validate:"required"`
	}
	EmailRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
	RecoverPasswordRequest struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required,min=6"`
	}
	EmailChangeRequest struct {
		NewEmail string `json:"newEmail" validate:"required,email"`
	}
)

// SessionData is the payload of flows that sign the caller in.
type SessionData struct {
	Token string                 `json:"token"`
	User  *profiledomain.Profile `json:"user"`
}

// Handler serves the /auth routes.
type Handler struct {
	svc AuthService
	rs  *pipeline.Responder
}

// NewHandler returns a Handler writing through rs.
func NewHandler(svc AuthService, rs *pipeline.Responder) *Handler {
	return &Handler{svc: svc, rs: rs}
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) error {
	body := pipeline.Body[RegisterRequest](r.Context())
	if _, err := h.svc.Register(r.Context(), body.Email, body.Password, body.UserName); err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "Successfully registered, please check your email to verify your account.", nil)
	return nil
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) error {
	body := pipeline.Body[LoginRequest](r.Context())
	sess, err := h.svc.Login(r.Context(), body.Email, body.Password, *body.Trusted)
	if err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "Successfully logged in", sessionData(sess))
	return nil
}

// Discord handles POST /auth/discord. A bearer token, when present, links the
// Discord account to the caller instead of signing in another account.
func (h *Handler) Discord(w http.ResponseWriter, r *http.Request) error {
	body := pipeline.Body[DiscordRequest](r.Context())
	caller, _ := pipeline.AuthFromContext(r.Context())
	sess, err := h.svc.OAuthLogin(r.Context(), body.Code, caller)
	if err != nil {
		return mapDiscordError(err)
	}
	msg := "Successfully logged in"
	if caller != nil {
		msg = "Successfully connected"
	}
	h.rs.Success(w, msg, sessionData(sess))
	return nil
}

// ConnectLocal handles POST /auth/connect/local.
func (h *Handler) ConnectLocal(w http.ResponseWriter, r *http.Request) error {
	caller, _ := pipeline.AuthFromContext(r.Context())
	body := pipeline.Body[PasswordRequest](r.Context())
	if err := h.svc.ConnectLocal(r.Context(), caller, body.Password); err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "Successfully connected", nil)
	return nil
}

// Verify handles POST /auth/verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) error {
	body := pipeline.Body[TokenRequest](r.Context())
	sess, err := h.svc.Verify(r.Context(), body.Token)
	if err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "Successfully verified", sessionData(sess))
	return nil
}

// ResendVerify handles POST /auth/resend-verify.
func (h *Handler) ResendVerify(w http.ResponseWriter, r *http.Request) error {
	body := pipeline.Body[EmailRequest](r.Context())
	if err := h.svc.ResendVerify(r.Context(), body.Email); err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "Verification email sent", nil)
	return nil
}

// SendRecoverPassword handles POST /auth/send-recover-password. The response
// does not reveal whether the email belongs to an account; only a fatal error
// changes it.
func (h *Handler) SendRecoverPassword(w http.ResponseWriter, r *http.Request) error {
	body := pipeline.Body[EmailRequest](r.Context())
	if err := h.svc.SendRecoverPassword(r.Context(), body.Email); err != nil {
		if apperror.IsFatal(err) {
			return err
		}
		log.Printf("auth: send recover password: %v", err)
	}
	h.rs.Success(w, "If the email is registered, a recovery link has been sent", nil)
	return nil
}

// RecoverPassword handles POST /auth/recover-password.
func (h *Handler) RecoverPassword(w http.ResponseWriter, r *http.Request) error {
	body := pipeline.Body[RecoverPasswordRequest](r.Context())
	if err := h.svc.RecoverPassword(r.Context(), body.Token, body.Password); err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "Password successfully recovered", nil)
	return nil
}

// ChangePassword handles POST /auth/change-password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) error {
	caller, _ := pipeline.AuthFromContext(r.Context())
	body := pipeline.Body[PasswordRequest](r.Context())
	if err := h.svc.ChangePassword(r.Context(), caller, body.Password); err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "Password successfully changed", nil)
	return nil
}

// RequestEmailChange handles POST /auth/request-email-change.
func (h *Handler) RequestEmailChange(w http.ResponseWriter, r *http.Request) error {
	caller, _ := pipeline.AuthFromContext(r.Context())
	body := pipeline.Body[EmailChangeRequest](r.Context())
	if err := h.svc.RequestEmailChange(r.Context(), caller, body.NewEmail); err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "Please check your email to confirm the change", nil)
	return nil
}

// ChangeEmail handles POST /auth/change-email.
func (h *Handler) ChangeEmail(w http.ResponseWriter, r *http.Request) error {
	caller, _ := pipeline.AuthFromContext(r.Context())
	body := pipeline.Body[TokenRequest](r.Context())
	if err := h.svc.ChangeEmail(r.Context(), caller, body.Token); err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "Email successfully changed", nil)
	return nil
}

// DeleteAccount handles DELETE /auth.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) error {
	caller, _ := pipeline.AuthFromContext(r.Context())
	if err := h.svc.DeleteAccount(r.Context(), caller); err != nil {
		return mapError(err)
	}
	h.rs.Success(w, "Account successfully deleted", nil)
	return nil
}

func sessionData(s *service.Session) SessionData {
	return SessionData{Token: s.Token, User: s.Auth.Profile}
}

// mapError translates service sentinels into HTTP errors. Errors already
// classified by the store pass through; anything else is internal.
func mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperror.Unauthorized("Invalid email or password")
	case errors.Is(err, service.ErrNotConfirmed):
		return apperror.Unauthorized("Please verify your account first.")
	case errors.Is(err, service.ErrNoCode):
		return apperror.Unauthorized("No code provided")
	case errors.Is(err, service.ErrInvalidToken):
		return apperror.BadRequest("Invalid token")
	case errors.Is(err, service.ErrAccountNotFound):
		return apperror.NotFound("Account not found")
	case errors.Is(err, service.ErrAlreadyConfirmed):
		return apperror.BadRequest("Account already verified")
	case errors.Is(err, service.ErrEmailInUse):
		return apperror.Conflict("Email already in use")
	case errors.Is(err, service.ErrProviderAlreadyConnected):
		return apperror.Conflict("Provider already connected")
	case errors.Is(err, service.ErrProviderUnavailable):
		return apperror.Wrap(apperror.KindServiceUnavailable, "Discord API is unavailable", err)
	case errors.Is(err, service.ErrProviderEmailMissing):
		return apperror.BadRequest("Discord account has no email")
	}
	if _, ok := apperror.From(err); ok {
		return err
	}
	return apperror.Internal(err)
}

// mapDiscordError is mapError with the Discord-specific message for unexpected failures.
func mapDiscordError(err error) error {
	mapped := mapError(err)
	if apperror.KindOf(mapped) == apperror.KindInternal {
		log.Printf("auth: discord authentication: %v", err)
		return apperror.Wrap(apperror.KindInternal, "An error occurred while authenticating with Discord", err)
	}
	return mapped
}
