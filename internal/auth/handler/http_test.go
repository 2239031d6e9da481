package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"clan-portal/backend/internal/apperror"
	authdomain "clan-portal/backend/internal/auth/domain"
	"clan-portal/backend/internal/auth/service"
	"clan-portal/backend/internal/oauth/discord"
	profiledomain "clan-portal/backend/internal/profile/domain"
	"clan-portal/backend/internal/server/pipeline"
)

// stubService returns canned results and records the last call.
type stubService struct {
	err       error
	session   *service.Session
	lastCall  string
	lastEmail string
	trusted   bool
	caller    *authdomain.Auth
}

func (s *stubService) Register(_ context.Context, email, _, _ string) (*authdomain.Auth, error) {
	s.lastCall, s.lastEmail = "register", email
	return &authdomain.Auth{ID: "a-1"}, s.err
}

func (s *stubService) Login(_ context.Context, email, _ string, trusted bool) (*service.Session, error) {
	s.lastCall, s.lastEmail, s.trusted = "login", email, trusted
	return s.session, s.err
}

func (s *stubService) OAuthLogin(_ context.Context, _ string, caller *authdomain.Auth) (*service.Session, error) {
	s.lastCall, s.caller = "oauth", caller
	return s.session, s.err
}

func (s *stubService) ConnectLocal(context.Context, *authdomain.Auth, string) error {
	s.lastCall = "connect-local"
	return s.err
}

func (s *stubService) Verify(context.Context, string) (*service.Session, error) {
	s.lastCall = "verify"
	return s.session, s.err
}

func (s *stubService) ResendVerify(_ context.Context, email string) error {
	s.lastCall, s.lastEmail = "resend", email
	return s.err
}

func (s *stubService) SendRecoverPassword(_ context.Context, email string) error {
	s.lastCall, s.lastEmail = "send-recover", email
	return s.err
}

func (s *stubService) RecoverPassword(context.Context, string, string) error {
	s.lastCall = "recover"
	return s.err
}

func (s *stubService) ChangePassword(context.Context, *authdomain.Auth, string) error {
	s.lastCall = "change-password"
	return s.err
}

func (s *stubService) RequestEmailChange(context.Context, *authdomain.Auth, string) error {
	s.lastCall = "request-email-change"
	return s.err
}

func (s *stubService) ChangeEmail(context.Context, *authdomain.Auth, string) error {
	s.lastCall = "change-email"
	return s.err
}

func (s *stubService) DeleteAccount(context.Context, *authdomain.Auth) error {
	s.lastCall = "delete"
	return s.err
}

func newRouter(svc *stubService, caller *authdomain.Auth) http.Handler {
	rs := pipeline.NewResponder()
	p := pipeline.New(rs)
	h := NewHandler(svc, rs)
	withCaller := pipeline.Step{Name: "caller", Run: func(_ http.ResponseWriter, r *http.Request) (*http.Request, error) {
		if caller == nil {
			return r, nil
		}
		return r.WithContext(pipeline.WithAuth(r.Context(), caller)), nil
	}}
	r := chi.NewRouter()
	r.Method(http.MethodPost, "/auth/register", p.Compose(h.Register, pipeline.Validate[RegisterRequest]()))
	r.Method(http.MethodPost, "/auth/login", p.Compose(h.Login, pipeline.Validate[LoginRequest]()))
	r.Method(http.MethodPost, "/auth/discord", p.Compose(h.Discord, pipeline.Validate[DiscordRequest](), withCaller))
	r.Method(http.MethodPost, "/auth/verify", p.Compose(h.Verify, pipeline.Validate[TokenRequest]()))
	r.Method(http.MethodPost, "/auth/resend-verify", p.Compose(h.ResendVerify, pipeline.Validate[EmailRequest]()))
	r.Method(http.MethodPost, "/auth/send-recover-password", p.Compose(h.SendRecoverPassword, pipeline.Validate[EmailRequest]()))
	r.Method(http.MethodPost, "/auth/request-email-change", p.Compose(h.RequestEmailChange, withCaller, pipeline.Validate[EmailChangeRequest]()))
	r.Method(http.MethodDelete, "/auth", p.Compose(h.DeleteAccount, withCaller))
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return rec.Code, out
}

func session() *service.Session {
	return &service.Session{
		Token: "jwt",
		Auth:  &authdomain.Auth{ID: "a-1", Profile: &profiledomain.Profile{ID: "p-1", UserName: "player"}},
	}
}

func TestRegister(t *testing.T) {
	svc := &stubService{}
	status, body := do(t, newRouter(svc, nil), http.MethodPost, "/auth/register", `{"email":"a@b.co","password":"secret1","userName":"p"}`)
	if status != http.StatusOK || body["message"] != "Successfully registered, please check your email to verify your account." {
		t.Errorf("status %d body %v", status, body)
	}
	if _, ok := body["data"]; ok {
		t.Error("register must not return data")
	}

	svc.err = apperror.Conflict(`Unique constraint failed on: "email"`)
	status, body = do(t, newRouter(svc, nil), http.MethodPost, "/auth/register", `{"email":"a@b.co","password":"secret1","userName":"p"}`)
	if status != http.StatusConflict || body["message"] != `Unique constraint failed on: "email"` {
		t.Errorf("conflict: status %d body %v", status, body)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := &stubService{}
	status, body := do(t, newRouter(svc, nil), http.MethodPost, "/auth/register", `{"email":"a@b.co","password":"123","userName":"p"}`)
	if status != http.StatusBadRequest || body["message"] != `"password" length must be at least 6 characters long` {
		t.Errorf("status %d body %v", status, body)
	}
	if svc.lastCall != "" {
		t.Error("service called despite invalid body")
	}
}

func TestLogin(t *testing.T) {
	svc := &stubService{session: session()}
	status, body := do(t, newRouter(svc, nil), http.MethodPost, "/auth/login", `{"email":"a@b.co","password":"secret1","trusted":true}`)
	if status != http.StatusOK || body["message"] != "Successfully logged in" {
		t.Fatalf("status %d body %v", status, body)
	}
	data := body["data"].(map[string]any)
	if data["token"] != "jwt" || data["user"].(map[string]any)["id"] != "p-1" {
		t.Errorf("data = %v", data)
	}
	if !svc.trusted {
		t.Error("trusted flag not passed")
	}

	status, body = do(t, newRouter(svc, nil), http.MethodPost, "/auth/login", `{"email":"a@b.co","password":"secret1"}`)
	if status != http.StatusBadRequest || body["message"] != `"trusted" is required` {
		t.Errorf("missing trusted: status %d body %v", status, body)
	}
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
		{service.ErrNotConfirmed, http.StatusUnauthorized, "Please verify your account first."},
		{errors.New("db exploded"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			svc := &stubService{err: tt.err}
			status, body := do(t, newRouter(svc, nil), http.MethodPost, "/auth/login", `{"email":"a@b.co","password":"secret1","trusted":false}`)
			if status != tt.status || body["message"] != tt.message {
				t.Errorf("status %d body %v", status, body)
			}
		})
	}
}

func TestDiscord(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		caller  *authdomain.Auth
		status  int
		message string
	}{
		{"login", nil, nil, http.StatusOK, "Successfully logged in"},
		{"connect", nil, &authdomain.Auth{ID: "a-1"}, http.StatusOK, "Successfully connected"},
		{"no code", service.ErrNoCode, nil, http.StatusUnauthorized, "No code provided"},
		{"unavailable", fmt.Errorf("discord exchange code: %w: %w", service.ErrProviderUnavailable, discord.ErrUnavailable), nil, http.StatusServiceUnavailable, "Discord API is unavailable"},
		{"unexpected", errors.New("bad payload"), nil, http.StatusInternalServerError, "An error occurred while authenticating with Discord"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{err: tt.err, session: session()}
			status, body := do(t, newRouter(svc, tt.caller), http.MethodPost, "/auth/discord", `{"code":"abc"}`)
			if status != tt.status || body["message"] != tt.message {
				t.Errorf("status %d body %v", status, body)
			}
		})
	}
}

func TestSendRecoverPassword_AlwaysOK(t *testing.T) {
	for _, err := range []error{nil, errors.New("anything")} {
		svc := &stubService{err: err}
		status, _ := do(t, newRouter(svc, nil), http.MethodPost, "/auth/send-recover-password", `{"email":"a@b.co"}`)
		if status != http.StatusOK {
			t.Errorf("err %v: status %d, want 200", err, status)
		}
	}
}

func TestSendRecoverPassword_FatalErrorExits(t *testing.T) {
	exitCode := -1
	rs := &pipeline.Responder{Exit: func(code int) { exitCode = code }}
	h := NewHandler(&stubService{err: apperror.New(apperror.KindFatal, "Internal server error")}, rs)
	route := pipeline.New(rs).Compose(h.SendRecoverPassword, pipeline.Validate[EmailRequest]())

	status, _ := do(t, route, http.MethodPost, "/auth/send-recover-password", `{"email":"a@b.co"}`)
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	if exitCode != 1 {
		t.Errorf("exit code = %d, want 1", exitCode)
	}
}

func TestAccountFlows_ErrorMapping(t *testing.T) {
	tests := []struct {
		name, method, path, body string
		err                      error
		status                   int
		message                  string
	}{
		{"verify bad token", http.MethodPost, "/auth/verify", `{"token":"x"}`, service.ErrInvalidToken, http.StatusBadRequest, "Invalid token"},
		{"resend unknown", http.MethodPost, "/auth/resend-verify", `{"email":"a@b.co"}`, service.ErrAccountNotFound, http.StatusNotFound, "Account not found"},
		{"resend confirmed", http.MethodPost, "/auth/resend-verify", `{"email":"a@b.co"}`, service.ErrAlreadyConfirmed, http.StatusBadRequest, "Account already verified"},
		{"email taken", http.MethodPost, "/auth/request-email-change", `{"newEmail":"c@d.co"}`, service.ErrEmailInUse, http.StatusConflict, "Email already in use"},
		{"delete ok", http.MethodDelete, "/auth", ``, nil, http.StatusOK, "Account successfully deleted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{err: tt.err, session: session()}
			status, body := do(t, newRouter(svc, &authdomain.Auth{ID: "a-1"}), tt.method, tt.path, tt.body)
			if status != tt.status || body["message"] != tt.message {
				t.Errorf("status %d body %v", status, body)
			}
		})
	}
}
