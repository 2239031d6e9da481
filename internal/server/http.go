package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"clan-portal/backend/internal/audit"
	authhandler "clan-portal/backend/internal/auth/handler"
	healthhandler "clan-portal/backend/internal/health/handler"
	homedomain "clan-portal/backend/internal/home/domain"
	homehandler "clan-portal/backend/internal/home/handler"
	"clan-portal/backend/internal/platform/rbac"
	"clan-portal/backend/internal/policy/engine"
	profilehandler "clan-portal/backend/internal/profile/handler"
	roledomain "clan-portal/backend/internal/role/domain"
	"clan-portal/backend/internal/security"
	"clan-portal/backend/internal/server/pipeline"
	"clan-portal/backend/internal/telemetry"
)

// Rate limit buckets. Each bucket is counted per client IP.
const (
	bucketLogin           = "login"
	bucketResendVerify    = "resend-verify"
	bucketRecoverPassword = "recover-password"
)

// Deps holds the services and infrastructure the router wires into handlers.
type Deps struct {
	Auth     authhandler.AuthService
	Profiles profilehandler.ProfileService
	Home     homehandler.HomeService

	// Tokens and Accounts back the JWT gate.
	Tokens   *security.TokenProvider
	Accounts pipeline.AuthLoader

	// Authz decides scope containment. If nil, the in-memory scope set check is used.
	Authz engine.Evaluator
	// Limiter throttles login and recovery endpoints. If nil, no limiting is applied.
	Limiter pipeline.Limiter
	// Audit records successful profile and home writes. If nil, nothing is audited.
	Audit audit.AuditLogger
	// Events receives one http.request event per request. If nil, no events are emitted.
	Events telemetry.EventEmitter

	// Health dependencies; nil entries are skipped by /healthz.
	HealthDB     healthhandler.Pinger
	HealthPolicy healthhandler.PolicyChecker
	HealthCache  healthhandler.Pinger

	// CORSOrigins lists allowed browser origins. Empty allows all origins without credentials.
	CORSOrigins []string
	// TrustedProxies are the peers whose forwarding headers name the client IP.
	TrustedProxies pipeline.TrustedProxies
	// Responder writes envelopes. If nil, pipeline.NewResponder is used.
	Responder *pipeline.Responder
}

// NewRouter returns the HTTP handler serving every route.
//
// Route → handler mapping:
//   - /auth/*    → internal/auth/handler
//   - /profile/* → internal/profile/handler
//   - /home      → internal/home/handler
//   - /healthz   → internal/health/handler
func NewRouter(deps Deps) http.Handler {
	rs := deps.Responder
	if rs == nil {
		rs = pipeline.NewResponder()
	}
	var opts []pipeline.Option
	if deps.Audit != nil {
		opts = append(opts, pipeline.WithAuditor(deps.Audit))
	}
	if deps.Events != nil {
		opts = append(opts, pipeline.WithEvents(deps.Events))
	}
	p := pipeline.New(rs, opts...)
	gate := pipeline.NewGate(deps.Tokens, deps.Accounts)
	authz := rbac.NewEngine(deps.Authz)

	r := chi.NewRouter()
	r.Use(corsHandler(deps.CORSOrigins))
	r.Use(deps.TrustedProxies.Middleware)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		rs.JSON(w, http.StatusNotFound, pipeline.ErrorBody{Status: http.StatusNotFound, Error: "Not Found", Message: "Route not found"})
	})

	r.Method(http.MethodGet, "/healthz", healthhandler.NewServer(deps.HealthDB, deps.HealthPolicy, deps.HealthCache, rs))

	a := authhandler.NewHandler(deps.Auth, rs)
	r.Route("/auth", func(r chi.Router) {
		r.Method(http.MethodPost, "/register", p.Compose(a.Register,
			pipeline.Validate[authhandler.RegisterRequest]()))
		r.Method(http.MethodPost, "/login", p.Compose(a.Login,
			pipeline.RateLimit(deps.Limiter, bucketLogin),
			pipeline.Validate[authhandler.LoginRequest]()))
		r.Method(http.MethodPost, "/discord", p.Compose(a.Discord,
			pipeline.Validate[authhandler.DiscordRequest](),
			gate.Optional()))
		r.Method(http.MethodPost, "/connect/local", p.Compose(a.ConnectLocal,
			gate.Required(),
			pipeline.Validate[authhandler.PasswordRequest]()))
		r.Method(http.MethodPost, "/verify", p.Compose(a.Verify,
			pipeline.Validate[authhandler.TokenRequest]()))
		r.Method(http.MethodPost, "/resend-verify", p.Compose(a.ResendVerify,
			pipeline.RateLimit(deps.Limiter, bucketResendVerify),
			pipeline.Validate[authhandler.EmailRequest]()))
		r.Method(http.MethodPost, "/send-recover-password", p.Compose(a.SendRecoverPassword,
			pipeline.RateLimit(deps.Limiter, bucketRecoverPassword),
			pipeline.Validate[authhandler.EmailRequest]()))
		r.Method(http.MethodPost, "/recover-password", p.Compose(a.RecoverPassword,
			pipeline.Validate[authhandler.RecoverPasswordRequest]()))
		r.Method(http.MethodPost, "/change-password", p.Compose(a.ChangePassword,
			gate.Required(),
			pipeline.Validate[authhandler.PasswordRequest]()))
		r.Method(http.MethodPost, "/request-email-change", p.Compose(a.RequestEmailChange,
			gate.Required(),
			pipeline.Validate[authhandler.EmailChangeRequest]()))
		r.Method(http.MethodPost, "/change-email", p.Compose(a.ChangeEmail,
			gate.Required(),
			pipeline.Validate[authhandler.TokenRequest]()))
		r.Method(http.MethodDelete, "/", p.Compose(a.DeleteAccount,
			gate.Required()))
	})

	pr := profilehandler.NewHandler(deps.Profiles, rs)
	r.Route("/profile", func(r chi.Router) {
		r.Method(http.MethodGet, "/", p.Compose(pr.List,
			gate.Required(),
			authz.RequireScope(roledomain.ScopeProfileGet)))
		r.Method(http.MethodGet, "/me", p.Compose(pr.Me,
			gate.Required(),
			authz.RequireScope(roledomain.ScopeProfileGetSelf)))
		r.Method(http.MethodPut, "/me", p.ComposeAudited(pr.UpdateMe,
			gate.Required(),
			authz.RequireScope(roledomain.ScopeProfileUpdateSelf),
			pipeline.Validate[profilehandler.UpdateProfileRequest]()))
		r.Method(http.MethodGet, "/{id}", p.Compose(pr.Get,
			gate.Required(),
			pipeline.UUIDParam("id"),
			authz.RequireScopeSelf(roledomain.ScopeProfileGet, "id")))
		r.Method(http.MethodPut, "/{id}", p.ComposeAudited(pr.Update,
			gate.Required(),
			pipeline.UUIDParam("id"),
			authz.RequireScopeSelf(roledomain.ScopeProfileUpdate, "id"),
			pipeline.Validate[profilehandler.UpdateProfileRequest]()))
		r.Method(http.MethodPut, "/{id}/role", p.ComposeAudited(pr.UpdateRole,
			gate.Required(),
			pipeline.UUIDParam("id"),
			authz.RequireScope(roledomain.ScopeProfileUpdateRole),
			pipeline.Validate[profilehandler.RoleRequest]()))
	})

	h := homehandler.NewHandler(deps.Home, rs)
	r.Method(http.MethodGet, "/home", p.Compose(h.Get,
		gate.Required(),
		authz.RequireScope(roledomain.ScopeHomeGet)))
	r.Method(http.MethodPut, "/home", p.ComposeAudited(h.Update,
		gate.Required(),
		authz.RequireScope(roledomain.ScopeHomeUpdate),
		pipeline.Validate[homedomain.Content]()))

	return otelhttp.NewHandler(r, "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		MaxAge:         int((5 * time.Minute).Seconds()),
	}
	if len(origins) > 0 {
		opts.AllowedOrigins = origins
		opts.AllowCredentials = true
	}
	return cors.Handler(opts)
}
