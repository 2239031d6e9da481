package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"clan-portal/backend/internal/audit"
	authdomain "clan-portal/backend/internal/auth/domain"
	"clan-portal/backend/internal/oauth/discord"
	profiledomain "clan-portal/backend/internal/profile/domain"
	providerdomain "clan-portal/backend/internal/provider/domain"
	"clan-portal/backend/internal/security"
	"clan-portal/backend/internal/telemetry"
	telemetrydomain "clan-portal/backend/internal/telemetry/domain"
)

// Sentinel errors for the auth service; handlers map them to HTTP errors.
var (
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrNotConfirmed             = errors.New("account is not verified")
	ErrNoCode                   = errors.New("no code provided")
	ErrInvalidToken             = errors.New("invalid or expired token")
	ErrAccountNotFound          = errors.New("account not found")
	ErrAlreadyConfirmed         = errors.New("account already verified")
	ErrEmailInUse               = errors.New("email already in use")
	ErrProviderAlreadyConnected = errors.New("provider already connected")
	ErrProviderUnavailable      = errors.New("identity provider unavailable")
	ErrProviderEmailMissing     = errors.New("identity provider returned no email")
)

// AuthRepo is the credential store used by the auth service.
type AuthRepo interface {
	Create(ctx context.Context, a *authdomain.Auth) error
	GetByID(ctx context.Context, id string) (*authdomain.Auth, error)
	GetByEmail(ctx context.Context, email string) (*authdomain.Auth, error)
	GetByProvider(ctx context.Context, name providerdomain.Name, apiIdentifier string) (*authdomain.Auth, error)
	Update(ctx context.Context, id string, u authdomain.Update) error
	SetLocalPassword(ctx context.Context, id, hash string) error
	ChangeEmail(ctx context.Context, id, email string) error
	Delete(ctx context.Context, id string) error
}

// ProviderRepo is the minimal provider repository needed by the auth service.
type ProviderRepo interface {
	Create(ctx context.Context, p *providerdomain.Provider) error
	UpdateTokens(ctx context.Context, id string, t providerdomain.Tokens) error
}

// ProfileRepo is the minimal profile repository needed by the auth service.
type ProfileRepo interface {
	UpdateDiscordData(ctx context.Context, authID string, data *profiledomain.DiscordData) error
}

// DiscordClient exchanges authorization codes and reads the Discord user.
type DiscordClient interface {
	Exchange(ctx context.Context, code string) (*discord.Token, error)
	Me(ctx context.Context, accessToken string) (*discord.User, error)
}

// Mailer sends the account emails.
type Mailer interface {
	SendVerifyEmail(ctx context.Context, to, token string) error
	SendRecoverPassword(ctx context.Context, to, token string) error
	SendChangeEmail(ctx context.Context, to, token string) error
	SendRegisteredWithProvider(ctx context.Context, to, provider string) error
}

// Deps holds the collaborators of AuthService. Audit and Events are optional.
type Deps struct {
	Auths     AuthRepo
	Providers ProviderRepo
	Profiles  ProfileRepo
	Discord   DiscordClient
	Mailer    Mailer
	Hasher    *security.Hasher
	Tokens    *security.TokenProvider
	Audit     audit.AuditLogger
	Events    telemetry.EventEmitter
}

// Session is the result of a flow that signs the caller in.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Auth      *authdomain.Auth
}

// AuthService implements registration, local and Discord sign-in, verification,
// recovery and the account management flows.
type AuthService struct {
	auths     AuthRepo
	providers ProviderRepo
	profiles  ProfileRepo
	discord   DiscordClient
	mailer    Mailer
	hasher    *security.Hasher
	tokens    *security.TokenProvider
	audit     audit.AuditLogger
	events    telemetry.EventEmitter
	logins    metric.Int64Counter
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(d Deps) *AuthService {
	logins, err := otel.Meter("clan-portal/auth").Int64Counter("auth.login.attempts",
		metric.WithDescription("Login attempts by method and outcome"))
	if err != nil {
		log.Printf("auth: create login counter: %v", err)
	}
	return &AuthService{
		auths:     d.Auths,
		providers: d.Providers,
		profiles:  d.Profiles,
		discord:   d.Discord,
		mailer:    d.Mailer,
		hasher:    d.Hasher,
		tokens:    d.Tokens,
		audit:     d.Audit,
		events:    d.Events,
		logins:    logins,
	}
}

// issueSession signs a bearer token for a.
func (s *AuthService) issueSession(a *authdomain.Auth, trusted bool) (*Session, error) {
	token, exp, err := s.tokens.IssueBearerToken(a.ID, trusted)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, Auth: a}, nil
}

// record writes the audit entry and publishes the account event for a flow.
// Both are best-effort.
func (s *AuthService) record(ctx context.Context, authID, action, eventType string, meta map[string]string) {
	var metaJSON []byte
	if len(meta) > 0 {
		metaJSON, _ = json.Marshal(meta)
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, authID, action, audit.ResourceAuth, string(metaJSON))
	}
	telemetry.EmitAsync(ctx, s.events, &telemetrydomain.Event{
		ID:        uuid.New().String(),
		AuthID:    authID,
		EventType: eventType,
		Source:    "auth",
		Metadata:  metaJSON,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *AuthService) countLogin(ctx context.Context, method, outcome string) {
	if s.logins == nil {
		return
	}
	s.logins.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
