package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, signed
	// with another key or method, or issued for a different purpose.
	ErrInvalidToken = errors.New("invalid token")
)

// Purpose tags a special-purpose token. Bearer tokens carry no purpose.
type Purpose string

const (
	PurposeVerifyEmail     Purpose = "VERIFY_EMAIL"
	PurposeRecoverPassword Purpose = "RECOVER_PASSWORD"
	PurposeChangeEmail     Purpose = "CHANGE_EMAIL"
)

// Token lifetimes.
const (
	BearerTTL          = 7 * time.Hour
	TrustedBearerTTL   = 30 * 24 * time.Hour
	VerifyEmailTTL     = 24 * time.Hour
	RecoverPasswordTTL = 2 * time.Hour
	ChangeEmailTTL     = 2 * time.Hour
)

// Claims holds JWT claims for every token the service issues. Subject is the Auth id.
type Claims struct {
	jwt.RegisteredClaims
	Service  Purpose `json:"service,omitempty"`
	NewEmail string  `json:"newEmail,omitempty"`
}

// TokenProvider issues and validates HS256 tokens signed with one process-wide secret.
type TokenProvider struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with secret and sets issuer on every token.
func NewTokenProvider(secret []byte, issuer string) *TokenProvider {
	return &TokenProvider{
		secret: secret,
		issuer: issuer,
		now:    time.Now,
	}
}

// IssueBearerToken issues the API access token for authID. Trusted devices get
// TrustedBearerTTL, others BearerTTL. Returns the token and its expiration time.
func (p *TokenProvider) IssueBearerToken(authID string, trusted bool) (token string, expiresAt time.Time, err error) {
	ttl := BearerTTL
	if trusted {
		ttl = TrustedBearerTTL
	}
	return p.issue(authID, "", "", ttl)
}

// IssueVerifyEmailToken issues the token mailed after registration.
func (p *TokenProvider) IssueVerifyEmailToken(authID string) (string, error) {
	token, _, err := p.issue(authID, PurposeVerifyEmail, "", VerifyEmailTTL)
	return token, err
}

// IssueRecoverPasswordToken issues the token mailed by the forgotten-password flow.
func (p *TokenProvider) IssueRecoverPasswordToken(authID string) (string, error) {
	token, _, err := p.issue(authID, PurposeRecoverPassword, "", RecoverPasswordTTL)
	return token, err
}

// IssueChangeEmailToken issues a token binding authID to newEmail.
func (p *TokenProvider) IssueChangeEmailToken(authID, newEmail string) (string, error) {
	token, _, err := p.issue(authID, PurposeChangeEmail, newEmail, ChangeEmailTTL)
	return token, err
}

func (p *TokenProvider) issue(authID string, purpose Purpose, newEmail string, ttl time.Duration) (string, time.Time, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   authID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Service:  purpose,
		NewEmail: newEmail,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyBearerToken validates an access token. Tokens carrying any purpose are rejected.
func (p *TokenProvider) VerifyBearerToken(token string) (*Claims, error) {
	return p.Verify(token, "")
}

// VerifyVerifyEmailToken validates a token issued by IssueVerifyEmailToken.
func (p *TokenProvider) VerifyVerifyEmailToken(token string) (*Claims, error) {
	return p.Verify(token, PurposeVerifyEmail)
}

// VerifyRecoverPasswordToken validates a token issued by IssueRecoverPasswordToken.
func (p *TokenProvider) VerifyRecoverPasswordToken(token string) (*Claims, error) {
	return p.Verify(token, PurposeRecoverPassword)
}

// VerifyChangeEmailToken validates a token issued by IssueChangeEmailToken.
// The returned claims carry NewEmail.
func (p *TokenProvider) VerifyChangeEmailToken(token string) (*Claims, error) {
	claims, err := p.Verify(token, PurposeChangeEmail)
	if err != nil {
		return nil, err
	}
	if claims.NewEmail == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verify parses tokenString (signature, exp, iss) and checks that its purpose
// equals expected. Any failure returns ErrInvalidToken.
func (p *TokenProvider) Verify(tokenString string, expected Purpose) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Service != expected {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
