package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"clan-portal/backend/internal/audit"
	authdomain "clan-portal/backend/internal/auth/domain"
	profiledomain "clan-portal/backend/internal/profile/domain"
	providerdomain "clan-portal/backend/internal/provider/domain"
	roledomain "clan-portal/backend/internal/role/domain"
	telemetrydomain "clan-portal/backend/internal/telemetry/domain"
)

// Register creates an unconfirmed account with a local provider binding and
// mails a verification link. A taken email fails with the store's conflict error.
// Failure to send the mail is logged; the caller can use ResendVerify.
func (s *AuthService) Register(ctx context.Context, email, password, userName string) (*authdomain.Auth, error) {
	email = normalizeEmail(email)
	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	a := &authdomain.Auth{
		Email:        email,
		PasswordHash: hash,
		Profile: &profiledomain.Profile{
			Email:    email,
			UserName: strings.TrimSpace(userName),
			RoleName: roledomain.RoleUser,
		},
		Providers: []*providerdomain.Provider{{Name: providerdomain.NameLocal, APIIdentifier: email}},
	}
	if err := s.auths.Create(ctx, a); err != nil {
		return nil, err
	}
	s.sendVerifyEmail(ctx, a)
	s.record(ctx, a.ID, audit.ActionRegister, telemetrydomain.EventRegistered, map[string]string{"provider": string(providerdomain.NameLocal)})
	return a, nil
}

// AuthenticateLocal resolves the account bound to the local provider for email
// and checks password. Unknown email and wrong password both return
// ErrInvalidCredentials and take comparable time.
func (s *AuthService) AuthenticateLocal(ctx context.Context, email, password string) (*authdomain.Auth, error) {
	email = normalizeEmail(email)
	a, err := s.auths.GetByProvider(ctx, providerdomain.NameLocal, email)
	if err != nil {
		return nil, err
	}
	if a == nil {
		s.hasher.CompareDummy([]byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(a.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return a, nil
}

// Login authenticates with email and password and issues a bearer token whose
// lifetime depends on trusted. Unverified accounts get ErrNotConfirmed.
func (s *AuthService) Login(ctx context.Context, email, password string, trusted bool) (*Session, error) {
	a, err := s.AuthenticateLocal(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.countLogin(ctx, "local", "invalid_credentials")
			s.record(ctx, "", audit.ActionLoginFailure, telemetrydomain.EventLoginFailed, map[string]string{"provider": "local"})
		}
		return nil, err
	}
	if !a.Confirmed {
		s.countLogin(ctx, "local", "unconfirmed")
		s.record(ctx, a.ID, audit.ActionLoginFailure, telemetrydomain.EventLoginFailed, map[string]string{"provider": "local", "reason": "unconfirmed"})
		return nil, ErrNotConfirmed
	}
	sess, err := s.issueSession(a, trusted)
	if err != nil {
		return nil, err
	}
	s.countLogin(ctx, "local", "success")
	s.record(ctx, a.ID, audit.ActionLoginSuccess, telemetrydomain.EventLoginSucceeded, map[string]string{"provider": "local"})
	return sess, nil
}

// ConnectLocal adds a local provider binding for caller's email and sets its
// password, so accounts created through Discord can sign in with a password.
func (s *AuthService) ConnectLocal(ctx context.Context, caller *authdomain.Auth, password string) error {
	if caller.Provider(providerdomain.NameLocal) != nil {
		return ErrProviderAlreadyConnected
	}
	if err := s.setPassword(ctx, caller.ID, password); err != nil {
		return err
	}
	s.record(ctx, caller.ID, audit.ActionProviderConnected, telemetrydomain.EventProviderConnected, map[string]string{"provider": "local"})
	return nil
}

func (s *AuthService) sendVerifyEmail(ctx context.Context, a *authdomain.Auth) {
	token, err := s.tokens.IssueVerifyEmailToken(a.ID)
	if err != nil {
		log.Printf("auth: issue verify token for %s: %v", a.ID, err)
		return
	}
	if err := s.mailer.SendVerifyEmail(ctx, a.Email, token); err != nil {
		log.Printf("auth: send verify email for %s: %v", a.ID, err)
	}
}
