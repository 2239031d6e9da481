package service

import (
	"context"
	"log"

	"clan-portal/backend/internal/apperror"
	"clan-portal/backend/internal/audit"
	authdomain "clan-portal/backend/internal/auth/domain"
	telemetrydomain "clan-portal/backend/internal/telemetry/domain"
)

// Verify confirms the account named by a verify-email token and signs it in.
func (s *AuthService) Verify(ctx context.Context, token string) (*Session, error) {
	claims, err := s.tokens.VerifyVerifyEmailToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	a, err := s.auths.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrInvalidToken
	}
	if !a.Confirmed {
		confirmed := true
		if err := s.auths.Update(ctx, a.ID, authdomain.Update{Confirmed: &confirmed}); err != nil {
			return nil, err
		}
		a.Confirmed = true
		s.record(ctx, a.ID, audit.ActionVerify, telemetrydomain.EventVerified, nil)
	}
	return s.issueSession(a, false)
}

// ResendVerify mails a fresh verification link. It fails with ErrAccountNotFound
// for an unknown email and ErrAlreadyConfirmed for a verified account.
func (s *AuthService) ResendVerify(ctx context.Context, email string) error {
	a, err := s.auths.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if a == nil {
		return ErrAccountNotFound
	}
	if a.Confirmed {
		return ErrAlreadyConfirmed
	}
	token, err := s.tokens.IssueVerifyEmailToken(a.ID)
	if err != nil {
		return err
	}
	return s.mailer.SendVerifyEmail(ctx, a.Email, token)
}

// SendRecoverPassword mails a recovery link when email belongs to an account.
// It returns nil whether or not the account exists; only fatal store errors are returned.
func (s *AuthService) SendRecoverPassword(ctx context.Context, email string) error {
	a, err := s.auths.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperror.IsFatal(err) {
			return err
		}
		log.Printf("auth: recover password lookup: %v", err)
		return nil
	}
	if a == nil {
		return nil
	}
	token, err := s.tokens.IssueRecoverPasswordToken(a.ID)
	if err != nil {
		log.Printf("auth: issue recover token for %s: %v", a.ID, err)
		return nil
	}
	if err := s.mailer.SendRecoverPassword(ctx, a.Email, token); err != nil {
		log.Printf("auth: send recover email for %s: %v", a.ID, err)
	}
	return nil
}

// RecoverPassword sets a new password for the account named by a recover-password token.
func (s *AuthService) RecoverPassword(ctx context.Context, token, password string) error {
	claims, err := s.tokens.VerifyRecoverPasswordToken(token)
	if err != nil {
		return ErrInvalidToken
	}
	a, err := s.auths.GetByID(ctx, claims.Subject)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrInvalidToken
	}
	if err := s.setPassword(ctx, a.ID, password); err != nil {
		return err
	}
	s.record(ctx, a.ID, audit.ActionPasswordRecovered, telemetrydomain.EventPasswordRecovered, nil)
	return nil
}

// ChangePassword sets a new password for caller.
func (s *AuthService) ChangePassword(ctx context.Context, caller *authdomain.Auth, password string) error {
	if err := s.setPassword(ctx, caller.ID, password); err != nil {
		return err
	}
	s.record(ctx, caller.ID, audit.ActionPasswordChanged, telemetrydomain.EventPasswordChanged, nil)
	return nil
}

// RequestEmailChange mails a confirmation link bound to (caller, newEmail) to
// caller's current address. A newEmail already in use fails with ErrEmailInUse.
func (s *AuthService) RequestEmailChange(ctx context.Context, caller *authdomain.Auth, newEmail string) error {
	newEmail = normalizeEmail(newEmail)
	existing, err := s.auths.GetByEmail(ctx, newEmail)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrEmailInUse
	}
	token, err := s.tokens.IssueChangeEmailToken(caller.ID, newEmail)
	if err != nil {
		return err
	}
	return s.mailer.SendChangeEmail(ctx, caller.Email, token)
}

// ChangeEmail applies the email change carried by a change-email token issued to caller.
func (s *AuthService) ChangeEmail(ctx context.Context, caller *authdomain.Auth, token string) error {
	claims, err := s.tokens.VerifyChangeEmailToken(token)
	if err != nil || claims.Subject != caller.ID {
		return ErrInvalidToken
	}
	if err := s.auths.ChangeEmail(ctx, caller.ID, claims.NewEmail); err != nil {
		return err
	}
	s.record(ctx, caller.ID, audit.ActionEmailChanged, telemetrydomain.EventEmailChanged, nil)
	return nil
}

// DeleteAccount removes caller with its profile and providers.
func (s *AuthService) DeleteAccount(ctx context.Context, caller *authdomain.Auth) error {
	if err := s.auths.Delete(ctx, caller.ID); err != nil {
		return err
	}
	s.record(ctx, caller.ID, audit.ActionAccountDeleted, telemetrydomain.EventDeleted, nil)
	return nil
}

// setPassword also binds the local provider when the account has none, so an
// account created through Discord can log in with the password it just set.
func (s *AuthService) setPassword(ctx context.Context, authID, password string) error {
	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return err
	}
	return s.auths.SetLocalPassword(ctx, authID, hash)
}
