package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"clan-portal/backend/internal/audit"
	authdomain "clan-portal/backend/internal/auth/domain"
	"clan-portal/backend/internal/oauth/discord"
	profiledomain "clan-portal/backend/internal/profile/domain"
	providerdomain "clan-portal/backend/internal/provider/domain"
	roledomain "clan-portal/backend/internal/role/domain"
	telemetrydomain "clan-portal/backend/internal/telemetry/domain"
)

// AuthenticateDiscord exchanges code and resolves the account for the Discord user:
// the account already bound to it, else caller (connect) when non-nil, else a
// newly registered account. Discord transport failures wrap ErrProviderUnavailable.
func (s *AuthService) AuthenticateDiscord(ctx context.Context, code string, caller *authdomain.Auth) (*authdomain.Auth, error) {
	if code == "" {
		return nil, ErrNoCode
	}
	tok, err := s.discord.Exchange(ctx, code)
	if err != nil {
		return nil, discordError("exchange code", err)
	}
	user, err := s.discord.Me(ctx, tok.AccessToken)
	if err != nil {
		return nil, discordError("fetch user", err)
	}
	data := &profiledomain.DiscordData{
		UserName:      user.Username,
		Discriminator: user.Discriminator,
		Avatar:        user.AvatarURL(),
	}

	existing, err := s.auths.GetByProvider(ctx, providerdomain.NameDiscord, user.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if caller != nil && caller.ID != existing.ID {
			return nil, ErrProviderAlreadyConnected
		}
		if p := existing.Provider(providerdomain.NameDiscord); p != nil {
			if err := s.providers.UpdateTokens(ctx, p.ID, tokens(tok)); err != nil {
				log.Printf("auth: store refreshed discord tokens for %s: %v", existing.ID, err)
			}
		}
		return existing, nil
	}
	if caller != nil {
		return s.connectDiscord(ctx, caller, user, tok, data)
	}
	return s.registerDiscord(ctx, user, tok, data)
}

// OAuthLogin signs in with a Discord authorization code. caller is the account
// from an optional bearer token and switches the flow to connect mode.
func (s *AuthService) OAuthLogin(ctx context.Context, code string, caller *authdomain.Auth) (*Session, error) {
	a, err := s.AuthenticateDiscord(ctx, code, caller)
	if err != nil {
		s.countLogin(ctx, "discord", "error")
		return nil, err
	}
	if !a.Confirmed {
		s.countLogin(ctx, "discord", "unconfirmed")
		return nil, ErrNotConfirmed
	}
	sess, err := s.issueSession(a, false)
	if err != nil {
		return nil, err
	}
	s.countLogin(ctx, "discord", "success")
	s.record(ctx, a.ID, audit.ActionLoginSuccess, telemetrydomain.EventLoginSucceeded, map[string]string{"provider": "discord"})
	return sess, nil
}

func (s *AuthService) connectDiscord(ctx context.Context, caller *authdomain.Auth, user *discord.User, tok *discord.Token, data *profiledomain.DiscordData) (*authdomain.Auth, error) {
	if caller.Provider(providerdomain.NameDiscord) != nil {
		return nil, ErrProviderAlreadyConnected
	}
	p := &providerdomain.Provider{
		AuthID:          caller.ID,
		Name:            providerdomain.NameDiscord,
		APIIdentifier:   user.ID,
		APIToken:        tok.AccessToken,
		APIRefreshToken: tok.RefreshToken,
		ExpiresAt:       tok.ExpiresAt,
	}
	if err := s.providers.Create(ctx, p); err != nil {
		return nil, err
	}
	if err := s.profiles.UpdateDiscordData(ctx, caller.ID, data); err != nil {
		return nil, err
	}
	s.record(ctx, caller.ID, audit.ActionProviderConnected, telemetrydomain.EventProviderConnected, map[string]string{"provider": "discord"})
	updated, err := s.auths.GetByID(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrAccountNotFound
	}
	return updated, nil
}

func (s *AuthService) registerDiscord(ctx context.Context, user *discord.User, tok *discord.Token, data *profiledomain.DiscordData) (*authdomain.Auth, error) {
	email := normalizeEmail(user.Email)
	if email == "" {
		return nil, ErrProviderEmailMissing
	}
	hash, err := s.hasher.HashRandom()
	if err != nil {
		return nil, err
	}
	var picture *string
	if avatar := user.AvatarURL(); avatar != "" {
		picture = &avatar
	}
	a := &authdomain.Auth{
		Email:        email,
		PasswordHash: hash,
		Confirmed:    user.Verified,
		Profile: &profiledomain.Profile{
			Email:       email,
			UserName:    user.HandleName(),
			Picture:     picture,
			DiscordData: data,
			RoleName:    roledomain.RoleUser,
		},
		Providers: []*providerdomain.Provider{{
			Name:            providerdomain.NameDiscord,
			APIIdentifier:   user.ID,
			APIToken:        tok.AccessToken,
			APIRefreshToken: tok.RefreshToken,
			ExpiresAt:       tok.ExpiresAt,
		}},
	}
	if err := s.auths.Create(ctx, a); err != nil {
		return nil, err
	}
	if a.Confirmed {
		if err := s.mailer.SendRegisteredWithProvider(ctx, a.Email, string(providerdomain.NameDiscord)); err != nil {
			log.Printf("auth: send provider registration email for %s: %v", a.ID, err)
		}
	} else {
		s.sendVerifyEmail(ctx, a)
	}
	s.record(ctx, a.ID, audit.ActionRegister, telemetrydomain.EventRegistered, map[string]string{"provider": "discord"})

	// Reload so the role attached by the store is present.
	created, err := s.auths.GetByID(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return a, nil
	}
	return created, nil
}

func discordError(op string, err error) error {
	if errors.Is(err, discord.ErrUnavailable) {
		return fmt.Errorf("discord %s: %w: %w", op, ErrProviderUnavailable, err)
	}
	return fmt.Errorf("discord %s: %w", op, err)
}

func tokens(t *discord.Token) providerdomain.Tokens {
	return providerdomain.Tokens{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, ExpiresAt: t.ExpiresAt}
}
