package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"clan-portal/backend/internal/oauth/discord"
	providerdomain "clan-portal/backend/internal/provider/domain"
)

func TestAuthenticateDiscord_NoCode(t *testing.T) {
	h := newHarness()
	if _, err := h.svc.AuthenticateDiscord(context.Background(), "", nil); !errors.Is(err, ErrNoCode) {
		t.Errorf("err = %v, want ErrNoCode", err)
	}
}

func TestAuthenticateDiscord_RegisterVerified(t *testing.T) {
	h := newHarness()
	h.discord.user = &discord.User{ID: "42", Username: "raider", Discriminator: "1234", Avatar: "a_hash", Email: "Raider@Example.com", Verified: true}

	a, err := h.svc.AuthenticateDiscord(context.Background(), "code", nil)
	if err != nil {
		t.Fatalf("AuthenticateDiscord: %v", err)
	}
	if !a.Confirmed {
		t.Error("verified Discord user should create a confirmed account")
	}
	if a.Email != "raider@example.com" || a.Profile.UserName != "raider1234" {
		t.Errorf("email %q userName %q", a.Email, a.Profile.UserName)
	}
	if a.Profile.Picture == nil || *a.Profile.Picture != "https://cdn.discordapp.com/avatars/42/a_hash.gif" {
		t.Errorf("picture = %v", a.Profile.Picture)
	}
	if a.Profile.DiscordData == nil || a.Profile.DiscordData.Discriminator != "1234" {
		t.Errorf("discordData = %+v", a.Profile.DiscordData)
	}
	p := a.Provider(providerdomain.NameDiscord)
	if p == nil || p.APIIdentifier != "42" || p.APIToken != "access-code" || p.APIRefreshToken != "refresh-code" || p.ExpiresAt == nil {
		t.Errorf("provider = %+v", p)
	}
	if n := len(h.mailer.byKind("provider")); n != 1 {
		t.Errorf("provider mails = %d, want 1", n)
	}
	if n := len(h.mailer.byKind("verify")); n != 0 {
		t.Errorf("verify mails = %d, want 0", n)
	}
}

func TestAuthenticateDiscord_RegisterUnverified(t *testing.T) {
	h := newHarness()
	h.discord.user = &discord.User{ID: "43", Username: "newbie", Discriminator: "0", Email: "newbie@example.com", Verified: false}

	a, err := h.svc.AuthenticateDiscord(context.Background(), "code", nil)
	if err != nil {
		t.Fatalf("AuthenticateDiscord: %v", err)
	}
	if a.Confirmed {
		t.Error("unverified Discord user should create an unconfirmed account")
	}
	if a.Profile.UserName != "newbie" {
		t.Errorf("userName = %q, want discriminator 0 dropped", a.Profile.UserName)
	}
	mails := h.mailer.byKind("verify")
	if len(mails) != 1 {
		t.Fatalf("verify mails = %d, want 1", len(mails))
	}
	if claims, err := h.tokens.VerifyVerifyEmailToken(mails[0].token); err != nil || claims.Subject != a.ID {
		t.Errorf("verify token subject mismatch: %v", err)
	}
	if n := len(h.mailer.byKind("provider")); n != 0 {
		t.Errorf("provider mails = %d, want 0", n)
	}

	if _, err := h.svc.OAuthLogin(context.Background(), "again", nil); !errors.Is(err, ErrNotConfirmed) {
		t.Errorf("OAuthLogin unconfirmed err = %v", err)
	}
}

func TestAuthenticateDiscord_ExistingBindingLogsIn(t *testing.T) {
	h := newHarness()
	h.discord.user = &discord.User{ID: "44", Username: "vet", Discriminator: "0", Email: "vet@example.com", Verified: true}
	ctx := context.Background()
	first, err := h.svc.OAuthLogin(ctx, "one", nil)
	if err != nil {
		t.Fatalf("first OAuthLogin: %v", err)
	}
	second, err := h.svc.OAuthLogin(ctx, "two", nil)
	if err != nil {
		t.Fatalf("second OAuthLogin: %v", err)
	}
	if first.Auth.ID != second.Auth.ID || h.store.count() != 1 {
		t.Errorf("second login created another account")
	}
	stored, _ := h.store.GetByID(ctx, first.Auth.ID)
	if p := stored.Provider(providerdomain.NameDiscord); p.APIToken != "access-two" {
		t.Errorf("stored token = %q, want refreshed", p.APIToken)
	}
}

func TestAuthenticateDiscord_ConnectsCaller(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := registerConfirmed(t, h, "local@example.com", "secret1")
	caller, _ := h.store.GetByID(ctx, id)
	h.discord.user = &discord.User{ID: "45", Username: "linked", Discriminator: "0", Avatar: "abc", Email: "other@example.com", Verified: true}

	a, err := h.svc.AuthenticateDiscord(ctx, "code", caller)
	if err != nil {
		t.Fatalf("AuthenticateDiscord: %v", err)
	}
	if a.ID != caller.ID || h.store.count() != 1 {
		t.Fatalf("connect should reuse the caller account")
	}
	if a.Provider(providerdomain.NameDiscord) == nil {
		t.Error("discord binding missing")
	}
	if a.Profile.DiscordData == nil || a.Profile.DiscordData.Avatar != "https://cdn.discordapp.com/avatars/45/abc.png" {
		t.Errorf("discordData = %+v", a.Profile.DiscordData)
	}

	h.discord.user = &discord.User{ID: "46", Username: "second", Email: "s@example.com", Verified: true}
	if _, err := h.svc.AuthenticateDiscord(ctx, "code", a); !errors.Is(err, ErrProviderAlreadyConnected) {
		t.Errorf("second discord account err = %v", err)
	}
}

func TestAuthenticateDiscord_BindingOwnedByAnotherAccount(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.discord.user = &discord.User{ID: "47", Username: "owner", Email: "owner@example.com", Verified: true}
	if _, err := h.svc.AuthenticateDiscord(ctx, "code", nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	id := registerConfirmed(t, h, "intruder@example.com", "secret1")
	caller, _ := h.store.GetByID(ctx, id)
	if _, err := h.svc.AuthenticateDiscord(ctx, "code", caller); !errors.Is(err, ErrProviderAlreadyConnected) {
		t.Errorf("err = %v, want ErrProviderAlreadyConnected", err)
	}
}

func TestAuthenticateDiscord_Unavailable(t *testing.T) {
	tests := []struct {
		name            string
		exchangeErr     error
		meErr           error
		wantUnavailable bool
	}{
		{"exchange transport", fmt.Errorf("%w: connection reset", discord.ErrUnavailable), nil, true},
		{"me status", nil, fmt.Errorf("%w: status 502", discord.ErrUnavailable), true},
		{"decode failure", nil, errors.New("unexpected payload"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.discord.user = &discord.User{ID: "48"}
			h.discord.exchangeErr = tt.exchangeErr
			h.discord.meErr = tt.meErr
			_, err := h.svc.AuthenticateDiscord(context.Background(), "code", nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrProviderUnavailable); got != tt.wantUnavailable {
				t.Errorf("unavailable = %v, want %v (%v)", got, tt.wantUnavailable, err)
			}
		})
	}
}
