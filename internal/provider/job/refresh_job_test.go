package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clan-portal/backend/internal/oauth/discord"
	"clan-portal/backend/internal/provider/domain"
	"clan-portal/backend/internal/telemetry"
	telemetrydomain "clan-portal/backend/internal/telemetry/domain"
)

type memStore struct {
	mu        sync.Mutex
	providers []*domain.Provider
	updated   map[string]domain.Tokens
	listErr   error
	gotBefore time.Time
}

func (m *memStore) ListExpiring(_ context.Context, name domain.Name, before time.Time, _ int32) ([]*domain.Provider, error) {
	m.gotBefore = before
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*domain.Provider
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.providers {
		if p.Name == name && p.APIRefreshToken != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) UpdateTokens(_ context.Context, id string, t domain.Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updated == nil {
		m.updated = map[string]domain.Tokens{}
	}
	m.updated[id] = t
	for _, p := range m.providers {
		if p.ID == id {
			p.APIToken, p.APIRefreshToken, p.ExpiresAt = t.AccessToken, t.RefreshToken, t.ExpiresAt
		}
	}
	return nil
}

type fakeRefresher struct {
	failFor map[string]bool
	revoked map[string]bool
	rotate  bool
}

func (f *fakeRefresher) Refresh(_ context.Context, refreshToken string) (*discord.Token, error) {
	if f.failFor[refreshToken] {
		return nil, discord.ErrUnavailable
	}
	if f.revoked[refreshToken] {
		return nil, discord.ErrGrantRevoked
	}
	exp := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)
	tok := &discord.Token{AccessToken: "new-" + refreshToken, ExpiresAt: &exp}
	if f.rotate {
		tok.RefreshToken = "rotated-" + refreshToken
	}
	return tok, nil
}

type recordingEmitter struct {
	events []*telemetrydomain.Event
}

func (r *recordingEmitter) Emit(_ context.Context, e *telemetrydomain.Event) error {
	r.events = append(r.events, e)
	return nil
}

var fixedNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newJob(store *memStore, refresher *fakeRefresher, events *recordingEmitter) *RefreshProviderTokensJob {
	var emitter telemetry.EventEmitter
	if events != nil {
		emitter = events
	}
	j := NewRefreshProviderTokensJob(store, refresher, emitter)
	j.now = func() time.Time { return fixedNow }
	return j
}

func TestRunOnce_RefreshesDiscordBindings(t *testing.T) {
	store := &memStore{providers: []*domain.Provider{
		{ID: "p1", AuthID: "a1", Name: domain.NameDiscord, APIRefreshToken: "r1"},
		{ID: "p2", AuthID: "a2", Name: domain.NameDiscord, APIRefreshToken: "r2"},
		{ID: "p3", AuthID: "a3", Name: domain.NameLocal},
	}}
	events := &recordingEmitter{}
	refreshed, failed, err := newJob(store, &fakeRefresher{rotate: true}, events).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if refreshed != 2 || failed != 0 {
		t.Errorf("refreshed=%d failed=%d, want 2/0", refreshed, failed)
	}
	if got := store.updated["p1"]; got.AccessToken != "new-r1" || got.RefreshToken != "rotated-r1" || got.ExpiresAt == nil {
		t.Errorf("p1 tokens = %+v", got)
	}
	if !store.gotBefore.Equal(fixedNow.Add(refreshWindow)) {
		t.Errorf("deadline = %v, want %v", store.gotBefore, fixedNow.Add(refreshWindow))
	}
	if len(events.events) != 2 || events.events[0].EventType != telemetrydomain.EventProviderRefreshed || events.events[0].AuthID != "a1" {
		t.Errorf("events = %+v", events.events)
	}
}

func TestRunOnce_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	store := &memStore{providers: []*domain.Provider{
		{ID: "p1", Name: domain.NameDiscord, APIRefreshToken: "r1"},
	}}
	if _, _, err := newJob(store, &fakeRefresher{}, nil).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if got := store.updated["p1"].RefreshToken; got != "r1" {
		t.Errorf("refresh token = %q, want r1", got)
	}
}

func TestRunOnce_FailureDoesNotStopBatch(t *testing.T) {
	store := &memStore{providers: []*domain.Provider{
		{ID: "p1", Name: domain.NameDiscord, APIRefreshToken: "bad"},
		{ID: "p2", Name: domain.NameDiscord, APIRefreshToken: "r2"},
	}}
	refresher := &fakeRefresher{failFor: map[string]bool{"bad": true}}
	refreshed, failed, err := newJob(store, refresher, nil).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if refreshed != 1 || failed != 1 {
		t.Errorf("refreshed=%d failed=%d, want 1/1", refreshed, failed)
	}
	if _, ok := store.updated["p1"]; ok {
		t.Error("failed binding must not be updated")
	}
}

func TestRunOnce_RevokedGrantLeavesExpiringSet(t *testing.T) {
	store := &memStore{providers: []*domain.Provider{
		{ID: "p1", Name: domain.NameDiscord, APIToken: "old", APIRefreshToken: "revoked"},
		{ID: "p2", Name: domain.NameDiscord, APIRefreshToken: "down"},
	}}
	refresher := &fakeRefresher{revoked: map[string]bool{"revoked": true}, failFor: map[string]bool{"down": true}}
	job := newJob(store, refresher, nil)

	if _, failed, err := job.RunOnce(context.Background()); err != nil || failed != 2 {
		t.Fatalf("first run failed=%d err=%v, want 2/nil", failed, err)
	}
	if got, ok := store.updated["p1"]; !ok || got.AccessToken != "" || got.RefreshToken != "" || got.ExpiresAt != nil {
		t.Errorf("revoked binding tokens = %+v (updated %v), want cleared", got, ok)
	}
	if _, ok := store.updated["p2"]; ok {
		t.Error("binding with a transient failure must keep its tokens")
	}

	expiring, _ := store.ListExpiring(context.Background(), domain.NameDiscord, fixedNow, batchSize)
	if len(expiring) != 1 || expiring[0].ID != "p2" {
		t.Errorf("expiring after run = %v, want only p2", expiring)
	}
}

func TestRunOnce_ListError(t *testing.T) {
	store := &memStore{listErr: errors.New("db down")}
	if _, _, err := newJob(store, &fakeRefresher{}, nil).RunOnce(context.Background()); err == nil {
		t.Fatal("want list error")
	}
}
