package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"clan-portal/backend/internal/apperror"
	authdomain "clan-portal/backend/internal/auth/domain"
	"clan-portal/backend/internal/oauth/discord"
	profiledomain "clan-portal/backend/internal/profile/domain"
	providerdomain "clan-portal/backend/internal/provider/domain"
	roledomain "clan-portal/backend/internal/role/domain"
	"clan-portal/backend/internal/security"
)

// memStore backs the auth, provider and profile repositories with one map,
// enforcing the unique constraints of the real schema.
type memStore struct {
	mu    sync.Mutex
	auths map[string]*authdomain.Auth
	roles map[string]*roledomain.Role

	// lookupErr and setPasswordErr, when set, fail GetByEmail and SetLocalPassword.
	lookupErr      error
	setPasswordErr error
}

func newMemStore() *memStore {
	roles := map[string]*roledomain.Role{}
	for _, r := range roledomain.DefaultRoles() {
		r := r
		roles[r.Name] = &r
	}
	return &memStore{auths: map[string]*authdomain.Auth{}, roles: roles}
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.auths)
}

func (m *memStore) clone(a *authdomain.Auth) *authdomain.Auth {
	out := *a
	if a.Profile != nil {
		p := *a.Profile
		p.Role = m.roles[p.RoleName]
		out.Profile = &p
	}
	out.Providers = nil
	for _, pr := range a.Providers {
		c := *pr
		out.Providers = append(out.Providers, &c)
	}
	return &out
}

func (m *memStore) bindingTaken(name providerdomain.Name, id string) bool {
	for _, a := range m.auths {
		for _, p := range a.Providers {
			if p.Name == name && p.APIIdentifier == id {
				return true
			}
		}
	}
	return false
}

func (m *memStore) Create(_ context.Context, a *authdomain.Auth) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.auths {
		if other.Email == a.Email {
			return apperror.Conflict(`Unique constraint failed on: "email"`)
		}
	}
	for _, p := range a.Providers {
		if m.bindingTaken(p.Name, p.APIIdentifier) {
			return apperror.Conflict(`Unique constraint failed on: "name, api_identifier"`)
		}
	}
	a.ID = uuid.New().String()
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.Profile != nil {
		a.Profile.ID = uuid.New().String()
		a.Profile.AuthID = a.ID
	}
	for _, p := range a.Providers {
		p.ID = uuid.New().String()
		p.AuthID = a.ID
	}
	m.auths[a.ID] = m.clone(a)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*authdomain.Auth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.auths[id]; ok {
		return m.clone(a), nil
	}
	return nil, nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*authdomain.Auth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, a := range m.auths {
		if a.Email == email {
			return m.clone(a), nil
		}
	}
	return nil, nil
}

func (m *memStore) GetByProvider(_ context.Context, name providerdomain.Name, id string) (*authdomain.Auth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.auths {
		for _, p := range a.Providers {
			if p.Name == name && p.APIIdentifier == id {
				return m.clone(a), nil
			}
		}
	}
	return nil, nil
}

func (m *memStore) Update(_ context.Context, id string, u authdomain.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auths[id]
	if !ok {
		return apperror.NotFound("Record not found")
	}
	if u.Email != nil {
		a.Email = *u.Email
	}
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	if u.Confirmed != nil {
		a.Confirmed = *u.Confirmed
	}
	return nil
}

func (m *memStore) SetLocalPassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setPasswordErr != nil {
		return m.setPasswordErr
	}
	a, ok := m.auths[id]
	if !ok {
		return apperror.NotFound("Record not found")
	}
	bound := false
	for _, p := range a.Providers {
		if p.Name == providerdomain.NameLocal {
			bound = true
		}
	}
	if !bound {
		if m.bindingTaken(providerdomain.NameLocal, a.Email) {
			return apperror.Conflict(`Unique constraint failed on: "name, api_identifier"`)
		}
		a.Providers = append(a.Providers, &providerdomain.Provider{
			ID: uuid.New().String(), AuthID: id, Name: providerdomain.NameLocal, APIIdentifier: a.Email,
		})
	}
	a.PasswordHash = hash
	return nil
}

func (m *memStore) ChangeEmail(_ context.Context, id, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auths[id]
	if !ok {
		return apperror.NotFound("Record not found")
	}
	for _, other := range m.auths {
		if other.ID != id && other.Email == email {
			return apperror.Conflict(`Unique constraint failed on: "email"`)
		}
	}
	a.Email = email
	for _, p := range a.Providers {
		if p.Name == providerdomain.NameLocal {
			p.APIIdentifier = email
		}
	}
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.auths[id]; !ok {
		return apperror.NotFound("Record not found")
	}
	delete(m.auths, id)
	return nil
}

// providers adapts memStore to ProviderRepo.
type memProviders struct{ *memStore }

func (m memProviders) Create(_ context.Context, p *providerdomain.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bindingTaken(p.Name, p.APIIdentifier) {
		return apperror.Conflict(`Unique constraint failed on: "name, api_identifier"`)
	}
	a, ok := m.auths[p.AuthID]
	if !ok {
		return apperror.Conflict("Foreign key constraint failed")
	}
	p.ID = uuid.New().String()
	c := *p
	a.Providers = append(a.Providers, &c)
	return nil
}

func (m memProviders) UpdateTokens(_ context.Context, id string, t providerdomain.Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.auths {
		for _, p := range a.Providers {
			if p.ID == id {
				p.APIToken, p.APIRefreshToken, p.ExpiresAt = t.AccessToken, t.RefreshToken, t.ExpiresAt
				return nil
			}
		}
	}
	return apperror.NotFound("Record not found")
}

func (m *memStore) UpdateDiscordData(_ context.Context, authID string, d *profiledomain.DiscordData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.auths[authID]; ok && a.Profile != nil {
		a.Profile.DiscordData = d
	}
	return nil
}

type fakeDiscord struct {
	user        *discord.User
	token       *discord.Token
	exchangeErr error
	meErr       error
}

func (f *fakeDiscord) Exchange(_ context.Context, code string) (*discord.Token, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	if f.token != nil {
		return f.token, nil
	}
	exp := time.Now().Add(7 * 24 * time.Hour)
	return &discord.Token{AccessToken: "access-" + code, RefreshToken: "refresh-" + code, ExpiresAt: &exp}, nil
}

func (f *fakeDiscord) Me(context.Context, string) (*discord.User, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	u := *f.user
	return &u, nil
}

type sentMail struct {
	kind, to, token string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (r *recordingMailer) add(kind, to, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sentMail{kind, to, token})
	return nil
}

func (r *recordingMailer) SendVerifyEmail(_ context.Context, to, token string) error {
	return r.add("verify", to, token)
}

func (r *recordingMailer) SendRecoverPassword(_ context.Context, to, token string) error {
	return r.add("recover", to, token)
}

func (r *recordingMailer) SendChangeEmail(_ context.Context, to, token string) error {
	return r.add("change-email", to, token)
}

func (r *recordingMailer) SendRegisteredWithProvider(_ context.Context, to, provider string) error {
	return r.add("provider", to, provider)
}

func (r *recordingMailer) byKind(kind string) []sentMail {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentMail
	for _, m := range r.sent {
		if m.kind == kind {
			out = append(out, m)
		}
	}
	return out
}

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (r *recordingAudit) LogEvent(_ context.Context, _, action, _, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
}

func (r *recordingAudit) has(action string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.actions {
		if a == action {
			return true
		}
	}
	return false
}

type harness struct {
	svc     *AuthService
	store   *memStore
	mailer  *recordingMailer
	discord *fakeDiscord
	audit   *recordingAudit
	tokens  *security.TokenProvider
}

func newHarness() *harness {
	store := newMemStore()
	h := &harness{
		store:   store,
		mailer:  &recordingMailer{},
		discord: &fakeDiscord{},
		audit:   &recordingAudit{},
		tokens:  security.NewTestTokenProvider(),
	}
	h.svc = NewAuthService(Deps{
		Auths:     store,
		Providers: memProviders{store},
		Profiles:  store,
		Discord:   h.discord,
		Mailer:    h.mailer,
		Hasher:    &security.Hasher{Cost: 4},
		Tokens:    h.tokens,
		Audit:     h.audit,
	})
	return h
}
