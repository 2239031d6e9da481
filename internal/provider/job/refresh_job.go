// Package job holds background jobs run by the worker on a cron schedule.
package job

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"clan-portal/backend/internal/oauth/discord"
	"clan-portal/backend/internal/provider/domain"
	"clan-portal/backend/internal/telemetry"
	telemetrydomain "clan-portal/backend/internal/telemetry/domain"
)

const (
	// refreshWindow is how far ahead of expiry a Discord token is refreshed.
	refreshWindow = 24 * time.Hour
	batchSize     = 100
	runTimeout    = 5 * time.Minute
)

// ProviderStore lists and updates provider bindings.
type ProviderStore interface {
	ListExpiring(ctx context.Context, name domain.Name, before time.Time, limit int32) ([]*domain.Provider, error)
	UpdateTokens(ctx context.Context, id string, t domain.Tokens) error
}

// TokenRefresher exchanges a refresh token for a new token set.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*discord.Token, error)
}

// RefreshProviderTokensJob refreshes Discord tokens that expire within the
// refresh window so stored bindings stay usable.
type RefreshProviderTokensJob struct {
	store   ProviderStore
	discord TokenRefresher
	events  telemetry.EventEmitter
	now     func() time.Time
}

// NewRefreshProviderTokensJob returns the job. events may be nil.
func NewRefreshProviderTokensJob(store ProviderStore, refresher TokenRefresher, events telemetry.EventEmitter) *RefreshProviderTokensJob {
	return &RefreshProviderTokensJob{store: store, discord: refresher, events: events, now: time.Now}
}

// Run implements cron.Job.
func (j *RefreshProviderTokensJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	refreshed, failed, err := j.RunOnce(ctx)
	if err != nil {
		log.Printf("worker: provider refresh: %v", err)
		return
	}
	if refreshed > 0 || failed > 0 {
		log.Printf("worker: provider refresh: %d refreshed, %d failed", refreshed, failed)
	}
}

// RunOnce refreshes one batch of expiring bindings. A failed refresh is logged
// and counted; it does not stop the batch. A binding whose grant Discord has
// revoked gets its tokens cleared so it leaves the expiring set; the next
// Discord login on that account stores a fresh token set.
func (j *RefreshProviderTokensJob) RunOnce(ctx context.Context) (refreshed, failed int, err error) {
	providers, err := j.store.ListExpiring(ctx, domain.NameDiscord, j.now().Add(refreshWindow), batchSize)
	if err != nil {
		return 0, 0, err
	}
	for _, p := range providers {
		if err := j.refresh(ctx, p); err != nil {
			log.Printf("worker: refresh provider %s: %v", p.ID, err)
			failed++
			if errors.Is(err, discord.ErrGrantRevoked) {
				if err := j.store.UpdateTokens(ctx, p.ID, domain.Tokens{}); err != nil {
					log.Printf("worker: clear revoked provider %s: %v", p.ID, err)
				}
			}
			continue
		}
		refreshed++
	}
	return refreshed, failed, nil
}

func (j *RefreshProviderTokensJob) refresh(ctx context.Context, p *domain.Provider) error {
	tok, err := j.discord.Refresh(ctx, p.APIRefreshToken)
	if err != nil {
		return err
	}
	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = p.APIRefreshToken
	}
	if err := j.store.UpdateTokens(ctx, p.ID, domain.Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    tok.ExpiresAt,
	}); err != nil {
		return err
	}
	if j.events != nil {
		meta, _ := json.Marshal(map[string]string{"provider": string(p.Name), "providerId": p.ID})
		if err := j.events.Emit(ctx, &telemetrydomain.Event{
			ID:        uuid.New().String(),
			AuthID:    p.AuthID,
			EventType: telemetrydomain.EventProviderRefreshed,
			Source:    "worker",
			Metadata:  meta,
			CreatedAt: j.now().UTC(),
		}); err != nil {
			log.Printf("worker: emit refresh event: %v", err)
		}
	}
	return nil
}
