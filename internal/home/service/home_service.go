package service

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"

	"clan-portal/backend/internal/home/domain"
)

// ErrHomeNotFound is returned when the home document has not been seeded.
var ErrHomeNotFound = errors.New("home not found")

const (
	cacheKey      = "home"
	defaultTTL    = time.Minute
	cleanupPeriod = 5 * time.Minute
)

// HomeRepo is the home document persistence used by the service.
type HomeRepo interface {
	Get(ctx context.Context) (*domain.Home, error)
	Update(ctx context.Context, c domain.Content) (*domain.Home, error)
}

// HomeService serves the home document through a short-lived read cache.
// Updates replace the cached copy.
type HomeService struct {
	repo  HomeRepo
	cache *cache.Cache
}

// NewHomeService returns a HomeService caching reads for ttl (one minute when ttl <= 0).
func NewHomeService(repo HomeRepo, ttl time.Duration) *HomeService {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &HomeService{repo: repo, cache: cache.New(ttl, cleanupPeriod)}
}

// Get returns the home document or ErrHomeNotFound.
func (s *HomeService) Get(ctx context.Context) (*domain.Home, error) {
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.(*domain.Home), nil
	}
	h, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, ErrHomeNotFound
	}
	s.cache.SetDefault(cacheKey, h)
	return h, nil
}

// Update replaces the home content and returns the stored document.
func (s *HomeService) Update(ctx context.Context, c domain.Content) (*domain.Home, error) {
	h, err := s.repo.Update(ctx, c)
	if err != nil {
		s.cache.Delete(cacheKey)
		return nil, err
	}
	if h == nil {
		s.cache.Delete(cacheKey)
		return nil, ErrHomeNotFound
	}
	s.cache.SetDefault(cacheKey, h)
	return h, nil
}
