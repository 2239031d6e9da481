package pipeline

import (
	"context"
	"log"
	"net/http"

	"clan-portal/backend/internal/apperror"
)

// Limiter counts hits per key and reports whether another one is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit limits requests per client IP within bucket. Limiter failures let
// the request through.
func RateLimit(l Limiter, bucket string) Step {
	return Step{Name: "ratelimit", Run: func(_ http.ResponseWriter, r *http.Request) (*http.Request, error) {
		if l == nil {
			return r, nil
		}
		ip := ClientIPFromContext(r.Context())
		if ip == "" {
			ip = remoteHost(r)
		}
		ok, err := l.Allow(r.Context(), bucket+":"+ip)
		if err != nil {
			log.Printf("pipeline: rate limiter unavailable for %s: %v", bucket, err)
			return r, nil
		}
		if !ok {
			return nil, apperror.New(apperror.KindTooManyRequests, "Too many requests, please try again later.")
		}
		return r, nil
	}}
}
