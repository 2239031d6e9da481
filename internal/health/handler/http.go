package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"clan-portal/backend/internal/server/pipeline"
)

const (
	statusServing    = "SERVING"
	statusNotServing = "NOT_SERVING"

	checkTimeout = 2 * time.Second
)

// Pinger checks database connectivity (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker reports whether the authorization engine can evaluate (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Status is the body of GET /healthz.
type Status struct {
	Status string `json:"status"`
}

// Server reports readiness for load balancers and orchestrators.
// Each dependency is optional; nil dependencies are not checked.
type Server struct {
	db     Pinger
	policy PolicyChecker
	cache  Pinger
	rs     *pipeline.Responder
}

// NewServer returns a health Server. cache is the rate limit store and may be nil.
func NewServer(db Pinger, policy PolicyChecker, cache Pinger, rs *pipeline.Responder) *Server {
	return &Server{db: db, policy: policy, cache: cache, rs: rs}
}

// ServeHTTP writes 200 SERVING when every configured check passes and 503 NOT_SERVING otherwise.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()
	if err := s.check(ctx); err != nil {
		log.Printf("health: %v", err)
		s.rs.JSON(w, http.StatusServiceUnavailable, Status{Status: statusNotServing})
		return
	}
	s.rs.JSON(w, http.StatusOK, Status{Status: statusServing})
}

func (s *Server) check(ctx context.Context) error {
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			return &checkError{name: "database", err: err}
		}
	}
	if s.policy != nil {
		if err := s.policy.HealthCheck(ctx); err != nil {
			return &checkError{name: "policy", err: err}
		}
	}
	if s.cache != nil {
		if err := s.cache.PingContext(ctx); err != nil {
			return &checkError{name: "cache", err: err}
		}
	}
	return nil
}

type checkError struct {
	name string
	err  error
}

func (e *checkError) Error() string { return e.name + " check failed: " + e.err.Error() }
func (e *checkError) Unwrap() error { return e.err }
