package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"clan-portal/backend/internal/server/pipeline"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func healthz(t *testing.T, srv *Server) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body Status
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, body.Status
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		db     Pinger
		policy PolicyChecker
		cache  Pinger
		code   int
		status string
	}{
		{"no dependencies", nil, nil, nil, http.StatusOK, statusServing},
		{"pinger success", &mockPinger{}, nil, nil, http.StatusOK, statusServing},
		{"pinger failure", &mockPinger{pingErr: errors.New("connection refused")}, nil, nil, http.StatusServiceUnavailable, statusNotServing},
		{"policy success", nil, &mockPolicyChecker{}, nil, http.StatusOK, statusServing},
		{"policy failure", nil, &mockPolicyChecker{healthErr: errors.New("rego compile failed")}, nil, http.StatusServiceUnavailable, statusNotServing},
		{"cache failure", &mockPinger{}, &mockPolicyChecker{}, &mockPinger{pingErr: errors.New("redis down")}, http.StatusServiceUnavailable, statusNotServing},
		{"all healthy", &mockPinger{}, &mockPolicyChecker{}, &mockPinger{}, http.StatusOK, statusServing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, status := healthz(t, NewServer(tt.db, tt.policy, tt.cache, pipeline.NewResponder()))
			if code != tt.code || status != tt.status {
				t.Errorf("got %d %s, want %d %s", code, status, tt.code, tt.status)
			}
		})
	}
}

func TestHealthCheck_DatabaseCheckedFirst(t *testing.T) {
	policy := &countingChecker{}
	srv := NewServer(&mockPinger{pingErr: errors.New("down")}, policy, nil, pipeline.NewResponder())
	if code, _ := healthz(t, srv); code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d", code)
	}
	if policy.calls != 0 {
		t.Errorf("policy checked %d times after database failure", policy.calls)
	}
}

type countingChecker struct{ calls int }

func (c *countingChecker) HealthCheck(context.Context) error {
	c.calls++
	return nil
}
