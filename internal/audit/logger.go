package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"clan-portal/backend/internal/audit/domain"
	auditrepo "clan-portal/backend/internal/audit/repository"
)

// Actions recorded by the account flows.
const (
	ActionRegister          = "register"
	ActionLoginSuccess      = "login_success"
	ActionLoginFailure      = "login_failure"
	ActionVerify            = "verify"
	ActionPasswordRecovered = "password_recovered"
	ActionPasswordChanged   = "password_changed"
	ActionEmailChanged      = "email_changed"
	ActionProviderConnected = "provider_connected"
	ActionAccountDeleted    = "account_deleted"
)

// ResourceAuth is the resource name of every account flow event.
const ResourceAuth = "auth"

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource. Used by auth code paths.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, authID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
// authID may be empty for events without a known account.
func (l *Logger) LogEvent(ctx context.Context, authID, action, resource, metadata string) {
	if l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		AuthID:    authID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}
