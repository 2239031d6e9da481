package domain

import (
	"time"

	"github.com/goccy/go-json"
)

// Event types published for account activity.
const (
	EventRegistered        = "account.registered"
	EventLoginSucceeded    = "account.login_succeeded"
	EventLoginFailed       = "account.login_failed"
	EventVerified          = "account.verified"
	EventPasswordRecovered = "account.password_recovered"
	EventPasswordChanged   = "account.password_changed"
	EventEmailChanged      = "account.email_changed"
	EventProviderConnected = "account.provider_connected"
	EventDeleted           = "account.deleted"
	EventProviderRefreshed = "provider.tokens_refreshed"
)

// Event is an account activity record published to the log pipeline.
// Metadata is an optional JSON object; it must not carry secrets.
type Event struct {
	ID        string          `json:"id"`
	AuthID    string          `json:"authId,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
