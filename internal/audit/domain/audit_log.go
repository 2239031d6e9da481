package domain

import "time"

// AuditLog represents an audit event. AuthID is empty for anonymous events
// such as a failed login, and survives deletion of the account it names.
type AuditLog struct {
	ID        string    `json:"id"`
	AuthID    string    `json:"authId"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
}
