package domain

import "time"

// Name identifies the kind of identity a Provider row binds.
type Name string

const (
	NameLocal   Name = "local"
	NameDiscord Name = "discord"
)

// Provider links an Auth to a local email or an external account. (Name,
// APIIdentifier) is unique. Tokens are only set for OAuth providers and never
// leave the service.
type Provider struct {
	ID              string
	AuthID          string
	Name            Name
	APIIdentifier   string
	APIToken        string
	APIRefreshToken string
	ExpiresAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Tokens holds a refreshed OAuth token set for a provider row.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}
