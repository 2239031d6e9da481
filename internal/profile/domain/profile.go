package domain

import (
	"time"

	roledomain "clan-portal/backend/internal/role/domain"
)

// DiscordData is the Discord identity shown on a profile.
type DiscordData struct {
	UserName      string `json:"userName"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
}

// Profile is the user-facing identity owned by exactly one Auth. Email may
// diverge from the Auth email for accounts created through a provider.
type Profile struct {
	ID          string           `json:"id"`
	AuthID      string           `json:"authId"`
	Email       string           `json:"email"`
	UserName    string           `json:"userName"`
	Name        *string          `json:"name"`
	Picture     *string          `json:"picture"`
	Biography   *string          `json:"biography"`
	Gender      *string          `json:"gender"`
	DateOfBirth *string          `json:"dateOfBirth"`
	DiscordData *DiscordData     `json:"discordData"`
	RoleName    string           `json:"roleName"`
	Role        *roledomain.Role `json:"role,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Update holds the editable profile fields. Nil optional fields are cleared.
type Update struct {
	UserName    string
	Email       string
	Name        *string
	Picture     *string
	Biography   *string
	Gender      *string
	DateOfBirth *string
}
