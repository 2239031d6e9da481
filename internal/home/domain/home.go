package domain

import "time"

// SEO holds the page metadata of the home document.
type SEO struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Image       string `json:"image" validate:"required"`
}

// Button is a call-to-action link inside a social network card.
type Button struct {
	Text string `json:"text" validate:"required"`
	URL  string `json:"url" validate:"required"`
}

// SocialNetwork is one card of the social networks section.
type SocialNetwork struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Buttons     []Button `json:"buttons" validate:"required,dive"`
}

// Content is the editable home page document. Every field is required on update.
type Content struct {
	SEO                 SEO             `json:"seo" validate:"required"`
	HeroTitle           string          `json:"heroTitle" validate:"required"`
	HeroSubtitle        string          `json:"heroSubtitle" validate:"required"`
	HeroImage           string          `json:"heroImage" validate:"required"`
	ClanesTitle         string          `json:"clanesTitle" validate:"required"`
	ClanesDescription   string          `json:"clanesDescription" validate:"required"`
	ClanesImage         string          `json:"clanesImage" validate:"required"`
	ClanesButtonText    string          `json:"clanesButtonText" validate:"required"`
	SocialNetworksTitle string          `json:"socialNetworksTitle" validate:"required"`
	SocialNetworks      []SocialNetwork `json:"socialNetworks" validate:"required,dive"`
	TeamTitle           string          `json:"teamTitle" validate:"required"`
	TeamJoinButtonText  string          `json:"teamJoinButtonText" validate:"required"`
	TeamViewButtonText  string          `json:"teamViewButtonText" validate:"required"`
}

// Home is the singleton home page row. Content fields are flattened in JSON.
type Home struct {
	ID string `json:"id"`
	Content
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
