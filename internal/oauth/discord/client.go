// Package discord exchanges Discord OAuth2 authorization codes and reads the
// authenticated user. Failures reaching Discord or non-2xx answers are wrapped
// with ErrUnavailable; callers map that to 503.
package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

// DefaultAPIURL is the Discord REST base URL.
const DefaultAPIURL = "https://discord.com/api"

const cdnAvatarURL = "https://cdn.discordapp.com/avatars"

// ErrUnavailable marks transport failures and error statuses from Discord.
var ErrUnavailable = errors.New("discord: api unavailable")

// ErrGrantRevoked is returned by Refresh when Discord rejects the refresh token
// itself (invalid_grant). Retrying with the same token will not succeed.
var ErrGrantRevoked = errors.New("discord: grant revoked")

// Config configures a Client. APIURL defaults to DefaultAPIURL and Timeout to 10s.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	APIURL       string
	Timeout      time.Duration
}

// Token is an OAuth token set returned by Discord.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// User is the subset of GET /users/@me the service uses.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
	Email         string `json:"email"`
	Verified      bool   `json:"verified"`
}

// AvatarURL returns the CDN URL of the user's avatar. Animated hashes (a_ prefix)
// point at the gif rendition. Empty when the user has no avatar.
func (u *User) AvatarURL() string {
	if u.Avatar == "" {
		return ""
	}
	ext := "png"
	if strings.HasPrefix(u.Avatar, "a_") {
		ext = "gif"
	}
	return fmt.Sprintf("%s/%s/%s.%s", cdnAvatarURL, u.ID, u.Avatar, ext)
}

// HandleName returns username followed by the legacy discriminator. Accounts
// migrated to unique usernames report discriminator "0", which is omitted.
func (u *User) HandleName() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + u.Discriminator
}

// Client talks to the Discord API.
type Client struct {
	oauth      *oauth2.Config
	apiURL     string
	httpClient *http.Client
}

// NewClient returns a Client for cfg. Every call is bounded by cfg.Timeout.
func NewClient(cfg Config) *Client {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"identify", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   apiURL + "/oauth2/authorize",
				TokenURL:  apiURL + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Exchange trades an authorization code for a token set.
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	tok, err := c.oauth.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %v", ErrUnavailable, err)
	}
	return toToken(tok), nil
}

// Refresh obtains a new token set from a refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	src := c.oauth.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Unix(1, 0),
	})
	tok, err := src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			return nil, fmt.Errorf("%w: %v", ErrGrantRevoked, err)
		}
		return nil, fmt.Errorf("%w: token refresh: %v", ErrUnavailable, err)
	}
	return toToken(tok), nil
}

// Me returns the user owning accessToken.
func (c *Client) Me(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/users/@me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: get user: status %d", ErrUnavailable, resp.StatusCode)
	}
	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("discord: decode user: %w", err)
	}
	if u.ID == "" {
		return nil, errors.New("discord: user without id")
	}
	return &u, nil
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func toToken(tok *oauth2.Token) *Token {
	t := &Token{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		t.ExpiresAt = &exp
	}
	return t
}
