// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Authorization engines selectable with AUTHZ_ENGINE.
const (
	AuthzEngineScopes = "scopes"
	AuthzEngineOPA    = "opa"
)

// minJWTSecretLen is the shortest HMAC secret accepted for HS256 signing.
const minJWTSecretLen = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :3000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Port, when set, overrides the port of HTTPAddr (hosting platforms inject PORT).
	Port string `mapstructure:"PORT"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// JWTSecret is the process-wide HMAC secret every token is signed with.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim set on issue and checked on verify.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// BcryptCost is the bcrypt cost factor (10–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// Discord OAuth application credentials.
	DiscordClientID     string `mapstructure:"DISCORD_CLIENT_ID"`
	DiscordClientSecret string `mapstructure:"DISCORD_CLIENT_SECRET"`
	DiscordRedirectURI  string `mapstructure:"DISCORD_REDIRECT_URI"`
	// DiscordAPIURL is the Discord API base (token and users/@me live under it).
	DiscordAPIURL string `mapstructure:"DISCORD_API_URL"`
	// DiscordHTTPTimeout bounds each call to Discord (e.g. "10s").
	DiscordHTTPTimeout string `mapstructure:"DISCORD_HTTP_TIMEOUT"`

	// SMTP transport for outbound mail.
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPSecure   bool   `mapstructure:"SMTP_SECURE"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPass     string `mapstructure:"SMTP_PASS"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
	SMTPFromName string `mapstructure:"SMTP_FROM_NAME"`

	// VerifyURL is the page that receives ?token= from the verification email.
	VerifyURL string `mapstructure:"VERIFY_URL"`
	// FrontendURL is the web app base used for recover-password and change-email links.
	FrontendURL string `mapstructure:"FRONTEND_URL"`
	// CORSOrigins is a comma-separated list of allowed browser origins.
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`
	// TrustedProxies is a comma-separated list of proxy IPs or CIDRs whose
	// X-Forwarded-For and X-Real-IP headers are honoured. Empty trusts none.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	// RedisAddr is the Redis address for rate limiting; empty starts an embedded server.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RateLimitPerMinute caps requests per client IP on login and recovery endpoints; 0 disables.
	RateLimitPerMinute int `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	// AuthzEngine selects the scope evaluator: "scopes" (in-memory) or "opa" (Rego).
	AuthzEngine string `mapstructure:"AUTHZ_ENGINE"`

	// Events (optional). When Kafka brokers are set, account events are published to Kafka.
	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// EventsKafkaTopic is the Kafka topic for account events (default clan-portal-events).
	EventsKafkaTopic string `mapstructure:"EVENTS_KAFKA_TOPIC"`

	// Worker-only: Loki URL the worker pushes events to (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// ProviderRefreshSchedule is the cron spec for refreshing expiring provider tokens.
	ProviderRefreshSchedule string `mapstructure:"PROVIDER_REFRESH_SCHEDULE"`

	// OTLP exporter settings; an empty endpoint disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("PORT", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "clan-portal")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("DISCORD_CLIENT_ID", "")
	v.SetDefault("DISCORD_CLIENT_SECRET", "")
	v.SetDefault("DISCORD_REDIRECT_URI", "")
	v.SetDefault("DISCORD_API_URL", "https://discord.com/api")
	v.SetDefault("DISCORD_HTTP_TIMEOUT", "10s")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_SECURE", false)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("SMTP_FROM_NAME", "")
	v.SetDefault("VERIFY_URL", "")
	v.SetDefault("FRONTEND_URL", "")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 10)
	v.SetDefault("AUTHZ_ENGINE", AuthzEngineScopes)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("EVENTS_KAFKA_TOPIC", "clan-portal-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "clan-portal-worker")
	v.SetDefault("PROVIDER_REFRESH_SCHEDULE", "@every 30m")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "clan-portal")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Port != "" {
		cfg.HTTPAddr = ":" + strings.TrimPrefix(cfg.Port, ":")
	}
	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if len(cfg.JWTSecret) < minJWTSecretLen {
		return nil, errors.New("config: JWT_SECRET must be at least 32 bytes")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 10 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 10 and 31")
	}

	switch cfg.AuthzEngine {
	case AuthzEngineScopes, AuthzEngineOPA:
	default:
		return nil, errors.New("config: AUTHZ_ENGINE must be scopes or opa")
	}

	if cfg.RateLimitPerMinute < 0 {
		return nil, errors.New("config: RATE_LIMIT_PER_MINUTE must not be negative")
	}

	return &cfg, nil
}

// DiscordTimeout parses DiscordHTTPTimeout as a time.Duration. Returns 10s if unset or invalid.
func (c *Config) DiscordTimeout() time.Duration {
	d, err := time.ParseDuration(c.DiscordHTTPTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// DiscordEnabled reports whether the Discord OAuth client has credentials.
func (c *Config) DiscordEnabled() bool {
	return c.DiscordClientID != "" && c.DiscordClientSecret != ""
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event publishing is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// CORSOriginsList returns the allowed origins without trailing slashes.
func (c *Config) CORSOriginsList() []string {
	if c == nil {
		return nil
	}
	out := splitList(c.CORSOrigins)
	for i := range out {
		out[i] = strings.TrimRight(out[i], "/")
	}
	return out
}

// TrustedProxiesList returns the configured proxy IPs and CIDRs.
func (c *Config) TrustedProxiesList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TrustedProxies)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
