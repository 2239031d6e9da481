package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clan-portal/backend/internal/audit"
	auditrepo "clan-portal/backend/internal/audit/repository"
	authrepo "clan-portal/backend/internal/auth/repository"
	authservice "clan-portal/backend/internal/auth/service"
	"clan-portal/backend/internal/config"
	"clan-portal/backend/internal/db"
	"clan-portal/backend/internal/db/migrate"
	homerepo "clan-portal/backend/internal/home/repository"
	homeservice "clan-portal/backend/internal/home/service"
	"clan-portal/backend/internal/mail"
	"clan-portal/backend/internal/oauth/discord"
	"clan-portal/backend/internal/policy/engine"
	profilerepo "clan-portal/backend/internal/profile/repository"
	profileservice "clan-portal/backend/internal/profile/service"
	providerrepo "clan-portal/backend/internal/provider/repository"
	"clan-portal/backend/internal/ratelimit"
	rolerepo "clan-portal/backend/internal/role/repository"
	"clan-portal/backend/internal/security"
	"clan-portal/backend/internal/server"
	"clan-portal/backend/internal/server/pipeline"
	"clan-portal/backend/internal/telemetry"
	telemetryotel "clan-portal/backend/internal/telemetry/otel"
	"clan-portal/backend/internal/telemetry/producer"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
	homeCacheTTL      = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()

	if err := migrate.Run(cfg.DatabaseURL, "up", 0); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migrate: %v", err)
	}
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	var kafkaProducer producer.Producer
	if kp := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.EventsKafkaTopic); kp != nil {
		kafkaProducer = kp
		log.Printf("events: publishing to kafka topic %s", cfg.EventsKafkaTopic)
	}
	events := telemetry.Fanout(telemetryotel.NewEventEmitter(providers.LoggerProvider), kafkaProducer)

	evaluator, err := newEvaluator(ctx, cfg.AuthzEngine)
	if err != nil {
		log.Fatalf("authz: %v", err)
	}

	store, err := ratelimit.Open(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("ratelimit: %v", err)
	}
	defer store.Close()

	sender, err := newMailSender(cfg)
	if err != nil {
		log.Fatalf("mail: %v", err)
	}

	if !cfg.DiscordEnabled() {
		log.Println("discord: client credentials not set; discord login will fail")
	}
	discordClient := discord.NewClient(discord.Config{
		ClientID:     cfg.DiscordClientID,
		ClientSecret: cfg.DiscordClientSecret,
		RedirectURI:  cfg.DiscordRedirectURI,
		APIURL:       cfg.DiscordAPIURL,
		Timeout:      cfg.DiscordTimeout(),
	})

	trusted, err := pipeline.ParseTrustedProxies(cfg.TrustedProxiesList())
	if err != nil {
		log.Fatalf("config: TRUSTED_PROXIES: %v", err)
	}

	tokens := security.NewTokenProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	auths := authrepo.NewPostgresRepository(conn)
	profiles := profilerepo.NewPostgresRepository(conn)
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn), pipeline.ClientIPFromContext)

	authSvc := authservice.NewAuthService(authservice.Deps{
		Auths:     auths,
		Providers: providerrepo.NewPostgresRepository(conn),
		Profiles:  profiles,
		Discord:   discordClient,
		Mailer:    mail.NewMailer(sender, cfg.VerifyURL, cfg.FrontendURL),
		Hasher:    security.NewHasher(cfg.BcryptCost),
		Tokens:    tokens,
		Audit:     auditLogger,
		Events:    events,
	})

	deps := server.Deps{
		Auth:           authSvc,
		Profiles:       profileservice.NewProfileService(profiles, rolerepo.NewPostgresRepository(conn)),
		Home:           homeservice.NewHomeService(homerepo.NewPostgresRepository(conn), homeCacheTTL),
		Tokens:         tokens,
		Accounts:       auths,
		Authz:          evaluator,
		Limiter:        ratelimit.NewLimiter(store.Client(), cfg.RateLimitPerMinute, time.Minute),
		Audit:          auditLogger,
		Events:         events,
		HealthDB:       conn,
		HealthCache:    store,
		CORSOrigins:    cfg.CORSOriginsList(),
		TrustedProxies: trusted,
	}
	if opa, ok := evaluator.(*engine.OPAEvaluator); ok {
		deps.HealthPolicy = opa
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	// Let in-flight async emits finish before the exporters close.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), telemetry.ShutdownDrainDuration)
	if err := telemetry.Drain(drainCtx); err != nil {
		log.Printf("events: drain: %v", err)
	}
	cancelDrain()
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Printf("events: close kafka producer: %v", err)
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}

func newEvaluator(ctx context.Context, kind string) (engine.Evaluator, error) {
	if kind == config.AuthzEngineOPA {
		log.Println("authz: using OPA evaluator")
		return engine.NewOPAEvaluator(ctx)
	}
	return engine.ScopeSetEvaluator{}, nil
}

func newMailSender(cfg *config.Config) (mail.Sender, error) {
	if cfg.SMTPHost == "" {
		log.Println("mail: SMTP_HOST not set; emails are written to the log")
		return mail.LogSender{}, nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Secure:   cfg.SMTPSecure,
		User:     cfg.SMTPUser,
		Pass:     cfg.SMTPPass,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
}
