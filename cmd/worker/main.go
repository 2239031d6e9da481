// Worker forwards account events from Kafka to Loki and refreshes expiring
// Discord tokens on PROVIDER_REFRESH_SCHEDULE.
// Set KAFKA_BROKERS, EVENTS_KAFKA_TOPIC, KAFKA_GROUP_ID, and LOKI_URL to enable forwarding.
// The refresh job needs DATABASE_URL and the Discord client credentials.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/segmentio/kafka-go"

	"clan-portal/backend/internal/config"
	"clan-portal/backend/internal/db"
	"clan-portal/backend/internal/oauth/discord"
	"clan-portal/backend/internal/provider/job"
	providerrepo "clan-portal/backend/internal/provider/repository"
	"clan-portal/backend/internal/telemetry"
	"clan-portal/backend/internal/telemetry/loki"
	"clan-portal/backend/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.KafkaBrokersList()
	forward := len(brokers) > 0 && cfg.LokiURL != ""
	refresh := cfg.DatabaseURL != "" && cfg.DiscordEnabled()
	if !forward && !refresh {
		log.Fatal("worker: nothing to do; set KAFKA_BROKERS and LOKI_URL, or DATABASE_URL and Discord credentials")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup

	if refresh {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer conn.Close()

		var events telemetry.EventEmitter
		if kp := producer.NewKafkaProducer(brokers, cfg.EventsKafkaTopic); kp != nil {
			defer kp.Close()
			events = kp
		}
		refreshJob := job.NewRefreshProviderTokensJob(
			providerrepo.NewPostgresRepository(conn),
			discord.NewClient(discord.Config{
				ClientID:     cfg.DiscordClientID,
				ClientSecret: cfg.DiscordClientSecret,
				RedirectURI:  cfg.DiscordRedirectURI,
				APIURL:       cfg.DiscordAPIURL,
				Timeout:      cfg.DiscordTimeout(),
			}),
			events,
		)

		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
		if _, err := c.AddJob(cfg.ProviderRefreshSchedule, refreshJob); err != nil {
			log.Fatalf("worker: invalid PROVIDER_REFRESH_SCHEDULE %q: %v", cfg.ProviderRefreshSchedule, err)
		}
		c.Start()
		log.Printf("worker: provider token refresh scheduled (%s)", cfg.ProviderRefreshSchedule)
		defer func() { <-c.Stop().Done() }()
	}

	if forward {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consume(ctx, cfg, brokers)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	log.Println("worker: stopped")
}

// consume reads events from Kafka and pushes each one to Loki until ctx is done.
func consume(ctx context.Context, cfg *config.Config, brokers []string) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.EventsKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	lokiClient := loki.NewClient(cfg.LokiURL)
	log.Printf("worker: consuming from %s (group %s), pushing to %s", cfg.EventsKafkaTopic, cfg.KafkaGroupID, cfg.LokiURL)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("worker: kafka read error: %v", err)
			continue
		}

		pushCtx, pushCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := lokiClient.PushEventJSON(pushCtx, msg.Value); err != nil {
			log.Printf("worker: loki push failed: %v", err)
		}
		pushCancel()
	}
}
