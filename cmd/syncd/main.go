package main

import (
	"chat-sync/auth"
	"chat-sync/contract"
	"chat-sync/infrastructure/messaging"
	"chat-sync/infrastructure/rest"
	"chat-sync/internal"
	"chat-sync/moderation"
	"chat-sync/observability"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"chat-sync/search"
	"chat-sync/services"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the daemon and blocks until SIGINT or SIGTERM.
// Returning instead of exiting lets every defer close its resource.
func run() error {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB) & search index (Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	store := repositories.NewMessageRepository(db, log)
	cursors := repositories.NewCursorRepository(db, log)

	index, err := search.NewMessageIndex(config.BlugeFilepath, log)
	if err != nil {
		return err
	}
	defer func() { _ = index.Close() }()

	// 3. Ingestion path
	moderator, err := newModerator(config.CharReplacement, log)
	if err != nil {
		return err
	}
	ingestion := services.NewIngestionService(log, store, moderator)

	// 4. Remote endpoint
	clientID, err := resolveClientID(config.ClientID, log)
	if err != nil {
		return err
	}
	signer, err := auth.NewTokenSigner(config.AuthSecret, clientID, config.SenderID, config.AuthTokenTTL)
	if err != nil {
		return err
	}
	endpoint, err := rest.NewClient(config.ServerURL, signer, &http.Client{Timeout: 2 * config.DeliveryTimeout}, log)
	if err != nil {
		return err
	}

	// 5. Engine
	orchestrator := runtime.NewOrchestrator(
		log, workers.NewSupervisor(log), store, index, endpoint,
		runtime.NewLastKnownLocation(nil), config.SenderID,
		config.DeliveryTimeout, config.MaxConcurrentQueries,
	)
	orchestrator.Add(workers.NewTelemetryWorker(log, config.MetricInterval))

	if config.NatsURL != "" {
		natsConfig := messaging.DefaultNATSConfig()
		natsConfig.URL = config.NatsURL
		natsConfig.Name = "chat-sync-" + config.SenderID
		natsClient, err := messaging.NewNATSClient(natsConfig, log)
		if err != nil {
			return err
		}
		defer natsClient.Close()
		orchestrator.Add(workers.NewIngestionWorker(log, natsClient, ingestion.ForSource("nats"), config.NatsSubject))
	}

	scheduler, err := newScheduler(config, log)
	if err != nil {
		return err
	}
	syncJob := workers.NewSyncJob(log, endpoint, ingestion.ForSource("pull"), cursors, config.SyncCursorKey)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orchestrator.Start(ctx)
	defer orchestrator.Stop()
	if err = orchestrator.ScheduleBackgroundOperations(ctx, scheduler, syncJob.Run); err != nil {
		return fmt.Errorf("background sync failed to start: %w", err)
	}

	// 7. Metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	server := &http.Server{Addr: config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Serving metrics", "address", config.MetricsAddr, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Metrics server shutdown", "error", err)
	}
	log.Info("Program stopped cleanly")
	return nil
}

func newModerator(replacement string, log *slog.Logger) (*moderation.Moderator, error) {
	char, err := internal.CharacterRune(replacement)
	if err != nil {
		return nil, err
	}
	data, err := moderation.NewCensoredLoader(moderation.CensoredFS).LoadAll("censored")
	if err != nil {
		return nil, err
	}
	log.Info(fmt.Sprintf("%d censored files loaded [%s]", len(data.Languages), strings.Join(data.Languages, ",")))
	log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))
	return moderation.NewModerator(data.Words, char, log)
}

// resolveClientID generates an identity when none was registered yet.
func resolveClientID(configured string, log *slog.Logger) (uuid.UUID, error) {
	if configured == "" {
		id := uuid.New()
		log.Warn("No CLIENT_ID configured, using a generated one", "client_id", id)
		return id, nil
	}
	id, err := uuid.Parse(configured)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid CLIENT_ID %q: %w", configured, err)
	}
	return id, nil
}

func newScheduler(config internal.Config, log *slog.Logger) (contract.Scheduler, error) {
	if config.SyncCron != "" {
		return runtime.NewCronScheduler(log, config.SyncCron)
	}
	return runtime.NewIntervalScheduler(log, config.SyncInterval)
}
