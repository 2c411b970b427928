package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"contactgate/internal/antispam"
	"contactgate/internal/api"
	"contactgate/internal/config"
	"contactgate/internal/database"
	"contactgate/internal/delivery"
	"contactgate/internal/logger"
	"contactgate/internal/metrics"
	"contactgate/internal/ratelimit"
	"contactgate/internal/services"
	"contactgate/internal/store"
)

const (
	shutdownTimeout = 30 * time.Second
	readTimeout     = 15 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 60 * time.Second
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	log.Info().
		Str("name", cfg.App.Name).
		Str("version", cfg.App.Version).
		Str("env", cfg.App.Env).
		Str("host", cfg.App.Host).
		Str("port", cfg.App.Port).
		Msg("starting")

	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// Initialize database
	db, err := database.Open(&cfg.Database, logger.Component(log, "database"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		log.Info().Msg("closing database connections")
		if closeErr := database.Close(db); closeErr != nil {
			log.Error().Err(closeErr).Msg("error closing database")
		}
	}()

	ctx := context.Background()
	kv, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Create service instances
	reputation := antispam.NewReputation(kv, antispam.OnMarked(func(ip, reason string) {
		metrics.RecordSuspiciousIP()
		log.Warn().Str("component", "reputation").Str("ip", ip).Str("reason", reason).Msg("ip marked suspicious")
	}))
	limiter := ratelimit.New(kv)

	mailer := delivery.NewService(delivery.Config{
		SenderName:       cfg.Email.SenderName,
		SenderEmail:      cfg.Email.SenderEmail,
		ReplyTo:          cfg.Email.ReplyTo,
		UnsubscribeEmail: cfg.Email.UnsubscribeEmail,
		Application:      cfg.App.Name,
	}, newTransport(cfg, log), limiter, delivery.WithLogger(logger.Component(log, "delivery")))

	contactStore := database.NewContactStore(db)
	contacts := services.NewContactService(
		services.ContactConfig{OwnerEmail: cfg.Email.RecipientEmail, SenderName: cfg.Email.SenderName},
		contactStore,
		mailer,
		antispam.NewGuard(),
		reputation,
		logger.Component(log, "contact"),
	)

	adminAuth := services.NewAdminAuth(services.AdminAuthConfig{
		StaticToken: cfg.Auth.AdminToken,
		TokenHash:   cfg.Auth.AdminTokenHash,
		JWTSecret:   cfg.Auth.SecretKey,
	})
	if !adminAuth.Enabled() {
		log.Warn().Msg("no admin credential configured, admin endpoints will reject every request")
	}

	srv := api.New(cfg, api.Deps{
		Contacts:   contacts,
		Delivery:   mailer,
		Auth:       adminAuth,
		Reputation: reputation,
		Limiter:    limiter,
		Ping:       contactStore.Ping,
		DBStats:    func() (*sql.DBStats, error) { return database.Stats(db) },
		Log:        logger.Component(log, "http"),
	})

	return serve(cfg, srv.Handler(), db, log)
}

// openStore selects the backend holding reputation and rate limit state.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, func(), error) {
	if cfg.Store.Backend != "redis" {
		log.Warn().Msg("using in-memory store, limits are per process")
		return store.NewMemoryStore(), func() {}, nil
	}

	rdb, err := store.NewRedisClient(ctx, cfg.Store.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info().Str("prefix", cfg.Store.Prefix).Msg("using redis store")
	return store.NewRedisStore(rdb, store.WithPrefix(cfg.Store.Prefix)), func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}, nil
}

func newTransport(cfg *config.Config, log zerolog.Logger) delivery.Transport {
	if !cfg.Email.Enabled {
		log.Warn().Msg("EMAIL_ENABLED=false, emails will only be logged")
		return delivery.NewLogTransport(logger.Component(log, "mail"))
	}
	log.Info().
		Str("host", cfg.Email.SMTPHost).
		Int("port", cfg.Email.SMTPPort).
		Bool("secure", cfg.Email.Secure()).
		Msg("smtp transport configured")
	return delivery.NewSMTPTransport(delivery.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		Secure:   cfg.Email.Secure(),
		Timeout:  cfg.Email.Timeout,
	})
}

func serve(cfg *config.Config, handler http.Handler, db *gorm.DB, log zerolog.Logger) error {
	addr := fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	if stats, err := database.Stats(db); err == nil {
		metrics.UpdateDBConnections(stats.InUse, stats.Idle)
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("starting graceful shutdown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error during graceful shutdown")
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Msg("shutdown timeout exceeded, forcing close")
			_ = httpServer.Close()
		}
	}

	log.Info().Msg("server shutdown complete")
	return nil
}

// validateConfig validates critical configuration values
func validateConfig(cfg *config.Config) error {
	if cfg.Auth.SecretKey != "" && len(cfg.Auth.SecretKey) < 32 {
		return fmt.Errorf("SECRET_KEY must be at least 32 characters for security")
	}
	if cfg.Email.RecipientEmail == "" {
		return fmt.Errorf("RECIPIENT_EMAIL or SENDER_EMAIL must be set")
	}
	return nil
}
