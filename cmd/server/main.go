package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Apps-1-2-3/medai-assistant/internal/api"
	"github.com/Apps-1-2-3/medai-assistant/internal/cache"
	"github.com/Apps-1-2-3/medai-assistant/internal/config"
	"github.com/Apps-1-2-3/medai-assistant/internal/database"
	"github.com/Apps-1-2-3/medai-assistant/internal/domain"
	"github.com/Apps-1-2-3/medai-assistant/internal/engine"
	"github.com/Apps-1-2-3/medai-assistant/internal/history"
	"github.com/Apps-1-2-3/medai-assistant/internal/repository"
	"github.com/Apps-1-2-3/medai-assistant/pkg/shap"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting MedAI Assistant server")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional remote prediction client
	var remote engine.Predictor
	if cfg.Predictor.Enabled {
		remote = shap.NewClient(cfg.Predictor, logger)
		logger.WithField("base_url", cfg.Predictor.BaseURL).Info("Remote prediction service enabled")
	}

	// Optional result cache
	var results *cache.ResultCache
	if cfg.Cache.Enabled {
		results, err = cache.New(cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize result cache")
		}
		defer results.Close()
	}

	recommender := engine.NewRecommender(logger, remote, results)

	// Optional PostgreSQL reference database with migrations and seed data
	if cfg.Database.Enabled {
		db, err := database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()

		runner, err := database.NewMigrationRunner(configManager.GetDatabaseConnectionString(), cfg.Database.MigrationsPath, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize migration runner")
		}
		if err := runner.Up(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to run database migrations")
		}
		runner.Close()

		drugRef := repository.NewDrugReferenceRepository(db.Pool, logger)
		if err := drugRef.SeedInteractionRules(ctx, recommender.InteractionCatalog()); err != nil {
			logger.WithError(err).Warn("Failed to seed interaction reference rules")
		}
	}

	// Consultation history backend
	store, err := newHistoryStore(cfg.History)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize consultation history store")
	}
	if store != nil {
		defer store.Close()
		logger.WithField("backend", cfg.History.Backend).Info("Consultation history enabled")
	}

	// Create server
	server := api.NewServer(cfg, logger, recommender, store)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.WithField("signal", sig.String()).Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newLogger builds the application logger from configuration.
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

// newHistoryStore selects the consultation store backend. Returns nil when
// history is disabled.
func newHistoryStore(cfg domain.HistoryConfig) (history.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return history.NewSQLiteStore(cfg.SQLitePath)
	case "postgres":
		return history.NewPostgresStoreFromURL(cfg.PostgresURL)
	default:
		return nil, nil
	}
}
