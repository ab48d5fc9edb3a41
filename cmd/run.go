package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"colorgame/bot"
	"colorgame/broadcast"
	"colorgame/config"
	"colorgame/database"
	"colorgame/events"
	"colorgame/infrastructure"
	"colorgame/observability"
	"colorgame/repository"
	"colorgame/repository/memory"
	"colorgame/server"
	"colorgame/service"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	log.WithFields(log.Fields{
		"environment": cfg.Environment,
		"store":       cfg.StoreBackend,
	}).Info("Starting colorgame...")

	clk := clock.New()

	eventBus := events.NewBus()

	uowFactory, closeStore, err := newUnitOfWorkFactory(ctx, cfg, clk, eventBus)
	if err != nil {
		return err
	}
	defer closeStore()

	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	// Initialize services
	userService := service.NewUserService(uowFactory, cfg.StartingBalance)
	bettingService := service.NewBettingService(uowFactory, clk, cfg.LockWindow, metrics)
	walletService := service.NewWalletService(uowFactory, metrics)
	coordinator := service.NewRoundCoordinator(
		uowFactory,
		service.NewOutcomeGenerator(nil),
		service.NewSettlementService(),
		clk,
		LifecycleConfig(cfg),
		metrics,
	)

	hub := broadcast.NewHub(coordinator.Snapshot)
	coordinator.AddObserver(hub)

	var natsClient *infrastructure.NATSClient
	if cfg.NATSEnabled() {
		natsClient, err = connectNATS(ctx, cfg, eventBus, hub, metrics)
		if err != nil {
			return err
		}
	}

	var discordBot *bot.Bot
	if cfg.DiscordEnabled() {
		discordBot, err = bot.New(bot.Config{
			Token:      cfg.DiscordToken,
			ChannelID:  cfg.DiscordChannelID,
			LockWindow: cfg.LockWindow.String(),
			BufferSize: cfg.ObserverBufferSize,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Discord bot: %w", err)
		}
		hub.Attach(discordBot.Announcer)
	}

	httpServer := server.New(server.Services{
		Users:   userService,
		Betting: bettingService,
		Wallet:  walletService,
		Rounds:  coordinator,
	}, hub, server.Options{
		Addr:               cfg.HTTPAddr,
		AdminToken:         cfg.AdminToken,
		ObserverBufferSize: cfg.ObserverBufferSize,
	})

	if err := coordinator.Start(ctx); err != nil {
		return fmt.Errorf("failed to start round coordinator: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Start()
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	log.Info("Shutting down...")
	coordinator.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.WithError(shutdownErr).Error("Error shutting down HTTP server")
	}
	if discordBot != nil {
		if closeErr := discordBot.Close(); closeErr != nil {
			log.WithError(closeErr).Error("Error closing Discord bot")
		}
	}
	if natsClient != nil {
		if closeErr := natsClient.Close(); closeErr != nil {
			log.WithError(closeErr).Error("Error closing NATS connection")
		}
	}
	if shutdownErr := metrics.Shutdown(shutdownCtx); shutdownErr != nil {
		log.WithError(shutdownErr).Error("Error shutting down metrics")
	}

	log.Info("Shutdown completed")
	return err
}

// LifecycleConfig extracts the round timings from cfg
func LifecycleConfig(cfg *config.Config) service.LifecycleConfig {
	return service.LifecycleConfig{
		RoundDuration:           cfg.RoundDuration,
		LockWindow:              cfg.LockWindow,
		Cooldown:                cfg.Cooldown,
		SettlementRetryInterval: cfg.SettlementRetryInterval,
	}
}

// ConfigureLogging applies the configured logrus level and format
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
}

// newUnitOfWorkFactory selects the store backend. The returned func releases it.
func newUnitOfWorkFactory(ctx context.Context, cfg *config.Config, clk clock.Clock, eventBus *events.Bus) (service.UnitOfWorkFactory, func(), error) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn("Using in-memory store; rounds and balances are lost on restart")
		return memory.NewUnitOfWorkFactory(memory.NewStore(clk), eventBus), func() {}, nil
	}

	databaseURL := cfg.GetDatabaseURL()
	if err := database.RunMigrationsWithURL(databaseURL); err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	return repository.NewUnitOfWorkFactory(db, eventBus), db.Close, nil
}

// connectNATS relays domain events and lifecycle transitions to JetStream
func connectNATS(ctx context.Context, cfg *config.Config, eventBus *events.Bus, hub *broadcast.Hub, metrics *observability.MetricsProvider) (*infrastructure.NATSClient, error) {
	client := infrastructure.NewNATSClient(cfg.NATSServers)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, err
	}

	mapper := infrastructure.NewEventSubjectMapper(cfg.NATSSubjectPrefix)
	if err := client.EnsureStream(mapper.StreamName(), mapper.GetAllSubjects()); err != nil {
		_ = client.Close()
		return nil, err
	}

	publisher := infrastructure.NewNATSEventPublisher(client, mapper, metrics)
	publisher.SubscribeTo(eventBus)
	hub.Attach(infrastructure.NewNATSLifecycleSink(publisher, cfg.ObserverBufferSize))

	return client, nil
}
