package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"roombot/bot"
	"roombot/config"
	"roombot/database"
	"roombot/events"
	"roombot/infrastructure"
	"roombot/infrastructure/observability"
	"roombot/repository"
	"roombot/repository/memory"
	"roombot/service"
	"roombot/worker"

	log "github.com/sirupsen/logrus"
)

const (
	eventStreamName = "ROOMBOT_EVENTS"
	shutdownTimeout = 10 * time.Second
)

// botStarter connects the chat transport to the engine
type botStarter func(cfg *config.Config, engine service.Engine, eventBus *events.Bus) (io.Closer, error)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	return run(ctx, config.Get(), startDiscordBot, &shutdownStack{})
}

func startDiscordBot(cfg *config.Config, engine service.Engine, eventBus *events.Bus) (io.Closer, error) {
	log.Info("Initializing Discord bot...")
	discordBot, err := bot.New(bot.Config{
		Token:             cfg.DiscordToken,
		GuildID:           cfg.GuildID,
		AnnounceChannelID: cfg.AnnounceChannelID,
	}, engine, eventBus)
	if err != nil {
		return nil, err
	}
	log.Info("Discord bot initialized successfully")
	return discordBot, nil
}

// run starts every component and registers its shutdown as soon as it is up,
// so a failure part way through releases what was already started.
func run(ctx context.Context, cfg *config.Config, startBot botStarter, stack *shutdownStack) error {
	if err := ConfigureLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	log.WithField("environment", cfg.Environment).Info("Starting roombot...")

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		stack.shutdown(shutdownCtx)
		log.Info("Shutdown completed")
	}()

	eventBus := events.NewBus()

	// Initialize storage
	uowFactory, closeStore, err := newUnitOfWorkFactory(ctx, cfg, eventBus)
	if err != nil {
		return err
	}
	stack.push("storage", func(context.Context) error {
		closeStore()
		return nil
	})

	// Initialize metrics
	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	stack.push("metrics", metrics.Shutdown)
	metrics.Attach(eventBus)

	// Initialize NATS event forwarding
	natsClient, err := connectEventForwarding(ctx, cfg, eventBus)
	if err != nil {
		return err
	}
	if natsClient != nil {
		stack.push("nats", func(context.Context) error { return natsClient.Close() })
	}

	engine := service.NewEngine(uowFactory, cfg.Economy)

	discordBot, err := startBot(cfg, engine, eventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}
	stack.push("bot", func(context.Context) error { return discordBot.Close() })

	// Start periodic sweep
	sweeper, err := worker.NewSweeper(engine, cfg.SweepInterval)
	if err != nil {
		return fmt.Errorf("failed to create sweeper: %w", err)
	}
	stack.push("sweeper", func(context.Context) error { return sweeper.Shutdown() })
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	log.Infof("Bot is running in %s mode with %s storage...", cfg.Environment, cfg.StoreBackend)
	<-ctx.Done()

	log.Info("Shutting down bot...")
	return nil
}

// newUnitOfWorkFactory selects the storage backend. The returned close
// function releases the backend's resources.
func newUnitOfWorkFactory(ctx context.Context, cfg *config.Config, eventBus *events.Bus) (service.UnitOfWorkFactory, func(), error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		log.Info("Running database migrations...")
		if err := database.MigrateUp(cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		db, err := database.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return repository.NewUnitOfWorkFactory(db, eventBus), db.Close, nil

	default:
		log.Warn("Using in-memory storage, state is lost on restart")
		return memory.NewUnitOfWorkFactory(memory.NewStore(), eventBus), func() {}, nil
	}
}

// connectEventForwarding publishes committed events to JetStream when NATS is configured
func connectEventForwarding(ctx context.Context, cfg *config.Config, eventBus *events.Bus) (*infrastructure.NATSClient, error) {
	if cfg.NATSServers == "" {
		log.Info("NATS_SERVERS not set, event forwarding disabled")
		return nil, nil
	}

	client := infrastructure.NewNATSClient(cfg.NATSServers, "roombot")
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	publisher := infrastructure.NewNATSEventPublisher(client, cfg.NATSSubjectPrefix)
	if err := client.EnsureStream(eventStreamName, publisher.Subjects()); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ensure event stream: %w", err)
	}
	publisher.Attach(eventBus)

	log.WithField("subject_prefix", cfg.NATSSubjectPrefix).Info("Forwarding events to NATS")
	return client, nil
}
