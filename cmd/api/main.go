package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"honeypot-lab/internal/api"
	"honeypot-lab/internal/api/channels"
	"honeypot-lab/internal/api/handlers"
	apimiddleware "honeypot-lab/internal/api/middleware"
	"honeypot-lab/internal/config"
	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/domain/services"
	"honeypot-lab/internal/domain/services/ai"
	"honeypot-lab/internal/grpc/engagement"
	"honeypot-lab/internal/infrastructure/cache"
	"honeypot-lab/internal/infrastructure/database"
	"honeypot-lab/internal/infrastructure/database/repository"
	"honeypot-lab/internal/streaming"
	"honeypot-lab/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := newLogger(cfg)
	logger.SetGlobal(log)

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("version", cfg.App.Version).
		Msg("starting honeypot")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize infrastructure
	db, redisCache := initInfrastructure(ctx, cfg, log)
	defer func() {
		if db != nil {
			db.Close()
		}
		if redisCache != nil {
			redisCache.Close()
		}
	}()

	checks := map[string]handlers.HealthCheck{}
	if db != nil {
		checks["postgres"] = db.Ping
	}
	if redisCache != nil {
		checks["redis"] = redisCache.Ping
	}

	// Report archive
	var (
		archive      services.ReportArchive
		reportLister handlers.ReportLister
	)
	if db != nil {
		repos := repository.NewRepositories(db.Pool())
		if err := repos.Reports.EnsureSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to prepare report archive, continuing without it")
		} else {
			archive = repos.Reports
			reportLister = repos.Reports
			log.Info().Msg("report archive initialized")
		}
	}

	// Initialize streaming infrastructure
	var natsPublisher *streaming.NATSPublisher
	if cfg.NATS.Enabled {
		natsPublisher, err = streaming.NewNATSPublisher(ctx, cfg.NATS, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, continuing without event stream")
			natsPublisher = nil
		} else {
			log.Info().Str("url", cfg.NATS.URL).Msg("connected to NATS")
			checks["nats"] = func(context.Context) error {
				if !natsPublisher.IsConnected() {
					return streaming.ErrNATSDisconnected
				}
				return nil
			}
		}
	}

	eventBus := streaming.NewEventBus(natsPublisher, log)
	defer eventBus.Close()
	log.Info().Bool("nats_enabled", natsPublisher != nil).Msg("event bus initialized")

	wsHub := streaming.NewWebSocketHub(log)
	go wsHub.Run(ctx)

	events := streaming.NewEventBusPublisher(eventBus, wsHub)

	// Session store
	store, err := newSessionStore(cfg, redisCache, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session store")
	}
	defer store.Close()

	// Counters are shared through Redis when it is available
	var counterSink services.CounterSink
	if redisCache != nil {
		counterSink = redisCache
	}
	stats := services.NewEngagementStats(counterSink, log)

	// Generative backend
	var generator ai.TextGenerator
	llmClient := ai.NewLLMClient(ai.LLMConfig{
		Provider:           cfg.AI.Provider,
		ClaudeAPIKey:       cfg.AI.ClaudeAPIKey,
		OpenAIAPIKey:       cfg.AI.OpenAIAPIKey,
		GeminiAPIKey:       cfg.AI.GeminiAPIKey,
		Model:              cfg.AI.Model,
		Timeout:            cfg.AI.Timeout,
		ClaudeBaseURL:      cfg.AI.ClaudeBaseURL,
		OpenAIBaseURL:      cfg.AI.OpenAIBaseURL,
		GeminiBaseURL:      cfg.AI.GeminiBaseURL,
		BreakerMaxFailures: cfg.AI.BreakerMaxFailures,
		BreakerOpenTimeout: cfg.AI.BreakerOpenTimeout,
	}, log)
	if llmClient.Enabled() {
		generator = llmClient
		log.Info().Str("provider", llmClient.Provider()).Msg("generative backend enabled")
	} else {
		log.Warn().Str("provider", cfg.AI.Provider).Msg("no generative credential configured, using rule-based replies only")
	}

	extractor := ai.NewEntityExtractor(log, generator, cfg.AI.AuxiliaryExtraction)
	responder := ai.NewPersonaResponder(log, generator, extractor, ai.ResponderConfig{
		Timeout:     cfg.AI.Timeout,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
	})

	aggregator := services.NewSessionAggregator(store, services.AggregatorConfig{
		MinIntelligenceItems: cfg.Engagement.MinIntelligenceItems,
		MinMessages:          cfg.Engagement.MinMessages,
	}, log)

	// Callback delivery
	sender := services.NewHTTPReportSender(cfg.Callback.URL, cfg.Callback.APIKey, cfg.Callback.Timeout)
	dispatcherOpts := []services.DispatcherOption{
		services.WithDispatchEvents(events),
		services.WithDispatchStats(stats),
	}
	if archive != nil {
		dispatcherOpts = append(dispatcherOpts, services.WithReportArchive(archive))
	}
	dispatcher := services.NewCallbackDispatcher(sender, log, services.CallbackDispatcherConfig{
		WorkerCount: cfg.Callback.Workers,
		QueueSize:   cfg.Callback.QueueSize,
		SendTimeout: cfg.Callback.Timeout,
	}, dispatcherOpts...)

	processor := services.NewTurnProcessor(services.TurnProcessorDeps{
		Classifier:     ai.NewIntentClassifier(),
		Responder:      responder,
		Aggregator:     aggregator,
		Reports:        dispatcher,
		Events:         events,
		Stats:          stats,
		DefaultChannel: models.Channel(cfg.Engagement.DefaultChannel),
	}, log)

	// HTTP API
	h := handlers.NewHandlers(handlers.Dependencies{
		Turns:    processor,
		Stats:    stats,
		Queue:    dispatcher,
		Reports:  reportLister,
		Checks:   checks,
		EventBus: eventBus,
		WSHub:    wsHub,
		Version:  cfg.App.Version,
		Logger:   log,
	})

	adapters := channels.NewAdapters(processor, cfg.Channels, log)

	var limiter apimiddleware.RateLimitStore
	if redisCache != nil {
		limiter = redisCache
	}

	router := api.NewRouter(*cfg, h, limiter, adapters.Router(), log)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// gRPC API
	var grpcServer *grpc.Server
	if cfg.GRPC.Enabled {
		grpcListener, err := net.Listen("tcp", cfg.GRPC.Addr())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create gRPC listener")
		}

		grpcServer = grpc.NewServer()
		engagement.NewServer(processor, eventBus, log).Register(grpcServer)

		grpcChecks := make(map[string]engagement.HealthCheck, len(checks))
		for name, check := range checks {
			grpcChecks[name] = engagement.HealthCheck(check)
		}
		engagement.RegisterHealthServer(ctx, grpcServer, grpcChecks, 10*time.Second, log)

		go func() {
			log.Info().
				Str("addr", grpcListener.Addr().String()).
				Msg("starting gRPC server")
			if err := grpcServer.Serve(grpcListener); err != nil {
				log.Fatal().Err(err).Msg("gRPC server failed")
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// In-flight channel turns may still enqueue reports
	adapters.Wait()
	dispatcher.Stop()

	cancel()

	log.Info().Msg("shutdown complete")
}

func newLogger(cfg *config.Config) *logger.Logger {
	if cfg.Logger.Level == "" && cfg.Logger.Format == "" {
		if cfg.App.IsProduction() {
			return logger.NewProduction()
		}
		return logger.NewDevelopment()
	}
	return logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		TimeFormat: cfg.Logger.TimeFormat,
	})
}

// initInfrastructure connects the optional backing services. Failures are
// logged and the service runs without them.
func initInfrastructure(ctx context.Context, cfg *config.Config, log *logger.Logger) (*database.PostgresDB, *cache.RedisCache) {
	var db *database.PostgresDB
	if cfg.Database.Enabled {
		var err error
		db, err = database.NewPostgres(ctx, cfg.Database, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to PostgreSQL, continuing without report archive")
			db = nil
		}
	}

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		var err error
		redisCache, err = cache.NewRedis(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without shared state")
			redisCache = nil
		}
	}

	return db, redisCache
}

func newSessionStore(cfg *config.Config, redisCache *cache.RedisCache, log *logger.Logger) (services.SessionStore, error) {
	switch cfg.Engagement.SessionStore {
	case "redis":
		if redisCache == nil {
			return nil, errors.New("redis session store requires a Redis connection")
		}
		log.Info().Dur("ttl", cfg.Engagement.SessionTTL).Msg("using Redis session store")
		return cache.NewRedisSessionStore(redisCache, cfg.Engagement.SessionTTL, cfg.Engagement.LockTimeout, log), nil
	default:
		log.Info().Dur("ttl", cfg.Engagement.SessionTTL).Msg("using in-memory session store")
		return services.NewMemorySessionStore(cfg.Engagement.SessionTTL, log), nil
	}
}
