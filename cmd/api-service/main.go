package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/jobmatch/jobmatch-be/internal/api/handler"
	"github.com/jobmatch/jobmatch-be/internal/api/router"
	"github.com/jobmatch/jobmatch-be/internal/config"
	"github.com/jobmatch/jobmatch-be/internal/notify"
	"github.com/jobmatch/jobmatch-be/internal/orchestrator"
	"github.com/jobmatch/jobmatch-be/internal/parser"
	"github.com/jobmatch/jobmatch-be/internal/payment"
	"github.com/jobmatch/jobmatch-be/internal/search"
	"github.com/jobmatch/jobmatch-be/internal/store"
	"github.com/jobmatch/jobmatch-be/shared/logger"
	"github.com/jobmatch/jobmatch-be/shared/postgresql"
	"github.com/jobmatch/jobmatch-be/shared/rabbitmq"
	"github.com/jobmatch/jobmatch-be/shared/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize session store
	sessionStore, storeCleanup, err := initStore(cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	defer storeCleanup()

	appLogger.Info("Session store initialized",
		slog.String("backend", cfg.Store.Backend),
	)

	// Initialize RabbitMQ client when notifications are delivered
	// asynchronously by worker-service.
	var rabbitClient *rabbitmq.Client
	if cfg.Email.Async {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		appLogger.Info("RabbitMQ connection established")
	}

	// Initialize search engine
	engine, err := initSearchEngine(&cfg.Search, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize search engine: %w", err)
	}

	// Initialize resume parser
	resumeParser, err := parser.NewOpenAIParser(cfg.Parser.OpenAIAPIKey, cfg.Parser.Model, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize resume parser: %w", err)
	}

	// Initialize payment gateway
	gateway := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:     cfg.Payment.StripeSecretKey,
		WebhookSecret: cfg.Payment.StripeWebhookSecret,
		PriceCents:    cfg.Payment.PriceCents,
		ProductName:   cfg.Payment.ProductName,
		AppURL:        cfg.Payment.AppURL,
	}, appLogger.Logger)

	// Initialize notifier
	notifier := initNotifier(cfg, rabbitClient, appLogger.Logger)

	// Initialize orchestrator
	orch := orchestrator.New(orchestrator.Config{
		Store:          sessionStore,
		Engine:         engine,
		Notifier:       notifier,
		Gateway:        gateway,
		Logger:         appLogger.Logger,
		QueuedDelivery: cfg.Email.Async,
	})

	// Initialize router
	r := initRouter(cfg.App.Environment, &handler.Dependencies{
		Logger:       appLogger.Logger,
		Store:        sessionStore,
		Parser:       resumeParser,
		Gateway:      gateway,
		Orchestrator: orch,
	})

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initStore builds the session store named by the config backend. The
// returned cleanup closes the backing connection, if any.
func initStore(cfg *config.Config, logger *slog.Logger) (store.SessionStore, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		return store.NewMemoryStore(), func() {}, nil

	case config.StoreBackendRedis:
		client, err := redis.NewClient(&redis.Config{
			Host:     cfg.Store.Redis.Host,
			Port:     cfg.Store.Redis.Port,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedisStore(client.GetClient()), func() { client.Close() }, nil

	case config.StoreBackendPostgres:
		client, err := postgresql.NewClient(&postgresql.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return store.NewPostgresStore(client.GetDB()), func() { client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

// initSearchEngine wires every configured provider into the engine, in
// tier order.
func initSearchEngine(cfg *config.SearchConfig, logger *slog.Logger) (*search.Engine, error) {
	var providers []search.Provider
	if cfg.SerperAPIKey != "" {
		providers = append(providers, search.NewSerperProvider(cfg.SerperAPIKey))
	}
	if cfg.AdzunaAppID != "" && cfg.AdzunaAppKey != "" {
		providers = append(providers, search.NewAdzunaProvider(cfg.AdzunaAppID, cfg.AdzunaAppKey))
	}

	return search.NewEngine(&search.Config{
		Providers:        providers,
		MaxResults:       cfg.MaxResults,
		MaxProviderCalls: cfg.MaxProviderCalls,
		Logger:           logger,
	})
}

// initNotifier selects inline Resend delivery or the RabbitMQ queue
// consumed by worker-service.
func initNotifier(cfg *config.Config, rabbitClient *rabbitmq.Client, logger *slog.Logger) notify.Notifier {
	if cfg.Email.Async {
		return notify.NewQueueNotifier(rabbitClient, logger)
	}
	return notify.NewResendNotifier(cfg.Email.ResendAPIKey, cfg.Email.From, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, deps *handler.Dependencies) *gin.Engine {
	// Set Gin mode based on environment
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps)
}
