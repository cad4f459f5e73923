package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/vendor-desk/internal/api/http"
	"github.com/spec-kit/vendor-desk/internal/api/http/handlers"
	"github.com/spec-kit/vendor-desk/internal/archive"
	"github.com/spec-kit/vendor-desk/internal/auth"
	"github.com/spec-kit/vendor-desk/internal/chat"
	"github.com/spec-kit/vendor-desk/internal/config"
	"github.com/spec-kit/vendor-desk/internal/events"
	"github.com/spec-kit/vendor-desk/internal/observability"
	"github.com/spec-kit/vendor-desk/internal/persistence"
	"github.com/spec-kit/vendor-desk/internal/repository"
	"github.com/spec-kit/vendor-desk/internal/service"
	"github.com/spec-kit/vendor-desk/internal/worker"
)

const (
	minBodyLimit    = 4 << 20
	bodyLimitSlack  = 64 << 10
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	checks := map[string]handlers.Pinger{}

	var (
		vendorRepo     repository.VendorRepository
		assignmentRepo repository.AssignmentRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		vendorRepo = repository.NewVendorRepository(pool)
		assignmentRepo = repository.NewAssignmentRepository(pool)
		checks["postgres"] = pg
	} else {
		logger.Warn("using in-memory vendor and assignment storage")
		vendorRepo = repository.NewMemoryVendorRepository()
		assignmentRepo = repository.NewMemoryAssignmentRepository()
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		activeStore repository.ActiveVendorStore
		broker      chat.Broker
	)
	if redis.Reachable {
		activeStore = repository.NewActiveVendorStore(redis.Client)
		broker = chat.NewRedisBroker(redis.Client, logger)
		checks["redis"] = redis
	} else {
		logger.Warn("redis unavailable; active vendor and message feed are process-local")
		activeStore = repository.NewMemoryActiveVendorStore()
		broker = chat.NewMemoryBroker(logger)
	}

	transport := chat.NewCometChatClient(chat.CometChatConfig{
		BaseURL: cfg.Chat.Endpoint(),
		APIKey:  cfg.Chat.APIKey,
		Timeout: cfg.Chat.Timeout(),
	}, logger, metrics)

	dispatcher := events.NewInMemoryDispatcher()
	worker.RegisterEventLog(dispatcher, logger)
	provisioning := service.NewProvisioningService(transport, metrics, logger)
	provisioningWorker := worker.StartProvisioningWorker(ctx, dispatcher, provisioning, logger)

	vendorService := service.NewVendorService(*cfg, service.VendorDependencies{
		VendorRepo: vendorRepo,
		Dispatcher: dispatcher,
		Archiver:   archive.New(cfg.Archive),
		Metrics:    metrics,
		Logger:     logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		AssignmentRepo: assignmentRepo,
		VendorRepo:     vendorRepo,
		Transport:      transport,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	authService, err := service.NewAuthService(*cfg, service.AuthDependencies{
		VendorRepo: vendorRepo,
		Transport:  transport,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to init auth", zap.Error(err))
	}
	customerService := service.NewCustomerService(transport, vendorRepo)
	activeService := service.NewActiveVendorService(activeStore, vendorRepo, logger)
	conversationService := service.NewConversationService(assignmentService, transport, broker, logger)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), vendorRepo)

	bodyLimit := max(minBodyLimit, cfg.Sync.MaxUploadBytes+bodyLimitSlack)
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	streams, closeStreams := context.WithCancel(ctx)
	defer closeStreams()

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks),
		Auth:           handlers.NewAuthHandler(authService),
		Vendors:        handlers.NewVendorsHandler(vendorService, cfg.Sync.MaxUploadBytes),
		Customers:      handlers.NewCustomersHandler(customerService),
		Assignments:    handlers.NewAssignmentsHandler(assignmentService),
		ActiveVendor:   handlers.NewActiveVendorHandler(activeService),
		Conversations:  handlers.NewConversationsHandler(streams, conversationService, logger),
		Webhook:        handlers.NewWebhookHandler(conversationService, cfg.Chat.WebhookToken, logger),
		AuthMiddleware: authMiddleware,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	// event streams never finish on their own
	closeStreams()
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	provisioningWorker.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
