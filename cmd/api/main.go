package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tdhs/helpdesk-service/internal/ai"
	httptransport "github.com/tdhs/helpdesk-service/internal/api/http"
	"github.com/tdhs/helpdesk-service/internal/api/http/handlers"
	"github.com/tdhs/helpdesk-service/internal/auth"
	"github.com/tdhs/helpdesk-service/internal/cache"
	"github.com/tdhs/helpdesk-service/internal/config"
	"github.com/tdhs/helpdesk-service/internal/events"
	"github.com/tdhs/helpdesk-service/internal/observability"
	"github.com/tdhs/helpdesk-service/internal/persistence"
	"github.com/tdhs/helpdesk-service/internal/repository"
	"github.com/tdhs/helpdesk-service/internal/service"
	"github.com/tdhs/helpdesk-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open document store", zap.Error(err))
	}
	defer backend.Close()
	store := backend.Store

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var lookupCache cache.Cache = cache.Noop{}
	var cachePinger handlers.Pinger
	if redis != nil {
		lookupCache = cache.NewRedisCache(redis.Client, cfg.App.Name+":")
		cachePinger = redis
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	counterRepo := repository.NewCounterRepository(store)
	ticketRepo := repository.NewTicketRepository(store)
	userRepo := repository.NewUserRepository(store)

	authService := service.NewAuthService(*cfg, userRepo)
	verifier, err := newVerifier(ctx, cfg, backend, authService)
	if err != nil {
		logger.Fatal("failed to init identity provider", zap.Error(err))
	}
	authMiddleware := auth.NewAuthMiddleware(verifier, userRepo)

	allocator := service.NewTicketAllocator(cfg.Tickets, service.AllocatorDependencies{
		Store:       store,
		CounterRepo: counterRepo,
		TicketRepo:  ticketRepo,
		Logger:      logger,
		Metrics:     metrics,
	})
	submissionService := service.NewSubmissionService(allocator, dispatcher, logger)
	lookupService := service.NewLookupService(cfg.Lookup, service.LookupDependencies{
		TicketRepo: ticketRepo,
		UserRepo:   userRepo,
		Cache:      lookupCache,
		Logger:     logger,
	})
	workflowService := service.NewWorkflowService(service.WorkflowDependencies{
		Store:      store,
		TicketRepo: ticketRepo,
		UserRepo:   userRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	staffService := service.NewStaffService(userRepo, lookupCache, logger)
	diagnosisService := service.NewDiagnosisService(ticketRepo, newGenerator(cfg.AI, logger), logger)

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	workerDone := worker.StartNotificationWorker(ctx, notificationService)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, store, cachePinger),
		Public: handlers.NewPublicTicketsHandler(submissionService, lookupService),
		StaffTickets: handlers.NewStaffTicketsHandler(handlers.StaffTicketsDependencies{
			Submission: submissionService,
			Lookup:     lookupService,
			Workflow:   workflowService,
			Diagnosis:  diagnosisService,
		}),
		Users:          handlers.NewUsersHandler(authService, staffService, lookupService),
		AuthMiddleware: authMiddleware,
		LocalLogin:     cfg.Auth.Provider == config.AuthProviderLocal,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	<-workerDone

	outcomes, conflicts := metrics.AllocationSnapshot()
	logger.Info("allocation summary",
		zap.Any("outcomes", outcomes),
		zap.Int64("conflicts", conflicts))
}

func newVerifier(ctx context.Context, cfg *config.Config, backend *persistence.Backend, authService *service.AuthService) (auth.Verifier, error) {
	if cfg.Auth.Provider != config.AuthProviderFirebase {
		return authService.TokenManager(), nil
	}
	client, err := backend.Firebase.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return auth.NewFirebaseVerifier(client), nil
}

func newGenerator(cfg config.AIConfig, logger *zap.Logger) ai.TextGenerator {
	switch {
	case cfg.UseMock:
		logger.Info("diagnosis assistant running on canned answers")
		return ai.MockGenerator{}
	case cfg.OpenAIKey != "":
		return ai.NewOpenAIGenerator(cfg)
	default:
		logger.Info("OPENAI_API_KEY not provided; diagnosis assistant disabled")
		return nil
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
