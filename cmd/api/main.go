package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-router/internal/api/http"
	"github.com/spec-kit/support-router/internal/api/http/handlers"
	"github.com/spec-kit/support-router/internal/config"
	"github.com/spec-kit/support-router/internal/directory"
	"github.com/spec-kit/support-router/internal/events"
	"github.com/spec-kit/support-router/internal/knowledge"
	"github.com/spec-kit/support-router/internal/observability"
	"github.com/spec-kit/support-router/internal/oracle"
	"github.com/spec-kit/support-router/internal/persistence"
	"github.com/spec-kit/support-router/internal/repository"
	"github.com/spec-kit/support-router/internal/service"
	"github.com/spec-kit/support-router/internal/voice"
	"github.com/spec-kit/support-router/internal/worker"
	"github.com/spec-kit/support-router/internal/workflow"
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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	runRepo := repository.NewRunRepository(pool)
	transitionRepo := repository.NewTransitionRepository(pool)

	locker := persistence.NewRedisTicketLocker(redis, cfg.Workflow.LockTTL(), cfg.Workflow.LockWait())

	oracleClient := oracle.NewClient(cfg.Oracle.BaseURL, cfg.Oracle.APIKey, cfg.Oracle.Model, cfg.Oracle.Timeout())
	knowledgeClient := knowledge.NewClient(cfg.Knowledge.BaseURL, cfg.Knowledge.Timeout())
	directoryClient := directory.NewClient(cfg.Directory.BaseURL, cfg.Directory.Timeout())
	voiceClient := voice.NewClient(cfg.Voice.BaseURL, cfg.Voice.Timeout())

	keywordTable, err := workflow.LoadKeywordTable(cfg.Workflow.DomainKeywordsPath)
	if err != nil {
		logger.Fatal("failed to load domain keyword table", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	engine := workflow.NewEngine(workflow.Dependencies{
		Oracle:      oracleClient,
		Knowledge:   knowledgeClient,
		Directory:   directoryClient,
		Voice:       voiceClient,
		TicketRepo:  ticketRepo,
		RunRepo:     runRepo,
		Transitions: transitionRepo,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	}, workflow.Options{
		ConfidenceThreshold: cfg.Workflow.ConfidenceThreshold,
		OracleMaxRetries:    cfg.Oracle.MaxRetries,
		OracleRetryBackoff:  cfg.Oracle.RetryBackoff(),
		KeywordTable:        keywordTable,
	})

	workflowService := service.NewWorkflowService(service.WorkflowDependencies{
		TicketRepo:   ticketRepo,
		RunRepo:      runRepo,
		Locker:       locker,
		Engine:       engine,
		Dispatcher:   dispatcher,
		Logger:       logger,
		MaxRedirects: cfg.Workflow.MaxRedirects,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		RunRepo:        runRepo,
		TransitionRepo: transitionRepo,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	ticketsHandler := handlers.NewTicketsHandler(workflowService, ticketService)
	voiceHandler := handlers.NewVoiceHandler(workflowService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  healthHandler,
		Tickets: ticketsHandler,
		Voice:   voiceHandler,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
