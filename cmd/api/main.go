package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/servicedesk/internal/api/http"
	"github.com/spec-kit/servicedesk/internal/api/http/handlers"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/clock"
	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/observability"
	"github.com/spec-kit/servicedesk/internal/persistence"
	"github.com/spec-kit/servicedesk/internal/repository"
	"github.com/spec-kit/servicedesk/internal/service"
	"github.com/spec-kit/servicedesk/internal/worker"
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

	rds := persistence.NewRedis(cfg.Redis, logger)
	defer rds.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	departmentRepo := repository.NewDepartmentRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	mappingRepo := repository.NewMappingRepository(pool)
	requestRepo := repository.NewRequestRepository(pool)
	slaRepo := repository.NewSLARepository(pool)
	trackingRepo := repository.NewSLATrackingRepository(pool)
	activityRepo := repository.NewActivityLogRepository(pool)
	taskRepo := repository.NewTaskRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	clk := clock.System()

	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notifications.RegisterHandlers()

	escalations := service.NewEscalationService(service.EscalationDependencies{
		RequestRepo:    requestRepo,
		DepartmentRepo: departmentRepo,
		UserRepo:       userRepo,
		ActivityRepo:   activityRepo,
		Dispatcher:     dispatcher,
		Notifier:       notifications,
		Clock:          clk,
		Logger:         logger,
	})

	slaService := service.NewSLAService(service.SLADependencies{
		SLARepo:       slaRepo,
		TrackingRepo:  trackingRepo,
		RequestRepo:   requestRepo,
		Dispatcher:    dispatcher,
		Notifier:      notifications,
		Escalator:     escalations,
		Clock:         clk,
		Logger:        logger,
		Metrics:       metrics,
		WarningWindow: cfg.SLA.WarningWindow(),
	})
	slaService.RegisterHandlers()

	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		RequestRepo:    requestRepo,
		DepartmentRepo: departmentRepo,
		UserRepo:       userRepo,
		MappingRepo:    mappingRepo,
		TaskRepo:       taskRepo,
		SLARepo:        slaRepo,
		ActivityRepo:   activityRepo,
		Dispatcher:     dispatcher,
		Notifier:       notifications,
		Clock:          clk,
		Logger:         logger,
		Cache:          rds.Client,
	})

	requests := service.NewRequestService(service.RequestDependencies{
		RequestRepo:  requestRepo,
		CategoryRepo: categoryRepo,
		ActivityRepo: activityRepo,
		Codes:        service.NewTicketCodeGenerator(rds.Client),
		Dispatcher:   dispatcher,
		Clock:        clk,
		Logger:       logger,
		AutoAssigner: assignments,
		SLAStarter:   slaService,
	})

	monitor := worker.NewSLAMonitor(slaService, cfg.SLA.ScanInterval(), logger, metrics)
	monitor.Start(ctx)

	housekeeper := worker.NewHousekeeper(requestRepo, requests, clk, logger, cfg.SLA.HousekeepingInterval, cfg.SLA.AutoCloseAfterDays)
	housekeeper.Start(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewMiddleware(tokens, userRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rds),
		Users:          handlers.NewUsersHandler(userRepo, tokens),
		Requests:       handlers.NewRequestsHandler(requests, slaService),
		Staff:          handlers.NewStaffRequestsHandler(requests, assignments, escalations, slaService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
