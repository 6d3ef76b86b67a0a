package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loopwork-studio/agency-api/docs"
	"github.com/loopwork-studio/agency-api/internal/auth"
	"github.com/loopwork-studio/agency-api/internal/config"
	"github.com/loopwork-studio/agency-api/internal/database"
	"github.com/loopwork-studio/agency-api/internal/gateway"
	"github.com/loopwork-studio/agency-api/internal/http/handler"
	"github.com/loopwork-studio/agency-api/internal/http/middleware"
	"github.com/loopwork-studio/agency-api/internal/http/router"
	"github.com/loopwork-studio/agency-api/internal/jobs"
	"github.com/loopwork-studio/agency-api/internal/logger"
	"github.com/loopwork-studio/agency-api/internal/metrics"
	"github.com/loopwork-studio/agency-api/internal/policy"
	"github.com/loopwork-studio/agency-api/internal/ratelimit"
	"github.com/loopwork-studio/agency-api/internal/repository"
	"github.com/loopwork-studio/agency-api/internal/service"
	"github.com/loopwork-studio/agency-api/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// @title Loopwork Agency API
// @version 1.0
// @description Invoices, payment reconciliation, deliverable reviews, reimbursements and vendor returns for agency projects

// @contact.name API Support
// @contact.email api@loopwork.studio

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API key for scheduled and system operations

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Basic configuration first, for logging setup
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	if basicCfg.App.Environment == "development" || basicCfg.App.Environment == "local" {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	} else {
		docs.SwaggerInfo.Host = ""
	}

	// Secrets come from the environment in development and Key Vault elsewhere
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	appMetrics := metrics.New(prometheus.DefaultRegisterer, cfg.App.Environment)
	readiness := map[string]router.ReadinessCheck{}

	// Per-actor action limits share counters through redis when several instances run
	var counterStore ratelimit.CounterStore
	var redisClient *redis.Client
	if cfg.RateLimit.Store == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		counterStore = ratelimit.NewRedisStore(redisClient)
		readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		log.Info("Rate limit counters in redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		memStore := ratelimit.NewMemoryStore()
		memStore.StartSweeper(ctx, cfg.RateLimit.SweepIntervalDuration(), log)
		counterStore = memStore
	}
	limiter := ratelimit.NewLimiter(counterStore, map[ratelimit.Class]int{
		ratelimit.ClassInvoiceCreate:     cfg.RateLimit.InvoiceCreatePerMinute,
		ratelimit.ClassDeliverableReview: cfg.RateLimit.DeliverableReviewPerMinute,
		ratelimit.ClassCommentCreate:     cfg.RateLimit.CommentCreatePerMinute,
	}, log, appMetrics)

	// A nil interface value means no gateway is configured
	var gw gateway.Gateway
	if cfg.Gateway.Enabled {
		gw = gateway.NewStripeClient(gateway.StripeConfig{
			APIKey:  cfg.Gateway.APIKey,
			BaseURL: cfg.Gateway.BaseURL,
			Timeout: cfg.Gateway.TimeoutDuration(),
		}, log)
		log.Info("Payment gateway enabled", zap.String("base_url", cfg.Gateway.BaseURL))
	} else {
		log.Info("Payment gateway disabled, import and reconciliation are unavailable")
	}

	gate := policy.NewGate(policy.Options{AllowAgencyApproval: cfg.Workflow.AllowAgencyApproval})

	// Repositories
	clientRepo := repository.NewClientRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	milestoneRepo := repository.NewMilestoneRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	numberSequenceRepo := repository.NewNumberSequenceRepository(db)
	deliverableRepo := repository.NewDeliverableRepository(db)
	versionRepo := repository.NewDeliverableVersionRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	reimbursementRepo := repository.NewReimbursementRepository(db)
	returnRepo := repository.NewReturnRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	// Services
	activityService := service.NewActivityService(activityRepo, projectRepo, gate, log)
	numberSequenceService := service.NewNumberSequenceService(numberSequenceRepo, cfg.Workflow.InvoicePrefix, log)
	invoiceService := service.NewInvoiceService(db, invoiceRepo, projectRepo, clientRepo, numberSequenceService,
		activityService, gate, gw, limiter, appMetrics,
		service.InvoiceSettings{
			DefaultCurrency:          cfg.Workflow.DefaultCurrency,
			DefaultDepositPercentage: decimal.NewFromFloat(cfg.Workflow.DefaultDepositPercentage),
			DaysUntilDue:             cfg.Gateway.DaysUntilDue,
		},
		log)
	reconciliationService := service.NewReconciliationService(db, invoiceRepo, paymentRepo, milestoneRepo,
		activityService, gate, gw, appMetrics, log)
	deliverableService := service.NewDeliverableService(db, deliverableRepo, versionRepo, commentRepo, projectRepo,
		activityService, gate, fileStorage, limiter, appMetrics, log)
	reimbursementService := service.NewReimbursementService(reimbursementRepo, activityService, gate, appMetrics, log)
	returnService := service.NewReturnService(returnRepo, activityService, gate, appMetrics, log)

	// Middleware
	authMiddleware := auth.NewMiddleware(cfg, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, appMetrics, log)

	rt := router.NewRouter(
		cfg,
		log,
		db,
		authMiddleware,
		rateLimiter,
		promhttp.Handler(),
		readiness,
		router.Handlers{
			Invoice:       handler.NewInvoiceHandler(invoiceService, reconciliationService, log),
			Deliverable:   handler.NewDeliverableHandler(deliverableService, cfg.Storage.MaxUploadSizeMB, log),
			Reimbursement: handler.NewReimbursementHandler(reimbursementService, log),
			Return:        handler.NewReturnHandler(returnService, log),
			Activity:      handler.NewActivityHandler(activityService, log),
			Auth:          handler.NewAuthHandler(gate, log),
		},
	)

	// Background jobs
	scheduler := jobs.NewScheduler(log)
	reconcileCron := cfg.Jobs.ReconciliationCron
	if gw == nil {
		reconcileCron = ""
	}
	if err := jobs.Register(scheduler,
		jobs.NewReconciliationJob(reconciliationService, service.TriggerScheduled, cfg.Jobs.ReconciliationTimeoutDuration(), appMetrics, log),
		reconcileCron,
		jobs.NewOverdueJob(invoiceService, appMetrics, log),
		cfg.Jobs.OverdueCron,
	); err != nil {
		return fmt.Errorf("failed to register jobs: %w", err)
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      http.TimeoutHandler(rt.Setup(), cfg.Server.RequestTimeoutDuration(), "request timed out"),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		<-scheduler.Stop().Done()
		log.Info("Scheduler stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}
	}

	stop()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warn("Error closing redis client", zap.Error(err))
		}
	}

	log.Info("Server stopped gracefully")
	return nil
}
