package main

import (
	"context"
	"time"

	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/dhrustimirsdar/customerreviewpost/internal/handlers"
	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/internal/services"
	"github.com/dhrustimirsdar/customerreviewpost/internal/utils"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/logger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg         *config.Config
	db          *gorm.DB
	events      *services.EventHub
	taskQueue   services.TaskQueue
	worker      *services.Worker
	scheduler   *services.Scheduler
	redisClient *redis.Client
	systemLogs  *services.SystemLogService

	authHandler        *handlers.AuthHandler
	complaintHandler   *handlers.ComplaintHandler
	messageHandler     *handlers.MessageHandler
	translationHandler *handlers.TranslationHandler
	dashboardHandler   *handlers.DashboardHandler
	llmConfigHandler   *handlers.LLMConfigHandler
	systemLogHandler   *handlers.SystemLogHandler
	userHandler        *handlers.UserHandler
	healthHandler      *handlers.HealthHandler
	sseHandler         *handlers.SSEHandler
}

// bootstrap opens the database and starts background work.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database, cfg.Server.Mode == "debug"); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.SeedDefaultData(models.GetDB(), &cfg.Auth); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	app := newAppServices(cfg, models.GetDB())

	if app.worker != nil {
		if err := app.worker.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start worker")
		}
	}
	if err := app.scheduler.Start(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start scheduler")
	}
	return app
}

// newAppServices wires services and handlers on db without starting any
// goroutines.
func newAppServices(cfg *config.Config, db *gorm.DB) *appServices {
	app := &appServices{cfg: cfg, db: db, events: services.NewEventHub()}

	app.systemLogs = services.NewSystemLogService(db)
	notifier := services.NewNotificationService(db, &cfg.Notification)

	app.taskQueue = services.NewTaskQueue(&cfg.Redis)
	if syncQueue, ok := app.taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(notifier.Process)
	} else if worker := services.NewWorker(&cfg.Redis); worker != nil {
		worker.SetProcessor(notifier.Process)
		app.worker = worker
	}

	cacheTTL := time.Duration(cfg.Translation.CacheTTLHours) * time.Hour
	var cache services.TranslationCache = services.NewMemoryCache(cfg.Translation.CacheMaxEntries, cacheTTL)
	if cfg.Redis.Enabled {
		app.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := app.redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, using in-memory translation cache")
			app.redisClient.Close()
			app.redisClient = nil
		} else {
			cache = services.NewRedisCache(app.redisClient, cacheTTL)
		}
	}

	classifier := services.NewAIClassifier(db, &cfg.OpenAI, &cfg.Classifier)
	verifier := services.NewRecaptchaVerifier(&cfg.Recaptcha)
	sla := services.NewSLACalendar(&cfg.SLA)
	dashboard := services.NewDashboardService(db)

	complaints := services.NewComplaintService(db, classifier, verifier, sla, app.events, app.taskQueue, app.systemLogs)
	messages := services.NewMessageService(db, app.events)
	auth := services.NewAuthService(db, &cfg.JWT, &cfg.Auth, &cfg.LDAP)

	app.scheduler = services.NewScheduler(db, app.systemLogs, dashboard, cfg.Log.RetentionDays)
	services.RegisterGauges(db, app.events, app.taskQueue)

	app.authHandler = handlers.NewAuthHandler(auth)
	app.complaintHandler = handlers.NewComplaintHandler(complaints, messages)
	app.messageHandler = handlers.NewMessageHandler(messages)
	app.translationHandler = handlers.NewTranslationHandler(services.NewTranslator(&cfg.Translation, cache))
	app.dashboardHandler = handlers.NewDashboardHandler(dashboard)
	app.llmConfigHandler = handlers.NewLLMConfigHandler(services.NewLLMConfigService(db))
	app.systemLogHandler = handlers.NewSystemLogHandler(app.systemLogs, cfg.Log.RetentionDays)
	app.userHandler = handlers.NewUserHandler(db)
	app.healthHandler = handlers.NewHealthHandler(db, app.taskQueue, app.events)
	app.sseHandler = handlers.NewSSEHandler(app.events)
	return app
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	logger.Info().Msg("All background services stopped")
}
