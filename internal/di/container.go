package di

import (
	"time"

	"github.com/dawei41468/LOSMAX/internal/handler"
	"github.com/dawei41468/LOSMAX/internal/metrics"
	"github.com/dawei41468/LOSMAX/internal/notify"
	"github.com/dawei41468/LOSMAX/internal/realtime"
	"github.com/dawei41468/LOSMAX/internal/repository"
	"github.com/dawei41468/LOSMAX/internal/service"
	"github.com/dawei41468/LOSMAX/internal/token"
	"github.com/dawei41468/LOSMAX/internal/worker"
	"github.com/dawei41468/LOSMAX/pkg/config"
	"github.com/dawei41468/LOSMAX/pkg/database"
	"github.com/dawei41468/LOSMAX/pkg/logger"
	"github.com/dawei41468/LOSMAX/pkg/redis"
	"go.uber.org/zap"
)

// Container holds all dependencies for the API server
type Container struct {
	// Infrastructure
	DB       *database.PostgresDB
	Redis    *redis.Client
	Metrics  *metrics.Metrics
	Registry *realtime.Registry
	Codec    *token.Codec

	// Repositories
	UserRepo repository.UserRepository
	GoalRepo repository.GoalRepository
	TaskRepo repository.TaskRepository
	PushRepo repository.PushSubscriptionRepository

	// Services
	AuthService         service.AuthService
	GoalService         service.GoalService
	TaskService         service.TaskService
	PreferencesService  service.PreferencesService
	AdminService        service.AdminService
	NotificationService service.NotificationService

	// Handlers
	HealthHandler       *handler.HealthHandler
	AuthHandler         *handler.AuthHandler
	WSHandler           *handler.WSHandler
	GoalHandler         *handler.GoalHandler
	TaskHandler         *handler.TaskHandler
	PreferencesHandler  *handler.PreferencesHandler
	AdminHandler        *handler.AdminHandler
	NotificationHandler *handler.NotificationHandler

	// Workers
	ReminderWorker    *worker.ReminderWorker
	TokenPrunerWorker *worker.TokenPrunerWorker
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB       *database.PostgresDB
	Redis    *redis.Client
	Metrics  *metrics.Metrics
	Registry *realtime.Registry
	Codec    *token.Codec
	Config   *config.Config
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:       cfg.DB,
		Redis:    cfg.Redis,
		Metrics:  cfg.Metrics,
		Registry: cfg.Registry,
		Codec:    cfg.Codec,
	}
	appCfg := cfg.Config

	// Calendar days and reminder deadlines share one zone
	location := time.FixedZone("app", appCfg.Reminder.UTCOffsetHours*3600)

	// Initialize repositories
	c.UserRepo = repository.NewPostgresUserRepository(c.DB.Pool())
	c.GoalRepo = repository.NewPostgresGoalRepository(c.DB.Pool())
	c.TaskRepo = repository.NewPostgresTaskRepository(c.DB.Pool())
	c.PushRepo = repository.NewPostgresPushSubscriptionRepository(c.DB.Pool())

	// Initialize services
	c.AuthService = service.NewAuthService(c.UserRepo, c.Codec, c.Registry, &service.AuthServiceConfig{
		AccessTokenExpiry:         appCfg.Auth.AccessTokenTTL(),
		RefreshTokenExpiry:        appCfg.Auth.RefreshTokenTTL(),
		ExposeRotatedRefreshToken: appCfg.Auth.RefreshTokenRotation,
		BcryptCost:                appCfg.Auth.BcryptCost,
	})
	c.GoalService = service.NewGoalService(c.GoalRepo)
	c.TaskService = service.NewTaskService(c.TaskRepo, c.GoalRepo, location)
	c.PreferencesService = service.NewPreferencesService(c.UserRepo)
	c.AdminService = service.NewAdminService(c.UserRepo, c.Registry)

	// Without VAPID keys notifications only reach open WebSocket sessions
	var sender notify.Sender
	if appCfg.Push.Enabled() {
		webPush, err := notify.NewWebPushSender(notify.VAPIDConfig{
			PublicKey:  appCfg.Push.VAPIDPublicKey,
			PrivateKey: appCfg.Push.VAPIDPrivateKey,
			Subject:    appCfg.Push.VAPIDSubject,
			TTL:        appCfg.Push.TTLSeconds,
		}, nil)
		if err != nil {
			logger.Get().Warn("Web push disabled", zap.Error(err))
		} else {
			sender = webPush
		}
	}
	c.NotificationService = service.NewNotificationService(c.PushRepo, c.Registry, sender, c.Metrics)

	// Initialize handlers
	checks := map[string]handler.HealthChecker{"postgres": c.DB}
	if c.Redis != nil {
		checks["redis"] = c.Redis
	}
	c.HealthHandler = handler.NewHealthHandler(checks)
	c.AuthHandler = handler.NewAuthHandler(c.AuthService, c.Metrics)
	c.WSHandler = handler.NewWSHandler(
		c.AuthService,
		c.Registry,
		realtime.SessionConfig{
			PingInterval: appCfg.WebSocket.PingInterval,
			WriteTimeout: appCfg.WebSocket.WriteTimeout,
		},
		appCfg.WebSocket.AllowedOrigins,
		logger.Get(),
	)
	c.GoalHandler = handler.NewGoalHandler(c.GoalService)
	c.TaskHandler = handler.NewTaskHandler(c.TaskService)
	c.PreferencesHandler = handler.NewPreferencesHandler(c.PreferencesService)
	c.AdminHandler = handler.NewAdminHandler(c.AdminService)
	c.NotificationHandler = handler.NewNotificationHandler(c.NotificationService)

	// Initialize workers; reminders fall back to in-process de-duplication without Redis
	var dedup worker.Deduplicator
	if c.Redis != nil {
		dedup = worker.NewRedisDeduplicator(c.Redis)
	}
	c.ReminderWorker = worker.NewReminderWorker(c.UserRepo, c.NotificationService, dedup, c.Metrics, &worker.ReminderWorkerConfig{
		ScanInterval: appCfg.Reminder.ScanInterval,
		Location:     location,
		LeadTime:     appCfg.Reminder.LeadTime,
	})
	c.TokenPrunerWorker = worker.NewTokenPrunerWorker(c.UserRepo, appCfg.Auth.TokenPruneInterval, c.Metrics)

	return c
}
