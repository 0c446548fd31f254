package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dawei41468/LOSMAX/internal/di"
	"github.com/dawei41468/LOSMAX/internal/metrics"
	"github.com/dawei41468/LOSMAX/internal/middleware"
	"github.com/dawei41468/LOSMAX/internal/realtime"
	"github.com/dawei41468/LOSMAX/internal/token"
	"github.com/dawei41468/LOSMAX/migrations"
	"github.com/dawei41468/LOSMAX/pkg/config"
	"github.com/dawei41468/LOSMAX/pkg/database"
	"github.com/dawei41468/LOSMAX/pkg/logger"
	pkgmiddleware "github.com/dawei41468/LOSMAX/pkg/middleware"
	"github.com/dawei41468/LOSMAX/pkg/redis"
	"github.com/dawei41468/LOSMAX/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting LOSMAX API...", zap.String("environment", cfg.App.Environment))

	ctx := context.Background()

	// Initialize OpenTelemetry
	telemetryCfg := &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}
	if _, err := telemetry.Init(ctx, telemetryCfg); err != nil {
		appLog.Warn("Failed to initialize telemetry", zap.Error(err))
	} else if telemetryCfg.Enabled {
		appLog.Info("Telemetry initialized", zap.String("collector", telemetryCfg.CollectorAddr))
	}
	defer telemetry.Shutdown(ctx)

	// Initialize database connection
	dbCfg := &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   1 * time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal("Database connection failed", zap.Error(err))
	}
	defer db.Close()
	appLog.Info(fmt.Sprintf("Database connected (pool: min=%d, max=%d)", dbCfg.MinConns, dbCfg.MaxConns))

	if cfg.Database.Migrate {
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			appLog.Fatal("Database migration failed", zap.Error(err))
		}
	}

	// Initialize Redis (optional)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, &redis.Config{
			Host:          cfg.Redis.Host,
			Port:          cfg.Redis.Port,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			PoolSize:      cfg.Redis.PoolSize,
			MinIdleConns:  cfg.Redis.MinIdleConns,
			DialTimeout:   cfg.Redis.DialTimeout,
			ReadTimeout:   cfg.Redis.ReadTimeout,
			WriteTimeout:  cfg.Redis.WriteTimeout,
			MaxRetries:    3,
			RetryInterval: time.Second,
		})
		if err != nil {
			appLog.Warn("Redis unavailable, using in-memory rate limiting and reminder de-duplication", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			appLog.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
		}
	}

	m := metrics.NewDefault()
	if err := m.Register(db.Collector("losmax")); err != nil {
		appLog.Warn("Failed to register database pool metrics", zap.Error(err))
	}
	registry := realtime.NewRegistry(appLog, m)

	codec, err := token.NewCodec(token.Config{
		AccessSecret:  cfg.Auth.SecretKey,
		RefreshSecret: cfg.Auth.RefreshSecretKey,
		Algorithm:     cfg.Auth.Algorithm,
	})
	if err != nil {
		appLog.Fatal("Failed to create token codec", zap.Error(err))
	}

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		DB:       db,
		Redis:    redisClient,
		Metrics:  m,
		Registry: registry,
		Codec:    codec,
		Config:   cfg,
	})

	// Start background workers
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	if cfg.Reminder.Enabled {
		if err := container.ReminderWorker.Start(workerCtx); err != nil {
			appLog.Fatal("Failed to start reminder worker", zap.Error(err))
		}
	}
	if err := container.TokenPrunerWorker.Start(workerCtx); err != nil {
		appLog.Fatal("Failed to start token pruner", zap.Error(err))
	}

	// Setup Gin
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(pkgmiddleware.RequestID())
	router.Use(pkgmiddleware.Logger(appLog))
	corsCfg := pkgmiddleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	router.Use(pkgmiddleware.CORSWithConfig(corsCfg))
	if cfg.OTel.Enabled {
		router.Use(telemetry.TracingMiddleware(cfg.OTel.ServiceName, telemetry.DefaultSkipPaths...))
	}
	router.Use(m.Middleware())

	setupRoutes(router, container, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLog.Info(fmt.Sprintf("LOSMAX API listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	// Hijacked WebSocket connections are not tracked by Shutdown
	registry.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown", zap.Error(err))
	}

	cancelWorkers()
	container.ReminderWorker.Stop()
	container.TokenPrunerWorker.Stop()

	appLog.Info("Server exited gracefully")
}

func setupRoutes(router *gin.Engine, c *di.Container, cfg *config.Config) {
	// Health and metrics
	router.GET("/health", c.HealthHandler.Health)
	router.GET("/ready", c.HealthHandler.Ready)
	router.GET("/metrics", gin.WrapH(c.Metrics.Handler()))

	requireAuth := middleware.Auth(c.AuthService)

	// Credential endpoints are rate limited per client
	limitCfg := pkgmiddleware.DefaultRateLimitConfig()
	limitCfg.RequestsPerSecond = cfg.RateLimit.AuthRequestsPerSecond
	limitCfg.BurstSize = cfg.RateLimit.AuthBurst
	limitCfg.RedisClient = c.Redis
	limitCfg.KeyPrefix = "ratelimit:auth:"
	limitCfg.OnReject = c.Metrics.RecordRateLimit
	limiter := pkgmiddleware.RateLimiter(limitCfg)

	auth := router.Group("/auth")
	{
		auth.POST("/register", limiter, c.AuthHandler.Register)
		auth.POST("/login", limiter, c.AuthHandler.Login)
		auth.POST("/refresh", c.AuthHandler.Refresh)
		// Logout accepts an expired access token, so it resolves the bearer itself
		auth.POST("/logout", c.AuthHandler.Logout)

		protected := auth.Group("")
		protected.Use(requireAuth)
		{
			protected.GET("/me", c.AuthHandler.Me)
			protected.PATCH("/update-name", c.AuthHandler.UpdateName)
			protected.PATCH("/change-password", c.AuthHandler.ChangePassword)
			protected.DELETE("/account", c.AuthHandler.DeleteAccount)
		}
	}

	router.GET("/ws/:identityId", c.WSHandler.Connect)

	goals := router.Group("/goals")
	goals.Use(requireAuth)
	{
		goals.POST("", c.GoalHandler.Create)
		goals.GET("", c.GoalHandler.List)
		goals.GET("/:id", c.GoalHandler.Get)
		goals.PUT("/:id", c.GoalHandler.Update)
		goals.DELETE("/:id", c.GoalHandler.Delete)
	}

	tasks := router.Group("/tasks")
	tasks.Use(requireAuth)
	{
		tasks.POST("", c.TaskHandler.Create)
		tasks.GET("", c.TaskHandler.List)
		tasks.GET("/:id", c.TaskHandler.Get)
		tasks.PUT("/:id", c.TaskHandler.Update)
		tasks.DELETE("/:id", c.TaskHandler.Delete)
	}

	preferences := router.Group("/preferences")
	preferences.Use(requireAuth)
	{
		preferences.GET("", c.PreferencesHandler.Get)
		preferences.PATCH("", c.PreferencesHandler.Update)
	}

	notifications := router.Group("/notifications")
	notifications.Use(requireAuth)
	{
		notifications.POST("/subscribe", c.NotificationHandler.Subscribe)
		notifications.GET("/subscription", c.NotificationHandler.GetSubscription)
		notifications.DELETE("/unsubscribe", c.NotificationHandler.Unsubscribe)
		notifications.POST("/send-test", c.NotificationHandler.SendTest)
		notifications.POST("/test-morning-reminder", c.NotificationHandler.TestMorningReminder)
		notifications.POST("/test-evening-reminder", c.NotificationHandler.TestEveningReminder)
	}

	admin := router.Group("/admin")
	admin.Use(requireAuth, middleware.AdminOnly())
	{
		admin.GET("/users", c.AdminHandler.ListUsers)
		admin.PATCH("/users/:id/role", c.AdminHandler.UpdateRole)
		admin.DELETE("/users/:id", c.AdminHandler.DeleteUser)
	}
}
