// Package main runs the event platform API server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eventman/backend/config"
	"github.com/eventman/backend/internal/auth"
	"github.com/eventman/backend/internal/middleware"
	"github.com/eventman/backend/internal/notify"
	"github.com/eventman/backend/internal/permissions"
	"github.com/eventman/backend/internal/rolerequests"
	"github.com/eventman/backend/internal/users"
	"github.com/eventman/backend/pkg/database"
	"github.com/eventman/backend/pkg/queue"
	"github.com/eventman/backend/pkg/redis"
	"github.com/eventman/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Notifications are optional: without Redis the decisions still work,
	// requesters just get no email.
	var notifier *notify.Notifier
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("notifications disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		notifier = notify.NewNotifier(queue.NewQueue(rdb.Client, logger), logger)
	}

	// Auth
	userRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(userRepo, jwtService, logger)

	// User management
	userHandler := users.NewHandler(userRepo, logger)

	// Role requests
	requestRepo := rolerequests.NewRepository(pool)
	requestSvc := rolerequests.NewService(requestRepo, userRepo, logger)
	requestHandler := rolerequests.NewHandler(requestSvc, notifier, logger)

	// Notification logs
	notifyRepo := notify.NewRepository(pool)
	notifyHandler := notify.NewHandler(notifyRepo)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	api := router.Group("/api")
	api.Use(middleware.Authenticate(jwtService))
	{
		// Auth (login/register public; the gate attaches identity when a
		// valid token is present but never rejects on its own)
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
		api.GET("/auth/me", middleware.RequireAuth(), authHandler.Me)

		// Users
		api.GET("/users", middleware.RequirePermission(permissions.ViewUsers), userHandler.List)
		api.GET("/users/:id", middleware.RequirePermission(permissions.ViewUsers), userHandler.Get)
		api.PUT("/users/:id/role", middleware.RequirePermission(permissions.ManageUsers), userHandler.UpdateRole)
		api.DELETE("/users/:id", middleware.RequirePermission(permissions.ManageUsers), userHandler.Delete)

		// Role requests
		api.POST("/role-requests", middleware.RequireAuth(), requestHandler.Submit)
		api.GET("/role-requests", middleware.RequirePermission(permissions.ManageUsers), requestHandler.List)
		api.GET("/role-requests/pending", middleware.RequirePermission(permissions.ManageUsers), requestHandler.ListPending)
		api.GET("/role-requests/mine", middleware.RequireAuth(), requestHandler.ListMine)
		api.GET("/role-requests/user/:id", middleware.RequirePermission(permissions.ManageUsers), requestHandler.ListByUser)
		api.PUT("/role-requests/:id/approve", middleware.RequirePermission(permissions.ManageUsers), requestHandler.Approve)
		api.PUT("/role-requests/:id/reject", middleware.RequirePermission(permissions.ManageUsers), requestHandler.Reject)
		api.DELETE("/role-requests/:id", middleware.RequirePermission(permissions.ManageUsers), requestHandler.Delete)

		// Notification logs
		api.GET("/notifications", middleware.RequirePermission(permissions.SystemAdmin), notifyHandler.ListRecent)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
