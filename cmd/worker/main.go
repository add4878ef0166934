// Package main runs the background notification worker (decision emails).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eventman/backend/config"
	"github.com/eventman/backend/internal/notify"
	"github.com/eventman/backend/pkg/database"
	"github.com/eventman/backend/pkg/mailer"
	"github.com/eventman/backend/pkg/queue"
	"github.com/eventman/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	if cfg.Email.SMTPHost == "" {
		logger.Fatal("SMTP_HOST not configured")
	}
	sender := mailer.NewSMTP(cfg.Email.SMTPHost, cfg.Email.SMTPPort,
		cfg.Email.SMTPUser, cfg.Email.SMTPPass,
		cfg.Email.FromAddress, cfg.Email.FromName)

	notifyRepo := notify.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := notify.NewProcessor(notifyRepo, sender, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
