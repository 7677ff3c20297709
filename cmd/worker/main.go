package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dias221467/FoodRescue/internal/config"
	"github.com/Dias221467/FoodRescue/internal/database"
	"github.com/Dias221467/FoodRescue/internal/services"
	"github.com/Dias221467/FoodRescue/internal/worker"
	"github.com/Dias221467/FoodRescue/pkg/email"
	"github.com/Dias221467/FoodRescue/pkg/logger"
	"github.com/hibiken/asynq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger.InitLogger(cfg.LogLevel)

	if cfg.RedisAddr == "" {
		logger.Log.Fatal("REDIS_ADDR is required to run the worker")
	}
	if cfg.StoreDriver == "memory" {
		logger.Log.Fatal("The worker needs a shared store; set STORE_DRIVER=mongo")
	}

	stores, closeStores, err := database.OpenStores(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("Database connection error: %v", err)
	}
	defer closeStores(context.Background())

	var mailer services.Mailer
	if cfg.SMTPHost != "" {
		mailer = email.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPSender, cfg.SMTPPassword)
	} else {
		logger.Log.Warn("SMTP_HOST not set; claim emails are skipped")
	}
	notificationService := services.NewNotificationService(stores.Notifications, stores.Users, stores.FoodItems, stores.Claims, mailer)

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.WorkerConcurrent,
		Logger:      logger.Log,
	})
	processor := worker.NewProcessor(notificationService)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Log.WithField("concurrency", cfg.WorkerConcurrent).Info("Worker started")
	if err := server.Run(mux); err != nil {
		logger.Log.Errorf("Worker stopped: %v", err)
		os.Exit(1)
	}
}
