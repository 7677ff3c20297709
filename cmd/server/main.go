package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dias221467/FoodRescue/internal/config"
	"github.com/Dias221467/FoodRescue/internal/database"
	"github.com/Dias221467/FoodRescue/internal/handlers"
	"github.com/Dias221467/FoodRescue/internal/jobs"
	"github.com/Dias221467/FoodRescue/internal/noncestore"
	"github.com/Dias221467/FoodRescue/internal/queue"
	"github.com/Dias221467/FoodRescue/internal/scheduler"
	"github.com/Dias221467/FoodRescue/internal/services"
	"github.com/Dias221467/FoodRescue/internal/storage"
	"github.com/Dias221467/FoodRescue/pkg/email"
	"github.com/Dias221467/FoodRescue/pkg/logger"
	"github.com/Dias221467/FoodRescue/pkg/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/rs/cors"
)

const nonceTTL = 5 * time.Minute

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger(cfg.LogLevel)
	logger.Log.Info("Logger initialized")
	if err := cfg.CheckJWTSecret(); err != nil {
		logger.Log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Stores ---
	stores, closeStores, err := database.OpenStores(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("Database connection error: %v", err)
	}

	// --- Redis-backed pieces, with in-process fallbacks ---
	var mailer services.Mailer
	if cfg.SMTPHost != "" {
		mailer = email.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPSender, cfg.SMTPPassword)
	}
	notificationService := services.NewNotificationService(stores.Notifications, stores.Users, stores.FoodItems, stores.Claims, mailer)

	var (
		dispatcher services.Dispatcher
		nonces     services.NonceStore
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Log.Fatalf("Redis connection error: %v", err)
		}
		nonces = noncestore.NewRedisStore(rdb, nonceTTL)

		taskClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer taskClient.Close()
		dispatcher = queue.NewAsynqDispatcher(taskClient)
		logger.Log.Info("Side effects are queued for cmd/worker")
	} else {
		nonces = noncestore.NewMemoryStore(nonceTTL)
		dispatcher = queue.NewInlineDispatcher(notificationService)
		logger.Log.Warn("REDIS_ADDR not set; running side effects in-process")
	}

	// --- Image storage ---
	var (
		images    storage.ImageStore
		uploadDir string
	)
	if cfg.MinioEnabled() {
		minioStore, err := storage.NewMinioStore(cfg)
		if err != nil {
			logger.Log.Fatalf("Image storage error: %v", err)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			logger.Log.Fatalf("Image storage error: %v", err)
		}
		images = minioStore
	} else {
		disk := storage.NewDiskStore(cfg.UploadDir)
		images = disk
		uploadDir = disk.Dir()
	}

	// --- Services ---
	identityService := services.NewIdentityService(stores.Users, nonces, cfg.AdminPasswordHash, cfg.SuperadminWallets)
	foodItemService := services.NewFoodItemService(stores.FoodItems, stores.Claims, stores.Donations, dispatcher)
	foodItemService.Images = images
	claimService := services.NewClaimService(stores.Claims, stores.FoodItems, dispatcher, cfg.ClaimHold)
	claimService.Stock = foodItemService
	donationService := services.NewDonationService(stores.FoodItems, stores.Donations)
	statsService := services.NewStatsService(stores.FoodItems, stores.Claims)
	eventService := services.NewEventService(stores.Events)

	// --- Handlers ---
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitBurst)
	limiterStop := make(chan struct{})
	defer close(limiterStop)
	limiter.StartCleanup(10*time.Minute, limiterStop)

	router := handlers.NewRouter(handlers.Handlers{
		Auth:          handlers.NewAuthHandler(identityService, cfg),
		FoodItems:     handlers.NewFoodItemHandler(foodItemService, images),
		Claims:        handlers.NewClaimHandler(claimService),
		Donations:     handlers.NewDonationHandler(donationService),
		Stats:         handlers.NewStatsHandler(statsService),
		Events:        handlers.NewEventHandler(eventService),
		Notifications: handlers.NewNotificationHandler(notificationService),
	}, handlers.RouterOptions{
		JWTSecret:    cfg.JWTSecret,
		IsSuperadmin: identityService.IsSuperadmin,
		LastActive:   identityService,
		RateLimiter:  limiter,
		UploadDir:    uploadDir,
	})

	// --- Cron ---
	sweeper := jobs.NewExpirySweeper(claimService, foodItemService, notificationService)
	cronJobs, err := scheduler.StartCronJobs(sweeper)
	if err != nil {
		logger.Log.Fatalf("Cron setup error: %v", err)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Infof("Server running on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorf("Server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	<-cronJobs.Stop().Done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("Server shutdown error: %v", err)
	}
	if err := closeStores(shutdownCtx); err != nil {
		logger.Log.Errorf("Database disconnect error: %v", err)
	}
}
