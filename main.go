package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"ms-pos/internal/app"
	"ms-pos/internal/auth"
	"ms-pos/internal/config"
	"ms-pos/internal/database"
	"ms-pos/internal/database/migrations"
	"ms-pos/internal/events"
	"ms-pos/internal/kafka"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"
	"ms-pos/internal/settlement"
	locks "ms-pos/internal/settlement/redis"
	"ms-pos/internal/sse"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	var (
		bunDB *bun.DB
		err   error
	)
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to %s (attempt %d/%d)", cfg.Database.Driver, i+1, maxRetries))
		bunDB, err = database.Open(cfg.Database)
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect after %d attempts: %v", maxRetries, err))
	}
	log.Info("DATABASE", "✅ Database connection successful")

	if !cfg.Redis.Enabled {
		log.Warn("REDIS", "Redis disabled, settlement locks are process-local")
		return bunDB, nil
	}
	redisClient, err := locks.Connect(ctx, cfg.Redis.Addr)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))
	return bunDB, redisClient
}

func prepareSchema(ctx context.Context, bunDB *bun.DB, cfg *config.Config, log *logger.Logger) {
	if cfg.Database.Driver == database.DriverSQLite {
		if err := database.CreateSchema(ctx, bunDB); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to create schema: %v", err))
		}
		return
	}
	if !cfg.Database.AutoMigrate {
		log.Info("MIGRATION", "Auto-migration disabled")
		return
	}
	runner := migrations.NewRunner(bunDB, migrations.Options{MigrationsDir: cfg.Database.MigrationsDir}, log)
	if err := runner.Up(); err != nil {
		log.Fatal("MIGRATION", fmt.Sprintf("Migration failed: %v", err))
	}
}

// startEventFanout publishes events to Kafka and feeds the SSE hub from the
// consumer so that every instance's subscribers see every change.
func startEventFanout(ctx context.Context, cfg *config.Config, hub *sse.Hub, log *logger.Logger) (events.Notifier, func()) {
	if !cfg.Kafka.Enabled {
		log.Warn("KAFKA", "Kafka disabled, events go straight to SSE subscribers")
		return events.Multi{hub}, func() {}
	}

	topics := cfg.Kafka.Topics.All()
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}
	producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topics, cfg.Kafka.GroupID, log)
	go consumer.Start(ctx, func(e models.Event) { hub.Notify(ctx, e) })
	log.Info("KAFKA", fmt.Sprintf("Publishing to %v via %v", topics, cfg.Kafka.Brokers))

	stop := func() {
		if err := consumer.Close(); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Consumer close: %v", err))
		}
		if err := producer.Close(); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Producer close: %v", err))
		}
	}
	return events.Multi{events.NewKafkaNotifier(producer, cfg.Kafka.Topics, log)}, stop
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting POS service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("CONFIG", "JWT_SECRET not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	prepareSchema(ctx, bunDB, cfg, log)

	var locker settlement.Locker = settlement.NewMemoryLocker()
	if redisClient != nil {
		defer redisClient.Close()
		locker = locks.NewRedis(redisClient, cfg.Redis.LockTTL, log)
	}

	hub := sse.NewHub()
	notifier, stopEvents := startEventFanout(ctx, cfg, hub, log)
	defer stopEvents()

	pos := app.New(bunDB, app.Deps{
		Notifier:       notifier,
		Locker:         locker,
		Hub:            hub,
		ReceiptSecret:  cfg.Receipt.Secret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	})

	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     pos.Router(auth.Middleware(cfg.Auth.JWTSecret, log)),
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 POS service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ POS service shutdown complete")
	}
}
