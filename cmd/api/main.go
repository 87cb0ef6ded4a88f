package main

import (
	"context"
	"log"
	"time"

	"classpoll/config"
	"classpoll/internal/handler"
	"classpoll/internal/redis"
	"classpoll/internal/repository"
	"classpoll/internal/server"
	"classpoll/internal/services"
	"classpoll/pkg/database"
	"classpoll/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.LoadConfig()

	appLogger := logger.New(cfg.AppEnv)
	logger.SetGlobalLogger(appLogger)
	defer appLogger.Sync()

	// Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	healthChecks := []server.HealthCheck{
		{Name: "database", Check: func(context.Context) error { return database.HealthCheck() }},
	}

	// Redis is optional; without it the REST rate limiter is disabled
	var limiter *redis.RateLimiter
	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = redis.NewClient(context.Background(), redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		limiter = redis.NewRateLimiter(redisClient, redis.RateLimitConfig{
			RequestLimit:  cfg.RateLimitPerMinute,
			RequestWindow: time.Minute,
		})
		healthChecks = append(healthChecks, server.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	pollRepo := repository.NewPollRepository(db)
	responseRepo := repository.NewResponseRepository(db)

	presence := services.NewPresenceService()
	hub := server.NewHub(presence, appLogger)

	pollConfig := services.DefaultPollConfig()
	pollConfig.DefaultDuration = cfg.PollDefaultDuration
	pollConfig.MaxDuration = cfg.PollMaxDuration
	pollConfig.HistoryLimit = cfg.PollHistoryLimit

	pollService := services.NewPollService(pollRepo, responseRepo, hub, pollConfig, appLogger)
	voteService := services.NewVoteService(pollRepo, responseRepo, hub, appLogger)

	hub.SetDispatcher(server.NewDispatcher(hub, pollService, voteService))
	go hub.Run()

	srv := server.New(cfg, appLogger)
	srv.SetupRoutes(&server.Handlers{
		Poll:      handler.NewPollHandler(pollService, voteService, appLogger),
		WebSocket: server.NewWebSocketHandler(hub, cfg.FrontendURL),
	}, limiter, healthChecks...)

	if err := pollService.Recover(context.Background()); err != nil {
		appLogger.Errorf("Failed to recover active poll: %v", err)
	}

	srv.OnShutdown(pollService.Shutdown)
	srv.OnShutdown(hub.Stop)
	srv.OnShutdown(database.Close)
	if redisClient != nil {
		srv.OnShutdown(func() { _ = redisClient.Close() })
	}

	if err := srv.Start(); err != nil {
		appLogger.Errorf("Server stopped with error: %v", err)
	}
}
