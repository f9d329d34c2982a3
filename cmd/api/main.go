package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/adsight/adsight-api/internal/cache"
	"github.com/adsight/adsight-api/internal/config"
	"github.com/adsight/adsight-api/internal/database"
	"github.com/adsight/adsight-api/internal/modules/billing"
	"github.com/adsight/adsight-api/internal/modules/dashboard"
	"github.com/adsight/adsight-api/internal/modules/platform"
	"github.com/adsight/adsight-api/internal/modules/user"
	"github.com/adsight/adsight-api/internal/notification"
	"github.com/adsight/adsight-api/internal/server"
	"github.com/adsight/adsight-api/internal/session"
)

// Options for the CLI.
type Options struct {
	Port int `help:"Port to listen on" short:"p" default:"8080"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		// Use a structured logger
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		cfg := config.Load()
		if cfg == nil {
			logger.Error("failed to load configuration")
			os.Exit(1)
		}
		logger.Info("configuration loaded successfully", "env", cfg.Server.Env)

		// --- Database & Cache ---
		dbPool := database.NewPostgresPool(cfg.Database.URL)
		if dbPool == nil {
			logger.Error("failed to connect to postgres")
			os.Exit(1)
		}
		hooks.OnStop(dbPool.Close)
		logger.Info("successfully connected to postgres database")

		var store cache.Store
		redisClient, err := cache.NewRedisClient(context.Background(), cfg.Redis.URL)
		switch {
		case err != nil:
			logger.Warn("redis unavailable, using in-memory store for rate limiting", "error", err)
			store = cache.NewMemoryStore()
		case redisClient == nil:
			logger.Warn("redis not configured, using in-memory store for rate limiting")
			store = cache.NewMemoryStore()
		default:
			hooks.OnStop(func() { redisClient.Close() })
			logger.Info("successfully connected to redis")
			store = cache.NewRedisStore(redisClient)
		}

		// --- Shared infrastructure ---
		codec := session.NewCodec(cfg.SessionSecret, 7*24*time.Hour)

		var mailer notification.Mailer
		if cfg.SMTP.Host != "" {
			mailer = notification.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, logger)
		} else {
			logger.Warn("smtp not configured, email delivery disabled")
			mailer = notification.NewNoopMailer(logger)
		}

		// --- Module Initialization (Bottom-Up) ---

		userRepo := user.NewRepository(dbPool)
		userService := user.NewService(&user.Config{
			Repo:   userRepo,
			Logger: logger,
			Config: cfg,
			Mailer: mailer,
		})

		platformRepo := platform.NewRepository(dbPool)
		platformService := platform.NewService(&platform.Config{
			Repo:   platformRepo,
			Users:  userRepo,
			Logger: logger,
			Config: cfg,
		})

		dashboardService := dashboard.NewService(&dashboard.Config{
			Platforms: platformService,
			Users:     userRepo,
			Fetcher:   dashboard.NewHTTPFetcher(),
			Logger:    logger,
		})

		billingRepo := billing.NewRepository(dbPool)
		billingService := billing.NewService(&billing.Config{
			Repo:   billingRepo,
			Users:  userRepo,
			Logger: logger,
			Config: cfg,
		})

		handlers := server.Handlers{
			// The platform service doubles as the user handler's source of
			// connected-platform summaries for session building.
			User:      user.NewHandler(userService, logger, codec, cfg, platformService),
			Platform:  platform.NewHandler(platformService, logger, codec, cfg),
			Dashboard: dashboard.NewHandler(dashboardService, logger),
			Billing:   billing.NewHandler(billingService, logger),
		}

		router := server.New(cfg, logger, codec, store, handlers)
		hooks.OnStart(func() {
			logger.Info(fmt.Sprintf("Starting server on port %d...", options.Port))
			if err := http.ListenAndServe(fmt.Sprintf(":%d", options.Port), router); err != nil {
				slog.Error("Server failed to start", "error", err)
				os.Exit(1)
			}
		})
	})
	cli.Run()
}
