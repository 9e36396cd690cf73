package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/amarflybot/curly-octo-memory/internal/app"
	"github.com/amarflybot/curly-octo-memory/internal/audit"
	"github.com/amarflybot/curly-octo-memory/internal/auth"
	"github.com/amarflybot/curly-octo-memory/internal/identity"
	"github.com/amarflybot/curly-octo-memory/internal/observability"
	"github.com/amarflybot/curly-octo-memory/internal/platform/cache"
	"github.com/amarflybot/curly-octo-memory/internal/platform/db"
	"github.com/amarflybot/curly-octo-memory/internal/policy"
	"github.com/amarflybot/curly-octo-memory/internal/rbac"
	"github.com/amarflybot/curly-octo-memory/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 10, MaxConnLifetime: time.Hour})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The closure cache degrades to direct resolution without Redis, so an
	// unreachable cache is a warning, not a startup failure.
	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, closure cache disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	recorder := audit.NewRecorder(asynqClient, logger)

	store := policy.NewPGStore(pool)
	resolver := rbac.NewClosureCache(redisClient, cfg.ClosureTTL, rbac.NewResolver(store))
	enforcer := rbac.NewEnforcer(store, resolver, metrics)

	// The directory and the policy service reference each other: deleting an
	// account cascades into the policy store, and policy operations validate
	// usernames against the directory. The function adapter breaks the cycle.
	var rbacService *rbac.Service
	identityRepo := identity.NewRepository(pool)
	identityService := identity.NewService(identityRepo, identity.CleanerFunc(func(ctx context.Context, username string) error {
		return rbacService.DeleteUser(ctx, username)
	}))
	rbacService = rbac.NewService(store, identityService, resolver, enforcer, resolver, recorder, logger)

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		logger.Error("init token manager", slog.Any("error", err))
		os.Exit(1)
	}
	authService := auth.NewService(identityService, tokens)
	authHandler := auth.NewHandler(logger, authService)

	guard := rbac.Guard{Enforcer: enforcer, Logger: logger}
	identityHandler := identity.NewHandler(logger, identityService, guard)
	rbacHandler := rbac.NewHandler(logger, rbacService, identityService, guard)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AuthHandler:     authHandler,
		AuthMiddleware:  auth.Middleware(tokens),
		IdentityHandler: identityHandler,
		RBACHandler:     rbacHandler,
		JobsHandler:     jobsHandler,
		Pool:            pool,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
