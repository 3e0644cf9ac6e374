// @title        Account API
// @version      1.0
// @description  User registration, login and role-gated account endpoints.
// @BasePath     /
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirpyerre/account-api/internal/api"
	"github.com/sirpyerre/account-api/internal/api/handler"
	"github.com/sirpyerre/account-api/internal/core/service"
	"github.com/sirpyerre/account-api/internal/infrastructure/config"
	mongodb "github.com/sirpyerre/account-api/internal/infrastructure/db/mongo"
	redisdb "github.com/sirpyerre/account-api/internal/infrastructure/db/redis"
	"github.com/sirpyerre/account-api/internal/infrastructure/queue"
	"github.com/sirpyerre/account-api/internal/infrastructure/security"
	"github.com/sirpyerre/account-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	bootLog := logger.New(logger.Options{Level: "info", Service: "account-api"})
	cfg := config.Load(bootLog)

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "account-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  "account-api",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")

	users := mongodb.NewUserRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create user indexes")
	}
	auditRepo := mongodb.NewAuditRepository(db)
	if err := auditRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create audit indexes")
	}

	// --- Audit trail ---
	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, auditRepo, log.With().Str("component", "audit").Logger())
	dispatcher.Start()

	// --- Security ---
	tokens, err := security.NewJWTIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, security.WithIssuer(cfg.Auth.JWTIssuer))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid token configuration")
	}

	authService := service.NewAuthService(
		users,
		security.NewBcryptHasher(cfg.Auth.BcryptCost),
		tokens,
		log.With().Str("component", "auth").Logger(),
		service.WithThrottle(redisdb.NewLoginThrottle(rdb, cfg.Auth.LoginMaxFailures, cfg.Auth.LoginLockout)),
		service.WithAudit(dispatcher),
	)

	if cfg.Auth.AdminUsername != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
			log.Fatal().Err(err).Msg("failed to bootstrap admin account")
		}
	}

	// --- HTTP ---
	e := api.NewRouter(api.Deps{
		AuthService: authService,
		AuditReader: auditRepo,
		Logger:      log,
		Probes: map[string]handler.Probe{
			"mongodb": mongodb.Probe(mongoClient),
			"redis":   redisdb.Probe(rdb),
		},
		StaticDir: cfg.StaticDir,
		RateLimit: api.RateLimit{RPS: cfg.RateLimit.RPS, Burst: cfg.RateLimit.Burst},
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	// After the HTTP server: no handler can record once it has returned.
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("audit drain")
	}

	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("redis close")
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("mongo disconnect")
	}

	log.Info().Msg("bye")
}
