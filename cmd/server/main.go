package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/calculations-api/internal/config"
	"github.com/iliyamo/calculations-api/internal/database"
	"github.com/iliyamo/calculations-api/internal/handler"
	"github.com/iliyamo/calculations-api/internal/logger"
	"github.com/iliyamo/calculations-api/internal/middleware"
	"github.com/iliyamo/calculations-api/internal/queue"
	"github.com/iliyamo/calculations-api/internal/repository"
	"github.com/iliyamo/calculations-api/internal/router"
	"github.com/iliyamo/calculations-api/internal/service"
	"github.com/iliyamo/calculations-api/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewLogger("server", "prod").Fatal().Err(err).Msg("load config")
	}
	log := logger.NewLogger("server", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("host", cfg.DB.Host).Msg("connect mysql")
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := migrations.Migrate(db); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}

	rdb, err := config.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer rdb.Close()

	auth, err := service.NewAuthService(
		repository.NewUserRepo(db),
		repository.NewTokenDenylist(rdb),
		service.AuthConfig{
			AccessSecret:  cfg.JWTSecret,
			RefreshSecret: cfg.RefreshSecret(),
			AccessTTL:     cfg.AccessTTL(),
			RefreshTTL:    cfg.RefreshTTL(),
			BcryptCost:    cfg.BcryptCost,
		})
	if err != nil {
		log.Fatal().Err(err).Msg("init auth service")
	}

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.EventsEnabled {
		pub := queue.NewAMQPPublisher(cfg.RabbitURL)
		defer pub.Close()
		events = pub
	}
	calcs := service.NewCalculationService(repository.NewCalculationRepo(db), events)

	if cfg.AuditConsumerEnabled {
		audit := queue.NewAuditLog(cfg.AuditLogPath)
		consumerLog := log.With("component", "audit-consumer")
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.RabbitURL, audit, consumerLog); err != nil && !errors.Is(err, context.Canceled) {
				consumerLog.Error().Err(err).Msg("audit consumer stopped")
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())

	router.RegisterRoutes(e, router.Deps{
		Auth:         handler.NewAuthHandler(auth),
		Calculations: handler.NewCalculationHandler(calcs),
		Guard:        middleware.BearerAuth(auth),
		Limiter:      middleware.RateLimit(cfg.RateLimit, rdb),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
