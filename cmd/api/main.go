package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/billforge/invoicing-api/internal/application/auth"
	"github.com/billforge/invoicing-api/internal/application/billing"
	"github.com/billforge/invoicing-api/internal/infrastructure/events"
	"github.com/billforge/invoicing-api/internal/infrastructure/postgres"
	httpRouter "github.com/billforge/invoicing-api/internal/interfaces/http"
	"github.com/billforge/invoicing-api/pkg/config"
	"github.com/billforge/invoicing-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load configuration: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("starting application")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("PostgreSQL connection")
	}
	defer pool.Close()

	draftRepo := postgres.NewDraftRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	userRepo := postgres.NewUserRepository(pool)

	// Draft lifecycle events: Redis when configured, no-op otherwise.
	var publisher billing.EventPublisher = events.NoopPublisher{}
	if cfg.Redis.Addr != "" {
		redisPub, err := events.NewRedisPublisher(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Redis connection")
		}
		defer redisPub.Close()
		publisher = redisPub
	}

	draftUC := billing.NewDraftUseCase(draftRepo, customerRepo, publisher)
	authUC := auth.NewAuthUseCase(userRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI in local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "BillForge API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		DraftUC:   draftUC,
		AuthUC:    authUC,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}

	log.Info().Msg("application stopped")
}
