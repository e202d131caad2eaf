package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/ecf-numeracion/internal/application/numbering"
	"github.com/jhoicas/ecf-numeracion/internal/domain/repository"
	"github.com/jhoicas/ecf-numeracion/internal/infrastructure/memory"
	"github.com/jhoicas/ecf-numeracion/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/ecf-numeracion/internal/interfaces/http"
	"github.com/jhoicas/ecf-numeracion/pkg/config"
	"github.com/jhoicas/ecf-numeracion/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.App.StoreDriver).
		Msg("iniciando aplicación")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store repository.RangeStore
	switch cfg.App.StoreDriver {
	case config.StoreMemory:
		log.Warn().Msg("almacén en memoria: los rangos se pierden al reiniciar")
		store = memory.NewRangeStore()
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if cfg.DB.AutoMigrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				log.Fatal().Err(err).Msg("migraciones")
			}
		}
		store = postgres.NewRangeStore(pool)
	}

	opts := numbering.Options{
		MaxRetries:       cfg.Numbering.MaxRetries,
		RetryBackoff:     cfg.Numbering.RetryBackoff,
		ExpiringSoonDays: cfg.Numbering.ExpiringSoonDays,
	}
	rangeUC := numbering.NewRangeUseCase(store, log, opts)
	sweeper := numbering.NewStatusSweeper(store, log, opts)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "e-CF Numeración API",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		RangeUC:   rangeUC,
		Logger:    log,
		JWTSecret: cfg.JWT.Secret,
		JWTIssuer: cfg.JWT.Issuer,
	})

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Numbering.SweepCron != "" {
		if err := sweeper.Start(ctx, cfg.Numbering.SweepCron); err != nil {
			log.Fatal().Err(err).Str("cron", cfg.Numbering.SweepCron).Msg("agendar barrido de estados")
		}
		g.Go(func() error {
			<-ctx.Done()
			sweeper.Stop()
			return nil
		})
	}

	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr()).Msg("servidor HTTP escuchando")
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("señal de apagado recibida, cerrando servidor...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("aplicación finalizada con error")
		os.Exit(1)
	}
	log.Info().Msg("aplicación detenida")
}
