package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/tu-usuario/sepa-incasso/internal/application/auth"
	"github.com/tu-usuario/sepa-incasso/internal/application/batch"
	"github.com/tu-usuario/sepa-incasso/internal/application/mandate"
	"github.com/tu-usuario/sepa-incasso/internal/domain/sepa"
	"github.com/tu-usuario/sepa-incasso/internal/infrastructure/events"
	"github.com/tu-usuario/sepa-incasso/internal/infrastructure/painxml"
	"github.com/tu-usuario/sepa-incasso/internal/infrastructure/postgres"
	"github.com/tu-usuario/sepa-incasso/internal/infrastructure/scheduler"
	httpRouter "github.com/tu-usuario/sepa-incasso/internal/interfaces/http"
	"github.com/tu-usuario/sepa-incasso/pkg/config"
	"github.com/tu-usuario/sepa-incasso/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}

	// Repos atados al pool (lecturas y operaciones de una sola fila).
	userRepo := postgres.NewUserRepository(pool)
	mandateRepo := postgres.NewMandateRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	batchRepo := postgres.NewBatchRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Publisher de eventos: RabbitMQ si está configurado, no-op si no.
	var publisher batch.EventPublisher = batch.NopPublisher{}
	if cfg.AMQP.URL != "" {
		amqpPub, err := events.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a RabbitMQ")
		}
		defer amqpPub.Close()
		publisher = amqpPub
	}

	encoder := painxml.NewBuilder(painxml.CreditorConfig{
		Name: cfg.SEPA.CreditorName,
		IBAN: cfg.SEPA.CreditorIBAN,
		BIC:  cfg.SEPA.CreditorBIC,
		ID:   cfg.SEPA.CreditorID,
	})
	inspector := painxml.NewInspector()

	selector := batch.NewEligibilitySelector(invoiceRepo, mandateRepo, log)
	allocator := batch.NewAllocator(txRunner, nil, log)
	validator := batch.NewValidator(batchRepo, sepa.ValidationConfig{
		MinLeadDays: cfg.SEPA.MinLeadTimeDays,
		MaxLeadDays: cfg.SEPA.MaxLeadTimeDays,
	}, publisher, nil, log)
	lifecycle := batch.NewLifecycleController(batchRepo, txRunner, txRunner, encoder, inspector, publisher, nil, log)

	mandateUC := mandate.NewUseCase(mandateRepo, cfg.SEPA.MandateExpiryMonths, nil, log)
	authUC := auth.NewAuthUseCase(userRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	// Trabajos programados: corrida diaria de cobro y barrido de mandatos.
	if cfg.Scheduler.Enabled {
		sched := scheduler.New(cfg.Scheduler, selector, allocator, validator, mandateUC, log)
		if err := sched.Start(); err != nil {
			log.Fatal().Err(err).Msg("arranque del scheduler")
		}
		defer sched.Stop()
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:    authUC,
		MandateUC: mandateUC,
		Selector:  selector,
		Allocator: allocator,
		Validator: validator,
		Lifecycle: lifecycle,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
