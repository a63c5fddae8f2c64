package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/example/bakongpay/internal/bakong"
	"github.com/example/bakongpay/internal/config"
	"github.com/example/bakongpay/internal/database"
	"github.com/example/bakongpay/internal/handlers"
	"github.com/example/bakongpay/internal/logger"
	"github.com/example/bakongpay/internal/payment"
	"github.com/example/bakongpay/internal/qrimage"
	"github.com/example/bakongpay/internal/routes"
	"github.com/example/bakongpay/internal/services"
	"github.com/example/bakongpay/internal/store"
	"github.com/example/bakongpay/internal/worker"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel); err != nil {
		logger.S().Warnf("invalid LOG_LEVEL %q, using default: %v", cfg.LogLevel, err)
	}
	defer logger.Sync()

	db := database.Connect(cfg.DatabaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.SeedAdmin(db, cfg.AdminPhone, cfg.AdminPassword); err != nil {
		logger.S().Fatalf("seed admin user: %v", err)
	}

	settings := store.NewSettingsStore(db)
	if err := settings.Seed(ctx, gatewayDefaults(cfg)); err != nil {
		logger.S().Fatalf("seed gateway settings: %v", err)
	}

	orders := store.NewOrderStore(db)
	qr := bakong.NewClient(cfg.Bakong.APIURL)
	renderer := qrimage.New()
	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)

	orchestrator := payment.NewOrchestrator(settings, qr, orders, func(id uuid.UUID) string {
		return cfg.PublicBaseURL + "/api/orders/" + id.String() + "/receipt"
	})
	registry := payment.NewRegistry()
	if err := registry.Register(ctx, orchestrator); err != nil {
		logger.S().Fatalf("register gateway: %v", err)
	}

	reconciler := payment.NewReconciler(settings, qr, orders, telegram, cfg.SweepBatchSize)
	sweeper := worker.NewReconcileWorker(reconciler, cfg.SweepInterval)
	workerDone := sweeper.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      "Bakong KHQR Gateway",
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	routes.Register(app, db, cfg, routes.Deps{
		Registry: registry,
		Orders:   orders,
		Settings: settings,
		Harness:  payment.NewHarness(settings, qr, renderer),
		Renderer: renderer,
		Worker:   sweeper,
		Telegram: telegram,
	})

	go func() {
		<-ctx.Done()
		logger.S().Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.S().Errorf("fiber shutdown: %v", err)
		}
	}()

	logger.S().Infof("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		logger.S().Fatalf("fiber.Listen error: %v", err)
	}

	<-workerDone
}

func gatewayDefaults(cfg *config.Config) payment.GatewaySettings {
	b := cfg.Bakong
	return payment.GatewaySettings{
		Enabled:     b.AccountID != "" && b.MerchantName != "",
		Title:       "Bakong KHQR Payment",
		Description: "Pay securely using Bakong KHQR mobile banking.",
		APIToken:    b.APIToken,
		Profile: payment.MerchantProfile{
			AccountID:     b.AccountID,
			MerchantName:  b.MerchantName,
			MerchantCity:  b.MerchantCity,
			MobileNumber:  b.MobileNumber,
			AcquiringBank: b.AcquiringBank,
			Currency:      payment.Currency(b.Currency),
		},
	}
}
