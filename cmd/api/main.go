package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/presale-platform/backend/internal/chain"
	"github.com/presale-platform/backend/internal/config"
	"github.com/presale-platform/backend/internal/db"
	"github.com/presale-platform/backend/internal/events"
	apphttp "github.com/presale-platform/backend/internal/http"
	"github.com/presale-platform/backend/internal/http/handlers"
	"github.com/presale-platform/backend/internal/pricing"
	"github.com/presale-platform/backend/internal/repositories"
	"github.com/presale-platform/backend/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	txRepo := repositories.NewTransactionRepo(pool)
	purchaseRepo := repositories.NewPurchaseRepo(pool)
	referralRepo := repositories.NewReferralRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Chain clients
	fetcher := chain.NewFetcher(cfg.FetchAttempts, cfg.FetchDelay, log)
	fetcher.Register(chain.NewSolanaClient(cfg.SolanaRPCURL, log))
	fetcher.Register(chain.NewEVMClient(cfg.EVMRPCURL, log))

	// Asset pricing, cached in redis so all instances share the oracle budget
	prices := pricing.NewService(
		pricing.NewHTTPFetcher(cfg.PriceAPIURL, log),
		pricing.NewRedisCache(rdb),
		cfg.PriceCacheTTL,
		log,
	)

	// Services
	treasury := services.NewTreasuryClient(cfg.TreasuryInternalURL, log)
	referralService := services.NewReferralService(userRepo, purchaseRepo, referralRepo, auditRepo, cfg, log)
	payoutService := services.NewPayoutService(referralRepo, userRepo, referralService, purchaseRepo, treasury, publisher, cfg, log)
	verificationService := services.NewVerificationService(txRepo, purchaseRepo, fetcher, prices, payoutService, auditRepo, publisher, cfg, log)
	walletService := services.NewWalletService(walletRepo, userRepo, auditRepo, publisher, cfg, log)
	authService := services.NewAuthService(userRepo, walletRepo, referralService, cfg, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, walletService, log)
	userHandler := handlers.NewUserHandler(userRepo, log)
	walletHandler := handlers.NewWalletHandler(walletService, log)
	paymentHandler := handlers.NewPaymentHandler(verificationService, purchaseRepo, log)
	referralHandler := handlers.NewReferralHandler(referralService, referralRepo, log)
	adminHandler := handlers.NewAdminHandler(auditRepo, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, userRepo, authHandler, userHandler, walletHandler, paymentHandler, referralHandler, adminHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
