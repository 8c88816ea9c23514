package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/presale-platform/backend/internal/config"
	"github.com/presale-platform/backend/internal/http/handlers"
	"github.com/presale-platform/backend/internal/middleware"
	"github.com/presale-platform/backend/internal/repositories"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	userRepo *repositories.UserRepo,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	walletHandler *handlers.WalletHandler,
	paymentHandler *handlers.PaymentHandler,
	referralHandler *handlers.ReferralHandler,
	adminHandler *handlers.AdminHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/nonce", authHandler.Nonce)
	api.Post("/auth/login", authHandler.Login)

	// Rate-limited endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Meta (public, no auth required)
	metaHandler := handlers.NewMetaHandler(cfg)
	api.Get("/meta/presale", metaHandler.GetPresaleInfo)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Post("/me/ping", userHandler.Ping)

	// Wallet (ownership proof + payout address)
	protected.Post("/me/wallet/nonce", walletHandler.GenerateNonce)
	protected.Post("/me/wallet/connect", walletHandler.ConnectWallet)
	protected.Delete("/me/wallet/:chain", walletHandler.DisconnectWallet)
	protected.Get("/me/wallets", walletHandler.GetWallets)

	// Payments
	protected.Post("/payments/verify", paymentHandler.VerifyPayment)
	protected.Get("/payments/tx/:hash", paymentHandler.GetTransaction)
	protected.Get("/purchases", paymentHandler.ListPurchases)

	// Referrals
	protected.Post("/referrals/link", referralHandler.LinkReferrer)
	protected.Get("/referrals/stats", referralHandler.GetStats)
	protected.Get("/referrals/payments", referralHandler.ListPayments)

	// Admin
	admin := protected.Group("/admin", middleware.AdminMiddleware(userRepo))
	admin.Get("/audit/:entity_type/:entity_id", adminHandler.GetAuditTrail)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
