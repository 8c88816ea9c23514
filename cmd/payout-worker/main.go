package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presale-platform/backend/internal/config"
	"github.com/presale-platform/backend/internal/db"
	"github.com/presale-platform/backend/internal/events"
	"github.com/presale-platform/backend/internal/repositories"
	"github.com/presale-platform/backend/internal/services"
)

// The payout worker delivers referral bonuses. It reacts to wallet
// verifications immediately and rescans the pending queue on a ticker so
// a dropped event cannot strand a payment.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repos
	userRepo := repositories.NewUserRepo(pool)
	purchaseRepo := repositories.NewPurchaseRepo(pool)
	referralRepo := repositories.NewReferralRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)
	treasury := services.NewTreasuryClient(cfg.TreasuryInternalURL, log)
	referralService := services.NewReferralService(userRepo, purchaseRepo, referralRepo, auditRepo, cfg, log)
	payoutService := services.NewPayoutService(referralRepo, userRepo, referralService, purchaseRepo, treasury, publisher, cfg, log)

	// Wallet verifications trigger an immediate drain for that referrer.
	err = subscriber.Subscribe(ctx, events.StreamWallets, func(event events.Event) {
		if event.Type != events.EventWalletVerified {
			return
		}
		raw, _ := event.Payload["user_id"].(string)
		userID, err := uuid.Parse(raw)
		if err != nil {
			log.Warn("wallet event without user id", zap.String("raw", raw))
			return
		}
		if err := payoutService.ProcessPendingForReferrer(ctx, userID); err != nil {
			log.Error("process payments after wallet verification",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		log.Fatal("failed to subscribe to wallet events", zap.Error(err))
	}

	log.Info("payout worker started")

	sweepTicker := time.NewTicker(1 * time.Minute)
	defer sweepTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			if err := payoutService.ProcessPendingReferralPayments(ctx); err != nil {
				log.Error("pending payment sweep failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down payout worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}
