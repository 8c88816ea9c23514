package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/presale-platform/backend/internal/config"
	"github.com/presale-platform/backend/internal/events"
	"github.com/presale-platform/backend/internal/models"
)

// TokenSender delivers bonus tokens to a verified wallet and returns an
// opaque transfer reference.
type TokenSender interface {
	SendTokens(ctx context.Context, chainName, address, amountTokens string, paymentID uuid.UUID) (string, error)
}

type referralPayments interface {
	CreatePayment(ctx context.Context, p *models.ReferralPayment) error
	ListPendingByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.ReferralPayment, error)
	ReferrersWithPendingPayments(ctx context.Context, limit int) ([]uuid.UUID, error)
	ClaimPayment(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	CompletePayment(ctx context.Context, id uuid.UUID, txRef string) error
	FailPayment(ctx context.Context, id uuid.UUID, reason string) error
}

type payoutUsers interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type ancestorResolver interface {
	AncestorsOf(ctx context.Context, userID uuid.UUID, maxLevel int) ([]Ancestor, error)
}

type bonusMarker interface {
	MarkBonusPaid(ctx context.Context, id uuid.UUID) error
}

type PayoutService struct {
	payments  referralPayments
	users     payoutUsers
	resolver  ancestorResolver
	purchases bonusMarker
	sender    TokenSender
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewPayoutService(
	payments referralPayments,
	users payoutUsers,
	resolver ancestorResolver,
	purchases bonusMarker,
	sender TokenSender,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *PayoutService {
	return &PayoutService{
		payments:  payments,
		users:     users,
		resolver:  resolver,
		purchases: purchases,
		sender:    sender,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// DispatchForPurchase accrues a bonus payment for every ancestor of the
// buyer, then tries to deliver each one right away. Ancestors without a
// verified wallet keep their payment pending until verification.
func (s *PayoutService) DispatchForPurchase(ctx context.Context, purchase *models.Purchase) error {
	ancestors, err := s.resolver.AncestorsOf(ctx, purchase.UserID, s.cfg.MaxReferralDepth)
	if err != nil {
		return fmt.Errorf("resolve ancestors: %w", err)
	}
	if len(ancestors) == 0 {
		return nil
	}

	tokens, err := decimal.NewFromString(purchase.TokensAllocated)
	if err != nil {
		return fmt.Errorf("parse allocated tokens: %w", err)
	}
	usd, err := decimal.NewFromString(purchase.PaymentUSD)
	if err != nil {
		return fmt.Errorf("parse payment usd: %w", err)
	}

	for _, a := range ancestors {
		bps := s.cfg.ReferralRateBPS(a.Level)
		if bps <= 0 {
			continue
		}
		rate := decimal.New(int64(bps), -4)

		payment := &models.ReferralPayment{
			ReferrerID:   a.UserID,
			RefereeID:    purchase.UserID,
			PurchaseID:   purchase.ID,
			Level:        a.Level,
			Chain:        purchase.Chain,
			AmountTokens: tokens.Mul(rate).String(),
			AmountUSD:    usd.Mul(rate).String(),
			Status:       models.ReferralPaymentPending,
		}
		if err := s.payments.CreatePayment(ctx, payment); err != nil {
			return fmt.Errorf("accrue level %d bonus: %w", a.Level, err)
		}

		s.deliver(ctx, payment)
	}

	if err := s.purchases.MarkBonusPaid(ctx, purchase.ID); err != nil {
		s.log.Warn("mark bonus accrued", zap.Error(err))
	}
	return nil
}

// ProcessPendingForReferrer drains one referrer's pending queue. It is
// the wallet-verification hook: a payment parked for lack of a verified
// wallet gets delivered here.
func (s *PayoutService) ProcessPendingForReferrer(ctx context.Context, referrerID uuid.UUID) error {
	pending, err := s.payments.ListPendingByReferrer(ctx, referrerID)
	if err != nil {
		return fmt.Errorf("list pending payments: %w", err)
	}
	for i := range pending {
		s.deliver(ctx, &pending[i])
	}
	return nil
}

// ProcessPendingReferralPayments is the periodic worker sweep over every
// referrer owed a pending payout.
func (s *PayoutService) ProcessPendingReferralPayments(ctx context.Context) error {
	referrers, err := s.payments.ReferrersWithPendingPayments(ctx, 100)
	if err != nil {
		return fmt.Errorf("list referrers with pending payments: %w", err)
	}
	for _, id := range referrers {
		if err := s.ProcessPendingForReferrer(ctx, id); err != nil {
			s.log.Error("process pending payments",
				zap.String("referrer_id", id.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// deliver attempts to move one pending payment to a terminal state. The
// claim is a status compare-and-set, so concurrent workers send at most
// once. A payment waiting on wallet verification stays pending; a transfer
// error records the payment as failed with the reason, and retrying a
// failed payment is an explicit operator action, never an automatic sweep.
func (s *PayoutService) deliver(ctx context.Context, payment *models.ReferralPayment) {
	user, err := s.users.GetByID(ctx, payment.ReferrerID)
	if err != nil {
		s.log.Warn("load referrer for payout", zap.Error(err))
		return
	}
	address := user.VerifiedAddressFor(payment.Chain)
	if address == nil {
		// No verified wallet on this chain yet; the payment waits.
		return
	}

	claimed, err := s.payments.ClaimPayment(ctx, payment.ID, models.ReferralPaymentPending, models.ReferralPaymentProcessing)
	if err != nil {
		s.log.Error("claim referral payment", zap.Error(err))
		return
	}
	if !claimed {
		return
	}

	txRef, err := s.sender.SendTokens(ctx, payment.Chain, *address, payment.AmountTokens, payment.ID)
	if err != nil {
		s.log.Error("referral token transfer failed",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
		if failErr := s.payments.FailPayment(ctx, payment.ID, err.Error()); failErr != nil {
			s.log.Error("mark referral payment failed", zap.Error(failErr))
		}
		return
	}

	if err := s.payments.CompletePayment(ctx, payment.ID, txRef); err != nil {
		s.log.Error("complete referral payment", zap.Error(err))
		return
	}

	_ = s.publisher.Publish(ctx, events.StreamPayments, events.Event{
		Type: events.EventReferralPaid,
		Payload: map[string]any{
			"payment_id":  payment.ID.String(),
			"referrer_id": payment.ReferrerID.String(),
			"level":       payment.Level,
			"tokens":      payment.AmountTokens,
		},
	})

	s.log.Info("referral bonus paid",
		zap.String("payment_id", payment.ID.String()),
		zap.String("referrer_id", payment.ReferrerID.String()),
		zap.Int("level", payment.Level),
		zap.String("tokens", payment.AmountTokens),
	)
}
