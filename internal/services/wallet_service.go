package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presale-platform/backend/internal/chain"
	"github.com/presale-platform/backend/internal/config"
	"github.com/presale-platform/backend/internal/events"
	"github.com/presale-platform/backend/internal/models"
	"github.com/presale-platform/backend/internal/repositories"
)

type WalletService struct {
	walletRepo *repositories.WalletRepo
	userRepo   *repositories.UserRepo
	auditRepo  *repositories.AuditRepo
	publisher  events.Publisher
	cfg        *config.Config
	log        *zap.Logger
}

func NewWalletService(
	walletRepo *repositories.WalletRepo,
	userRepo *repositories.UserRepo,
	auditRepo *repositories.AuditRepo,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *WalletService {
	return &WalletService{
		walletRepo: walletRepo,
		userRepo:   userRepo,
		auditRepo:  auditRepo,
		publisher:  publisher,
		cfg:        cfg,
		log:        log,
	}
}

// GenerateNonce issues a signing challenge. The wallet signs
// chain.ProofMessage(nonce) and sends it back through ConnectWallet.
func (s *WalletService) GenerateNonce(ctx context.Context, userID *uuid.UUID) (string, error) {
	n, err := s.walletRepo.CreateNonce(ctx, userID, s.cfg.NonceTTL)
	if err != nil {
		return "", fmt.Errorf("failed to create nonce: %w", err)
	}
	return n.Nonce, nil
}

// LoginChallenge issues an anonymous nonce for wallet login and the exact
// message the wallet has to sign.
func (s *WalletService) LoginChallenge(ctx context.Context) (string, string, error) {
	n, err := s.walletRepo.CreateNonce(ctx, nil, s.cfg.NonceTTL)
	if err != nil {
		return "", "", fmt.Errorf("failed to create nonce: %w", err)
	}
	return n.Nonce, chain.ProofMessage(n.Nonce), nil
}

type ConnectWalletRequest struct {
	Chain     string `json:"chain"`     // "solana" / "bsc"
	Address   string `json:"address"`   // base58 or 0x-hex
	Nonce     string `json:"nonce"`     // issued by GenerateNonce
	Signature string `json:"signature"` // hex signature over the proof message
}

// ConnectWallet verifies wallet ownership and binds the address to the
// user as the verified payout destination for that chain.
func (s *WalletService) ConnectWallet(ctx context.Context, userID uuid.UUID, req ConnectWalletRequest) (*models.UserWallet, error) {
	if req.Chain != models.ChainSolana && req.Chain != models.ChainBSC {
		return nil, fmt.Errorf("unsupported chain %q", req.Chain)
	}
	address := strings.TrimSpace(req.Address)
	if req.Chain == models.ChainBSC {
		address = strings.ToLower(address)
	}
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}

	// Burning the nonce first makes the proof single-use.
	if _, err := s.walletRepo.ConsumeNonce(ctx, req.Nonce); err != nil {
		return nil, fmt.Errorf("invalid or expired nonce")
	}

	message := chain.ProofMessage(req.Nonce)
	var err error
	switch req.Chain {
	case models.ChainSolana:
		err = chain.VerifySolanaOwnership(address, message, req.Signature)
	case models.ChainBSC:
		err = chain.VerifyEVMOwnership(address, message, req.Signature)
	}
	if err != nil {
		return nil, fmt.Errorf("ownership proof failed: %w", err)
	}

	if err := s.walletRepo.DeactivateWallets(ctx, userID, req.Chain); err != nil {
		s.log.Warn("failed to deactivate old wallets", zap.Error(err))
	}

	wallet := &models.UserWallet{
		UserID:   userID,
		Chain:    req.Chain,
		Address:  address,
		Verified: true,
		IsActive: true,
	}
	if err := s.walletRepo.ConnectWallet(ctx, wallet); err != nil {
		return nil, fmt.Errorf("failed to save wallet: %w", err)
	}

	if err := s.userRepo.SetChainVerified(ctx, userID, req.Chain, address); err != nil {
		return nil, fmt.Errorf("failed to mark wallet verified: %w", err)
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   "user",
		Action:      "wallet_verified",
		EntityType:  "user_wallet",
		EntityID:    &wallet.ID,
		Meta:        map[string]any{"chain": req.Chain, "address": address},
	})

	// The payout worker listens for this and drains any referral bonuses
	// that were waiting for a verified wallet.
	_ = s.publisher.Publish(ctx, events.StreamWallets, events.Event{
		Type: events.EventWalletVerified,
		Payload: map[string]any{
			"user_id": userID.String(),
			"chain":   req.Chain,
			"address": address,
		},
	})

	s.log.Info("wallet verified",
		zap.String("user_id", userID.String()),
		zap.String("chain", req.Chain),
		zap.String("address", address),
	)
	return wallet, nil
}

// DisconnectWallet deactivates the user's wallet on one chain. The
// verified flag on the user record is kept: past payouts remain valid.
func (s *WalletService) DisconnectWallet(ctx context.Context, userID uuid.UUID, chainName string) error {
	if err := s.walletRepo.DeactivateWallets(ctx, userID, chainName); err != nil {
		return err
	}
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   "user",
		Action:      "wallet_disconnected",
		EntityType:  "user",
		EntityID:    &userID,
		Meta:        map[string]any{"chain": chainName},
	})
	return nil
}

func (s *WalletService) ListWallets(ctx context.Context, userID uuid.UUID) ([]models.UserWallet, error) {
	return s.walletRepo.ListActiveWallets(ctx, userID)
}
