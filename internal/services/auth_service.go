package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presale-platform/backend/internal/auth"
	"github.com/presale-platform/backend/internal/chain"
	"github.com/presale-platform/backend/internal/config"
	"github.com/presale-platform/backend/internal/models"
	"github.com/presale-platform/backend/internal/repositories"
)

type AuthService struct {
	userRepo   *repositories.UserRepo
	walletRepo *repositories.WalletRepo
	referrals  *ReferralService
	cfg        *config.Config
	log        *zap.Logger
}

func NewAuthService(
	userRepo *repositories.UserRepo,
	walletRepo *repositories.WalletRepo,
	referrals *ReferralService,
	cfg *config.Config,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		walletRepo: walletRepo,
		referrals:  referrals,
		cfg:        cfg,
		log:        log,
	}
}

type LoginRequest struct {
	Chain        string `json:"chain"`
	Address      string `json:"address"`
	Nonce        string `json:"nonce"`
	Signature    string `json:"signature"`
	ReferralCode string `json:"referral_code,omitempty"`
}

// Login authenticates by wallet signature. The first login for an address
// creates the account; a referral code is only honored on that first login.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (string, *models.User, error) {
	if req.Chain != models.ChainSolana && req.Chain != models.ChainBSC {
		return "", nil, fmt.Errorf("unsupported chain %q", req.Chain)
	}
	address := strings.TrimSpace(req.Address)
	if req.Chain == models.ChainBSC {
		address = strings.ToLower(address)
	}

	if _, err := s.walletRepo.ConsumeNonce(ctx, req.Nonce); err != nil {
		return "", nil, fmt.Errorf("invalid or expired nonce")
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
		return "", nil, fmt.Errorf("ownership proof failed: %w", err)
	}

	user, err := s.userRepo.UpsertByAddress(ctx, req.Chain, address)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}

	if req.ReferralCode != "" && user.ReferrerID == nil {
		referrer, linkErr := s.referrals.LinkReferrer(ctx, user.ID, req.ReferralCode)
		if linkErr != nil {
			// A bad code must not block the login itself.
			s.log.Warn("referral link on login failed",
				zap.String("user_id", user.ID.String()),
				zap.String("code", req.ReferralCode),
				zap.Error(linkErr),
			)
		} else {
			user.ReferrerID = &referrer.ID
		}
	}

	token, err := auth.GenerateJWT(s.cfg.JWTSecret, user.ID, s.cfg.JWTExpiration)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, user, nil
}

func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}
