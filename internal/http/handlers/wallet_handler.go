package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/presale-platform/backend/internal/chain"
	"github.com/presale-platform/backend/internal/http/dto"
	"github.com/presale-platform/backend/internal/middleware"
	"github.com/presale-platform/backend/internal/services"
)

type WalletHandler struct {
	walletService *services.WalletService
	log           *zap.Logger
}

func NewWalletHandler(walletService *services.WalletService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{walletService: walletService, log: log}
}

// GenerateNonce issues the signing challenge for wallet verification.
// POST /me/wallet/nonce
func (h *WalletHandler) GenerateNonce(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	nonce, err := h.walletService.GenerateNonce(c.Context(), &userID)
	if err != nil {
		h.log.Error("failed to generate nonce", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.NonceResponse{Nonce: nonce, Message: chain.ProofMessage(nonce)})
}

// ConnectWallet verifies ownership and binds the payout wallet.
// POST /me/wallet/connect
func (h *WalletHandler) ConnectWallet(c *fiber.Ctx) error {
	var req dto.ConnectWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Address == "" || req.Nonce == "" || req.Signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "address, nonce and signature are required"})
	}

	userID := middleware.GetUserID(c)
	wallet, err := h.walletService.ConnectWallet(c.Context(), userID, services.ConnectWalletRequest{
		Chain:     req.Chain,
		Address:   req.Address,
		Nonce:     req.Nonce,
		Signature: req.Signature,
	})
	if err != nil {
		h.log.Debug("wallet connect failed", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: wallet})
}

// DisconnectWallet deactivates the wallet on one chain.
// DELETE /me/wallet/:chain
func (h *WalletHandler) DisconnectWallet(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if err := h.walletService.DisconnectWallet(c.Context(), userID, c.Params("chain")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "failed to disconnect wallet"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// GetWallets lists the active wallets.
// GET /me/wallets
func (h *WalletHandler) GetWallets(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	wallets, err := h.walletService.ListWallets(c.Context(), userID)
	if err != nil {
		return c.JSON(dto.SuccessResponse{OK: true, Data: nil})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: wallets})
}
