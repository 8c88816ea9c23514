package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/presale-platform/backend/internal/http/dto"
	"github.com/presale-platform/backend/internal/services"
)

type AuthHandler struct {
	authService   *services.AuthService
	walletService *services.WalletService
	log           *zap.Logger
}

func NewAuthHandler(authService *services.AuthService, walletService *services.WalletService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, walletService: walletService, log: log}
}

// Nonce issues a signing challenge for login.
// POST /auth/nonce
func (h *AuthHandler) Nonce(c *fiber.Ctx) error {
	nonce, message, err := h.walletService.LoginChallenge(c.Context())
	if err != nil {
		h.log.Error("failed to create login nonce", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(dto.NonceResponse{Nonce: nonce, Message: message})
}

// Login authenticates by wallet signature over a server nonce.
// POST /auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Address == "" || req.Nonce == "" || req.Signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "address, nonce and signature are required"})
	}

	token, user, err := h.authService.Login(c.Context(), services.LoginRequest{
		Chain:        req.Chain,
		Address:      req.Address,
		Nonce:        req.Nonce,
		Signature:    req.Signature,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		h.log.Debug("wallet login failed", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.AuthResponse{Token: token, User: user})
}
