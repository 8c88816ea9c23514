package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/presale-platform/backend/internal/http/dto"
	"github.com/presale-platform/backend/internal/middleware"
	"github.com/presale-platform/backend/internal/repositories"
	"github.com/presale-platform/backend/internal/services"
)

type ReferralHandler struct {
	referrals    *services.ReferralService
	referralRepo *repositories.ReferralRepo
	log          *zap.Logger
}

func NewReferralHandler(referrals *services.ReferralService, referralRepo *repositories.ReferralRepo, log *zap.Logger) *ReferralHandler {
	return &ReferralHandler{referrals: referrals, referralRepo: referralRepo, log: log}
}

// LinkReferrer attaches the caller to a referral code after signup.
// POST /referrals/link
func (h *ReferralHandler) LinkReferrer(c *fiber.Ctx) error {
	var req dto.LinkReferrerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "code is required"})
	}

	userID := middleware.GetUserID(c)
	referrer, err := h.referrals.LinkReferrer(c.Context(), userID, req.Code)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"referrer_id": referrer.ID}})
}

// GetStats returns the per-level earnings report for the caller.
// GET /referrals/stats
func (h *ReferralHandler) GetStats(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	stats, err := h.referrals.Stats(c.Context(), userID)
	if err != nil {
		h.log.Error("failed to build referral stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: stats})
}

// ListPayments returns the caller's bonus payment history.
// GET /referrals/payments
func (h *ReferralHandler) ListPayments(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	payments, err := h.referralRepo.ListByReferrer(c.Context(), userID, limit, offset)
	if err != nil {
		h.log.Error("failed to list referral payments", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: payments})
}
