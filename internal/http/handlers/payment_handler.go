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

type PaymentHandler struct {
	verifier     *services.VerificationService
	purchaseRepo *repositories.PurchaseRepo
	log          *zap.Logger
}

func NewPaymentHandler(verifier *services.VerificationService, purchaseRepo *repositories.PurchaseRepo, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{verifier: verifier, purchaseRepo: purchaseRepo, log: log}
}

// VerifyPayment submits a transaction hash for verification. The endpoint
// is polled by the frontend until the transaction reaches a terminal state.
// POST /payments/verify
func (h *PaymentHandler) VerifyPayment(c *fiber.Ctx) error {
	var req dto.VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.TxHash == "" || req.Currency == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "tx_hash and currency are required"})
	}

	userID := middleware.GetUserID(c)
	result, err := h.verifier.VerifyPayment(c.Context(), userID, req.TxHash, req.Currency)
	if err != nil {
		h.log.Error("payment verification error",
			zap.String("tx_hash", req.TxHash),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: result})
}

// GetTransaction returns the ledger row for a submitted hash.
// GET /payments/tx/:hash
func (h *PaymentHandler) GetTransaction(c *fiber.Ctx) error {
	rec, err := h.verifier.GetTransaction(c.Context(), c.Params("hash"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "transaction not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: rec})
}

// ListPurchases returns the caller's purchase history, newest first.
// GET /purchases
func (h *PaymentHandler) ListPurchases(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	purchases, err := h.purchaseRepo.ListByUser(c.Context(), userID, limit, offset)
	if err != nil {
		h.log.Error("failed to list purchases", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: purchases})
}
