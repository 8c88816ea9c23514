package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presale-platform/backend/internal/http/dto"
	"github.com/presale-platform/backend/internal/repositories"
)

type AdminHandler struct {
	auditRepo *repositories.AuditRepo
	log       *zap.Logger
}

func NewAdminHandler(auditRepo *repositories.AuditRepo, log *zap.Logger) *AdminHandler {
	return &AdminHandler{auditRepo: auditRepo, log: log}
}

// GetAuditTrail returns the audit entries recorded against one entity,
// newest first. Supports dispute resolution on purchases and payouts.
// GET /admin/audit/:entity_type/:entity_id
func (h *AdminHandler) GetAuditTrail(c *fiber.Ctx) error {
	entityID, err := uuid.Parse(c.Params("entity_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid entity id"})
	}
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	entries, err := h.auditRepo.GetByEntity(c.Context(), c.Params("entity_type"), entityID, limit, offset)
	if err != nil {
		h.log.Error("failed to load audit trail", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}
