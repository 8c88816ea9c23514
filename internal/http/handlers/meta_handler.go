package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/presale-platform/backend/internal/config"
	"github.com/presale-platform/backend/internal/http/dto"
	"github.com/presale-platform/backend/internal/models"
)

type MetaHandler struct {
	cfg *config.Config
}

func NewMetaHandler(cfg *config.Config) *MetaHandler {
	return &MetaHandler{cfg: cfg}
}

// GetPresaleInfo exposes the public presale parameters the frontend needs
// to build payment transactions.
// GET /meta/presale
func (h *MetaHandler) GetPresaleInfo(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.PresaleInfoResponse{
		TokenSymbol:      h.cfg.TokenSymbol,
		TokenPriceUSD:    h.cfg.TokenPriceUSD.String(),
		SolanaCollection: h.cfg.SolanaCollection,
		SolanaUSDCMint:   h.cfg.SolanaUSDCMint,
		PresaleContract:  h.cfg.PresaleContract,
		EVMMasterWallet:  h.cfg.EVMMasterWallet,
		USDTContract:     h.cfg.USDTContract,
		Currencies: []string{
			models.CurrencySOL, models.CurrencyUSDC,
			models.CurrencyBNB, models.CurrencyUSDT,
		},
		ReferralRatesBPS: h.cfg.ReferralRatesBPS,
		MaxReferralDepth: h.cfg.MaxReferralDepth,
	}})
}
