package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PurchaseStatusCompleted = "completed"
)

// Purchase is the immutable financial record of a settled payment.
// TxSignature is 1:1 with a completed TransactionRecord; the unique index
// on it is the actual no-double-credit guarantee.
type Purchase struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	TxSignature     string     `json:"tx_signature"`
	Chain           string     `json:"chain"`
	PaymentAmount   string     `json:"payment_amount"` // numeric as string, asset units
	PaymentCurrency string     `json:"payment_currency"`
	PaymentUSD      string     `json:"payment_usd"`
	AssetPriceUSD   string     `json:"asset_price_usd"` // rate used at settlement
	TokenPriceUSD   string     `json:"token_price_usd"`
	TokensAllocated string     `json:"tokens_allocated"`
	Status          string     `json:"status"`
	BonusPaid       bool       `json:"bonus_paid"`
	CreatedAt       time.Time  `json:"created_at"`
}
