package models

import (
	"time"

	"github.com/google/uuid"
)

// Referral payment statuses
const (
	ReferralPaymentPending    = "pending"
	ReferralPaymentProcessing = "processing"
	ReferralPaymentCompleted  = "completed"
	ReferralPaymentFailed     = "failed"
)

// ReferralPayment records one bonus owed to a referrer for one settled
// purchase in their downline. A row is created pending when the referrer
// has no verified payout address; the dispatcher is the only mutator.
type ReferralPayment struct {
	ID            uuid.UUID  `json:"id"`
	ReferrerID    uuid.UUID  `json:"referrer_id"`
	RefereeID     uuid.UUID  `json:"referee_id"`
	PurchaseID    uuid.UUID  `json:"purchase_id"`
	Level         int        `json:"level"` // 1 = direct referee
	Chain         string     `json:"chain"`
	AmountTokens  string     `json:"amount_tokens"` // numeric as string
	AmountUSD     string     `json:"amount_usd"`
	Status        string     `json:"status"`
	TxRef         *string    `json:"tx_ref,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// LevelEarnings aggregates a referrer's downline at one depth.
type LevelEarnings struct {
	Level        int    `json:"level"`
	Referees     int    `json:"referees"`
	Purchases    int    `json:"purchases"`
	TokensBought string `json:"tokens_bought"`
	BonusTokens  string `json:"bonus_tokens"`
}

// ReferralStats is the read-only report served by the referral endpoints.
type ReferralStats struct {
	TotalReferees  int             `json:"total_referees"`
	TotalEarnings  string          `json:"total_earnings"` // tokens
	PaidOut        string          `json:"paid_out"`
	PendingPayout  string          `json:"pending_payout"`
	Levels         []LevelEarnings `json:"levels"`
}
