package models

import (
	"time"

	"github.com/google/uuid"
)

// Chains
const (
	ChainSolana = "solana"
	ChainBSC    = "bsc"
)

// Payment currencies
const (
	CurrencySOL  = "SOL"
	CurrencyUSDC = "USDC"
	CurrencyBNB  = "BNB"
	CurrencyUSDT = "USDT"
)

// Transaction statuses
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)

// Valid state transitions: from -> []to. Completed and failed are terminal.
var ValidTxTransitions = map[string][]string{
	TxStatusPending:   {TxStatusCompleted, TxStatusFailed},
	TxStatusCompleted: {},
	TxStatusFailed:    {},
}

func IsValidTxTransition(from, to string) bool {
	allowed, ok := ValidTxTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminalTxStatus(status string) bool {
	return status == TxStatusCompleted || status == TxStatusFailed
}

// TransactionRecord is the per-hash verification ledger row. It is the
// serialization point for concurrent verification requests: the unique
// index on TxHash plus the compare-and-set on Status guarantee that a hash
// settles at most once.
type TransactionRecord struct {
	ID            uuid.UUID  `json:"id"`
	TxHash        string     `json:"tx_hash"`
	Chain         string     `json:"chain"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	UserID        uuid.UUID  `json:"user_id"`
	Amount        *string    `json:"amount,omitempty"` // numeric as string, set on completion
	CheckCount    int        `json:"check_count"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	PurchaseID    *uuid.UUID `json:"purchase_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (t *TransactionRecord) IsTerminal() bool {
	return IsTerminalTxStatus(t.Status)
}
