package models

import (
	"time"

	"github.com/google/uuid"
)

type UserWallet struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	Chain          string     `json:"chain"`
	Address        string     `json:"address"`
	PublicKey      *string    `json:"public_key,omitempty"` // hex, Solana only
	Verified       bool       `json:"verified"`
	ConnectedAt    time.Time  `json:"connected_at"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
	IsActive       bool       `json:"is_active"`
}

// WalletNonce is the single-use challenge signed by a wallet during
// login and payout-address verification.
type WalletNonce struct {
	ID        uuid.UUID  `json:"id"`
	Nonce     string     `json:"nonce"`
	UserID    *uuid.UUID `json:"-"`
	CreatedAt time.Time  `json:"-"`
	ExpiresAt time.Time  `json:"-"`
	Used      bool       `json:"-"`
}
