package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID  `json:"id"`
	ReferralCode string     `json:"referral_code"`
	ReferrerID   *uuid.UUID `json:"referrer_id,omitempty"`
	// Per-chain payout eligibility. A referrer receives direct on-chain
	// bonuses only after the matching flag is set by wallet verification.
	SolanaVerified bool       `json:"solana_verified"`
	EVMVerified    bool       `json:"evm_verified"`
	SolanaAddress  *string    `json:"solana_address,omitempty"`
	EVMAddress     *string    `json:"evm_address,omitempty"`
	IsAdmin        bool       `json:"is_admin"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActiveAt   time.Time  `json:"last_active_at"`
}

// VerifiedAddressFor returns the user's verified payout address on the
// given chain, or nil when none exists.
func (u *User) VerifiedAddressFor(chain string) *string {
	switch chain {
	case ChainSolana:
		if u.SolanaVerified {
			return u.SolanaAddress
		}
	case ChainBSC:
		if u.EVMVerified {
			return u.EVMAddress
		}
	}
	return nil
}
