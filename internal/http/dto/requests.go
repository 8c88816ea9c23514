package dto

type LoginRequest struct {
	Chain        string `json:"chain"`   // "solana" / "bsc"
	Address      string `json:"address"` // wallet used to sign the nonce
	Nonce        string `json:"nonce"`
	Signature    string `json:"signature"`
	ReferralCode string `json:"referral_code,omitempty"`
}

type ConnectWalletRequest struct {
	Chain     string `json:"chain"`
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

type VerifyPaymentRequest struct {
	TxHash   string `json:"tx_hash"`
	Currency string `json:"currency"` // SOL / USDC / BNB / USDT
}

type LinkReferrerRequest struct {
	Code string `json:"code"`
}
