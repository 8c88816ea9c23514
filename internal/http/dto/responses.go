package dto

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type NonceResponse struct {
	Nonce   string `json:"nonce"`
	Message string `json:"message"` // exact text the wallet must sign
}

type PresaleInfoResponse struct {
	TokenSymbol      string   `json:"token_symbol"`
	TokenPriceUSD    string   `json:"token_price_usd"`
	SolanaCollection string   `json:"solana_collection"`
	SolanaUSDCMint   string   `json:"solana_usdc_mint"`
	PresaleContract  string   `json:"presale_contract"`
	EVMMasterWallet  string   `json:"evm_master_wallet"`
	USDTContract     string   `json:"usdt_contract"`
	Currencies       []string `json:"currencies"`
	ReferralRatesBPS []int    `json:"referral_rates_bps"`
	MaxReferralDepth int      `json:"max_referral_depth"`
}
