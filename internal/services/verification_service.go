package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/presale-platform/backend/internal/chain"
	"github.com/presale-platform/backend/internal/config"
	"github.com/presale-platform/backend/internal/events"
	"github.com/presale-platform/backend/internal/models"
	"github.com/presale-platform/backend/internal/repositories"
)

// txLedger is the slice of the transaction repository the verifier needs.
type txLedger interface {
	GetOrCreate(ctx context.Context, txHash, chainName, currency string, userID uuid.UUID) (*models.TransactionRecord, error)
	GetByHash(ctx context.Context, txHash string) (*models.TransactionRecord, error)
	RecordAttempt(ctx context.Context, id uuid.UUID, maxChecks int) (*models.TransactionRecord, error)
	Finalize(ctx context.Context, id uuid.UUID, status string, amount, reason *string) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.TransactionRecord, error)
	AttachPurchase(ctx context.Context, id, purchaseID uuid.UUID) error
}

type purchaseStore interface {
	Create(ctx context.Context, p *models.Purchase) error
	GetByTxSignature(ctx context.Context, txSignature string) (*models.Purchase, error)
}

type receiptFetcher interface {
	Fetch(ctx context.Context, chainName, txHash string) (*chain.Receipt, error)
}

type priceSource interface {
	USDPrice(ctx context.Context, currency string) (decimal.Decimal, error)
}

// bonusDispatcher fans a settled purchase out to the referral chain.
type bonusDispatcher interface {
	DispatchForPurchase(ctx context.Context, purchase *models.Purchase) error
}

type auditor interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// VerificationResult is what the API returns for a submitted transaction.
// Attempts and MaxAttempts are populated on pending answers so a client
// can show verification progress.
type VerificationResult struct {
	Status      string           `json:"status"`
	Reason      string           `json:"reason,omitempty"`
	Attempts    int              `json:"attempts,omitempty"`
	MaxAttempts int              `json:"max_attempts,omitempty"`
	Purchase    *models.Purchase `json:"purchase,omitempty"`
}

type VerificationService struct {
	ledger     txLedger
	purchases  purchaseStore
	fetcher    receiptFetcher
	prices     priceSource
	dispatcher bonusDispatcher
	audit      auditor
	publisher  events.Publisher
	cfg        *config.Config
	log        *zap.Logger
}

func NewVerificationService(
	ledger txLedger,
	purchases purchaseStore,
	fetcher receiptFetcher,
	prices priceSource,
	dispatcher bonusDispatcher,
	audit auditor,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *VerificationService {
	return &VerificationService{
		ledger:     ledger,
		purchases:  purchases,
		fetcher:    fetcher,
		prices:     prices,
		dispatcher: dispatcher,
		audit:      audit,
		publisher:  publisher,
		cfg:        cfg,
		log:        log,
	}
}

var supportedPayments = map[string]string{
	models.CurrencySOL:  chain.Solana,
	models.CurrencyUSDC: chain.Solana,
	models.CurrencyBNB:  chain.BSC,
	models.CurrencyUSDT: chain.BSC,
}

// VerifyPayment drives one transaction hash through the verification
// lifecycle. It is safe to call repeatedly and concurrently for the same
// hash: the ledger row is the single source of truth and every caller
// converges on the same outcome.
func (s *VerificationService) VerifyPayment(ctx context.Context, userID uuid.UUID, txHash, currency string) (*VerificationResult, error) {
	chainName, ok := supportedPayments[currency]
	if !ok {
		return nil, fmt.Errorf("unsupported payment currency %q", currency)
	}
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return nil, fmt.Errorf("transaction hash is required")
	}
	if chainName == chain.BSC {
		txHash = strings.ToLower(txHash)
	}

	// A settled purchase for this hash answers immediately, even if the
	// ledger row was finalized by someone else.
	if purchase, err := s.purchases.GetByTxSignature(ctx, txHash); err == nil && purchase != nil {
		return &VerificationResult{Status: models.TxStatusCompleted, Purchase: purchase}, nil
	}

	rec, err := s.ledger.GetOrCreate(ctx, txHash, chainName, currency, userID)
	if err != nil {
		return nil, fmt.Errorf("transaction ledger: %w", err)
	}
	if rec.IsTerminal() {
		return s.resultFromRecord(ctx, rec)
	}

	rec, err = s.ledger.RecordAttempt(ctx, rec.ID, s.cfg.MaxTxChecks)
	if err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}
	if rec.Status == models.TxStatusFailed {
		return s.resultFromRecord(ctx, rec)
	}

	receipt, err := s.fetcher.Fetch(ctx, chainName, txHash)
	if err != nil {
		if errors.Is(err, chain.ErrReceiptPending) || errors.Is(err, chain.ErrNotFound) {
			return s.pending(rec, "transaction not yet confirmed"), nil
		}
		s.log.Warn("receipt fetch failed",
			zap.String("tx_hash", txHash),
			zap.String("chain", chainName),
			zap.Error(err),
		)
		return s.pending(rec, "chain temporarily unavailable"), nil
	}

	if !receipt.Success {
		reason := "transaction failed on chain"
		if receipt.Err != "" {
			reason = fmt.Sprintf("transaction failed on chain: %s", receipt.Err)
		}
		return s.finalizeFailed(ctx, rec, reason)
	}

	amount, exactTokens, reason := s.validate(receipt, currency)
	if reason != "" {
		return s.finalizeFailed(ctx, rec, reason)
	}

	return s.settle(ctx, rec, userID, currency, amount, exactTokens)
}

// validate checks the receipt against the expected payment shape and
// returns the payment amount in the payment currency. exactTokens is
// non-nil when the contract itself reported the allocation.
func (s *VerificationService) validate(receipt *chain.Receipt, currency string) (amount decimal.Decimal, exactTokens *decimal.Decimal, reason string) {
	switch currency {
	case models.CurrencySOL:
		return s.validateSolanaNative(receipt)
	case models.CurrencyUSDC:
		return s.validateSolanaStable(receipt)
	case models.CurrencyBNB:
		return s.validateEVMPurchase(receipt)
	case models.CurrencyUSDT:
		return s.validateEVMStable(receipt)
	}
	return decimal.Zero, nil, fmt.Sprintf("unsupported currency %q", currency)
}

// validateSolanaNative derives the paid amount from the sender's balance
// delta. Account 0 is the fee payer, so pre minus post is what the buyer
// actually spent, network fee included. The collection wallet must still
// appear in the transaction and have been credited.
func (s *VerificationService) validateSolanaNative(receipt *chain.Receipt) (decimal.Decimal, *decimal.Decimal, string) {
	if len(receipt.AccountKeys) == 0 || len(receipt.PreBalances) == 0 || len(receipt.PostBalances) == 0 {
		return decimal.Zero, nil, "transaction carries no balance data"
	}

	idx := -1
	for i, key := range receipt.AccountKeys {
		if key == s.cfg.SolanaCollection {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(receipt.PreBalances) || idx >= len(receipt.PostBalances) {
		return decimal.Zero, nil, "collection wallet not involved in transaction"
	}
	received := new(big.Int).Sub(
		new(big.Int).SetUint64(receipt.PostBalances[idx]),
		new(big.Int).SetUint64(receipt.PreBalances[idx]),
	)
	if received.Sign() <= 0 {
		return decimal.Zero, nil, "no funds received by collection wallet"
	}

	spentLamports := new(big.Int).Sub(
		new(big.Int).SetUint64(receipt.PreBalances[0]),
		new(big.Int).SetUint64(receipt.PostBalances[0]),
	)
	if spentLamports.Sign() <= 0 {
		return decimal.Zero, nil, "sender balance did not decrease"
	}

	// lamports -> SOL
	return decimal.NewFromBigInt(spentLamports, -9), nil, ""
}

// validateSolanaStable credits the token-balance delta for the stablecoin
// mint owned by the collection wallet.
func (s *VerificationService) validateSolanaStable(receipt *chain.Receipt) (decimal.Decimal, *decimal.Decimal, string) {
	balanceFor := func(balances []chain.TokenBalance) (*big.Int, int) {
		for _, b := range balances {
			if b.Mint == s.cfg.SolanaUSDCMint && b.Owner == s.cfg.SolanaCollection {
				return b.Amount, b.Decimals
			}
		}
		return nil, 0
	}

	post, decimals := balanceFor(receipt.PostTokenBalances)
	if post == nil {
		return decimal.Zero, nil, "no stablecoin transfer to collection wallet"
	}
	pre, _ := balanceFor(receipt.PreTokenBalances)
	if pre == nil {
		pre = big.NewInt(0)
	}

	delta := new(big.Int).Sub(post, pre)
	if delta.Sign() <= 0 {
		return decimal.Zero, nil, "no funds received by collection wallet"
	}
	return decimal.NewFromBigInt(delta, int32(-decimals)), nil, ""
}

// validateEVMPurchase accepts a native-coin call into the presale contract.
// The TokensPurchased event carries the authoritative allocation; the
// raw transfer value is the fallback when the log is missing.
func (s *VerificationService) validateEVMPurchase(receipt *chain.Receipt) (decimal.Decimal, *decimal.Decimal, string) {
	if !chain.AddressEqual(receipt.To, s.cfg.PresaleContract) {
		return decimal.Zero, nil, "transaction is not addressed to the presale contract"
	}
	if sel := chain.Selector(receipt.Input); sel != chain.SelectorBuyNative {
		return decimal.Zero, nil, "transaction does not call a purchase method"
	}
	if receipt.ValueWei == nil || receipt.ValueWei.Sign() <= 0 {
		return decimal.Zero, nil, "purchase call carries no value"
	}

	amount := decimal.NewFromBigInt(receipt.ValueWei, -18)

	for _, lg := range receipt.Logs {
		if _, _, tokenAmt, ok := chain.ParseTokensPurchasedLog(lg); ok {
			tokens := decimal.NewFromBigInt(tokenAmt, -18)
			return amount, &tokens, ""
		}
	}
	return amount, nil, ""
}

// validateEVMStable accepts either a direct stablecoin transfer to the
// master wallet or a stablecoin purchase call into the presale contract.
func (s *VerificationService) validateEVMStable(receipt *chain.Receipt) (decimal.Decimal, *decimal.Decimal, string) {
	toContract := chain.AddressEqual(receipt.To, s.cfg.PresaleContract)
	toToken := chain.AddressEqual(receipt.To, s.cfg.USDTContract)
	if !toContract && !toToken {
		return decimal.Zero, nil, "transaction is not addressed to the stablecoin or presale contract"
	}
	if toContract {
		if sel := chain.Selector(receipt.Input); sel != chain.SelectorBuyStable {
			return decimal.Zero, nil, "transaction does not call a purchase method"
		}
	}

	var exactTokens *decimal.Decimal
	if toContract {
		for _, lg := range receipt.Logs {
			if _, _, tokenAmt, ok := chain.ParseTokensPurchasedLog(lg); ok {
				tokens := decimal.NewFromBigInt(tokenAmt, -18)
				exactTokens = &tokens
				break
			}
		}
	}

	dest := s.cfg.EVMMasterWallet
	if toContract {
		dest = s.cfg.PresaleContract
	}
	for _, lg := range receipt.Logs {
		_, to, transferred, ok := chain.ParseTransferLog(lg)
		if !ok || !chain.AddressEqual(lg.Address, s.cfg.USDTContract) {
			continue
		}
		if !chain.AddressEqual(to, dest) {
			continue
		}
		if transferred.Sign() <= 0 {
			break
		}
		return decimal.NewFromBigInt(transferred, -18), exactTokens, ""
	}

	if toContract {
		// No parseable transfer log. The call itself names the allocation
		// (first argument of buyTokensUSDT); the paid amount is derived
		// from it through the token price.
		tokens := exactTokens
		if tokens == nil {
			raw, err := chain.Uint256Arg(receipt.Input, 0)
			if err != nil || raw.Sign() <= 0 {
				return decimal.Zero, nil, "purchase call carries no token amount"
			}
			t := decimal.NewFromBigInt(raw, -18)
			tokens = &t
		}
		return tokens.Mul(s.cfg.TokenPriceUSD), tokens, ""
	}
	return decimal.Zero, nil, "no stablecoin transfer to the collection wallet"
}

// settle converts a validated payment into an immutable purchase record and
// flips the ledger row to completed. Concurrent settlers are serialized by
// the unique index on tx_signature: the loser adopts the winner's purchase.
func (s *VerificationService) settle(
	ctx context.Context,
	rec *models.TransactionRecord,
	userID uuid.UUID,
	currency string,
	amount decimal.Decimal,
	exactTokens *decimal.Decimal,
) (*VerificationResult, error) {
	assetPrice, err := s.prices.USDPrice(ctx, currency)
	if err != nil {
		s.log.Warn("asset price unavailable", zap.String("currency", currency), zap.Error(err))
		return s.pending(rec, "price oracle temporarily unavailable"), nil
	}

	paymentUSD := amount.Mul(assetPrice)
	tokenPrice := s.cfg.TokenPriceUSD
	var tokens decimal.Decimal
	if exactTokens != nil {
		tokens = *exactTokens
	} else {
		tokens = paymentUSD.DivRound(tokenPrice, 18)
	}
	if tokens.Sign() <= 0 {
		return s.finalizeFailed(ctx, rec, "payment too small to allocate tokens")
	}

	purchase := &models.Purchase{
		UserID:          userID,
		TxSignature:     rec.TxHash,
		Chain:           rec.Chain,
		PaymentAmount:   amount.String(),
		PaymentCurrency: currency,
		PaymentUSD:      paymentUSD.String(),
		AssetPriceUSD:   assetPrice.String(),
		TokenPriceUSD:   tokenPrice.String(),
		TokensAllocated: tokens.String(),
		Status:          models.PurchaseStatusCompleted,
	}

	err = s.purchases.Create(ctx, purchase)
	if errors.Is(err, repositories.ErrDuplicatePurchase) {
		// Another request already settled this hash. Its outcome is ours.
		existing, lookupErr := s.purchases.GetByTxSignature(ctx, rec.TxHash)
		if lookupErr != nil {
			return nil, fmt.Errorf("load settled purchase: %w", lookupErr)
		}
		return &VerificationResult{Status: models.TxStatusCompleted, Purchase: existing}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	amountStr := amount.String()
	won, err := s.ledger.Finalize(ctx, rec.ID, models.TxStatusCompleted, &amountStr, nil)
	if err != nil {
		return nil, fmt.Errorf("finalize transaction: %w", err)
	}
	if !won {
		current, reloadErr := s.ledger.GetByID(ctx, rec.ID)
		if reloadErr == nil && current.Status == models.TxStatusFailed {
			s.log.Error("purchase settled for a failed ledger row",
				zap.String("tx_hash", rec.TxHash),
				zap.String("purchase_id", purchase.ID.String()),
			)
		}
	}
	if err := s.ledger.AttachPurchase(ctx, rec.ID, purchase.ID); err != nil {
		s.log.Warn("attach purchase to ledger row", zap.Error(err))
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   "user",
		Action:      "purchase_settled",
		EntityType:  "purchase",
		EntityID:    &purchase.ID,
		Meta: map[string]any{
			"tx_hash":  rec.TxHash,
			"chain":    rec.Chain,
			"currency": currency,
			"tokens":   purchase.TokensAllocated,
		},
	})
	_ = s.publisher.Publish(ctx, events.StreamPayments, events.Event{
		Type: events.EventPurchaseSettled,
		Payload: map[string]any{
			"purchase_id": purchase.ID.String(),
			"user_id":     userID.String(),
			"tx_hash":     rec.TxHash,
			"tokens":      purchase.TokensAllocated,
		},
	})

	if err := s.dispatcher.DispatchForPurchase(ctx, purchase); err != nil {
		// Referral accrual must not fail the purchase; the worker rescans.
		s.log.Error("referral dispatch failed",
			zap.String("purchase_id", purchase.ID.String()),
			zap.Error(err),
		)
	}

	s.log.Info("payment verified",
		zap.String("tx_hash", rec.TxHash),
		zap.String("chain", rec.Chain),
		zap.String("currency", currency),
		zap.String("amount", amountStr),
		zap.String("tokens", purchase.TokensAllocated),
	)

	return &VerificationResult{Status: models.TxStatusCompleted, Purchase: purchase}, nil
}

func (s *VerificationService) finalizeFailed(ctx context.Context, rec *models.TransactionRecord, reason string) (*VerificationResult, error) {
	won, err := s.ledger.Finalize(ctx, rec.ID, models.TxStatusFailed, nil, &reason)
	if err != nil {
		return nil, fmt.Errorf("finalize transaction: %w", err)
	}
	if !won {
		current, reloadErr := s.ledger.GetByID(ctx, rec.ID)
		if reloadErr != nil {
			return nil, reloadErr
		}
		return s.resultFromRecord(ctx, current)
	}
	s.log.Info("payment rejected",
		zap.String("tx_hash", rec.TxHash),
		zap.String("reason", reason),
	)
	return &VerificationResult{Status: models.TxStatusFailed, Reason: reason}, nil
}

// resultFromRecord reconstructs the API answer from a terminal ledger row.
func (s *VerificationService) resultFromRecord(ctx context.Context, rec *models.TransactionRecord) (*VerificationResult, error) {
	switch rec.Status {
	case models.TxStatusCompleted:
		purchase, err := s.purchases.GetByTxSignature(ctx, rec.TxHash)
		if err != nil {
			return &VerificationResult{Status: models.TxStatusCompleted}, nil
		}
		return &VerificationResult{Status: models.TxStatusCompleted, Purchase: purchase}, nil
	case models.TxStatusFailed:
		reason := ""
		if rec.FailureReason != nil {
			reason = *rec.FailureReason
		}
		return &VerificationResult{Status: models.TxStatusFailed, Reason: reason}, nil
	default:
		return s.pending(rec, ""), nil
	}
}

func (s *VerificationService) pending(rec *models.TransactionRecord, reason string) *VerificationResult {
	return &VerificationResult{
		Status:      models.TxStatusPending,
		Reason:      reason,
		Attempts:    rec.CheckCount,
		MaxAttempts: s.cfg.MaxTxChecks,
	}
}

// GetTransaction exposes the ledger row for status polling.
func (s *VerificationService) GetTransaction(ctx context.Context, txHash string) (*models.TransactionRecord, error) {
	return s.ledger.GetByHash(ctx, txHash)
}
