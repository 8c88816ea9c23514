package chain

import (
	"context"
	"errors"
	"math/big"
)

// Chain identifiers, shared with the models package by value.
const (
	Solana = "solana"
	BSC    = "bsc"
)

// Finality levels requested from a chain node. The fetcher escalates to
// finalized on its last attempt.
const (
	FinalityConfirmed = "confirmed"
	FinalityFinalized = "finalized"
)

var (
	// ErrNotFound means the node does not know the transaction (yet).
	ErrNotFound = errors.New("transaction not found")
	// ErrReceiptPending means the retry budget was exhausted without a
	// visible receipt; the caller should re-poll later.
	ErrReceiptPending = errors.New("receipt not yet available")
	// ErrUnknownChain means no client is registered for the chain.
	ErrUnknownChain = errors.New("unknown chain")
)

// TokenBalance is a token-account balance snapshot attached to a Solana
// transaction receipt.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       *big.Int // raw units
	Decimals     int
}

// Log is a normalized EVM event log.
type Log struct {
	Address string
	Topics  []string
	Data    []byte
}

// Receipt is the normalized view of an on-chain transaction. Chain-specific
// fields are populated by the matching client and left zero otherwise.
type Receipt struct {
	TxHash  string
	Chain   string
	Success bool
	Err     string // chain-reported failure, empty on success
	Block   uint64

	// Solana
	AccountKeys       []string
	PreBalances       []uint64 // lamports, indexed like AccountKeys
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance

	// EVM
	From     string
	To       string
	ValueWei *big.Int
	Input    []byte
	Logs     []Log
}

// Client reads a single transaction from a chain node. Implementations are
// stateless and safe for concurrent use.
type Client interface {
	Chain() string
	GetTransaction(ctx context.Context, txHash string, finality string) (*Receipt, error)
}
