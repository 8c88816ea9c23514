package chain

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Fetcher wraps chain clients with a bounded retry loop. One Fetch call
// makes up to `attempts` reads with a fixed wait in between, asking for
// finalized state on the last attempt. A transient node error on one
// attempt never aborts the remaining ones; only exhausting the budget
// yields ErrReceiptPending.
type Fetcher struct {
	clients  map[string]Client
	attempts int
	delay    time.Duration
	log      *zap.Logger
}

func NewFetcher(attempts int, delay time.Duration, log *zap.Logger) *Fetcher {
	if attempts < 1 {
		attempts = 1
	}
	return &Fetcher{
		clients:  make(map[string]Client),
		attempts: attempts,
		delay:    delay,
		log:      log,
	}
}

func (f *Fetcher) Register(c Client) {
	f.clients[c.Chain()] = c
}

func (f *Fetcher) Fetch(ctx context.Context, chain, txHash string) (*Receipt, error) {
	client, ok := f.clients[chain]
	if !ok {
		return nil, ErrUnknownChain
	}

	for attempt := 1; attempt <= f.attempts; attempt++ {
		finality := FinalityConfirmed
		if attempt == f.attempts {
			finality = FinalityFinalized
		}

		receipt, err := client.GetTransaction(ctx, txHash, finality)
		if err == nil {
			return receipt, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, ErrNotFound) {
			f.log.Warn("chain read failed",
				zap.String("chain", chain),
				zap.String("tx_hash", txHash),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}

		if attempt < f.attempts {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, ErrReceiptPending
}
