package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type countingFetcher struct {
	price decimal.Decimal
	err   error
	calls int
}

func (f *countingFetcher) FetchUSDPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.price, nil
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache()
	now := time.Now()
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	cache.Set(ctx, "SOL", decimal.NewFromInt(150), time.Minute)

	if !cache.Has(ctx, "SOL") {
		t.Fatal("expected cache hit before expiry")
	}
	price, ok := cache.Get(ctx, "SOL")
	if !ok || !price.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("Get = %s, %v", price, ok)
	}

	now = now.Add(2 * time.Minute)
	if cache.Has(ctx, "SOL") {
		t.Error("expected entry to expire")
	}
	if _, ok := cache.Get(ctx, "SOL"); ok {
		t.Error("expected miss after expiry")
	}
}

func TestServiceStableAssetsPinned(t *testing.T) {
	fetcher := &countingFetcher{price: decimal.NewFromInt(99)}
	svc := NewService(fetcher, NewMemoryCache(), time.Minute, zap.NewNop())

	for _, asset := range []string{"USDT", "USDC"} {
		price, err := svc.USDPrice(context.Background(), asset)
		if err != nil {
			t.Fatalf("%s: %v", asset, err)
		}
		if !price.Equal(decimal.NewFromInt(1)) {
			t.Errorf("%s price = %s, want 1", asset, price)
		}
	}
	if fetcher.calls != 0 {
		t.Errorf("stable assets must not hit the oracle, got %d calls", fetcher.calls)
	}
}

func TestServiceCachesFetchedPrice(t *testing.T) {
	fetcher := &countingFetcher{price: decimal.RequireFromString("612.30")}
	svc := NewService(fetcher, NewMemoryCache(), time.Minute, zap.NewNop())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		price, err := svc.USDPrice(ctx, "BNB")
		if err != nil {
			t.Fatal(err)
		}
		if !price.Equal(decimal.RequireFromString("612.30")) {
			t.Errorf("price = %s", price)
		}
	}
	if fetcher.calls != 1 {
		t.Errorf("expected a single oracle call, got %d", fetcher.calls)
	}
}

func TestServicePropagatesFetchError(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("oracle down")}
	svc := NewService(fetcher, NewMemoryCache(), time.Minute, zap.NewNop())

	if _, err := svc.USDPrice(context.Background(), "SOL"); err == nil {
		t.Fatal("expected error when the oracle is down and the cache is cold")
	}
}
