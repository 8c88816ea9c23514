package events

import "context"

// Event types
const (
	EventPaymentVerified = "payment_verified"
	EventPurchaseSettled = "purchase_settled"
	EventReferralPaid    = "referral_paid"
	EventWalletVerified  = "wallet_verified"
)

// Streams
const (
	StreamPayments = "events:payments"
	StreamWallets  = "events:wallets"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
