package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presale-platform/backend/internal/models"
)

type memPayments struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.ReferralPayment
}

func newMemPayments() *memPayments {
	return &memPayments{byID: make(map[uuid.UUID]*models.ReferralPayment)}
}

func (m *memPayments) CreatePayment(_ context.Context, p *models.ReferralPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	c := *p
	m.byID[p.ID] = &c
	return nil
}

func (m *memPayments) ListPendingByReferrer(_ context.Context, referrerID uuid.UUID) ([]models.ReferralPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ReferralPayment
	for _, p := range m.byID {
		if p.ReferrerID == referrerID && p.Status == models.ReferralPaymentPending {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memPayments) ReferrersWithPendingPayments(_ context.Context, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, p := range m.byID {
		if p.Status == models.ReferralPaymentPending && !seen[p.ReferrerID] {
			seen[p.ReferrerID] = true
			out = append(out, p.ReferrerID)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memPayments) ClaimPayment(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	return true, nil
}

func (m *memPayments) CompletePayment(_ context.Context, id uuid.UUID, txRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("no rows")
	}
	p.Status = models.ReferralPaymentCompleted
	p.TxRef = &txRef
	return nil
}

func (m *memPayments) FailPayment(_ context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("no rows")
	}
	p.Status = models.ReferralPaymentFailed
	p.FailureReason = &reason
	return nil
}

func (m *memPayments) all() []models.ReferralPayment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ReferralPayment
	for _, p := range m.byID {
		out = append(out, *p)
	}
	return out
}

func (m *memPayments) byStatus(status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.byID {
		if p.Status == status {
			n++
		}
	}
	return n
}

type walletUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newWalletUsers() *walletUsers {
	return &walletUsers{users: make(map[uuid.UUID]*models.User)}
}

func (w *walletUsers) add(u *models.User) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.users[u.ID] = u
}

func (w *walletUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	u, ok := w.users[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	c := *u
	return &c, nil
}

type staticAncestors []Ancestor

func (s staticAncestors) AncestorsOf(context.Context, uuid.UUID, int) ([]Ancestor, error) {
	return s, nil
}

type recordingSender struct {
	mu    sync.Mutex
	calls []string // payment ids
	err   error
}

func (r *recordingSender) SendTokens(_ context.Context, _, _, _ string, paymentID uuid.UUID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.calls = append(r.calls, paymentID.String())
	return fmt.Sprintf("treasury-tx-%d", len(r.calls)), nil
}

func (r *recordingSender) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type nopMarker struct{}

func (nopMarker) MarkBonusPaid(context.Context, uuid.UUID) error { return nil }

type payoutFixture struct {
	svc      *PayoutService
	payments *memPayments
	users    *walletUsers
	sender   *recordingSender
}

func newPayoutFixture(ancestors staticAncestors) *payoutFixture {
	f := &payoutFixture{
		payments: newMemPayments(),
		users:    newWalletUsers(),
		sender:   &recordingSender{},
	}
	f.svc = NewPayoutService(
		f.payments, f.users, ancestors, nopMarker{}, f.sender,
		nopPublisher{}, referralConfig(), zap.NewNop(),
	)
	return f
}

func solanaPurchase(buyerID uuid.UUID) *models.Purchase {
	return &models.Purchase{
		ID:              uuid.New(),
		UserID:          buyerID,
		TxSignature:     "sig-payout",
		Chain:           models.ChainSolana,
		TokensAllocated: "1000",
		PaymentUSD:      "10",
		Status:          models.PurchaseStatusCompleted,
	}
}

func TestDispatchAccruesPerLevel(t *testing.T) {
	buyer := uuid.New()
	l1, l2, l3 := uuid.New(), uuid.New(), uuid.New()
	f := newPayoutFixture(staticAncestors{
		{UserID: l1, Level: 1},
		{UserID: l2, Level: 2},
		{UserID: l3, Level: 3},
	})
	// Referrers exist but have no verified wallet yet.
	for _, id := range []uuid.UUID{l1, l2, l3} {
		f.users.add(&models.User{ID: id})
	}

	if err := f.svc.DispatchForPurchase(context.Background(), solanaPurchase(buyer)); err != nil {
		t.Fatalf("DispatchForPurchase: %v", err)
	}

	payments := f.payments.all()
	if len(payments) != 3 {
		t.Fatalf("got %d payments, want 3", len(payments))
	}
	wantTokens := map[int]string{1: "150", 2: "100", 3: "50"}
	for _, p := range payments {
		if p.Status != models.ReferralPaymentPending {
			t.Errorf("level %d status = %s, want pending", p.Level, p.Status)
		}
		if p.AmountTokens != wantTokens[p.Level] {
			t.Errorf("level %d tokens = %s, want %s", p.Level, p.AmountTokens, wantTokens[p.Level])
		}
	}
	if f.sender.callCount() != 0 {
		t.Errorf("sender called %d times for unverified referrers", f.sender.callCount())
	}
}

func TestDispatchDeliversToVerifiedWallet(t *testing.T) {
	buyer := uuid.New()
	referrer := uuid.New()
	f := newPayoutFixture(staticAncestors{{UserID: referrer, Level: 1}})

	addr := "RefWallet111"
	f.users.add(&models.User{ID: referrer, SolanaVerified: true, SolanaAddress: &addr})

	if err := f.svc.DispatchForPurchase(context.Background(), solanaPurchase(buyer)); err != nil {
		t.Fatalf("DispatchForPurchase: %v", err)
	}

	if f.sender.callCount() != 1 {
		t.Fatalf("sender called %d times, want 1", f.sender.callCount())
	}
	payments := f.payments.all()
	if len(payments) != 1 {
		t.Fatalf("got %d payments", len(payments))
	}
	if payments[0].Status != models.ReferralPaymentCompleted {
		t.Errorf("status = %s, want completed", payments[0].Status)
	}
	if payments[0].TxRef == nil || *payments[0].TxRef == "" {
		t.Error("tx_ref not recorded")
	}
}

func TestPendingDeliveredAfterWalletVerification(t *testing.T) {
	buyer := uuid.New()
	referrer := uuid.New()
	f := newPayoutFixture(staticAncestors{{UserID: referrer, Level: 1}})

	user := &models.User{ID: referrer}
	f.users.add(user)

	if err := f.svc.DispatchForPurchase(context.Background(), solanaPurchase(buyer)); err != nil {
		t.Fatalf("DispatchForPurchase: %v", err)
	}
	if f.payments.byStatus(models.ReferralPaymentPending) != 1 {
		t.Fatal("payment should wait for wallet verification")
	}

	addr := "RefWallet222"
	f.users.add(&models.User{ID: referrer, SolanaVerified: true, SolanaAddress: &addr})

	if err := f.svc.ProcessPendingForReferrer(context.Background(), referrer); err != nil {
		t.Fatalf("ProcessPendingForReferrer: %v", err)
	}
	if f.payments.byStatus(models.ReferralPaymentCompleted) != 1 {
		t.Error("payment not delivered after verification")
	}
}

func TestConcurrentSweepsDeliverOnce(t *testing.T) {
	buyer := uuid.New()
	referrer := uuid.New()
	f := newPayoutFixture(staticAncestors{{UserID: referrer, Level: 1}})

	// Wallet unverified during accrual so the payment parks as pending.
	f.users.add(&models.User{ID: referrer})
	if err := f.svc.DispatchForPurchase(context.Background(), solanaPurchase(buyer)); err != nil {
		t.Fatalf("DispatchForPurchase: %v", err)
	}

	addr := "RefWallet333"
	f.users.add(&models.User{ID: referrer, SolanaVerified: true, SolanaAddress: &addr})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.svc.ProcessPendingForReferrer(context.Background(), referrer)
		}()
	}
	wg.Wait()

	if f.sender.callCount() != 1 {
		t.Fatalf("sender called %d times, want exactly 1", f.sender.callCount())
	}
	if f.payments.byStatus(models.ReferralPaymentCompleted) != 1 {
		t.Error("payment not completed")
	}
}

func TestSenderFailureMarksPaymentFailed(t *testing.T) {
	buyer := uuid.New()
	referrer := uuid.New()
	f := newPayoutFixture(staticAncestors{{UserID: referrer, Level: 1}})

	addr := "RefWallet444"
	f.users.add(&models.User{ID: referrer, SolanaVerified: true, SolanaAddress: &addr})
	f.sender.err = fmt.Errorf("treasury unavailable")

	if err := f.svc.DispatchForPurchase(context.Background(), solanaPurchase(buyer)); err != nil {
		t.Fatalf("DispatchForPurchase: %v", err)
	}
	if got := f.payments.byStatus(models.ReferralPaymentFailed); got != 1 {
		t.Fatalf("failed payments = %d, want 1", got)
	}
	if got := f.payments.byStatus(models.ReferralPaymentPending); got != 0 {
		t.Fatalf("pending payments = %d, want 0", got)
	}
	payments := f.payments.all()
	if payments[0].FailureReason == nil || *payments[0].FailureReason != "treasury unavailable" {
		t.Error("failure reason not recorded")
	}

	// A later sweep must not resurrect the failed payment.
	f.sender.err = nil
	if err := f.svc.ProcessPendingReferralPayments(context.Background()); err != nil {
		t.Fatalf("ProcessPendingReferralPayments: %v", err)
	}
	if f.sender.callCount() != 0 {
		t.Errorf("sender called %d times for a failed payment", f.sender.callCount())
	}
	if f.payments.byStatus(models.ReferralPaymentFailed) != 1 {
		t.Error("failed payment must stay failed")
	}
}

func TestDispatchWithoutAncestorsIsNoop(t *testing.T) {
	f := newPayoutFixture(staticAncestors{})
	if err := f.svc.DispatchForPurchase(context.Background(), solanaPurchase(uuid.New())); err != nil {
		t.Fatalf("DispatchForPurchase: %v", err)
	}
	if len(f.payments.all()) != 0 {
		t.Error("no payments expected")
	}
}
