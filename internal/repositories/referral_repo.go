package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/presale-platform/backend/internal/models"
)

const referralPaymentColumns = `id, referrer_id, referee_id, purchase_id, level, chain,
	amount_tokens, amount_usd, status, tx_ref, failure_reason, created_at, updated_at`

type ReferralRepo struct {
	pool *pgxpool.Pool
}

func NewReferralRepo(pool *pgxpool.Pool) *ReferralRepo {
	return &ReferralRepo{pool: pool}
}

func (r *ReferralRepo) scan(row interface{ Scan(...any) error }) (*models.ReferralPayment, error) {
	var p models.ReferralPayment
	err := row.Scan(
		&p.ID, &p.ReferrerID, &p.RefereeID, &p.PurchaseID, &p.Level, &p.Chain,
		&p.AmountTokens, &p.AmountUSD, &p.Status, &p.TxRef, &p.FailureReason,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ReferralRepo) CreatePayment(ctx context.Context, p *models.ReferralPayment) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO referral_payments (referrer_id, referee_id, purchase_id, level, chain,
			amount_tokens, amount_usd, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, p.ReferrerID, p.RefereeID, p.PurchaseID, p.Level, p.Chain,
		p.AmountTokens, p.AmountUSD, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *ReferralRepo) GetPayment(ctx context.Context, id uuid.UUID) (*models.ReferralPayment, error) {
	return r.scan(r.pool.QueryRow(ctx, `
		SELECT `+referralPaymentColumns+` FROM referral_payments WHERE id = $1
	`, id))
}

func (r *ReferralRepo) ListByReferrer(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]models.ReferralPayment, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, `
		SELECT `+referralPaymentColumns+` FROM referral_payments
		WHERE referrer_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, referrerID, limit, offset)
}

func (r *ReferralRepo) ListPendingByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.ReferralPayment, error) {
	return r.list(ctx, `
		SELECT `+referralPaymentColumns+` FROM referral_payments
		WHERE referrer_id = $1 AND status = 'pending'
		ORDER BY created_at
	`, referrerID)
}

// ReferrersWithPendingPayments lists distinct referrers owed a pending
// payout, used by the worker's periodic rescan.
func (r *ReferralRepo) ReferrersWithPendingPayments(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT referrer_id FROM referral_payments WHERE status = 'pending' LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClaimPayment moves a payment from one status to another and reports
// whether this caller won the claim. The dispatcher uses it to take
// pending payments into processing exactly once.
func (r *ReferralRepo) ClaimPayment(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE referral_payments SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ReferralRepo) CompletePayment(ctx context.Context, id uuid.UUID, txRef string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE referral_payments SET status = 'completed', tx_ref = $2, updated_at = now()
		WHERE id = $1
	`, id, txRef)
	return err
}

func (r *ReferralRepo) FailPayment(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE referral_payments SET status = 'failed', failure_reason = $2, updated_at = now()
		WHERE id = $1
	`, id, reason)
	return err
}

// PayoutTotals sums a referrer's completed and pending bonus tokens.
func (r *ReferralRepo) PayoutTotals(ctx context.Context, referrerID uuid.UUID) (paid, pending string, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount_tokens) FILTER (WHERE status = 'completed'), 0)::text,
			COALESCE(SUM(amount_tokens) FILTER (WHERE status IN ('pending', 'processing')), 0)::text
		FROM referral_payments WHERE referrer_id = $1
	`, referrerID).Scan(&paid, &pending)
	return paid, pending, err
}

func (r *ReferralRepo) list(ctx context.Context, query string, args ...any) ([]models.ReferralPayment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.ReferralPayment
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
