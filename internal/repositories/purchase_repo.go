package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/presale-platform/backend/internal/models"
)

// ErrDuplicatePurchase surfaces the unique-index violation on
// tx_signature. Callers treat it as "another request already settled".
var ErrDuplicatePurchase = errors.New("purchase already exists for transaction")

const purchaseColumns = `id, user_id, tx_signature, chain, payment_amount, payment_currency,
	payment_usd, asset_price_usd, token_price_usd, tokens_allocated, status, bonus_paid, created_at`

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

func (r *PurchaseRepo) scan(row interface{ Scan(...any) error }) (*models.Purchase, error) {
	var p models.Purchase
	err := row.Scan(
		&p.ID, &p.UserID, &p.TxSignature, &p.Chain, &p.PaymentAmount, &p.PaymentCurrency,
		&p.PaymentUSD, &p.AssetPriceUSD, &p.TokenPriceUSD, &p.TokensAllocated, &p.Status,
		&p.BonusPaid, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts the immutable purchase record. The unique index on
// tx_signature is the double-credit guard; a 23505 comes back as
// ErrDuplicatePurchase.
func (r *PurchaseRepo) Create(ctx context.Context, p *models.Purchase) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO purchases (user_id, tx_signature, chain, payment_amount, payment_currency,
			payment_usd, asset_price_usd, token_price_usd, tokens_allocated, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, p.UserID, p.TxSignature, p.Chain, p.PaymentAmount, p.PaymentCurrency,
		p.PaymentUSD, p.AssetPriceUSD, p.TokenPriceUSD, p.TokensAllocated, p.Status,
	).Scan(&p.ID, &p.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicatePurchase
	}
	return err
}

func (r *PurchaseRepo) GetByTxSignature(ctx context.Context, txSignature string) (*models.Purchase, error) {
	return r.scan(r.pool.QueryRow(ctx, `
		SELECT `+purchaseColumns+` FROM purchases WHERE tx_signature = $1
	`, txSignature))
}

func (r *PurchaseRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Purchase, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+purchaseColumns+` FROM purchases
		WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []models.Purchase
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

func (r *PurchaseRepo) MarkBonusPaid(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE purchases SET bonus_paid = true WHERE id = $1`, id)
	return err
}

// UserPurchaseTotal aggregates completed purchases for one user.
type UserPurchaseTotal struct {
	UserID    uuid.UUID
	Purchases int
	Tokens    string // numeric as string
}

// TotalsByUsers returns completed-purchase counts and token sums for a set
// of users, used by the referral earnings report.
func (r *PurchaseRepo) TotalsByUsers(ctx context.Context, userIDs []uuid.UUID) ([]UserPurchaseTotal, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, COUNT(*), COALESCE(SUM(tokens_allocated), 0)::text
		FROM purchases
		WHERE user_id = ANY($1) AND status = 'completed'
		GROUP BY user_id
	`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []UserPurchaseTotal
	for rows.Next() {
		var t UserPurchaseTotal
		if err := rows.Scan(&t.UserID, &t.Purchases, &t.Tokens); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
