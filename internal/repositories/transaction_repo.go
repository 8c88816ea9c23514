package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/presale-platform/backend/internal/models"
)

const txColumns = `id, tx_hash, chain, currency, status, user_id, amount,
	check_count, last_checked_at, failure_reason, purchase_id, created_at, updated_at`

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

func (r *TransactionRepo) scan(row interface{ Scan(...any) error }) (*models.TransactionRecord, error) {
	var t models.TransactionRecord
	err := row.Scan(
		&t.ID, &t.TxHash, &t.Chain, &t.Currency, &t.Status, &t.UserID, &t.Amount,
		&t.CheckCount, &t.LastCheckedAt, &t.FailureReason, &t.PurchaseID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetOrCreate inserts the ledger row for a hash or returns the existing
// one. The no-op DO UPDATE makes the RETURNING clause fire for both
// branches, so concurrent first submissions converge on a single row.
func (r *TransactionRepo) GetOrCreate(ctx context.Context, txHash, chain, currency string, userID uuid.UUID) (*models.TransactionRecord, error) {
	return r.scan(r.pool.QueryRow(ctx, `
		INSERT INTO transactions (tx_hash, chain, currency, status, user_id)
		VALUES ($1, $2, $3, 'pending', $4)
		ON CONFLICT (tx_hash) DO UPDATE SET updated_at = now()
		RETURNING `+txColumns+`
	`, txHash, chain, currency, userID))
}

func (r *TransactionRepo) GetByHash(ctx context.Context, txHash string) (*models.TransactionRecord, error) {
	return r.scan(r.pool.QueryRow(ctx, `
		SELECT `+txColumns+` FROM transactions WHERE tx_hash = $1
	`, txHash))
}

// RecordAttempt bumps the check counter and, when the lifetime budget is
// exceeded while still pending, fails the transaction in the same write.
func (r *TransactionRepo) RecordAttempt(ctx context.Context, id uuid.UUID, maxChecks int) (*models.TransactionRecord, error) {
	return r.scan(r.pool.QueryRow(ctx, `
		UPDATE transactions SET
			check_count = check_count + 1,
			last_checked_at = now(),
			failure_reason = CASE
				WHEN status = 'pending' AND check_count + 1 > $2 THEN 'verification attempts exhausted'
				ELSE failure_reason END,
			status = CASE
				WHEN status = 'pending' AND check_count + 1 > $2 THEN 'failed'
				ELSE status END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+txColumns+`
	`, id, maxChecks))
}

// Finalize is the compare-and-set from pending into a terminal state.
// It reports false when another request already finalized the row.
func (r *TransactionRepo) Finalize(ctx context.Context, id uuid.UUID, status string, amount, reason *string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions SET
			status = $2, amount = COALESCE($3, amount),
			failure_reason = $4, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, status, amount, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.TransactionRecord, error) {
	return r.scan(r.pool.QueryRow(ctx, `
		SELECT `+txColumns+` FROM transactions WHERE id = $1
	`, id))
}

// AttachPurchase links a settled purchase to its ledger row. This is the
// only mutation allowed on a terminal record.
func (r *TransactionRepo) AttachPurchase(ctx context.Context, id, purchaseID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE transactions SET purchase_id = $2, updated_at = now()
		WHERE id = $1 AND purchase_id IS NULL
	`, id, purchaseID)
	return err
}
