package repositories

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/presale-platform/backend/internal/models"
)

const userColumns = `id, referral_code, referrer_id, solana_verified, evm_verified,
	solana_address, evm_address, is_admin, created_at, last_active_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) scan(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.ReferralCode, &u.ReferrerID, &u.SolanaVerified, &u.EVMVerified,
		&u.SolanaAddress, &u.EVMAddress, &u.IsAdmin, &u.CreatedAt, &u.LastActiveAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertByAddress finds or creates the user owning a login wallet address.
func (r *UserRepo) UpsertByAddress(ctx context.Context, chain, address string) (*models.User, error) {
	column := "solana_address"
	if chain == models.ChainBSC {
		column = "evm_address"
	}
	return r.scan(r.pool.QueryRow(ctx, `
		INSERT INTO users (referral_code, `+column+`)
		VALUES ($1, $2)
		ON CONFLICT (`+column+`) DO UPDATE SET last_active_at = now()
		RETURNING `+userColumns+`
	`, generateReferralCode(), address))
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.scan(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return r.scan(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code))
}

// SetReferrer links a referee to its referrer. The IS NULL guard keeps the
// edge write-once; cycle checks happen in the service before this call.
func (r *UserRepo) SetReferrer(ctx context.Context, refereeID, referrerID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET referrer_id = $2 WHERE id = $1 AND referrer_id IS NULL
	`, refereeID, referrerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetReferrerID returns the parent edge for one user (nil at a root).
func (r *UserRepo) GetReferrerID(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
	var referrerID *uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT referrer_id FROM users WHERE id = $1`, id).Scan(&referrerID)
	if err != nil {
		return nil, err
	}
	return referrerID, nil
}

// GetDirectReferees returns the children of a set of users, keyed by parent.
func (r *UserRepo) GetDirectReferees(ctx context.Context, referrerIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	if len(referrerIDs) == 0 {
		return map[uuid.UUID][]uuid.UUID{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, referrer_id FROM users WHERE referrer_id = ANY($1)
	`, referrerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]uuid.UUID)
	for rows.Next() {
		var id, parent uuid.UUID
		if err := rows.Scan(&id, &parent); err != nil {
			return nil, err
		}
		out[parent] = append(out[parent], id)
	}
	return out, rows.Err()
}

// SetChainVerified stores a verified payout address and flips the matching
// per-chain flag.
func (r *UserRepo) SetChainVerified(ctx context.Context, id uuid.UUID, chain, address string) error {
	var query string
	switch chain {
	case models.ChainSolana:
		query = `UPDATE users SET solana_verified = true, solana_address = $2 WHERE id = $1`
	case models.ChainBSC:
		query = `UPDATE users SET evm_verified = true, evm_address = $2 WHERE id = $1`
	default:
		return nil
	}
	_, err := r.pool.Exec(ctx, query, id, address)
	return err
}

func (r *UserRepo) UpdateLastActive(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_active_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}

func generateReferralCode() string {
	b := make([]byte, 5)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
