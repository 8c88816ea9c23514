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

type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// --- Proof nonces ---

func (r *WalletRepo) CreateNonce(ctx context.Context, userID *uuid.UUID, ttl time.Duration) (*models.WalletNonce, error) {
	n := &models.WalletNonce{
		Nonce:  generateNonce(32),
		UserID: userID,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO wallet_nonces (nonce, user_id, expires_at)
		VALUES ($1, $2, now() + $3::interval)
		RETURNING id, created_at, expires_at
	`, n.Nonce, userID, ttl.String()).Scan(&n.ID, &n.CreatedAt, &n.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// ConsumeNonce burns an unexpired nonce; replayed or expired nonces fail
// with no rows.
func (r *WalletRepo) ConsumeNonce(ctx context.Context, nonce string) (*models.WalletNonce, error) {
	var n models.WalletNonce
	err := r.pool.QueryRow(ctx, `
		UPDATE wallet_nonces
		SET used = true
		WHERE nonce = $1 AND used = false AND expires_at > now()
		RETURNING id, nonce, user_id, created_at, expires_at, used
	`, nonce).Scan(&n.ID, &n.Nonce, &n.UserID, &n.CreatedAt, &n.ExpiresAt, &n.Used)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// --- User wallets ---

func (r *WalletRepo) ConnectWallet(ctx context.Context, w *models.UserWallet) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO user_wallets (user_id, chain, address, public_key, verified, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		ON CONFLICT (user_id, chain, address) DO UPDATE SET
			public_key = EXCLUDED.public_key,
			verified = EXCLUDED.verified,
			is_active = true,
			disconnected_at = NULL,
			connected_at = now()
		RETURNING id, connected_at
	`, w.UserID, w.Chain, w.Address, w.PublicKey, w.Verified).Scan(&w.ID, &w.ConnectedAt)
}

func (r *WalletRepo) DeactivateWallets(ctx context.Context, userID uuid.UUID, chain string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE user_wallets SET is_active = false, disconnected_at = now()
		WHERE user_id = $1 AND chain = $2 AND is_active = true
	`, userID, chain)
	return err
}

func (r *WalletRepo) GetActiveWallet(ctx context.Context, userID uuid.UUID, chain string) (*models.UserWallet, error) {
	var w models.UserWallet
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, chain, address, public_key, verified, connected_at, disconnected_at, is_active
		FROM user_wallets
		WHERE user_id = $1 AND chain = $2 AND is_active = true
		ORDER BY connected_at DESC LIMIT 1
	`, userID, chain).Scan(
		&w.ID, &w.UserID, &w.Chain, &w.Address, &w.PublicKey,
		&w.Verified, &w.ConnectedAt, &w.DisconnectedAt, &w.IsActive,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepo) ListActiveWallets(ctx context.Context, userID uuid.UUID) ([]models.UserWallet, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, chain, address, public_key, verified, connected_at, disconnected_at, is_active
		FROM user_wallets
		WHERE user_id = $1 AND is_active = true
		ORDER BY connected_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []models.UserWallet
	for rows.Next() {
		var w models.UserWallet
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.Chain, &w.Address, &w.PublicKey,
			&w.Verified, &w.ConnectedAt, &w.DisconnectedAt, &w.IsActive,
		); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func generateNonce(bytes int) string {
	b := make([]byte, bytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
