package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"go-identity/internal/model"
)

// RevocationRepository is the durable side of the refresh token blacklist
// and the per-user session watermarks.
type RevocationRepository struct {
	pool poolIface
}

func NewRevocationRepository(pool poolIface) *RevocationRepository {
	return &RevocationRepository{pool: pool}
}

// Revoke appends an entry. Revoking the same token twice is a no-op.
func (r *RevocationRepository) Revoke(ctx context.Context, entry model.RevocationEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_token_revocations (token_id, user_id, revoked_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (token_id) DO NOTHING`,
		entry.TokenID, entry.UserID, entry.RevokedAt, entry.ExpiresAt)
	if err != nil {
		return oops.Code("REVOCATION_STORE_FAILED").
			With("operation", "insert revocation").
			With("user_id", entry.UserID).
			Wrap(err)
	}
	return nil
}

func (r *RevocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM refresh_token_revocations WHERE token_id = $1)`,
		tokenID).Scan(&exists)
	if err != nil {
		return false, oops.Code("REVOCATION_QUERY_FAILED").With("operation", "check revocation").Wrap(err)
	}
	return exists, nil
}

// SetWatermark moves the user's watermark forward. An older value never
// replaces a newer one.
func (r *RevocationRepository) SetWatermark(ctx context.Context, userID string, revokedBefore time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_watermarks (user_id, revoked_before)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE
		 SET revoked_before = GREATEST(session_watermarks.revoked_before, EXCLUDED.revoked_before)`,
		userID, revokedBefore)
	if err != nil {
		return oops.Code("WATERMARK_STORE_FAILED").With("user_id", userID).Wrap(err)
	}
	return nil
}

// Watermark returns the user's watermark, if any.
func (r *RevocationRepository) Watermark(ctx context.Context, userID string) (time.Time, bool, error) {
	var at time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT revoked_before FROM session_watermarks WHERE user_id = $1`, userID).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, oops.Code("WATERMARK_QUERY_FAILED").With("user_id", userID).Wrap(err)
	}
	return at, true, nil
}

// DeleteExpired drops entries whose token has expired on its own.
func (r *RevocationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_token_revocations WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("REVOCATION_PRUNE_FAILED").With("operation", "delete expired revocations").Wrap(err)
	}
	return tag.RowsAffected(), nil
}
