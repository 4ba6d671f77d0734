package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"go-identity/internal/model"
)

type ResetRepository struct {
	pool poolIface
}

func NewResetRepository(pool poolIface) *ResetRepository {
	return &ResetRepository{pool: pool}
}

func (r *ResetRepository) Create(ctx context.Context, reset model.ResetToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO password_resets (id, user_id, secret_hash, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		reset.ID, reset.UserID, reset.SecretHash, reset.CreatedAt, reset.ExpiresAt)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password_reset").
			With("user_id", reset.UserID).
			Wrap(err)
	}
	return nil
}

// Consume locks the reset record, lets check accept or reject it, then
// marks every outstanding reset of the user consumed and stores the new
// password hash. All of it commits together or not at all. It returns the
// owning user id.
func (r *ResetRepository) Consume(ctx context.Context, id string, passwordHash string, now time.Time, check func(model.ResetToken) error) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", oops.Code("RESET_CONSUME_FAILED").With("operation", "begin").Wrap(err)
	}
	defer rollback(ctx, tx)

	var reset model.ResetToken
	err = tx.QueryRow(ctx,
		`SELECT id, user_id::text, secret_hash, created_at, expires_at, consumed_at
		 FROM password_resets WHERE id = $1
		 FOR UPDATE`, id).
		Scan(&reset.ID, &reset.UserID, &reset.SecretHash, &reset.CreatedAt, &reset.ExpiresAt, &reset.ConsumedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", oops.Code("RESET_NOT_FOUND").Wrap(model.ErrResetNotFound)
	}
	if err != nil {
		return "", oops.Code("RESET_CONSUME_FAILED").With("operation", "lock password_reset").Wrap(err)
	}

	if err := check(reset); err != nil {
		return "", err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE password_resets SET consumed_at = $2 WHERE user_id = $1 AND consumed_at IS NULL`,
		reset.UserID, now); err != nil {
		return "", oops.Code("RESET_CONSUME_FAILED").With("operation", "mark consumed").Wrap(err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE users SET password_hash = $2, failed_login_attempts = 0, locked_until = NULL, updated_at = $3
		 WHERE id = $1`,
		reset.UserID, passwordHash, now)
	if err != nil {
		return "", oops.Code("RESET_CONSUME_FAILED").With("operation", "update password").Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return "", oops.Code("USER_NOT_FOUND").With("id", reset.UserID).Wrap(model.ErrUserNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", oops.Code("RESET_CONSUME_FAILED").With("operation", "commit").Wrap(err)
	}
	return reset.UserID, nil
}

// DeleteExpired removes records past their expiry, consumed or not.
func (r *ResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM password_resets WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired password_resets").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}
