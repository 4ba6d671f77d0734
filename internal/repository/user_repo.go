package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"go-identity/internal/model"
)

const selectUser = `
	SELECT u.id::text, u.email, u.password_hash, u.name, u.cpf, u.phone, u.avatar_url,
	       u.is_active, u.is_staff, u.is_superuser,
	       u.direction_id, d.name, u.management_id, m.name, u.coordination_id, c.name,
	       u.failed_login_attempts, u.locked_until, u.created_at, u.updated_at
	FROM users u
	LEFT JOIN directions d ON d.id = u.direction_id
	LEFT JOIN managements m ON m.id = u.management_id
	LEFT JOIN coordinations c ON c.id = u.coordination_id`

type UserRepository struct {
	pool poolIface
}

func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.User{}, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(model.ErrUserNotFound)
	}

	u, err := scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE u.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(model.ErrUserNotFound)
	}
	if err != nil {
		return model.User{}, oops.Code("USER_QUERY_FAILED").With("operation", "find user by id").Wrap(err)
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE u.email = $1`, model.NormalizeEmail(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, oops.Code("USER_NOT_FOUND").Wrap(model.ErrUserNotFound)
	}
	if err != nil {
		return model.User{}, oops.Code("USER_QUERY_FAILED").With("operation", "find user by email").Wrap(err)
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	o := u.Org
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, cpf, phone, avatar_url,
		                    is_active, is_staff, is_superuser,
		                    direction_id, management_id, coordination_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		u.ID, model.NormalizeEmail(u.Email), u.PasswordHash, u.Name, u.NationalID, u.Phone, u.AvatarURL,
		u.IsActive, u.IsStaff, u.IsSuperuser,
		o.DirectionID, o.ManagementID, o.CoordinationID, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_ALREADY_EXISTS").With("email", u.Email).Wrap(model.ErrUserAlreadyExists)
		}
		return oops.Code("USER_CREATE_FAILED").With("operation", "insert user").Wrap(err)
	}
	return nil
}

// Save persists profile, flag and placement fields. The password hash and
// lockout counters have their own update paths.
func (r *UserRepository) Save(ctx context.Context, u model.User) error {
	o := u.Org
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET name = $2, cpf = $3, phone = $4, avatar_url = $5,
		                  is_active = $6, is_staff = $7, is_superuser = $8,
		                  direction_id = $9, management_id = $10, coordination_id = $11,
		                  updated_at = $12
		 WHERE id = $1`,
		u.ID, u.Name, u.NationalID, u.Phone, u.AvatarURL,
		u.IsActive, u.IsStaff, u.IsSuperuser,
		o.DirectionID, o.ManagementID, o.CoordinationID, u.UpdatedAt)
	if err != nil {
		return oops.Code("USER_SAVE_FAILED").With("id", u.ID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", u.ID).Wrap(model.ErrUserNotFound)
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		userID, passwordHash, time.Now().UTC())
	if err != nil {
		return oops.Code("USER_PASSWORD_UPDATE_FAILED").With("id", userID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", userID).Wrap(model.ErrUserNotFound)
	}
	return nil
}

// RecordLoginFailure bumps the failure counter. When it reaches maxAttempts
// the account is locked until lockedUntil and the counter starts over.
// A maxAttempts of zero never locks.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, userID string, maxAttempts int, lockedUntil time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET
		     failed_login_attempts = CASE WHEN $2 > 0 AND failed_login_attempts + 1 >= $2
		                                  THEN 0 ELSE failed_login_attempts + 1 END,
		     locked_until = CASE WHEN $2 > 0 AND failed_login_attempts + 1 >= $2
		                         THEN $3 ELSE locked_until END,
		     updated_at = $4
		 WHERE id = $1`,
		userID, maxAttempts, lockedUntil, time.Now().UTC())
	if err != nil {
		return oops.Code("USER_LOGIN_FAILURE_FAILED").With("id", userID).Wrap(err)
	}
	return nil
}

func (r *UserRepository) RecordLoginSuccess(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET failed_login_attempts = 0, locked_until = NULL
		 WHERE id = $1 AND (failed_login_attempts <> 0 OR locked_until IS NOT NULL)`,
		userID)
	if err != nil {
		return oops.Code("USER_LOGIN_SUCCESS_FAILED").With("id", userID).Wrap(err)
	}
	return nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.NationalID, &u.Phone, &u.AvatarURL,
		&u.IsActive, &u.IsStaff, &u.IsSuperuser,
		&u.Org.DirectionID, &u.Org.DirectionName,
		&u.Org.ManagementID, &u.Org.ManagementName,
		&u.Org.CoordinationID, &u.Org.CoordinationName,
		&u.FailedLoginAttempts, &u.LockedUntil, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}
