package service

import (
	"context"
	"time"

	"go-identity/internal/model"
)

// UserDirectory is the credential store as seen by the auth core.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, id string) (model.User, error)
	Save(ctx context.Context, u model.User) error
	UpdatePassword(ctx context.Context, userID string, passwordHash string) error
	RecordLoginFailure(ctx context.Context, userID string, maxAttempts int, lockedUntil time.Time) error
	RecordLoginSuccess(ctx context.Context, userID string) error
}

type OrgDirectory interface {
	Direction(ctx context.Context, id int64) (model.OrgNode, error)
	Management(ctx context.Context, id int64) (model.OrgNode, error)
	Coordination(ctx context.Context, id int64) (model.OrgNode, error)
}

type RevocationStore interface {
	Revoke(ctx context.Context, entry model.RevocationEntry) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	SetWatermark(ctx context.Context, userID string, revokedBefore time.Time) error
	Watermark(ctx context.Context, userID string) (time.Time, bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type ResetStore interface {
	Create(ctx context.Context, reset model.ResetToken) error
	Consume(ctx context.Context, id string, passwordHash string, now time.Time, check func(model.ResetToken) error) (string, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// NotificationSender hands reset instructions to whatever delivers them.
type NotificationSender interface {
	SendResetInstructions(ctx context.Context, user model.User, token string, expiresAt time.Time) error
}
