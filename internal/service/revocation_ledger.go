package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go-identity/internal/model"
)

// RevocationLedger tracks refresh tokens that may no longer be used. Access
// tokens are never looked up here; they simply expire.
type RevocationLedger struct {
	store RevocationStore
	now   func() time.Time
}

func NewRevocationLedger(store RevocationStore) *RevocationLedger {
	return &RevocationLedger{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Revoke blacklists one refresh token until expiresAt. Repeating it is a
// no-op.
func (l *RevocationLedger) Revoke(ctx context.Context, tokenID string, userID string, expiresAt time.Time) error {
	return l.store.Revoke(ctx, model.RevocationEntry{
		TokenID:   tokenID,
		UserID:    userID,
		RevokedAt: l.now(),
		ExpiresAt: expiresAt,
	})
}

// IsRevoked reports whether the token was blacklisted or was issued before
// the user's session watermark.
func (l *RevocationLedger) IsRevoked(ctx context.Context, tokenID string, userID string, issuedAt time.Time) (bool, error) {
	revoked, err := l.store.IsRevoked(ctx, tokenID)
	if err != nil || revoked {
		return revoked, err
	}

	watermark, ok, err := l.store.Watermark(ctx, userID)
	if err != nil || !ok {
		return false, err
	}
	return issuedAt.Before(watermark), nil
}

// RevokeAllBefore revokes every refresh token of the user issued before at.
// Tokens minted at or after at stay valid.
func (l *RevocationLedger) RevokeAllBefore(ctx context.Context, userID string, at time.Time) error {
	return l.store.SetWatermark(ctx, userID, at.Truncate(jwt.TimePrecision))
}

func (l *RevocationLedger) Prune(ctx context.Context, now time.Time) (int64, error) {
	return l.store.DeleteExpired(ctx, now)
}
