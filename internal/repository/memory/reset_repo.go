package memory

import (
	"context"
	"time"

	"github.com/samber/oops"

	"go-identity/internal/model"
)

type ResetRepository struct {
	s *Store
}

func (r *ResetRepository) Create(_ context.Context, reset model.ResetToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.resets[reset.ID]; exists {
		return oops.Code("RESET_CREATE_FAILED").With("id", reset.ID).Errorf("duplicate reset id")
	}
	r.s.resets[reset.ID] = reset
	return nil
}

// Consume runs check, consumption and the password update under the store
// lock, which serializes concurrent confirms of the same token.
func (r *ResetRepository) Consume(_ context.Context, id string, passwordHash string, now time.Time, check func(model.ResetToken) error) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reset, ok := r.s.resets[id]
	if !ok {
		return "", oops.Code("RESET_NOT_FOUND").Wrap(model.ErrResetNotFound)
	}

	if err := check(reset); err != nil {
		return "", err
	}

	user, ok := r.s.users[reset.UserID]
	if !ok {
		return "", oops.Code("USER_NOT_FOUND").With("id", reset.UserID).Wrap(model.ErrUserNotFound)
	}

	consumedAt := now
	for key, other := range r.s.resets {
		if other.UserID == reset.UserID && other.ConsumedAt == nil {
			other.ConsumedAt = &consumedAt
			r.s.resets[key] = other
		}
	}

	user.PasswordHash = passwordHash
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.UpdatedAt = now
	r.s.users[user.ID] = user
	return reset.UserID, nil
}

func (r *ResetRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, reset := range r.s.resets {
		if reset.IsExpiredAt(now) {
			delete(r.s.resets, id)
			n++
		}
	}
	return n, nil
}
