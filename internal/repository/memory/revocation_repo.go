package memory

import (
	"context"
	"time"

	"go-identity/internal/model"
)

type RevocationRepository struct {
	s *Store
}

func (r *RevocationRepository) Revoke(_ context.Context, entry model.RevocationEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.revocations[entry.TokenID]; !exists {
		r.s.revocations[entry.TokenID] = entry
	}
	return nil
}

func (r *RevocationRepository) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, exists := r.s.revocations[tokenID]
	return exists, nil
}

func (r *RevocationRepository) SetWatermark(_ context.Context, userID string, revokedBefore time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if current, ok := r.s.watermarks[userID]; !ok || revokedBefore.After(current) {
		r.s.watermarks[userID] = revokedBefore
	}
	return nil
}

func (r *RevocationRepository) Watermark(_ context.Context, userID string) (time.Time, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	at, ok := r.s.watermarks[userID]
	return at, ok, nil
}

func (r *RevocationRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, entry := range r.s.revocations {
		if !entry.ExpiresAt.After(now) {
			delete(r.s.revocations, id)
			n++
		}
	}
	return n, nil
}
