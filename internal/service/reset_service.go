package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"go-identity/internal/model"
)

const resetSecretBytes = 32

// ResetService issues and redeems single-use password reset tokens.
//
// An encoded token is "<record id>.<secret>": the record id is a ULID and
// the secret is 32 random bytes in unpadded base64url. Only the sha256 of
// the secret is stored, so the id alone is worthless.
type ResetService struct {
	store  ResetStore
	hasher *PasswordHasher
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

func NewResetService(store ResetStore, hasher *PasswordHasher, ttl time.Duration) *ResetService {
	return &ResetService{
		store:  store,
		hasher: hasher,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		random: rand.Reader,
	}
}

// Issue stores a new reset record for the user and returns the encoded
// token together with its expiry.
func (s *ResetService) Issue(ctx context.Context, user model.User) (string, time.Time, error) {
	secret := make([]byte, resetSecretBytes)
	if _, err := io.ReadFull(s.random, secret); err != nil {
		return "", time.Time{}, oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	now := s.now()
	id, err := ulid.New(ulid.Timestamp(now), s.random)
	if err != nil {
		return "", time.Time{}, oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	record := model.ResetToken{
		ID:         id.String(),
		UserID:     user.ID,
		SecretHash: hashResetSecret(secret),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, record); err != nil {
		return "", time.Time{}, err
	}

	return record.ID + "." + base64.RawURLEncoding.EncodeToString(secret), record.ExpiresAt, nil
}

// Confirm redeems an encoded token and sets the new password. Unknown,
// malformed, consumed, expired and mismatched tokens all fail with
// model.ErrInvalidResetToken. It returns the id of the user whose password
// changed.
func (s *ResetService) Confirm(ctx context.Context, encoded string, newPassword string) (string, error) {
	if err := validateNewPassword(newPassword); err != nil {
		return "", err
	}

	id, secret, ok := decodeResetToken(encoded)
	if !ok {
		return "", model.ErrInvalidResetToken
	}

	// Hashing is slow; keep it out of the locked section.
	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", err
	}

	now := s.now()
	presented := hashResetSecret(secret)
	userID, err := s.store.Consume(ctx, id, digest, now, func(record model.ResetToken) error {
		valid := subtle.ConstantTimeCompare([]byte(presented), []byte(record.SecretHash)) == 1
		if !valid || record.IsConsumed() || record.IsExpiredAt(now) {
			return model.ErrInvalidResetToken
		}
		return nil
	})
	switch {
	case err == nil:
		return userID, nil
	case errors.Is(err, model.ErrInvalidResetToken), errors.Is(err, model.ErrResetNotFound):
		return "", model.ErrInvalidResetToken
	default:
		return "", err
	}
}

func (s *ResetService) Prune(ctx context.Context, now time.Time) (int64, error) {
	return s.store.DeleteExpired(ctx, now)
}

func decodeResetToken(encoded string) (string, []byte, bool) {
	rawID, rawSecret, found := strings.Cut(strings.TrimSpace(encoded), ".")
	if !found {
		return "", nil, false
	}

	id, err := ulid.ParseStrict(rawID)
	if err != nil {
		return "", nil, false
	}

	secret, err := base64.RawURLEncoding.DecodeString(rawSecret)
	if err != nil || len(secret) != resetSecretBytes {
		return "", nil, false
	}

	return id.String(), secret, true
}

func hashResetSecret(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:])
}
