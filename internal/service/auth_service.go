package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go-identity/internal/logger"
	"go-identity/internal/metrics"
	"go-identity/internal/model"
)

type AuthOptions struct {
	MaxLoginAttempts int
	LockoutDuration  time.Duration
	// RevokeSessionsOnPasswordChange revokes every earlier refresh token of
	// the user after a password change or reset.
	RevokeSessionsOnPasswordChange bool
}

// AuthService coordinates login, token refresh, logout and the password
// lifecycle.
type AuthService struct {
	users    UserDirectory
	hasher   *PasswordHasher
	issuer   *TokenIssuer
	ledger   *RevocationLedger
	resets   *ResetService
	notifier NotificationSender
	metrics  *metrics.Metrics
	opts     AuthOptions
	log      *slog.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	users UserDirectory,
	hasher *PasswordHasher,
	issuer *TokenIssuer,
	ledger *RevocationLedger,
	resets *ResetService,
	notifier NotificationSender,
	m *metrics.Metrics,
	opts AuthOptions,
	log *slog.Logger,
) *AuthService {
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{
		users:    users,
		hasher:   hasher,
		issuer:   issuer,
		ledger:   ledger,
		resets:   resets,
		notifier: notifier,
		metrics:  m,
		opts:     opts,
		log:      log.With("component", "auth"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates by email and password. Unknown, inactive, locked and
// mismatched accounts all fail with model.ErrInvalidCredentials. Blank
// fields fail with a *model.ValidationError before any lookup.
func (s *AuthService) Login(ctx context.Context, email string, password string) (model.TokenPair, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return model.TokenPair{}, model.NewValidationError("email", "email is required")
	}
	if password == "" {
		return model.TokenPair{}, model.NewValidationError("password", "password is required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		// Burn the same hashing work as a real check.
		s.hasher.Verify(password, s.dummyDigest())
		s.metrics.AuthEvent("login", metrics.OutcomeFailure)
		return model.TokenPair{}, model.ErrInvalidCredentials
	}
	if err != nil {
		s.metrics.AuthEvent("login", metrics.OutcomeError)
		return model.TokenPair{}, err
	}

	now := s.now()
	matched := s.hasher.Verify(password, user.PasswordHash)

	switch {
	case user.IsLocked(now):
		s.metrics.AuthEvent("login", metrics.OutcomeLocked)
		return model.TokenPair{}, model.ErrInvalidCredentials
	case !matched:
		if err := s.users.RecordLoginFailure(ctx, user.ID, s.opts.MaxLoginAttempts, now.Add(s.opts.LockoutDuration)); err != nil {
			logger.LogError(s.log, "record login failure", err, "user_id", user.ID)
		}
		s.metrics.AuthEvent("login", metrics.OutcomeFailure)
		return model.TokenPair{}, model.ErrInvalidCredentials
	case !user.IsActive:
		s.metrics.AuthEvent("login", metrics.OutcomeFailure)
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := s.users.RecordLoginSuccess(ctx, user.ID); err != nil {
			logger.LogError(s.log, "reset login failures", err, "user_id", user.ID)
		}
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, password)
	}

	pair, err := s.issuer.Issue(user)
	if err != nil {
		s.metrics.AuthEvent("login", metrics.OutcomeError)
		return model.TokenPair{}, err
	}

	s.metrics.AuthEvent("login", metrics.OutcomeSuccess)
	s.log.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return pair, nil
}

// Refresh mints a new access token. Every token rejection surfaces as a
// *model.TokenError.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.AccessGrant, error) {
	grant, err := s.issuer.Refresh(ctx, strings.TrimSpace(refreshToken))
	switch {
	case err == nil:
		s.metrics.AuthEvent("refresh", metrics.OutcomeSuccess)
	case model.IsTokenError(err):
		s.metrics.AuthEvent("refresh", metrics.OutcomeFailure)
	default:
		s.metrics.AuthEvent("refresh", metrics.OutcomeError)
	}
	return grant, err
}

// Logout revokes the refresh token, if one is given. Tokens that are
// malformed, expired, forged or already revoked are ignored. Only store
// failures are returned.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		s.metrics.AuthEvent("logout", metrics.OutcomeSuccess)
		return nil
	}

	claims, err := s.issuer.Verify(ctx, refreshToken, model.TokenRefresh)
	if model.IsTokenError(err) {
		s.metrics.AuthEvent("logout", metrics.OutcomeSuccess)
		return nil
	}
	if err == nil {
		err = s.ledger.Revoke(ctx, claims.TokenID, claims.Subject, claims.ExpiresAt)
	}
	if err != nil {
		s.metrics.AuthEvent("logout", metrics.OutcomeError)
		return err
	}

	s.metrics.AuthEvent("logout", metrics.OutcomeSuccess)
	s.log.InfoContext(ctx, "refresh token revoked", "user_id", claims.Subject, "jti", claims.TokenID)
	return nil
}

// ChangePassword replaces the caller's password after checking the old one.
// When sessions are revoked on change, the returned pair replaces the
// caller's now-revoked refresh token; otherwise it is nil.
func (s *AuthService) ChangePassword(ctx context.Context, identity model.Identity, oldPassword string, newPassword string) (*model.TokenPair, error) {
	user, err := s.users.FindByID(ctx, identity.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, model.ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, model.ErrInvalidSession
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		s.metrics.AuthEvent("change_password", metrics.OutcomeFailure)
		return nil, model.ErrIncorrectPassword
	}

	if err := validateNewPassword(newPassword); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, digest); err != nil {
		return nil, err
	}

	s.metrics.AuthEvent("change_password", metrics.OutcomeSuccess)
	s.log.InfoContext(ctx, "password changed", "user_id", user.ID)

	if !s.opts.RevokeSessionsOnPasswordChange {
		return nil, nil
	}

	if err := s.ledger.RevokeAllBefore(ctx, user.ID, s.now()); err != nil {
		return nil, err
	}
	pair, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

// RequestPasswordReset issues a reset token for an active account and hands
// it to the notifier. The outcome is the same whether or not the email
// matches; only a blank email is rejected.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return model.NewValidationError("email", "email is required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, model.ErrUserNotFound) {
			logger.LogError(s.log, "password reset lookup", err)
			s.metrics.AuthEvent("reset_request", metrics.OutcomeError)
		} else {
			s.metrics.AuthEvent("reset_request", metrics.OutcomeFailure)
		}
		return nil
	}
	if !user.IsActive {
		s.metrics.AuthEvent("reset_request", metrics.OutcomeFailure)
		return nil
	}

	token, expiresAt, err := s.resets.Issue(ctx, user)
	if err != nil {
		logger.LogError(s.log, "issue reset token", err, "user_id", user.ID)
		s.metrics.AuthEvent("reset_request", metrics.OutcomeError)
		return nil
	}

	if err := s.notifier.SendResetInstructions(ctx, user, token, expiresAt); err != nil {
		logger.LogError(s.log, "send reset instructions", err, "user_id", user.ID)
		s.metrics.AuthEvent("reset_request", metrics.OutcomeError)
		return nil
	}

	s.metrics.AuthEvent("reset_request", metrics.OutcomeSuccess)
	return nil
}

// ConfirmPasswordReset redeems a reset token. Token problems fail with
// model.ErrInvalidResetToken only.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token string, newPassword string) error {
	userID, err := s.resets.Confirm(ctx, token, newPassword)
	if err != nil {
		if errors.Is(err, model.ErrInvalidResetToken) {
			s.metrics.AuthEvent("reset_confirm", metrics.OutcomeFailure)
		}
		return err
	}

	s.metrics.AuthEvent("reset_confirm", metrics.OutcomeSuccess)
	s.log.InfoContext(ctx, "password reset", "user_id", userID)

	if s.opts.RevokeSessionsOnPasswordChange {
		if err := s.ledger.RevokeAllBefore(ctx, userID, s.now()); err != nil {
			logger.LogError(s.log, "revoke sessions after reset", err, "user_id", userID)
		}
	}
	return nil
}

func (s *AuthService) upgradeHash(ctx context.Context, userID string, password string) {
	digest, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, userID, digest)
	}
	if err != nil {
		s.log.WarnContext(ctx, "password hash upgrade failed", "user_id", userID, "error", err)
	}
}

// dummyDigest is verified for unknown emails so that they cost as much as
// a wrong password.
func (s *AuthService) dummyDigest() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash("timing-equalization-placeholder")
		if err != nil {
			digest = "$argon2id$invalid"
		}
		s.dummyHash = digest
	})
	return s.dummyHash
}
