package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-identity/internal/metrics"
	"go-identity/internal/model"
)

type sentReset struct {
	user      model.User
	token     string
	expiresAt time.Time
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentReset
	err  error
}

func (n *recordingNotifier) SendResetInstructions(_ context.Context, user model.User, token string, expiresAt time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentReset{user: user, token: token, expiresAt: expiresAt})
	return nil
}

func (n *recordingNotifier) last(t *testing.T) sentReset {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "no reset instructions sent")
	return n.sent[len(n.sent)-1]
}

type authFixture struct {
	*fixture
	notifier *recordingNotifier
	svc      *AuthService
}

func newAuthFixture(t *testing.T, opts AuthOptions) *authFixture {
	t.Helper()
	f := newFixture(t)
	resets := NewResetService(f.store.Resets(), f.hasher, 30*time.Minute)
	resets.now = f.clock.Now

	notifier := &recordingNotifier{}
	svc := NewAuthService(f.store.Users(), f.hasher, f.issuer, f.ledger, resets, notifier, metrics.New(), opts, nil)
	svc.now = f.clock.Now

	return &authFixture{fixture: f, notifier: notifier, svc: svc}
}

func defaultAuthOptions() AuthOptions {
	return AuthOptions{MaxLoginAttempts: 5, LockoutDuration: 15 * time.Minute}
}

func TestAuthService_LoginThenRefreshKeepsSubject(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, defaultAuthOptions())
	user := f.seedUser(t, "ana@example.com", "correct-horse")
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "  ANA@example.com ", "correct-horse")
	require.NoError(t, err)
	require.NotNil(t, pair.User)
	assert.Equal(t, user.ID, pair.User.ID)
	assert.Equal(t, "Bearer", pair.TokenType)

	grant, err := f.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	original, err := f.issuer.Verify(ctx, pair.AccessToken, model.TokenAccess)
	require.NoError(t, err)
	refreshed, err := f.issuer.Verify(ctx, grant.AccessToken, model.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, original.Subject, refreshed.Subject)
}

func TestAuthService_LoginFailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, defaultAuthOptions())
	f.seedUser(t, "active@example.com", "correct-horse")
	f.seedUser(t, "inactive@example.com", "correct-horse", func(u *model.User) { u.IsActive = false })
	until := f.clock.Now().Add(time.Hour)
	f.seedUser(t, "locked@example.com", "correct-horse", func(u *model.User) { u.LockedUntil = &until })

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "unknown email", email: "ghost@example.com", password: "correct-horse"},
		{name: "wrong password", email: "active@example.com", password: "wrong-horse"},
		{name: "inactive account", email: "inactive@example.com", password: "correct-horse"},
		{name: "locked account", email: "locked@example.com", password: "correct-horse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := f.svc.Login(context.Background(), tt.email, tt.password)
			require.Error(t, err)
			assert.Same(t, model.ErrInvalidCredentials, err)
			assert.Equal(t, model.TokenPair{}, pair)
		})
	}
}

func TestAuthService_LoginRequiresFields(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, defaultAuthOptions())
	f.seedUser(t, "active@example.com", "correct-horse")

	tests := []struct {
		name      string
		email     string
		password  string
		wantField string
	}{
		{name: "blank email", email: "   ", password: "correct-horse", wantField: "email"},
		{name: "empty password", email: "active@example.com", password: "", wantField: "password"},
		{name: "both blank", email: "", password: "", wantField: "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), tt.email, tt.password)
			var vErr *model.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestAuthService_LoginLockout(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, AuthOptions{MaxLoginAttempts: 3, LockoutDuration: 10 * time.Minute})
	f.seedUser(t, "ana@example.com", "correct-horse")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Login(ctx, "ana@example.com", "wrong-horse")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
	}

	_, err := f.svc.Login(ctx, "ana@example.com", "correct-horse")
	assert.Same(t, model.ErrInvalidCredentials, err, "locked account must fail like any other")

	f.clock.Advance(10*time.Minute + time.Second)
	_, err = f.svc.Login(ctx, "ana@example.com", "correct-horse")
	require.NoError(t, err)

	stored, err := f.store.Users().FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Zero(t, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedUntil)
}

func TestAuthService_LoginUpgradesLegacyHash(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, defaultAuthOptions())
	user := f.seedUser(t, "ana@example.com", "correct-horse")
	argon, err := NewPasswordHasher(AlgorithmArgon2id)
	require.NoError(t, err)
	f.svc.hasher = argon

	_, err = f.svc.Login(context.Background(), "ana@example.com", "correct-horse")
	require.NoError(t, err)

	stored, err := f.store.Users().FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.PasswordHash, "$argon2id$")
	assert.True(t, f.svc.hasher.Verify("correct-horse", stored.PasswordHash))
}

func TestAuthService_LogoutRevokesRefreshToken(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, defaultAuthOptions())
	f.seedUser(t, "ana@example.com", "correct-horse")
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "ana@example.com", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken), "second logout is a no-op")

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.True(t, model.IsTokenError(err, model.TokenRevoked), "got %v", err)

	// Access tokens stay valid until they expire.
	_, err = f.issuer.Verify(ctx, pair.AccessToken, model.TokenAccess)
	assert.NoError(t, err)
}

func TestAuthService_LogoutIgnoresBadTokens(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, defaultAuthOptions())
	f.seedUser(t, "ana@example.com", "correct-horse")
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "ana@example.com", "correct-horse")
	require.NoError(t, err)

	for _, token := range []string{"", "   ", "garbage", pair.AccessToken} {
		assert.NoError(t, f.svc.Logout(ctx, token))
	}

	f.clock.Advance(8 * 24 * time.Hour)
	assert.NoError(t, f.svc.Logout(ctx, pair.RefreshToken), "expired token")
}

func TestAuthService_ChangePassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("wrong old password", func(t *testing.T) {
		f := newAuthFixture(t, defaultAuthOptions())
		user := f.seedUser(t, "ana@example.com", "correct-horse")

		_, err := f.svc.ChangePassword(ctx, model.Identity{UserID: user.ID}, "nope", "battery-staple")
		assert.ErrorIs(t, err, model.ErrIncorrectPassword)
	})

	t.Run("weak new password", func(t *testing.T) {
		f := newAuthFixture(t, defaultAuthOptions())
		user := f.seedUser(t, "ana@example.com", "correct-horse")

		_, err := f.svc.ChangePassword(ctx, model.Identity{UserID: user.ID}, "correct-horse", "short")
		var vErr *model.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "new_password", vErr.Field)
	})

	t.Run("unknown identity", func(t *testing.T) {
		f := newAuthFixture(t, defaultAuthOptions())

		_, err := f.svc.ChangePassword(ctx, model.Identity{UserID: "missing"}, "a", "battery-staple")
		assert.ErrorIs(t, err, model.ErrInvalidSession)
	})

	t.Run("new password logs in, old does not", func(t *testing.T) {
		f := newAuthFixture(t, defaultAuthOptions())
		user := f.seedUser(t, "ana@example.com", "correct-horse")

		pair, err := f.svc.ChangePassword(ctx, model.Identity{UserID: user.ID}, "correct-horse", "battery-staple")
		require.NoError(t, err)
		assert.Nil(t, pair)

		_, err = f.svc.Login(ctx, "ana@example.com", "correct-horse")
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
		_, err = f.svc.Login(ctx, "ana@example.com", "battery-staple")
		assert.NoError(t, err)
	})
}

func TestAuthService_ChangePasswordRevokesSessions(t *testing.T) {
	t.Parallel()
	opts := defaultAuthOptions()
	opts.RevokeSessionsOnPasswordChange = true
	f := newAuthFixture(t, opts)
	user := f.seedUser(t, "ana@example.com", "correct-horse")
	ctx := context.Background()

	old, err := f.svc.Login(ctx, "ana@example.com", "correct-horse")
	require.NoError(t, err)

	// Same wall-clock second as the login.
	f.clock.Advance(300 * time.Millisecond)
	fresh, err := f.svc.ChangePassword(ctx, model.Identity{UserID: user.ID}, "correct-horse", "battery-staple")
	require.NoError(t, err)
	require.NotNil(t, fresh)

	_, err = f.svc.Refresh(ctx, old.RefreshToken)
	assert.True(t, model.IsTokenError(err, model.TokenRevoked), "got %v", err)

	_, err = f.svc.Refresh(ctx, fresh.RefreshToken)
	assert.NoError(t, err)

	f.clock.Advance(100 * time.Millisecond)
	again, err := f.svc.Login(ctx, "ana@example.com", "battery-staple")
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, again.RefreshToken)
	assert.NoError(t, err)
}

func TestAuthService_RequestPasswordReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("blank email", func(t *testing.T) {
		f := newAuthFixture(t, defaultAuthOptions())
		var vErr *model.ValidationError
		require.ErrorAs(t, f.svc.RequestPasswordReset(ctx, "   "), &vErr)
		assert.Equal(t, "email", vErr.Field)
	})

	t.Run("unknown and inactive emails are acked silently", func(t *testing.T) {
		f := newAuthFixture(t, defaultAuthOptions())
		f.seedUser(t, "off@example.com", "correct-horse", func(u *model.User) { u.IsActive = false })

		assert.NoError(t, f.svc.RequestPasswordReset(ctx, "ghost@example.com"))
		assert.NoError(t, f.svc.RequestPasswordReset(ctx, "off@example.com"))
		assert.Empty(t, f.notifier.sent)
	})

	t.Run("notifier failure is not surfaced", func(t *testing.T) {
		f := newAuthFixture(t, defaultAuthOptions())
		f.seedUser(t, "ana@example.com", "correct-horse")
		f.notifier.err = errors.New("broker down")

		assert.NoError(t, f.svc.RequestPasswordReset(ctx, "ana@example.com"))
	})

	t.Run("active user receives a token", func(t *testing.T) {
		f := newAuthFixture(t, defaultAuthOptions())
		user := f.seedUser(t, "ana@example.com", "correct-horse")

		require.NoError(t, f.svc.RequestPasswordReset(ctx, "Ana@Example.com"))
		sent := f.notifier.last(t)
		assert.Equal(t, user.ID, sent.user.ID)
		assert.Equal(t, f.clock.Now().Add(30*time.Minute), sent.expiresAt)
	})
}

func TestAuthService_ResetFlow(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, defaultAuthOptions())
	f.seedUser(t, "ana@example.com", "correct-horse")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ana@example.com"))
	token := f.notifier.last(t).token

	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, token, "battery-staple"))

	// A spent token fails exactly like an unknown one.
	spent := f.svc.ConfirmPasswordReset(ctx, token, "another-pass")
	unknown := f.svc.ConfirmPasswordReset(ctx, "01J0000000000000000000000.AAAA", "another-pass")
	assert.Same(t, model.ErrInvalidResetToken, spent)
	assert.Same(t, model.ErrInvalidResetToken, unknown)

	_, err := f.svc.Login(ctx, "ana@example.com", "battery-staple")
	assert.NoError(t, err)
}

func TestAuthService_ResetExpired(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, defaultAuthOptions())
	f.seedUser(t, "ana@example.com", "correct-horse")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ana@example.com"))
	token := f.notifier.last(t).token

	f.clock.Advance(31 * time.Minute)
	assert.Same(t, model.ErrInvalidResetToken, f.svc.ConfirmPasswordReset(ctx, token, "battery-staple"))
}

func TestAuthService_ResetRevokesSessions(t *testing.T) {
	t.Parallel()
	opts := defaultAuthOptions()
	opts.RevokeSessionsOnPasswordChange = true
	f := newAuthFixture(t, opts)
	f.seedUser(t, "ana@example.com", "correct-horse")
	ctx := context.Background()

	old, err := f.svc.Login(ctx, "ana@example.com", "correct-horse")
	require.NoError(t, err)

	f.clock.Advance(200 * time.Millisecond)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ana@example.com"))
	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, f.notifier.last(t).token, "battery-staple"))

	_, err = f.svc.Refresh(ctx, old.RefreshToken)
	assert.True(t, model.IsTokenError(err, model.TokenRevoked), "got %v", err)

	f.clock.Advance(100 * time.Millisecond)
	again, err := f.svc.Login(ctx, "ana@example.com", "battery-staple")
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, again.RefreshToken)
	assert.NoError(t, err)
}
