package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-identity/internal/model"
	"go-identity/internal/repository/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store  *memory.Store
	clock  *fakeClock
	hasher *PasswordHasher
	ledger *RevocationLedger
	issuer *TokenIssuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:  memory.New(),
		clock:  newFakeClock(),
		hasher: &PasswordHasher{algorithm: AlgorithmBcrypt, bcryptCost: bcrypt.MinCost},
	}
	f.ledger = NewRevocationLedger(f.store.Revocations())
	f.ledger.now = f.clock.Now
	f.issuer = NewTokenIssuer(TokenIssuerConfig{
		Secret:     testSecret,
		Issuer:     "go-identity-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, f.ledger, f.store.Users())
	f.issuer.now = f.clock.Now
	return f
}

func (f *fixture) seedUser(t *testing.T, email string, password string, mutate ...func(*model.User)) model.User {
	t.Helper()

	digest, err := f.hasher.Hash(password)
	require.NoError(t, err)

	now := f.clock.Now()
	u := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: digest,
		Name:         "Test User",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, m := range mutate {
		m(&u)
	}
	require.NoError(t, f.store.Users().Create(context.Background(), u))

	stored, err := f.store.Users().FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	return stored
}
