package model

import "time"

type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// Claims is the verified content of an access or refresh token. Profile is
// only populated for access tokens.
type Claims struct {
	Subject   string    `json:"sub"`
	TokenID   string    `json:"jti"`
	Kind      TokenKind `json:"typ"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
	Profile   *Profile  `json:"profile,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
}

// Identity converts verified access claims into the caller identity.
func (c Claims) Identity() Identity {
	identity := Identity{UserID: c.Subject, Roles: c.Roles}
	if c.Profile != nil {
		identity.Email = c.Profile.Email
	}
	return identity
}

type TokenPair struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	User         *Profile `json:"user,omitempty"`
}

type AccessGrant struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// RevocationEntry blacklists one refresh token until its natural expiry.
type RevocationEntry struct {
	TokenID   string    `json:"token_id"`
	UserID    string    `json:"user_id"`
	RevokedAt time.Time `json:"revoked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResetToken is the stored half of a password reset credential. Only the
// sha256 of the secret is kept.
type ResetToken struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	SecretHash string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

func (r ResetToken) IsExpiredAt(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}

func (r ResetToken) IsConsumed() bool {
	return r.ConsumedAt != nil
}
