package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"

	"go-identity/internal/model"
)

const tokenTypeBearer = "Bearer"

// Session watermarks order tokens within the same second, so iat and exp
// carry microseconds.
func init() {
	jwt.TimePrecision = time.Microsecond
}

type tokenClaims struct {
	Type    model.TokenKind `json:"typ"`
	Roles   []string        `json:"roles,omitempty"`
	Profile *model.Profile  `json:"profile,omitempty"`
	jwt.RegisteredClaims
}

type TokenIssuerConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenIssuer signs and verifies HS256 access and refresh tokens.
type TokenIssuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	ledger     *RevocationLedger
	users      UserDirectory
	now        func() time.Time
}

func NewTokenIssuer(cfg TokenIssuerConfig, ledger *RevocationLedger, users UserDirectory) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		ledger:     ledger,
		users:      users,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Issue mints an access/refresh pair. The access token carries a snapshot
// of the profile as it is right now.
func (i *TokenIssuer) Issue(user model.User) (model.TokenPair, error) {
	now := i.now()

	access, err := i.signAccess(user, now)
	if err != nil {
		return model.TokenPair{}, err
	}

	refresh, err := i.sign(tokenClaims{
		Type: model.TokenRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
	})
	if err != nil {
		return model.TokenPair{}, err
	}

	profile := user.Profile()
	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(i.accessTTL.Seconds()),
		User:         &profile,
	}, nil
}

// Verify checks signature, expiry, issuer and type. Refresh tokens are also
// checked against the revocation ledger. Rejections are *model.TokenError;
// any other error is a store failure.
func (i *TokenIssuer) Verify(ctx context.Context, token string, kind model.TokenKind) (model.Claims, error) {
	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return model.Claims{}, classifyJWTError(err)
	}

	if tc.Type != kind {
		return model.Claims{}, model.NewTokenError(model.TokenMalformed, errors.New("unexpected token type"))
	}
	if tc.Subject == "" || tc.ID == "" || tc.IssuedAt == nil {
		return model.Claims{}, model.NewTokenError(model.TokenMalformed, errors.New("missing required claims"))
	}

	claims := model.Claims{
		Subject:   tc.Subject,
		TokenID:   tc.ID,
		Kind:      tc.Type,
		IssuedAt:  tc.IssuedAt.Round(jwt.TimePrecision),
		ExpiresAt: tc.ExpiresAt.Round(jwt.TimePrecision),
		Profile:   tc.Profile,
		Roles:     tc.Roles,
	}

	if kind == model.TokenRefresh {
		revoked, err := i.ledger.IsRevoked(ctx, claims.TokenID, claims.Subject, claims.IssuedAt)
		if err != nil {
			return model.Claims{}, oops.Code("TOKEN_REVOCATION_CHECK_FAILED").With("jti", claims.TokenID).Wrap(err)
		}
		if revoked {
			return model.Claims{}, model.NewTokenError(model.TokenRevoked, nil)
		}
	}

	return claims, nil
}

// Refresh mints a new access token from a valid refresh token using the
// user's current state. The refresh token itself is not rotated.
func (i *TokenIssuer) Refresh(ctx context.Context, refreshToken string) (model.AccessGrant, error) {
	claims, err := i.Verify(ctx, refreshToken, model.TokenRefresh)
	if err != nil {
		return model.AccessGrant{}, err
	}

	user, err := i.users.FindByID(ctx, claims.Subject)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.AccessGrant{}, model.NewTokenError(model.TokenRevoked, err)
	}
	if err != nil {
		return model.AccessGrant{}, err
	}
	if !user.IsActive {
		return model.AccessGrant{}, model.NewTokenError(model.TokenRevoked, errors.New("user is inactive"))
	}

	access, err := i.signAccess(user, i.now())
	if err != nil {
		return model.AccessGrant{}, err
	}

	return model.AccessGrant{
		AccessToken: access,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(i.accessTTL.Seconds()),
	}, nil
}

func (i *TokenIssuer) signAccess(user model.User, now time.Time) (string, error) {
	profile := user.Profile()
	return i.sign(tokenClaims{
		Type:    model.TokenAccess,
		Roles:   user.Roles(),
		Profile: &profile,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	})
}

func (i *TokenIssuer) sign(claims tokenClaims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("typ", claims.Type).Wrap(err)
	}
	return signed, nil
}

func classifyJWTError(err error) *model.TokenError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return model.NewTokenError(model.TokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return model.NewTokenError(model.TokenSignature, err)
	default:
		return model.NewTokenError(model.TokenMalformed, err)
	}
}
