package middleware

import (
	"context"
	"net/http"
	"strings"

	"go-identity/internal/model"
	"go-identity/pkg/apierror"
)

type tokenVerifier interface {
	Verify(ctx context.Context, token string, kind model.TokenKind) (model.Claims, error)
}

type contextKey string

const identityContextKey contextKey = "identity"

type AuthMiddleware struct {
	verifier tokenVerifier
}

func NewAuthMiddleware(verifier tokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth accepts only access tokens and stores the caller identity in
// the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
			writeError(w, apierror.Unauthorized("authentication required"))
			return
		}

		token := strings.TrimSpace(header[7:])
		claims, err := m.verifier.Verify(r.Context(), token, model.TokenAccess)
		if err != nil {
			writeError(w, apierror.Unauthorized(model.ErrInvalidSession.Error()))
			return
		}

		ctx := WithIdentity(r.Context(), claims.Identity())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	return identity, ok
}
