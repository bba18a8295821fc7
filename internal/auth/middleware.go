package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/redmonkez12/contacts-api/internal/apperror"
	"github.com/redmonkez12/contacts-api/internal/httputil"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const identityContextKey ContextKey = "identity"

// Identity is the verified caller attached to the request context.
type Identity struct {
	AccountID    uuid.UUID
	Email        string
	Subscription string
}

// CurrentTokenStore reports the token currently stored for an account.
// An empty string means the account has no active token.
type CurrentTokenStore interface {
	CurrentToken(ctx context.Context, accountID uuid.UUID) (string, error)
}

// Middleware gates protected routes. Signature validity alone is not enough:
// the presented token must also equal the account's stored current token,
// which is what makes logout and re-login revoke older tokens.
type Middleware struct {
	tokens *TokenService
	store  CurrentTokenStore
}

func NewMiddleware(tokens *TokenService, store CurrentTokenStore) *Middleware {
	return &Middleware{tokens: tokens, store: store}
}

// RequireAuth validates the bearer token and attaches the caller's identity
// to the request context. It is terminal on the first failure.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.RespondError(w, r, apperror.NotAuthorized("No authorization header found"))
			return
		}

		authType, authToken, _ := strings.Cut(authHeader, " ")
		if authType != "Bearer" {
			httputil.RespondError(w, r, apperror.NotAuthorized("Authorization type incorrect. Expected: Bearer"))
			return
		}
		if authToken == "" {
			httputil.RespondError(w, r, apperror.NotAuthorized("Authorization header found but it lacks a token"))
			return
		}

		if details := ValidateShape(authToken); details != nil {
			httputil.RespondError(w, r, apperror.NotAuthorizedDetails(details))
			return
		}

		claims, err := m.tokens.Verify(authToken)
		if err != nil {
			httputil.RespondError(w, r, apperror.NotAuthorized("Token verification failed. Invalid or expired token?"))
			return
		}

		accountID, err := claims.AccountID()
		if err != nil {
			httputil.RespondError(w, r, apperror.NotAuthorized("Token carries an invalid account id"))
			return
		}

		// The only place authorization touches persistence: the token must
		// still be the account's current one.
		current, err := m.store.CurrentToken(r.Context(), accountID)
		if err != nil {
			if ae, ok := apperror.As(err); ok && ae.Kind == apperror.KindNotFound {
				httputil.RespondError(w, r, apperror.NotAuthorized("No account matches this token"))
				return
			}
			httputil.RespondError(w, r, err)
			return
		}
		if current != authToken {
			httputil.RespondError(w, r, apperror.NotAuthorized("Token does not match the current session"))
			return
		}

		identity := Identity{
			AccountID:    accountID,
			Email:        claims.Email,
			Subscription: claims.Subscription,
		}
		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFromContext extracts the verified caller from the request context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}
