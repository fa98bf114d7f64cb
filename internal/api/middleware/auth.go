package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/pokersession/internal/api/apierr"
	"github.com/mcoot/pokersession/internal/services/auth"
)

type contextKey string

const identityContextKey contextKey = "identity"

// TokenCookie is the cookie the web pages carry the identity token in
const TokenCookie = "token"

// Auth creates authentication middleware
func Auth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			identity, err := authService.ValidateToken(r.Context(), token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireClub rejects identities that have not completed onboarding.
// Must be applied after Auth.
func RequireClub(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !MustGetIdentity(r.Context()).HasClub() {
			apierr.WriteError(w, apierr.NewOnboardingRequiredError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractToken extracts the identity token from the request
func ExtractToken(r *http.Request) string {
	// Check Authorization header first
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	// Fall back to cookie
	cookie, err := r.Cookie(TokenCookie)
	if err == nil {
		return cookie.Value
	}

	return ""
}

// WithIdentity attaches an identity to the context
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// GetIdentity returns the authenticated identity from the request context
func GetIdentity(ctx context.Context) *auth.Identity {
	identity, _ := ctx.Value(identityContextKey).(*auth.Identity)
	return identity
}

// MustGetIdentity returns the authenticated identity or panics
func MustGetIdentity(ctx context.Context) *auth.Identity {
	identity := GetIdentity(ctx)
	if identity == nil {
		panic("no identity in context - auth middleware not applied?")
	}
	return identity
}
