package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/services/auth"
	"github.com/mcoot/pokersession/internal/web/guard"
)

type contextKey string

const (
	identityContextKey contextKey = "identity"

	// TokenCookie holds the identity token issued by the auth service
	TokenCookie = "token"

	resolveTimeout = 3 * time.Second
)

// GetIdentity retrieves the authenticated identity from the request context
// Returns nil for anonymous visitors
func GetIdentity(ctx context.Context) *auth.Identity {
	identity, _ := ctx.Value(identityContextKey).(*auth.Identity)
	return identity
}

// GetUser returns the authenticated user, or nil
func GetUser(ctx context.Context) *model.User {
	if identity := GetIdentity(ctx); identity != nil {
		return &identity.User
	}
	return nil
}

// Resolve looks up the identity behind the token cookie and records both the identity
// and the guard state. A lookup that fails for any reason other than a bad token leaves
// the state unresolved so the guards show the placeholder instead of guessing.
func Resolve(authService *auth.Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := guard.IdentityState{Resolved: true}

			cookie, err := r.Cookie(TokenCookie)
			if err == nil && cookie.Value != "" {
				ctx, cancel := context.WithTimeout(r.Context(), resolveTimeout)
				identity, err := authService.ValidateToken(ctx, cookie.Value)
				cancel()

				switch {
				case err == nil:
					state.UserID = identity.UserID
					state.ClubID = identity.User.ClubID
					r = r.WithContext(context.WithValue(r.Context(), identityContextKey, identity))
				case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, model.ErrUserNotFound):
					ClearTokenCookie(w)
				default:
					logger.Warn("identity lookup failed",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
					state.Resolved = false
				}
			}

			next.ServeHTTP(w, r.WithContext(guard.WithState(r.Context(), state)))
		})
	}
}

// StateResolver reads the state recorded by Resolve
var StateResolver = guard.ResolverFunc(func(r *http.Request) guard.IdentityState {
	return guard.State(r.Context())
})

// SetTokenCookie stores the identity token for subsequent requests
func SetTokenCookie(w http.ResponseWriter, identity *auth.Identity) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    identity.Token,
		Path:     "/",
		Expires:  identity.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookie removes the identity token
func ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
