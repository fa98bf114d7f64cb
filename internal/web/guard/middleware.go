package guard

import (
	"context"
	"net/http"
)

type contextKey string

const stateContextKey contextKey = "identity-state"

// Resolver works out who is making a request.
// It returns an unresolved state, not an error, when the answer isn't available yet.
type Resolver interface {
	Resolve(r *http.Request) IdentityState
}

// ResolverFunc adapts a function to a Resolver
type ResolverFunc func(r *http.Request) IdentityState

// Resolve calls f(r)
func (f ResolverFunc) Resolve(r *http.Request) IdentityState {
	return f(r)
}

// State returns the identity state stored by the Identity middleware
func State(ctx context.Context) IdentityState {
	state, _ := ctx.Value(stateContextKey).(IdentityState)
	return state
}

// WithState attaches an identity state to the context
func WithState(ctx context.Context, state IdentityState) context.Context {
	return context.WithValue(ctx, stateContextKey, state)
}

// Identity resolves the visitor and applies EvaluateIdentity.
// The resolved state is stored in the request context for inner guards and handlers.
func Identity(resolver Resolver, placeholder http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := resolver.Resolve(r)
			r = r.WithContext(WithState(r.Context(), state))
			apply(w, r, EvaluateIdentity(state, r.URL.Path), next, placeholder)
		})
	}
}

// Onboarding applies EvaluateOnboarding to the state left by Identity
func Onboarding(placeholder http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apply(w, r, EvaluateOnboarding(State(r.Context()), r.URL.Path), next, placeholder)
		})
	}
}

func apply(w http.ResponseWriter, r *http.Request, d Decision, next, placeholder http.Handler) {
	switch d.Action {
	case Redirect:
		http.Redirect(w, r, d.Location, http.StatusSeeOther)
	case Placeholder:
		w.Header().Set("Cache-Control", "no-store")
		placeholder.ServeHTTP(w, r)
	default:
		next.ServeHTTP(w, r)
	}
}
