// Package guard decides whether a navigation may render, must redirect, or must wait.
//
// Two guards compose by nesting, Identity(Onboarding(page)): the identity guard sends
// anonymous visitors to the login page, the onboarding guard sends identities without a
// club to the join page. Both are evaluated on every request, so a change of identity,
// membership or path is picked up on the next navigation.
package guard

import (
	"net/url"
	"strings"

	"github.com/mcoot/pokersession/internal/model"
)

// Canonical locations
const (
	LoginPath        = "/login"
	OnboardingPath   = "/join"
	AuthCallbackPath = "/auth/callback"
)

var protectedPrefixes = []string{"/sessions", "/clubs", "/account"}

// publicPaths are matched exactly; publicPrefixes by prefix
var (
	publicPaths    = []string{"/", LoginPath, AuthCallbackPath, "/health"}
	publicPrefixes = []string{"/static/"}
)

// IsProtected reports whether a path needs a member of a club
func IsProtected(path string) bool {
	for _, prefix := range protectedPrefixes {
		if hasPathPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// IsPublic reports whether a path is reachable without an identity
func IsPublic(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// hasPathPrefix matches whole path segments, so /sessionsfoo is not under /sessions
func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// IdentityState is what the guards know about the visitor.
// Resolved is false while identity lookup has not produced an answer.
type IdentityState struct {
	Resolved bool
	UserID   model.UserID
	ClubID   *model.ClubID
}

// Authenticated returns true when an identity is present
func (s IdentityState) Authenticated() bool {
	return s.Resolved && s.UserID != ""
}

// Onboarded returns true when the identity belongs to a club
func (s IdentityState) Onboarded() bool {
	return s.Authenticated() && s.ClubID != nil && *s.ClubID != ""
}

// Action is what a guard wants done with the request
type Action int

const (
	// Render lets the wrapped handler run
	Render Action = iota
	// Redirect sends the visitor to Decision.Location without running the wrapped handler
	Redirect
	// Placeholder renders a neutral page because the outcome is not known yet
	Placeholder
)

func (a Action) String() string {
	switch a {
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	case Placeholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

// Decision is a guard's verdict for one navigation
type Decision struct {
	Action   Action
	Location string
}

func render() Decision {
	return Decision{Action: Render}
}

func placeholder() Decision {
	return Decision{Action: Placeholder}
}

func redirect(location string) Decision {
	return Decision{Action: Redirect, Location: location}
}

// EvaluateIdentity sends visitors without an identity to the login page, remembering
// where they were going. Public paths always render.
func EvaluateIdentity(state IdentityState, path string) Decision {
	if IsPublic(path) {
		return render()
	}
	if !state.Resolved {
		return placeholder()
	}
	if !state.Authenticated() {
		return redirect(LoginPath + "?next=" + url.QueryEscape(path))
	}
	return render()
}

// EvaluateOnboarding sends identities without a club to the join page when they
// navigate to a protected path. The join and auth callback pages are exempt.
func EvaluateOnboarding(state IdentityState, path string) Decision {
	if path == OnboardingPath || path == AuthCallbackPath || !IsProtected(path) {
		return render()
	}
	if !state.Resolved {
		return placeholder()
	}
	// Anonymous visitors are the identity guard's concern
	if !state.Authenticated() || state.Onboarded() {
		return render()
	}
	return redirect(OnboardingPath)
}

// SafeNext returns next if it is a local absolute path, otherwise fallback
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return fallback
	}
	return next
}
