package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mcoot/pokersession/internal/services/auth"
	"github.com/mcoot/pokersession/internal/web/guard"
	"github.com/mcoot/pokersession/internal/web/middleware"
	"github.com/mcoot/pokersession/internal/web/view"
)

// AuthHandler handles login, the auth callback and logout
type AuthHandler struct {
	authService *auth.Service
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// LoginPage renders the login page
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	if middleware.GetIdentity(r.Context()) != nil {
		// Already logged in
		http.Redirect(w, r, guard.SafeNext(next, "/"), http.StatusSeeOther)
		return
	}

	h.renderLogin(w, r, http.StatusOK, next, "")
}

// Login handles both login forms. mode=guest creates a guest identity.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, r, http.StatusBadRequest, "", "Invalid form data")
		return
	}
	next := r.FormValue("next")

	var (
		identity *auth.Identity
		err      error
	)
	if r.FormValue("mode") == "guest" {
		displayName := strings.TrimSpace(r.FormValue("display_name"))
		if displayName == "" {
			h.renderLogin(w, r, http.StatusOK, next, "Display name is required")
			return
		}
		identity, err = h.authService.CreateGuest(r.Context(), displayName)
	} else {
		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")
		if username == "" || password == "" {
			h.renderLogin(w, r, http.StatusOK, next, "Username and password are required")
			return
		}
		identity, err = h.authService.Login(r.Context(), username, password)
	}

	if err != nil {
		msg := "Something went wrong, please try again"
		if errors.Is(err, auth.ErrInvalidCredentials) {
			msg = "Invalid username or password"
		} else if errors.Is(err, auth.ErrInvalidDisplayName) {
			msg = "Display name is required"
		}
		h.renderLogin(w, r, http.StatusOK, next, msg)
		return
	}

	middleware.SetTokenCookie(w, identity)
	middleware.SetFlash(w, "success", "Welcome, "+identity.User.DisplayName+"!")
	http.Redirect(w, r, h.landing(identity, next), http.StatusSeeOther)
}

// Callback handles GET /auth/callback?token=...&next=...
// It accepts a token issued elsewhere, such as by the API or CLI.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	next := r.URL.Query().Get("next")
	if token == "" {
		http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
		return
	}

	identity, err := h.authService.ValidateToken(r.Context(), token)
	if err != nil {
		middleware.SetFlash(w, "error", "That sign-in link is no longer valid")
		http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
		return
	}

	middleware.SetTokenCookie(w, identity)
	http.Redirect(w, r, h.landing(identity, next), http.StatusSeeOther)
}

// Logout revokes the token and clears the cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if identity := middleware.GetIdentity(r.Context()); identity != nil {
		h.authService.Logout(identity.Token)
	}
	middleware.ClearTokenCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// landing is where a freshly authenticated visitor goes: onboarding first, then next
func (h *AuthHandler) landing(identity *auth.Identity, next string) string {
	if !identity.HasClub() {
		return guard.OnboardingPath
	}
	return guard.SafeNext(next, "/sessions")
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, next, errMsg string) {
	render(w, r, status, view.Login(view.LoginData{
		PageData: pageData(r, "Log in"),
		Next:     next,
		Error:    errMsg,
	}))
}
