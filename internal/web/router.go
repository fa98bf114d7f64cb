package web

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	sharedmw "github.com/mcoot/pokersession/internal/middleware"
	"github.com/mcoot/pokersession/internal/services/auth"
	"github.com/mcoot/pokersession/internal/services/club"
	"github.com/mcoot/pokersession/internal/services/lifecycle"
	"github.com/mcoot/pokersession/internal/services/session"
	"github.com/mcoot/pokersession/internal/web/guard"
	"github.com/mcoot/pokersession/internal/web/handler"
	"github.com/mcoot/pokersession/internal/web/middleware"
)

// RouterConfig holds configuration for the web router
type RouterConfig struct {
	Logger         *slog.Logger
	AuthService    *auth.Service
	ClubService    *club.Service
	SessionService *session.Service
	Lifecycle      *lifecycle.Controller
	StaticDir      string // Path to static files directory
}

// NewRouter creates a new web router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	placeholder := http.HandlerFunc(handler.Placeholder)

	// Every page passes both guards in order: identity first, then onboarding
	r.Use(sharedmw.Logging(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Flash())
	r.Use(middleware.Resolve(cfg.AuthService, cfg.Logger))
	r.Use(guard.Identity(middleware.StateResolver, placeholder))
	r.Use(guard.Onboarding(placeholder))

	homeHandler := handler.NewHomeHandler()
	authHandler := handler.NewAuthHandler(cfg.AuthService)
	clubHandler := handler.NewClubHandler(cfg.ClubService)
	sessionHandler := handler.NewSessionHandler(cfg.SessionService, cfg.Lifecycle)

	// Static files
	if cfg.StaticDir != "" {
		staticHandler := http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir)))
		r.PathPrefix("/static/").Handler(staticHandler)
	}

	r.HandleFunc("/", homeHandler.Home).Methods(http.MethodGet)
	r.HandleFunc(guard.LoginPath, authHandler.LoginPage).Methods(http.MethodGet)
	r.HandleFunc(guard.LoginPath, authHandler.Login).Methods(http.MethodPost)
	r.HandleFunc(guard.AuthCallbackPath, authHandler.Callback).Methods(http.MethodGet)
	r.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodPost)

	r.HandleFunc(guard.OnboardingPath, clubHandler.JoinPage).Methods(http.MethodGet)
	r.HandleFunc(guard.OnboardingPath, clubHandler.Join).Methods(http.MethodPost)
	r.HandleFunc("/account", clubHandler.Account).Methods(http.MethodGet)

	r.HandleFunc("/sessions", sessionHandler.List).Methods(http.MethodGet)
	r.HandleFunc("/sessions", sessionHandler.Create).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", sessionHandler.View).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/chip-entry", sessionHandler.StartChipEntry).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/finalize", sessionHandler.Finalize).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(handler.NotFound)

	return r
}
