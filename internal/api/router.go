package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/pokersession/internal/api/apierr"
	"github.com/mcoot/pokersession/internal/api/handler"
	"github.com/mcoot/pokersession/internal/api/middleware"
	"github.com/mcoot/pokersession/internal/api/response"
	sharedmw "github.com/mcoot/pokersession/internal/middleware"
	"github.com/mcoot/pokersession/internal/services/auth"
	"github.com/mcoot/pokersession/internal/services/club"
	"github.com/mcoot/pokersession/internal/services/ledger"
	"github.com/mcoot/pokersession/internal/services/lifecycle"
	"github.com/mcoot/pokersession/internal/services/session"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	AuthService    *auth.Service
	ClubService    *club.Service
	SessionService *session.Service
	LedgerService  *ledger.Service
	Lifecycle      *lifecycle.Controller

	// Health is optional; when set, /health pings it
	Health Pinger
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	userHandler := handler.NewUserHandler(cfg.AuthService)
	clubHandler := handler.NewClubHandler(cfg.ClubService)
	sessionHandler := handler.NewSessionHandler(cfg.SessionService, cfg.LedgerService, cfg.Lifecycle)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := sharedmw.Logging(cfg.Logger)
	// A panic answers with the same JSON envelope as every other failure
	recoveryMiddleware := sharedmw.Recovery(cfg.Logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError())
	})

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(loggingMiddleware)
	api.Use(recoveryMiddleware)

	// User routes (no auth required for creating identities)
	api.HandleFunc("/users/guest", userHandler.CreateGuest).Methods(http.MethodPost)
	api.HandleFunc("/users/register", userHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/users/login", userHandler.Login).Methods(http.MethodPost)

	// Protected user routes
	users := api.PathPrefix("/users").Subrouter()
	users.Use(authMiddleware)
	users.HandleFunc("/me", userHandler.GetMe).Methods(http.MethodGet)
	users.HandleFunc("/logout", userHandler.Logout).Methods(http.MethodPost)

	// Club routes are the onboarding step, so they need identity but not membership
	clubs := api.PathPrefix("/clubs").Subrouter()
	clubs.Use(authMiddleware)
	clubs.HandleFunc("", clubHandler.Create).Methods(http.MethodPost)
	clubs.HandleFunc("/join", clubHandler.Join).Methods(http.MethodPost)
	clubs.HandleFunc("/me", clubHandler.GetMine).Methods(http.MethodGet)

	// Session routes (auth + onboarding)
	sessions := api.PathPrefix("/sessions").Subrouter()
	sessions.Use(authMiddleware)
	sessions.Use(middleware.RequireClub)
	sessions.HandleFunc("", sessionHandler.Create).Methods(http.MethodPost)
	sessions.HandleFunc("", sessionHandler.List).Methods(http.MethodGet)
	sessions.HandleFunc("/{id}", sessionHandler.Get).Methods(http.MethodGet)
	sessions.HandleFunc("/{id}/stage", sessionHandler.GetStage).Methods(http.MethodGet)
	sessions.HandleFunc("/{id}/players", sessionHandler.AddPlayer).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/players/{player_id}", sessionHandler.RemovePlayer).Methods(http.MethodDelete)
	sessions.HandleFunc("/{id}/transactions", sessionHandler.RecordTransaction).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/transactions", sessionHandler.ListTransactions).Methods(http.MethodGet)
	sessions.HandleFunc("/{id}/chip-entry", sessionHandler.StartChipEntry).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/finalize", sessionHandler.Finalize).Methods(http.MethodPost)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler(cfg.Health)).Methods(http.MethodGet)

	return r
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				response.JSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"error":  err.Error(),
				})
				return
			}
		}
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
