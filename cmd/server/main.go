package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcoot/pokersession/internal/api"
	"github.com/mcoot/pokersession/internal/config"
	"github.com/mcoot/pokersession/internal/factory"
	"github.com/mcoot/pokersession/internal/web"
)

const revocationSweepInterval = 10 * time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, tokens will not survive a restart")
	}

	app, err := factory.New(factory.ConfigFrom(cfg, logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close application", slog.String("error", err.Error()))
		}
	}()

	var health api.Pinger
	if p, ok := app.Storage.(api.Pinger); ok {
		health = p
	}

	apiRouter := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		ClubService:    app.ClubService,
		SessionService: app.SessionService,
		LedgerService:  app.LedgerService,
		Lifecycle:      app.Lifecycle,
		Health:         health,
	})

	webRouter := web.NewRouter(web.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		ClubService:    app.ClubService,
		SessionService: app.SessionService,
		Lifecycle:      app.Lifecycle,
		StaticDir:      cfg.StaticDir,
	})

	// Combine routers
	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("/", webRouter)

	server := api.NewServer(mux, api.ServerConfigFrom(cfg), logger)
	if err := server.Listen(); err != nil {
		logger.Error("failed to bind", slog.String("error", err.Error()))
		return 1
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweepRevocations(ctx, app)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.StorageType),
	)

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			return 1
		}
	}

	logger.Info("server stopped")
	return 0
}

// sweepRevocations drops revoked tokens once they would have expired anyway
func sweepRevocations(ctx context.Context, app *factory.App) {
	ticker := time.NewTicker(revocationSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.AuthService.CleanRevoked()
		}
	}
}
