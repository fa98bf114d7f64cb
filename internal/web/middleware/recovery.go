package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/pokersession/internal/middleware"
	"github.com/mcoot/pokersession/internal/web/view"
)

// Recovery creates panic recovery middleware for the web interface.
// The visitor gets the normal error page; the panic itself is only logged.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, r *http.Request, _ any) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusInternalServerError)
		page := view.ErrorPage(view.PageData{Title: "Error"}, http.StatusInternalServerError,
			"Something went wrong. Please try again later.")
		_ = page.Render(r.Context(), w)
	})
}
