package handler

import (
	"net/http"

	"github.com/a-h/templ"

	"github.com/mcoot/pokersession/internal/services/gate"
	"github.com/mcoot/pokersession/internal/web/middleware"
	"github.com/mcoot/pokersession/internal/web/view"
)

// pageData builds the layout data shared by every page
func pageData(r *http.Request, title string) view.PageData {
	return view.PageData{
		Title: title,
		User:  middleware.GetUser(r.Context()),
		Flash: middleware.GetFlash(r.Context()),
		Lang:  gate.Match(r.Header.Get("Accept-Language")).String(),
	}
}

func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	// Headers are already sent, so a failed render can only truncate the page
	_ = c.Render(r.Context(), w)
}

func renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render(w, r, status, view.ErrorPage(pageData(r, http.StatusText(status)), status, message))
}

// Placeholder renders the neutral page shown while identity is unresolved
func Placeholder(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "2")
	render(w, r, http.StatusServiceUnavailable, view.Placeholder())
}

// NotFound renders the 404 page
func NotFound(w http.ResponseWriter, r *http.Request) {
	renderError(w, r, http.StatusNotFound, "Page not found")
}
