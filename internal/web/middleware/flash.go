package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/mcoot/pokersession/internal/web/view"
)

const (
	flashCookieName = "flash"
	flashContextKey = contextKey("flash")

	maxFlashLength = 200
)

var flashTypes = map[string]bool{"success": true, "error": true, "info": true}

// GetFlash retrieves the flash message from the request context
// Returns nil if no flash message is set
func GetFlash(ctx context.Context) *view.FlashMessage {
	flash, _ := ctx.Value(flashContextKey).(*view.FlashMessage)
	return flash
}

// SetFlash queues a notice for the page the redirect lands on.
// The message is query-escaped so any text survives the cookie.
func SetFlash(w http.ResponseWriter, flashType, message string) {
	if !flashTypes[flashType] {
		flashType = "info"
	}
	if len(message) > maxFlashLength {
		cut := maxFlashLength
		for cut > 0 && !utf8.RuneStart(message[cut]) {
			cut--
		}
		message = message[:cut]
	}
	http.SetCookie(w, flashCookie(flashType+":"+url.QueryEscape(message), 60))
}

// Flash returns middleware that reads and clears flash messages
func Flash() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var flash *view.FlashMessage

			if cookie, err := r.Cookie(flashCookieName); err == nil && cookie.Value != "" {
				flash = parseFlash(cookie.Value)
				http.SetCookie(w, flashCookie("", -1))
			}

			ctx := context.WithValue(r.Context(), flashContextKey, flash)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func flashCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     flashCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// parseFlash drops anything SetFlash could not have written
func parseFlash(value string) *view.FlashMessage {
	kind, raw, ok := strings.Cut(value, ":")
	if !ok || !flashTypes[kind] {
		return nil
	}
	message, err := url.QueryUnescape(raw)
	if err != nil || message == "" {
		return nil
	}
	return &view.FlashMessage{Type: kind, Message: message}
}
