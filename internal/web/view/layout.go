// Package view renders the guarded HTML pages as templ components.
package view

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/mcoot/pokersession/internal/model"
)

// FlashMessage is a one-shot notice shown on the next page
type FlashMessage struct {
	Type    string // "success", "error" or "info"
	Message string
}

// PageData is common to every page
type PageData struct {
	Title string
	User  *model.User
	Flash *FlashMessage

	// Lang is the BCP 47 tag of the page language; Hebrew pages render right to left
	Lang string
}

func (p PageData) dir() string {
	if strings.HasPrefix(p.Lang, "he") {
		return "rtl"
	}
	return "ltr"
}

// page accumulates escaped markup
type page struct {
	b strings.Builder
}

func (p *page) raw(s string) {
	p.b.WriteString(s)
}

func (p *page) rawf(format string, args ...any) {
	fmt.Fprintf(&p.b, format, args...)
}

// text writes user-controlled content
func (p *page) text(s string) {
	p.b.WriteString(templ.EscapeString(s))
}

func (p *page) flush(w io.Writer) error {
	_, err := io.WriteString(w, p.b.String())
	return err
}

func attr(s string) string {
	return templ.EscapeString(s)
}

// Layout wraps body in the document shell
func Layout(data PageData, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		lang := data.Lang
		if lang == "" {
			lang = "en"
		}

		var p page
		p.rawf(`<!DOCTYPE html><html lang="%s" dir="%s"><head><meta charset="utf-8">`, attr(lang), data.dir())
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>`)
		p.text(data.Title)
		p.raw(` | Poker Session</title></head><body><nav><a href="/">Poker Session</a>`)
		if data.User != nil {
			p.raw(` <span data-testid="nav-user">`)
			p.text(data.User.DisplayName)
			p.raw(`</span> <a href="/sessions">Sessions</a> <a href="/account">Account</a>`)
			p.raw(` <form method="post" action="/logout" class="inline"><button type="submit">Log out</button></form>`)
		} else {
			p.raw(` <a href="/login">Log in</a>`)
		}
		p.raw(`</nav>`)
		if data.Flash != nil {
			p.rawf(`<div class="flash flash-%s" data-testid="flash">`, attr(data.Flash.Type))
			p.text(data.Flash.Message)
			p.raw(`</div>`)
		}
		p.raw(`<main>`)
		if err := p.flush(w); err != nil {
			return err
		}

		if err := body.Render(ctx, w); err != nil {
			return err
		}

		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// Placeholder is rendered while identity is still being resolved.
// It shows nothing that depends on who the visitor is.
func Placeholder() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta http-equiv="refresh" content="2"><title>Loading | Poker Session</title></head>`+
			`<body><main data-testid="placeholder"><p>Loading…</p></main></body></html>`)
		return err
	})
}

// ErrorPage renders a plain error message
func ErrorPage(data PageData, status int, message string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var p page
		p.rawf(`<section data-testid="error" data-status="%d"><h1>`, status)
		p.text(data.Title)
		p.raw(`</h1><p>`)
		p.text(message)
		p.raw(`</p><p><a href="/">Return to home</a></p></section>`)
		return p.flush(w)
	})
	return Layout(data, body)
}
