package view

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/mcoot/pokersession/internal/model"
)

// HomeData is the data for the landing page
type HomeData struct {
	PageData
}

// Home renders the landing page
func Home(data HomeData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var p page
		p.raw(`<section data-testid="home"><h1>Poker Session</h1>`)
		p.raw(`<p>Track buy-ins and cash-outs for your home cash game.</p>`)
		if data.User == nil {
			p.raw(`<p><a href="/login" data-testid="login-link">Log in or play as a guest</a></p>`)
		} else if !data.User.HasClub() {
			p.raw(`<p><a href="/join" data-testid="join-link">Join or create a club</a></p>`)
		} else {
			p.raw(`<p><a href="/sessions" data-testid="sessions-link">Your sessions</a></p>`)
		}
		p.raw(`</section>`)
		return p.flush(w)
	})
	return Layout(data.PageData, body)
}

// LoginData is the data for the login page
type LoginData struct {
	PageData
	Next  string
	Error string
}

// Login renders the login and guest forms
func Login(data LoginData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var p page
		p.raw(`<section data-testid="login"><h1>Log in</h1>`)
		if data.Error != "" {
			p.raw(`<p class="error" data-testid="login-error">`)
			p.text(data.Error)
			p.raw(`</p>`)
		}
		p.raw(`<form method="post" action="/login" data-testid="login-form">`)
		p.raw(`<input type="hidden" name="mode" value="account">`)
		p.rawf(`<input type="hidden" name="next" value="%s">`, attr(data.Next))
		p.raw(`<label>Username <input name="username" autocomplete="username"></label>`)
		p.raw(`<label>Password <input type="password" name="password" autocomplete="current-password"></label>`)
		p.raw(`<button type="submit">Log in</button></form>`)

		p.raw(`<form method="post" action="/login" data-testid="guest-form">`)
		p.raw(`<input type="hidden" name="mode" value="guest">`)
		p.rawf(`<input type="hidden" name="next" value="%s">`, attr(data.Next))
		p.raw(`<label>Display name <input name="display_name" maxlength="50"></label>`)
		p.raw(`<button type="submit">Continue as guest</button></form></section>`)
		return p.flush(w)
	})
	return Layout(data.PageData, body)
}

// JoinData is the data for the onboarding page
type JoinData struct {
	PageData
	Error string
}

// Join renders the join-or-create club forms
func Join(data JoinData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var p page
		p.raw(`<section data-testid="join"><h1>Join a club</h1>`)
		if data.Error != "" {
			p.raw(`<p class="error" data-testid="join-error">`)
			p.text(data.Error)
			p.raw(`</p>`)
		}
		p.raw(`<form method="post" action="/join" data-testid="join-form">`)
		p.raw(`<input type="hidden" name="action" value="join">`)
		p.raw(`<label>Join code <input name="join_code" maxlength="6"></label>`)
		p.raw(`<button type="submit">Join</button></form>`)
		p.raw(`<form method="post" action="/join" data-testid="create-club-form">`)
		p.raw(`<input type="hidden" name="action" value="create">`)
		p.raw(`<label>Club name <input name="name"></label>`)
		p.raw(`<button type="submit">Create club</button></form></section>`)
		return p.flush(w)
	})
	return Layout(data.PageData, body)
}

// AccountData is the data for the account page
type AccountData struct {
	PageData
	Club *model.Club
}

// Account renders the identity and club membership
func Account(data AccountData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var p page
		p.raw(`<section data-testid="account"><h1>Account</h1><dl>`)
		p.raw(`<dt>Name</dt><dd data-testid="account-name">`)
		p.text(data.User.DisplayName)
		p.raw(`</dd>`)
		if data.User.Username != "" {
			p.raw(`<dt>Username</dt><dd>`)
			p.text(data.User.Username)
			p.raw(`</dd>`)
		}
		if data.Club != nil {
			p.raw(`<dt>Club</dt><dd data-testid="account-club">`)
			p.text(data.Club.Name)
			p.raw(`</dd><dt>Join code</dt><dd data-testid="account-join-code">`)
			p.text(data.Club.JoinCode)
			p.raw(`</dd>`)
		}
		p.raw(`</dl></section>`)
		return p.flush(w)
	})
	return Layout(data.PageData, body)
}

// SessionListData is the data for the club's session list
type SessionListData struct {
	PageData
	Sessions []SessionRow
}

// SessionRow is one entry of the session list
type SessionRow struct {
	ID    model.SessionID
	Name  string
	Stage model.Stage
}

// SessionList renders the club's sessions and the create form
func SessionList(data SessionListData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var p page
		p.raw(`<section data-testid="sessions"><h1>Sessions</h1>`)
		if len(data.Sessions) == 0 {
			p.raw(`<p data-testid="no-sessions">No sessions yet.</p>`)
		} else {
			p.raw(`<ul>`)
			for _, s := range data.Sessions {
				p.rawf(`<li data-testid="session-row" data-stage="%s"><a href="/sessions/%s">`, attr(string(s.Stage)), attr(string(s.ID)))
				p.text(s.Name)
				p.raw(`</a></li>`)
			}
			p.raw(`</ul>`)
		}
		p.raw(`<form method="post" action="/sessions" data-testid="create-session-form">`)
		p.raw(`<label>Name <input name="name" maxlength="100"></label>`)
		p.raw(`<label>Currency <select name="currency">`)
		for _, c := range model.ValidCurrencies() {
			p.rawf(`<option value="%s">%s %s</option>`, c, c, attr(c.Symbol()))
		}
		p.raw(`</select></label><button type="submit">Create session</button></form></section>`)
		return p.flush(w)
	})
	return Layout(data.PageData, body)
}

// GateView is a rendered gate decision
type GateView struct {
	Allowed bool
	Message string
}

// PlayerRow is one line of the session roster
type PlayerRow struct {
	Name     string
	Buyins   float64
	Cashouts float64
	Net      float64
}

// SessionPageData is the data for a session's stage page
type SessionPageData struct {
	PageData
	Session        *model.Session
	Stage          model.Stage
	Players        []PlayerRow
	StartChipEntry GateView
	Finalize       GateView
	Writing        bool
	LastError      string
	Discrepancy    float64
}

func money(c model.Currency, amount float64) string {
	return c.Symbol() + strconv.FormatFloat(amount, 'f', 2, 64)
}

// SessionPage renders the derived stage, the roster and the transition controls
func SessionPage(data SessionPageData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		s := data.Session
		var p page
		p.rawf(`<section data-testid="session" data-session-id="%s"><h1>`, attr(string(s.ID)))
		p.text(s.Name)
		p.rawf(`</h1><p>Stage: <strong data-testid="stage" data-stage="%s">`, attr(string(data.Stage)))
		p.text(stageLabel(data.Stage))
		p.raw(`</strong></p>`)

		if data.LastError != "" {
			p.raw(`<p class="error" data-testid="last-error">`)
			p.text(data.LastError)
			p.raw(`</p>`)
		}

		p.raw(`<table data-testid="roster"><thead><tr><th>Player</th><th>Buy-ins</th><th>Cash-outs</th><th>Net</th></tr></thead><tbody>`)
		for _, row := range data.Players {
			p.raw(`<tr data-testid="player-row"><td>`)
			p.text(row.Name)
			p.raw(`</td><td>`)
			p.text(money(s.Currency, row.Buyins))
			p.raw(`</td><td>`)
			p.text(money(s.Currency, row.Cashouts))
			p.raw(`</td><td>`)
			p.text(money(s.Currency, row.Net))
			p.raw(`</td></tr>`)
		}
		p.raw(`</tbody></table>`)

		if data.Stage == model.StageChipEntry || data.Stage == model.StageFinalized {
			p.raw(`<p data-testid="discrepancy">Discrepancy: `)
			p.text(money(s.Currency, data.Discrepancy))
			p.raw(`</p>`)
		}

		p.transitionForm(s.ID, "chip-entry", "Start chip entry", data.StartChipEntry, data.Writing)
		p.transitionForm(s.ID, "finalize", "Finalize", data.Finalize, data.Writing)
		p.raw(`</section>`)
		return p.flush(w)
	})
	return Layout(data.PageData, body)
}

func (p *page) transitionForm(id model.SessionID, action, label string, g GateView, writing bool) {
	p.rawf(`<form method="post" action="/sessions/%s/%s" data-testid="%s-form">`, attr(string(id)), action, action)
	disabled := ""
	if !g.Allowed || writing {
		disabled = " disabled"
	}
	p.rawf(`<button type="submit"%s>`, disabled)
	p.text(label)
	p.raw(`</button>`)
	if !g.Allowed && g.Message != "" {
		p.rawf(`<span class="reason" data-testid="%s-reason">`, action)
		p.text(g.Message)
		p.raw(`</span>`)
	}
	p.raw(`</form>`)
}

func stageLabel(s model.Stage) string {
	switch s {
	case model.StagePlayerSetup:
		return "Player setup"
	case model.StageBuyins:
		return "Buy-ins"
	case model.StageChipEntry:
		return "Chip entry"
	case model.StageReview:
		return "Review"
	case model.StageFinalized:
		return "Finalized"
	default:
		return string(s)
	}
}
