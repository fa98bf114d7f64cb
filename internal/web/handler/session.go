package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/services/gate"
	"github.com/mcoot/pokersession/internal/services/ledger"
	"github.com/mcoot/pokersession/internal/services/lifecycle"
	"github.com/mcoot/pokersession/internal/services/session"
	"github.com/mcoot/pokersession/internal/services/stage"
	"github.com/mcoot/pokersession/internal/web/middleware"
	"github.com/mcoot/pokersession/internal/web/view"
)

// SessionHandler handles the session list and stage pages
type SessionHandler struct {
	sessionService *session.Service
	lifecycle      *lifecycle.Controller
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessionService *session.Service, lifecycle *lifecycle.Controller) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		lifecycle:      lifecycle,
	}
}

// List renders the club's sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	sessions, err := h.sessionService.ListSessions(r.Context(), user.ClubID)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, "Could not load sessions")
		return
	}

	rows := make([]view.SessionRow, 0, len(sessions))
	for _, s := range sessions {
		players, err := h.sessionService.ListPlayers(r.Context(), s.ID)
		if err != nil {
			renderError(w, r, http.StatusInternalServerError, "Could not load sessions")
			return
		}
		rows = append(rows, view.SessionRow{ID: s.ID, Name: s.Name, Stage: stage.Of(s, players)})
	}

	render(w, r, http.StatusOK, view.SessionList(view.SessionListData{
		PageData: pageData(r, "Sessions"),
		Sessions: rows,
	}))
}

// Create handles the create session form
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if err := r.ParseForm(); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid form data")
		return
	}

	s, err := h.sessionService.CreateSession(r.Context(), r.FormValue("name"), r.FormValue("currency"), user.ClubID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidSessionName):
			middleware.SetFlash(w, "error", "Session name is required")
		case errors.Is(err, model.ErrInvalidCurrency):
			middleware.SetFlash(w, "error", "Unsupported currency")
		default:
			middleware.SetFlash(w, "error", "Could not create the session")
		}
		http.Redirect(w, r, "/sessions", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/sessions/"+string(s.ID), http.StatusSeeOther)
}

// View renders the stage page for one session
func (h *SessionHandler) View(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(mux.Vars(r)["id"])
	if !h.authorize(w, r, id) {
		return
	}

	snap, err := h.lifecycle.Reload(r.Context(), id)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, "Could not load the session")
		return
	}
	if snap.Session == nil {
		renderError(w, r, http.StatusNotFound, "Session not found")
		return
	}

	render(w, r, http.StatusOK, view.SessionPage(h.pageFor(r, snap)))
}

// StartChipEntry handles the start chip entry button
func (h *SessionHandler) StartChipEntry(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.lifecycle.StartChipEntry, "Chip entry started")
}

// Finalize handles the finalize button
func (h *SessionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.lifecycle.Finalize, "Session finalized")
}

func (h *SessionHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(context.Context, model.SessionID) (*lifecycle.Result, error),
	success string,
) {
	id := model.SessionID(mux.Vars(r)["id"])
	if !h.authorize(w, r, id) {
		return
	}
	back := "/sessions/" + string(id)

	result, err := apply(r.Context(), id)
	switch {
	case errors.Is(err, model.ErrTransitionInProgress):
		middleware.SetFlash(w, "info", "Another change is already being saved")
	case err != nil:
		// Reads "Failed to <transition>: <cause>"; the page also shows the controller's last error
		middleware.SetFlash(w, "error", err.Error())
	case !result.Applied:
		// Cookie values are ASCII only; the page repeats the reason in the visitor's language
		middleware.SetFlash(w, "error", result.Decision.String())
	default:
		middleware.SetFlash(w, "success", success)
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// authorize writes the error page and returns false when the visitor's club can't see the session
func (h *SessionHandler) authorize(w http.ResponseWriter, r *http.Request, id model.SessionID) bool {
	user := middleware.GetUser(r.Context())

	s, err := h.sessionService.GetSession(r.Context(), id)
	if errors.Is(err, model.ErrSessionNotFound) {
		renderError(w, r, http.StatusNotFound, "Session not found")
		return false
	}
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, "Could not load the session")
		return false
	}
	if err := session.CheckAccess(s, user.ClubID); err != nil {
		renderError(w, r, http.StatusForbidden, "This session belongs to another club")
		return false
	}
	return true
}

func (h *SessionHandler) pageFor(r *http.Request, snap *model.Snapshot) view.SessionPageData {
	tag := gate.Match(r.Header.Get("Accept-Language"))
	id := snap.SessionID()
	status := h.lifecycle.Status(id)

	byPlayer := make(map[model.PlayerID]model.PlayerTotals, len(snap.Players))
	for _, t := range ledger.Totals(id, snap.Players, snap.Transactions) {
		byPlayer[t.PlayerID] = t
	}
	rows := make([]view.PlayerRow, len(snap.Players))
	for i, p := range snap.Players {
		t := byPlayer[p.ID]
		rows[i] = view.PlayerRow{Name: p.Name, Buyins: t.Buyins, Cashouts: t.Cashouts, Net: t.Net}
	}

	chipEntry := gate.StartChipEntry(snap)
	finalize := gate.Finalize(snap)

	return view.SessionPageData{
		PageData:       pageData(r, snap.Session.Name),
		Session:        snap.Session,
		Stage:          stage.Derive(snap),
		Players:        rows,
		StartChipEntry: view.GateView{Allowed: chipEntry.Allowed, Message: gate.Message(tag, chipEntry)},
		Finalize:       view.GateView{Allowed: finalize.Allowed, Message: gate.Message(tag, finalize)},
		Writing:        status.Writing,
		LastError:      status.LastError,
		Discrepancy:    ledger.SumSession(id, snap.Transactions).Discrepancy(),
	}
}
