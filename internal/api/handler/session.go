package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/pokersession/internal/api/apierr"
	"github.com/mcoot/pokersession/internal/api/middleware"
	"github.com/mcoot/pokersession/internal/api/request"
	"github.com/mcoot/pokersession/internal/api/response"
	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/services/gate"
	"github.com/mcoot/pokersession/internal/services/ledger"
	"github.com/mcoot/pokersession/internal/services/lifecycle"
	"github.com/mcoot/pokersession/internal/services/session"
)

// SessionHandler handles session, roster, ledger and stage endpoints
type SessionHandler struct {
	sessionService *session.Service
	ledgerService  *ledger.Service
	lifecycle      *lifecycle.Controller
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(
	sessionService *session.Service,
	ledgerService *ledger.Service,
	lifecycle *lifecycle.Controller,
) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		ledgerService:  ledgerService,
		lifecycle:      lifecycle,
	}
}

func sessionIDFrom(r *http.Request) model.SessionID {
	return model.SessionID(mux.Vars(r)["id"])
}

// authorize loads the session and checks the caller's club may see it
func (h *SessionHandler) authorize(r *http.Request, id model.SessionID) (*model.Session, error) {
	identity := middleware.MustGetIdentity(r.Context())

	s, err := h.sessionService.GetSession(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := session.CheckAccess(s, identity.User.ClubID); err != nil {
		return nil, err
	}
	return s, nil
}

// snapshot reloads the session through the lifecycle controller so reads and
// transitions share one "latest" view
func (h *SessionHandler) snapshot(r *http.Request) (*model.Snapshot, error) {
	id := sessionIDFrom(r)
	if _, err := h.authorize(r, id); err != nil {
		return nil, err
	}

	snap, err := h.lifecycle.Reload(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if snap.Session == nil {
		return nil, model.ErrSessionNotFound
	}
	return snap, nil
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	var req request.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	s, err := h.sessionService.CreateSession(r.Context(), req.Name, req.Currency, identity.User.ClubID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, "/api/v1/sessions/"+string(s.ID), response.SessionFromModel(s))
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	sessions, err := h.sessionService.ListSessions(r.Context(), identity.User.ClubID)
	if err != nil {
		WriteError(w, err)
		return
	}

	resp := make([]response.Session, len(sessions))
	for i, s := range sessions {
		resp[i] = response.SessionFromModel(s)
	}
	response.JSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	tag := gate.Match(r.Header.Get("Accept-Language"))
	status := h.lifecycle.Status(snap.SessionID())
	response.JSON(w, http.StatusOK, response.SessionDetailFromSnapshot(tag, snap, status))
}

// GetStage handles GET /api/v1/sessions/{id}/stage
func (h *SessionHandler) GetStage(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	tag := gate.Match(r.Header.Get("Accept-Language"))
	status := h.lifecycle.Status(snap.SessionID())
	response.JSON(w, http.StatusOK, response.StageFromSnapshot(tag, snap, status))
}

// AddPlayer handles POST /api/v1/sessions/{id}/players
func (h *SessionHandler) AddPlayer(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())
	id := sessionIDFrom(r)

	var req request.AddPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if _, err := h.authorize(r, id); err != nil {
		WriteError(w, err)
		return
	}

	var profileID *model.UserID
	if req.LinkSelf {
		uid := identity.UserID
		profileID = &uid
	}

	p, err := h.sessionService.AddPlayer(r.Context(), id, req.Name, profileID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, "/api/v1/sessions/"+string(id)+"/players/"+string(p.ID),
		response.PlayerFromModel(p, model.PlayerTotals{PlayerID: p.ID}))
}

// RemovePlayer handles DELETE /api/v1/sessions/{id}/players/{player_id}
func (h *SessionHandler) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	id := sessionIDFrom(r)
	playerID := model.PlayerID(mux.Vars(r)["player_id"])

	if _, err := h.authorize(r, id); err != nil {
		WriteError(w, err)
		return
	}

	if err := h.sessionService.RemovePlayer(r.Context(), id, playerID); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// RecordTransaction handles POST /api/v1/sessions/{id}/transactions
func (h *SessionHandler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	id := sessionIDFrom(r)

	var req request.RecordTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.PlayerID == "" {
		WriteError(w, NewInvalidRequestError("player_id is required"))
		return
	}

	if _, err := h.authorize(r, id); err != nil {
		WriteError(w, err)
		return
	}

	txn, err := h.ledgerService.Record(r.Context(), id, model.PlayerID(req.PlayerID), model.TransactionType(req.Type), req.Amount)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.TransactionFromModel(txn))
}

// ListTransactions handles GET /api/v1/sessions/{id}/transactions
func (h *SessionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id := sessionIDFrom(r)

	if _, err := h.authorize(r, id); err != nil {
		WriteError(w, err)
		return
	}

	txns, err := h.ledgerService.ListTransactions(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.TransactionsFromModel(txns))
}

// StartChipEntry handles POST /api/v1/sessions/{id}/chip-entry
func (h *SessionHandler) StartChipEntry(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.lifecycle.StartChipEntry)
}

// Finalize handles POST /api/v1/sessions/{id}/finalize
func (h *SessionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.lifecycle.Finalize)
}

type transitionFunc func(ctx context.Context, id model.SessionID) (*lifecycle.Result, error)

// transition applies a guarded stage change. Denials are 409 GATE_DENIED with the
// reason rendered in the caller's language.
func (h *SessionHandler) transition(w http.ResponseWriter, r *http.Request, apply transitionFunc) {
	id := sessionIDFrom(r)
	if _, err := h.authorize(r, id); err != nil {
		WriteError(w, err)
		return
	}

	result, err := apply(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	tag := gate.Match(r.Header.Get("Accept-Language"))
	if !result.Applied {
		d := result.Decision
		WriteError(w, apierr.NewGateDeniedError(string(d.Reason), gate.Message(tag, d), response.PlayerIDs(d.Missing)))
		return
	}

	status := h.lifecycle.Status(id)
	response.JSON(w, http.StatusOK, response.TransitionResponse{
		Applied: true,
		Stage:   string(result.Stage),
		Session: response.SessionDetailFromSnapshot(tag, result.Snapshot, status),
	})
}
