package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/pokersession/internal/api"
	"github.com/mcoot/pokersession/internal/api/apierr"
	"github.com/mcoot/pokersession/internal/api/response"
	"github.com/mcoot/pokersession/internal/factory"
	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/services/lifecycle"
	"github.com/mcoot/pokersession/internal/storage"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.App
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

// newTestServerWith lets a test wrap the storage the lifecycle controller writes through
func newTestServerWith(t *testing.T, wrap func(storage.Storage) storage.Storage) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// API tests are integration tests - use production factory with real clock and ids
	app, err := factory.New(factory.Config{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	if wrap != nil {
		app.Lifecycle = lifecycle.NewController(wrap(app.Storage), app.Clock, app.Publisher, logger)
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		ClubService:    app.ClubService,
		SessionService: app.SessionService,
		LedgerService:  app.LedgerService,
		Lifecycle:      app.Lifecycle,
	})

	return &testServer{
		handler: router,
		app:     app,
	}
}

func (ts *testServer) request(method, path string, body any, token string, headers ...string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestCreateGuest(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/users/guest", map[string]string{"display_name": "Alice"}, "")
	assert.Equal(t, http.StatusCreated, rr.Code)

	resp := decode[response.AuthResponse](t, rr)
	assert.Equal(t, "Alice", resp.User.DisplayName)
	assert.True(t, resp.User.IsGuest)
	assert.Nil(t, resp.User.ClubID)
	assert.NotEmpty(t, resp.Token)
}

func TestRegisterLoginAndLogout(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/users/register", map[string]string{
		"username":     "alice",
		"password":     "secret123",
		"display_name": "Alice",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.False(t, decode[response.AuthResponse](t, rr).User.IsGuest)

	rr = ts.request(http.MethodPost, "/api/v1/users/register", map[string]string{
		"username":     "alice",
		"password":     "secret123",
		"display_name": "Alice again",
	}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "alice",
		"password": "secret123",
	}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	token := decode[response.AuthResponse](t, rr).Token

	rr = ts.request(http.MethodGet, "/api/v1/users/me", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice", decode[response.User](t, rr).Username)

	rr = ts.request(http.MethodPost, "/api/v1/users/logout", nil, token)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/users/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/sessions", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	resp := decode[apierr.ErrorResponse](t, rr)
	assert.Equal(t, apierr.CodeUnauthorized, resp.Error.Code)
}

func TestSessionsRequireClub(t *testing.T) {
	ts := newTestServer(t)
	token := createGuest(t, ts, "Nomad")

	rr := ts.request(http.MethodGet, "/api/v1/sessions", nil, token)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/clubs/me", nil, token)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestClubJoinFlow(t *testing.T) {
	ts := newTestServer(t)
	host := createGuest(t, ts, "Host")

	rr := ts.request(http.MethodPost, "/api/v1/clubs", map[string]string{"name": "Home game"}, host)
	require.Equal(t, http.StatusCreated, rr.Code)
	club := decode[response.Club](t, rr)
	assert.Len(t, club.JoinCode, 6)

	guest := createGuest(t, ts, "Guest")
	rr = ts.request(http.MethodPost, "/api/v1/clubs/join", map[string]string{"join_code": "nope00"}, guest)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/clubs/join", map[string]string{"join_code": club.JoinCode}, guest)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/clubs/me", nil, guest)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, club.ID, decode[response.Club](t, rr).ID)

	// Same token now passes the onboarding check
	rr = ts.request(http.MethodGet, "/api/v1/sessions", nil, guest)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestChipEntryGate(t *testing.T) {
	ts := newTestServer(t)
	token := createMember(t, ts, "Dealer")
	sessionID := createSession(t, ts, token, "Friday")

	// No players yet
	rr := ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/chip-entry", nil, token)
	require.Equal(t, http.StatusConflict, rr.Code)
	denied := decode[apierr.ErrorResponse](t, rr)
	assert.Equal(t, apierr.CodeGateDenied, denied.Error.Code)
	assert.Equal(t, "no_players", denied.Error.Reason)
	assert.Equal(t, "add at least one player first", denied.Error.Message)

	alice := addPlayer(t, ts, token, sessionID, "Alice")
	bob := addPlayer(t, ts, token, sessionID, "Bob")
	recordTxn(t, ts, token, sessionID, alice, "buyin", 100)

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/chip-entry", nil, token)
	require.Equal(t, http.StatusConflict, rr.Code)
	denied = decode[apierr.ErrorResponse](t, rr)
	assert.Equal(t, "players_missing_buyins", denied.Error.Reason)
	assert.Equal(t, "1 player missing buy-ins", denied.Error.Message)
	assert.Equal(t, []string{bob}, denied.Error.Missing)

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/chip-entry", nil, token, "Accept-Language", "he-IL,he;q=0.9")
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "שחקן אחד ללא קנייה", decode[apierr.ErrorResponse](t, rr).Error.Message)

	rr = ts.request(http.MethodGet, "/api/v1/sessions/"+sessionID+"/stage", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	st := decode[response.StageResponse](t, rr)
	assert.Equal(t, "buyins", st.Stage)
	assert.False(t, st.Gates.StartChipEntry.Allowed)
	assert.Equal(t, "chip_entry_not_started", st.Gates.Finalize.Reason)

	recordTxn(t, ts, token, sessionID, bob, "buyin", 100)

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/chip-entry", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	applied := decode[response.TransitionResponse](t, rr)
	assert.True(t, applied.Applied)
	assert.Equal(t, "chip_entry", applied.Stage)
	assert.NotNil(t, applied.Session.Session.ChipEntryStartedAt)
	assert.True(t, applied.Session.Gates.Finalize.Allowed)

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/chip-entry", nil, token)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "chip_entry_already_started", decode[apierr.ErrorResponse](t, rr).Error.Reason)
}

// brokenChipEntry fails every chip entry write
type brokenChipEntry struct {
	storage.Storage
}

func (b brokenChipEntry) SetChipEntryStarted(context.Context, model.SessionID, time.Time) error {
	return errors.New("disk full")
}

func TestChipEntryWriteFailureReportsCause(t *testing.T) {
	ts := newTestServerWith(t, func(s storage.Storage) storage.Storage { return brokenChipEntry{s} })
	token := createMember(t, ts, "Dealer")
	sessionID := createSession(t, ts, token, "Friday")
	alice := addPlayer(t, ts, token, sessionID, "Alice")
	recordTxn(t, ts, token, sessionID, alice, "buyin", 100)

	rr := ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/chip-entry", nil, token)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	failed := decode[apierr.ErrorResponse](t, rr)
	assert.Equal(t, apierr.CodeTransitionFailed, failed.Error.Code)
	assert.Equal(t, "Failed to start chip entry: disk full", failed.Error.Message)

	rr = ts.request(http.MethodGet, "/api/v1/sessions/"+sessionID+"/stage", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "buyins", decode[response.StageResponse](t, rr).Stage)
}

// panickingChipEntry blows up inside the chip entry write
type panickingChipEntry struct {
	storage.Storage
}

func (p panickingChipEntry) SetChipEntryStarted(context.Context, model.SessionID, time.Time) error {
	panic("storage exploded")
}

func TestPanicAnswersWithErrorEnvelope(t *testing.T) {
	ts := newTestServerWith(t, func(s storage.Storage) storage.Storage { return panickingChipEntry{s} })
	token := createMember(t, ts, "Dealer")
	sessionID := createSession(t, ts, token, "Friday")
	alice := addPlayer(t, ts, token, sessionID, "Alice")
	recordTxn(t, ts, token, sessionID, alice, "buyin", 100)

	rr := ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/chip-entry", nil, token)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	failed := decode[apierr.ErrorResponse](t, rr)
	assert.Equal(t, apierr.CodeInternalError, failed.Error.Code)
	assert.Equal(t, "Internal server error", failed.Error.Message)
}

func TestPlayersCannotJoinAfterChipEntry(t *testing.T) {
	ts := newTestServer(t)
	token := createMember(t, ts, "Dealer")
	sessionID := createSession(t, ts, token, "Friday")
	alice := addPlayer(t, ts, token, sessionID, "Alice")
	recordTxn(t, ts, token, sessionID, alice, "buyin", 100)

	rr := ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/chip-entry", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/players", map[string]string{"name": "Latecomer"}, token)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeChipEntryStarted, decode[apierr.ErrorResponse](t, rr).Error.Code)

	rr = ts.request(http.MethodGet, "/api/v1/sessions/"+sessionID, nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[response.SessionDetail](t, rr).Players, 1)
}

func TestFullSessionFlow(t *testing.T) {
	ts := newTestServer(t)
	token := createMember(t, ts, "Dealer")
	sessionID := createSession(t, ts, token, "Saturday")

	alice := addPlayer(t, ts, token, sessionID, "Alice")
	bob := addPlayer(t, ts, token, sessionID, "Bob")
	recordTxn(t, ts, token, sessionID, alice, "buyin", 100)
	recordTxn(t, ts, token, sessionID, bob, "buyin", 100)
	recordTxn(t, ts, token, sessionID, bob, "buyin", 50)

	rr := ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/chip-entry", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)

	recordTxn(t, ts, token, sessionID, alice, "cashout", 180)
	recordTxn(t, ts, token, sessionID, bob, "cashout", 70)

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/finalize", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "finalized", decode[response.TransitionResponse](t, rr).Stage)

	rr = ts.request(http.MethodGet, "/api/v1/sessions/"+sessionID, nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	detail := decode[response.SessionDetail](t, rr)
	assert.Equal(t, "finalized", detail.Stage)
	require.Len(t, detail.Players, 2)
	assert.Equal(t, "Alice", detail.Players[0].Name)
	assert.InDelta(t, 80, detail.Players[0].Net, 1e-9)
	assert.InDelta(t, -80, detail.Players[1].Net, 1e-9)
	assert.InDelta(t, 250, detail.Totals.Buyins, 1e-9)
	assert.InDelta(t, 0, detail.Totals.Discrepancy, 1e-9)
	assert.Len(t, detail.Transactions, 5)

	// Locked after finalization
	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/transactions", map[string]any{
		"player_id": alice, "type": "buyin", "amount": 10,
	}, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeSessionFinalized, decode[apierr.ErrorResponse](t, rr).Error.Code)

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/finalize", nil, token)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "already_finalized", decode[apierr.ErrorResponse](t, rr).Error.Reason)
}

func TestTransactionValidation(t *testing.T) {
	ts := newTestServer(t)
	token := createMember(t, ts, "Dealer")
	sessionID := createSession(t, ts, token, "Game")
	alice := addPlayer(t, ts, token, sessionID, "Alice")

	rr := ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/transactions", map[string]any{
		"player_id": alice, "type": "buyin", "amount": -5,
	}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidAmount, decode[apierr.ErrorResponse](t, rr).Error.Code)

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/transactions", map[string]any{
		"player_id": alice, "type": "rebuy", "amount": 5,
	}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/transactions", map[string]any{
		"player_id": "ghost", "type": "buyin", "amount": 5,
	}, token)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/sessions/"+sessionID+"/transactions", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]response.Transaction](t, rr))
}

func TestRemovePlayer(t *testing.T) {
	ts := newTestServer(t)
	token := createMember(t, ts, "Dealer")
	sessionID := createSession(t, ts, token, "Game")
	alice := addPlayer(t, ts, token, sessionID, "Alice")
	bob := addPlayer(t, ts, token, sessionID, "Bob")
	recordTxn(t, ts, token, sessionID, bob, "buyin", 20)

	rr := ts.request(http.MethodDelete, "/api/v1/sessions/"+sessionID+"/players/"+alice, nil, token)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodDelete, "/api/v1/sessions/"+sessionID+"/players/"+bob, nil, token)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = ts.request(http.MethodDelete, "/api/v1/sessions/"+sessionID+"/players/"+alice, nil, token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSessionsAreScopedToClub(t *testing.T) {
	ts := newTestServer(t)
	owner := createMember(t, ts, "Owner")
	sessionID := createSession(t, ts, owner, "Private")

	outsider := createMember(t, ts, "Outsider")

	rr := ts.request(http.MethodGet, "/api/v1/sessions/"+sessionID, nil, outsider)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/chip-entry", nil, outsider)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/sessions", nil, outsider)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]response.Session](t, rr))

	rr = ts.request(http.MethodGet, "/api/v1/sessions/missing", nil, owner)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateSessionValidation(t *testing.T) {
	ts := newTestServer(t)
	token := createMember(t, ts, "Dealer")

	rr := ts.request(http.MethodPost, "/api/v1/sessions", map[string]string{"name": "Game", "currency": "GBP"}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidCurrency, decode[apierr.ErrorResponse](t, rr).Error.Code)

	rr = ts.request(http.MethodPost, "/api/v1/sessions", map[string]string{"name": "  "}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/sessions", map[string]string{"name": "Euro night", "currency": "eur"}, token)
	require.Equal(t, http.StatusCreated, rr.Code)
	s := decode[response.Session](t, rr)
	assert.Equal(t, "EUR", s.Currency)
	assert.Equal(t, "€", s.CurrencySymbol)
	assert.Equal(t, "/api/v1/sessions/"+s.ID, rr.Header().Get("Location"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	rr = ts.request(http.MethodGet, rr.Header().Get("Location"), nil, token)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "", "X-Request-ID", "trace-123")
	assert.Equal(t, "trace-123", rr.Header().Get("X-Request-ID"))

	rr = ts.request(http.MethodGet, "/api/v1/users/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

// Helper functions

func createGuest(t *testing.T, ts *testServer, displayName string) string {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/users/guest", map[string]string{"display_name": displayName}, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	return decode[response.AuthResponse](t, rr).Token
}

// createMember returns the token of a guest who owns a fresh club
func createMember(t *testing.T, ts *testServer, displayName string) string {
	t.Helper()
	token := createGuest(t, ts, displayName)
	rr := ts.request(http.MethodPost, "/api/v1/clubs", map[string]string{"name": displayName + " club"}, token)
	require.Equal(t, http.StatusCreated, rr.Code)
	return token
}

func createSession(t *testing.T, ts *testServer, token, name string) string {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/sessions", map[string]string{"name": name}, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[response.Session](t, rr).ID
}

func addPlayer(t *testing.T, ts *testServer, token, sessionID, name string) string {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/players", map[string]string{"name": name}, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[response.Player](t, rr).ID
}

func recordTxn(t *testing.T, ts *testServer, token, sessionID, playerID, kind string, amount float64) {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/sessions/"+sessionID+"/transactions", map[string]any{
		"player_id": playerID,
		"type":      kind,
		"amount":    amount,
	}, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}
