package response

import (
	"time"

	"golang.org/x/text/language"

	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/services/auth"
	"github.com/mcoot/pokersession/internal/services/gate"
	"github.com/mcoot/pokersession/internal/services/ledger"
	"github.com/mcoot/pokersession/internal/services/lifecycle"
	"github.com/mcoot/pokersession/internal/services/stage"
)

// User represents an account in API responses
type User struct {
	ID          string  `json:"id"`
	Username    string  `json:"username,omitempty"`
	DisplayName string  `json:"display_name"`
	IsGuest     bool    `json:"is_guest"`
	ClubID      *string `json:"club_id"`
}

// UserFromModel converts a model.User to a response User
func UserFromModel(u *model.User) User {
	var clubID *string
	if u.ClubID != nil {
		c := string(*u.ClubID)
		clubID = &c
	}
	return User{
		ID:          string(u.ID),
		Username:    u.Username,
		DisplayName: u.DisplayName,
		IsGuest:     u.IsGuest,
		ClubID:      clubID,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthResponseFromIdentity creates an AuthResponse from an identity
func AuthResponseFromIdentity(i *auth.Identity) AuthResponse {
	return AuthResponse{
		User:      UserFromModel(&i.User),
		Token:     i.Token,
		ExpiresAt: i.ExpiresAt,
	}
}

// Club represents a club in API responses
type Club struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	JoinCode string `json:"join_code"`
	OwnerID  string `json:"owner_id"`
}

// ClubFromModel converts a model.Club
func ClubFromModel(c *model.Club) Club {
	return Club{
		ID:       string(c.ID),
		Name:     c.Name,
		JoinCode: c.JoinCode,
		OwnerID:  string(c.OwnerID),
	}
}

// Session represents a session header in API responses
type Session struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Currency           string     `json:"currency"`
	CurrencySymbol     string     `json:"currency_symbol"`
	ClubID             *string    `json:"club_id"`
	CreatedAt          time.Time  `json:"created_at"`
	ChipEntryStartedAt *time.Time `json:"chip_entry_started_at"`
	FinalizedAt        *time.Time `json:"finalized_at"`
}

// SessionFromModel converts a model.Session
func SessionFromModel(s *model.Session) Session {
	var clubID *string
	if s.ClubID != nil {
		c := string(*s.ClubID)
		clubID = &c
	}
	return Session{
		ID:                 string(s.ID),
		Name:               s.Name,
		Currency:           string(s.Currency),
		CurrencySymbol:     s.Currency.Symbol(),
		ClubID:             clubID,
		CreatedAt:          s.CreatedAt,
		ChipEntryStartedAt: s.ChipEntryStartedAt,
		FinalizedAt:        s.FinalizedAt,
	}
}

// Player represents a seated player, with ledger totals when known
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ProfileID *string   `json:"profile_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Buyins    float64   `json:"buyins"`
	Cashouts  float64   `json:"cashouts"`
	Net       float64   `json:"net"`
}

// PlayerFromModel converts a model.Player
func PlayerFromModel(p *model.Player, totals model.PlayerTotals) Player {
	var profileID *string
	if p.ProfileID != nil {
		id := string(*p.ProfileID)
		profileID = &id
	}
	return Player{
		ID:        string(p.ID),
		Name:      p.Name,
		ProfileID: profileID,
		CreatedAt: p.CreatedAt,
		Buyins:    totals.Buyins,
		Cashouts:  totals.Cashouts,
		Net:       totals.Net,
	}
}

// Transaction represents a ledger entry
type Transaction struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"player_id"`
	Type      string    `json:"type"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// TransactionFromModel converts a model.Transaction
func TransactionFromModel(t *model.Transaction) Transaction {
	return Transaction{
		ID:        string(t.ID),
		PlayerID:  string(t.PlayerID),
		Type:      string(t.Type),
		Amount:    t.Amount,
		CreatedAt: t.CreatedAt,
	}
}

// TransactionsFromModel converts a ledger slice, never returning nil
func TransactionsFromModel(txns []model.Transaction) []Transaction {
	out := make([]Transaction, len(txns))
	for i := range txns {
		out[i] = TransactionFromModel(&txns[i])
	}
	return out
}

// Gate is a rendered gate decision
type Gate struct {
	Allowed bool     `json:"allowed"`
	Reason  string   `json:"reason,omitempty"`
	Message string   `json:"message,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// GateFromDecision renders a decision in the requested language
func GateFromDecision(tag language.Tag, d gate.Decision) Gate {
	return Gate{
		Allowed: d.Allowed,
		Reason:  string(d.Reason),
		Message: gate.Message(tag, d),
		Missing: PlayerIDs(d.Missing),
	}
}

// PlayerIDs converts player IDs to strings, returning nil for an empty list
func PlayerIDs(ids []model.PlayerID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// Gates holds every transition gate for a session
type Gates struct {
	StartChipEntry Gate `json:"start_chip_entry"`
	Finalize       Gate `json:"finalize"`
}

// StageResponse is the derived stage plus the gates evaluated against the same snapshot
type StageResponse struct {
	Stage     string `json:"stage"`
	Gates     Gates  `json:"gates"`
	Writing   bool   `json:"writing"`
	LastError string `json:"last_error,omitempty"`
}

// StageFromSnapshot derives the stage and gates for a snapshot
func StageFromSnapshot(tag language.Tag, snap *model.Snapshot, status lifecycle.Status) StageResponse {
	return StageResponse{
		Stage: string(stage.Derive(snap)),
		Gates: Gates{
			StartChipEntry: GateFromDecision(tag, gate.StartChipEntry(snap)),
			Finalize:       GateFromDecision(tag, gate.Finalize(snap)),
		},
		Writing:   status.Writing,
		LastError: status.LastError,
	}
}

// Totals is the pot summary of a session
type Totals struct {
	Buyins      float64 `json:"buyins"`
	Cashouts    float64 `json:"cashouts"`
	Discrepancy float64 `json:"discrepancy"`
}

// SessionDetail is the full view of one session
type SessionDetail struct {
	Session      Session       `json:"session"`
	Players      []Player      `json:"players"`
	Transactions []Transaction `json:"transactions"`
	Totals       Totals        `json:"totals"`
	StageResponse
}

// SessionDetailFromSnapshot builds the full session view from a loaded snapshot
func SessionDetailFromSnapshot(tag language.Tag, snap *model.Snapshot, status lifecycle.Status) SessionDetail {
	id := snap.SessionID()
	byPlayer := make(map[model.PlayerID]model.PlayerTotals, len(snap.Players))
	for _, t := range ledger.Totals(id, snap.Players, snap.Transactions) {
		byPlayer[t.PlayerID] = t
	}

	players := make([]Player, len(snap.Players))
	for i := range snap.Players {
		players[i] = PlayerFromModel(&snap.Players[i], byPlayer[snap.Players[i].ID])
	}

	sum := ledger.SumSession(id, snap.Transactions)
	return SessionDetail{
		Session:      SessionFromModel(snap.Session),
		Players:      players,
		Transactions: TransactionsFromModel(snap.Transactions),
		Totals: Totals{
			Buyins:      sum.Buyins,
			Cashouts:    sum.Cashouts,
			Discrepancy: sum.Discrepancy(),
		},
		StageResponse: StageFromSnapshot(tag, snap, status),
	}
}

// TransitionResponse is the response for an applied stage transition
type TransitionResponse struct {
	Applied bool          `json:"applied"`
	Stage   string        `json:"stage"`
	Session SessionDetail `json:"session"`
}
