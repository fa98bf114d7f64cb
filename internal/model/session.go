package model

import (
	"strings"
	"time"
)

// SessionID uniquely identifies a cash-game session
type SessionID string

// ClubID identifies the club (tenant) a session belongs to
type ClubID string

// Currency is the money unit a session is played in
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyILS Currency = "ILS"
	CurrencyEUR Currency = "EUR"
)

// ValidCurrencies returns all supported currencies
func ValidCurrencies() []Currency {
	return []Currency{CurrencyUSD, CurrencyILS, CurrencyEUR}
}

// Valid returns true if the currency is one of the supported values
func (c Currency) Valid() bool {
	switch c {
	case CurrencyUSD, CurrencyILS, CurrencyEUR:
		return true
	default:
		return false
	}
}

// Symbol returns the display symbol for the currency.
// Unknown currencies fall back to the dollar sign.
func (c Currency) Symbol() string {
	switch c {
	case CurrencyILS:
		return "₪"
	case CurrencyEUR:
		return "€"
	default:
		return "$"
	}
}

// ParseCurrency normalises user input into a Currency.
// An empty string defaults to USD.
func ParseCurrency(s string) (Currency, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return CurrencyUSD, nil
	}
	c := Currency(s)
	if !c.Valid() {
		return "", ErrInvalidCurrency
	}
	return c, nil
}

// Session is one tracked cash game.
// FinalizedAt and ChipEntryStartedAt are the only mutable facts and are set at most once.
type Session struct {
	ID                 SessionID
	Name               string
	Currency           Currency
	ClubID             *ClubID
	CreatedAt          time.Time
	ChipEntryStartedAt *time.Time
	FinalizedAt        *time.Time
}

// IsFinalized returns true once the settlement has been locked
func (s *Session) IsFinalized() bool {
	return s != nil && s.FinalizedAt != nil
}

// ChipEntryStarted returns true once the chip entry stage was entered
func (s *Session) ChipEntryStarted() bool {
	return s != nil && s.ChipEntryStartedAt != nil
}

// Clone returns a deep copy so callers can't mutate stored timestamps
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.ClubID != nil {
		id := *s.ClubID
		c.ClubID = &id
	}
	if s.ChipEntryStartedAt != nil {
		t := *s.ChipEntryStartedAt
		c.ChipEntryStartedAt = &t
	}
	if s.FinalizedAt != nil {
		t := *s.FinalizedAt
		c.FinalizedAt = &t
	}
	return &c
}

// Snapshot is a single consistent read of everything stage derivation needs.
// A nil Session means the session has not been loaded.
type Snapshot struct {
	Session      *Session
	Players      []Player
	Transactions []Transaction

	// Token is the reload request token the snapshot was produced for
	Token uint64
}

// SessionID returns the ID of the loaded session, or empty if not loaded
func (s *Snapshot) SessionID() SessionID {
	if s == nil || s.Session == nil {
		return ""
	}
	return s.Session.ID
}
