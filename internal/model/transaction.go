package model

import "time"

// TransactionID uniquely identifies a ledger entry
type TransactionID string

// TransactionType is the closed set of ledger entry kinds
type TransactionType string

const (
	TransactionBuyin   TransactionType = "buyin"
	TransactionCashout TransactionType = "cashout"
)

// Valid returns true for buyin and cashout
func (t TransactionType) Valid() bool {
	return t == TransactionBuyin || t == TransactionCashout
}

// Transaction is an append-only money movement for one player in one session.
// Corrections are recorded as new entries, never as edits.
type Transaction struct {
	ID        TransactionID
	SessionID SessionID
	PlayerID  PlayerID
	Type      TransactionType
	Amount    float64 // non-negative, in the session currency
	CreatedAt time.Time
}

// PlayerTotals summarises one player's ledger entries
type PlayerTotals struct {
	PlayerID PlayerID
	Buyins   float64
	Cashouts float64
	Net      float64 // Cashouts - Buyins
}
