package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	// Setup events
	EventSessionCreated EventType = "session_created"
	EventPlayerAdded    EventType = "player_added"
	EventPlayerRemoved  EventType = "player_removed"

	// Ledger events
	EventTransactionRecorded EventType = "transaction_recorded"

	// Stage transition events
	EventChipEntryStarted EventType = "chip_entry_started"
	EventSessionFinalized EventType = "session_finalized"
)

// Event is the base structure for all events
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID SessionID `json:"session_id"`
	Stage     Stage     `json:"stage,omitempty"` // Stage after the event, when known
	Payload   any       `json:"payload,omitempty"`
}

// PlayerPayload contains data for player added/removed events
type PlayerPayload struct {
	PlayerID PlayerID `json:"player_id"`
	Name     string   `json:"name"`
}

// TransactionPayload contains data for transaction recorded events
type TransactionPayload struct {
	TransactionID TransactionID   `json:"transaction_id"`
	PlayerID      PlayerID        `json:"player_id"`
	Type          TransactionType `json:"type"`
	Amount        float64         `json:"amount"`
}

// TransitionPayload contains data for stage transition events
type TransitionPayload struct {
	From Stage     `json:"from"`
	To   Stage     `json:"to"`
	At   time.Time `json:"at"`
}
