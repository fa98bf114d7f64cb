package model

import "errors"

// Common errors used across the application
var (
	// Session errors
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionFinalized        = errors.New("session is finalized")
	ErrChipEntryAlreadyStarted = errors.New("chip entry already started")
	ErrChipEntryNotStarted     = errors.New("chip entry has not started")
	ErrTransitionInProgress    = errors.New("a stage transition is already in progress")
	ErrRosterIncomplete        = errors.New("every player needs a buy-in before chip entry")
	ErrInvalidCurrency         = errors.New("invalid currency")
	ErrInvalidSessionName      = errors.New("session name is required")

	// Player errors
	ErrPlayerNotFound        = errors.New("player not found")
	ErrInvalidPlayerName     = errors.New("player name is required")
	ErrPlayerHasTransactions = errors.New("player has recorded transactions")

	// Ledger errors
	ErrInvalidAmount          = errors.New("amount must be a non-negative number")
	ErrInvalidTransactionType = errors.New("invalid transaction type")

	// Identity errors
	ErrUserNotFound = errors.New("user not found")

	// Club errors
	ErrClubNotFound    = errors.New("club not found")
	ErrAlreadyInClub   = errors.New("user already belongs to a club")
	ErrNotClubMember   = errors.New("user is not a member of this club")
	ErrInvalidClubName = errors.New("club name is required")
)
