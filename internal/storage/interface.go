package storage

import (
	"context"
	"time"

	"github.com/mcoot/pokersession/internal/model"
)

// Storage defines the interface for data persistence
type Storage interface {
	// User operations
	SaveUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)

	// Club operations
	SaveClub(ctx context.Context, club *model.Club) error
	GetClub(ctx context.Context, id model.ClubID) (*model.Club, error)
	GetClubByJoinCode(ctx context.Context, code string) (*model.Club, error)

	// Session operations
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id model.SessionID) (*model.Session, error)
	ListSessions(ctx context.Context, clubID *model.ClubID) ([]*model.Session, error)

	// Every write below runs its guard (see guards.go) atomically with the write:
	// writes to one session's stage, roster and ledger are serialised per backend.

	// SetChipEntryStarted records the chip entry timestamp only if it is currently unset
	// and GuardChipEntry passes. Returns model.ErrChipEntryAlreadyStarted if another writer
	// got there first, model.ErrRosterIncomplete if a player lacks a buy-in.
	SetChipEntryStarted(ctx context.Context, id model.SessionID, at time.Time) error
	// SetFinalized records the finalization timestamp only if it is currently unset.
	// Returns model.ErrSessionFinalized if the session is already finalized and
	// model.ErrChipEntryNotStarted before chip entry.
	SetFinalized(ctx context.Context, id model.SessionID, at time.Time) error

	// Player operations

	// SavePlayer seats a player. Refused once chip entry has started or the session is finalized.
	SavePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, sessionID model.SessionID, id model.PlayerID) (*model.Player, error)
	ListPlayers(ctx context.Context, sessionID model.SessionID) ([]model.Player, error)
	// DeletePlayer unseats a player. Returns model.ErrPlayerHasTransactions if any
	// ledger entry references the player.
	DeletePlayer(ctx context.Context, sessionID model.SessionID, id model.PlayerID) error

	// Ledger operations (append-only)

	// AppendTransaction refuses finalized sessions and players who are not seated
	AppendTransaction(ctx context.Context, txn *model.Transaction) error
	// ListTransactions returns a session's ledger ordered by creation time ascending
	ListTransactions(ctx context.Context, sessionID model.SessionID) ([]model.Transaction, error)
}
