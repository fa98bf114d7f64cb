// Package gate evaluates whether a stage transition may be applied to a session.
// Denials are values carrying a reason code; they are never errors.
package gate

import (
	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/services/ledger"
)

// ReasonCode identifies why a transition was denied.
// Codes are stable for programmatic use; render them with Message.
type ReasonCode string

const (
	ReasonNone                    ReasonCode = ""
	ReasonSessionNotLoaded        ReasonCode = "session_not_loaded"
	ReasonChipEntryAlreadyStarted ReasonCode = "chip_entry_already_started"
	ReasonNoPlayers               ReasonCode = "no_players"
	ReasonPlayersMissingBuyins    ReasonCode = "players_missing_buyins"
	ReasonAlreadyFinalized        ReasonCode = "already_finalized"
	ReasonChipEntryNotStarted     ReasonCode = "chip_entry_not_started"
)

// Decision is the outcome of evaluating a gate
type Decision struct {
	Allowed bool
	Reason  ReasonCode

	// Missing lists players without a buy-in, in roster order, when Reason is ReasonPlayersMissingBuyins
	Missing []model.PlayerID
}

// MissingCount is the number of players blocking the transition for lack of a buy-in
func (d Decision) MissingCount() int {
	return len(d.Missing)
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason ReasonCode) Decision {
	return Decision{Reason: reason}
}

// StartChipEntry is the hard gate for entering chip entry.
// Checks run in order and the first failure wins. Nothing is cached between calls.
func StartChipEntry(snap *model.Snapshot) Decision {
	if snap == nil || snap.Session == nil {
		return deny(ReasonSessionNotLoaded)
	}
	if snap.Session.ChipEntryStartedAt != nil {
		return deny(ReasonChipEntryAlreadyStarted)
	}
	if len(snap.Players) == 0 {
		return deny(ReasonNoPlayers)
	}
	if missing := ledger.PlayersMissingBuyins(snap.Session.ID, snap.Players, snap.Transactions); len(missing) > 0 {
		return Decision{Reason: ReasonPlayersMissingBuyins, Missing: missing}
	}
	return allow()
}

// Finalize gates locking the settlement. It is only reachable from chip entry.
func Finalize(snap *model.Snapshot) Decision {
	if snap == nil || snap.Session == nil {
		return deny(ReasonSessionNotLoaded)
	}
	if snap.Session.FinalizedAt != nil {
		return deny(ReasonAlreadyFinalized)
	}
	if snap.Session.ChipEntryStartedAt == nil {
		return deny(ReasonChipEntryNotStarted)
	}
	return allow()
}
