package storage

import "github.com/mcoot/pokersession/internal/model"

// Write guards shared by every backend. A backend evaluates them on state it read
// while holding its per-session write exclusion, so no roster, ledger or stage
// write for the same session can land between the check and the write.

// GuardChipEntry refuses to start chip entry unless the roster is non-empty and
// every seated player has at least one buy-in
func GuardChipEntry(session *model.Session, players []model.PlayerID, txns []model.Transaction) error {
	if session.ChipEntryStarted() {
		return model.ErrChipEntryAlreadyStarted
	}
	if len(players) == 0 {
		return model.ErrRosterIncomplete
	}

	bought := make(map[model.PlayerID]bool, len(players))
	for _, txn := range txns {
		if txn.SessionID == session.ID && txn.Type == model.TransactionBuyin {
			bought[txn.PlayerID] = true
		}
	}
	for _, id := range players {
		if !bought[id] {
			return model.ErrRosterIncomplete
		}
	}
	return nil
}

// GuardFinalize refuses a second finalize and any finalize before chip entry
func GuardFinalize(session *model.Session) error {
	if session.IsFinalized() {
		return model.ErrSessionFinalized
	}
	if !session.ChipEntryStarted() {
		return model.ErrChipEntryNotStarted
	}
	return nil
}

// GuardAddPlayer freezes the roster once chip entry has started
func GuardAddPlayer(session *model.Session) error {
	if session.IsFinalized() {
		return model.ErrSessionFinalized
	}
	if session.ChipEntryStarted() {
		return model.ErrChipEntryAlreadyStarted
	}
	return nil
}

// GuardRemovePlayer keeps every ledger entry pointing at a seated player
func GuardRemovePlayer(session *model.Session, seated bool, hasTransactions bool) error {
	if session.IsFinalized() {
		return model.ErrSessionFinalized
	}
	if !seated {
		return model.ErrPlayerNotFound
	}
	if hasTransactions {
		return model.ErrPlayerHasTransactions
	}
	return nil
}

// GuardAppendTransaction locks the ledger at finalize and only accepts seated players
func GuardAppendTransaction(session *model.Session, seated bool) error {
	if session.IsFinalized() {
		return model.ErrSessionFinalized
	}
	if !seated {
		return model.ErrPlayerNotFound
	}
	return nil
}
