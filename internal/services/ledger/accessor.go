package ledger

import "github.com/mcoot/pokersession/internal/model"

// The accessors below are pure reads over a loaded ledger snapshot.
// A missing session or player yields an empty result, never an error.

// BuyinsOf returns the player's buy-ins in the order they appear in txns
func BuyinsOf(txns []model.Transaction, sessionID model.SessionID, playerID model.PlayerID) []model.Transaction {
	return filter(txns, sessionID, playerID, model.TransactionBuyin)
}

// CashoutsOf returns the player's cash-outs in the order they appear in txns
func CashoutsOf(txns []model.Transaction, sessionID model.SessionID, playerID model.PlayerID) []model.Transaction {
	return filter(txns, sessionID, playerID, model.TransactionCashout)
}

func filter(txns []model.Transaction, sessionID model.SessionID, playerID model.PlayerID, kind model.TransactionType) []model.Transaction {
	result := []model.Transaction{}
	for _, txn := range txns {
		if txn.SessionID == sessionID && txn.PlayerID == playerID && txn.Type == kind {
			result = append(result, txn)
		}
	}
	return result
}

// HasBuyin returns true if the player has at least one buy-in in the session
func HasBuyin(txns []model.Transaction, sessionID model.SessionID, playerID model.PlayerID) bool {
	for _, txn := range txns {
		if txn.SessionID == sessionID && txn.PlayerID == playerID && txn.Type == model.TransactionBuyin {
			return true
		}
	}
	return false
}

// PlayersMissingBuyins returns every rostered player with no buy-in in the session.
// The result is a set; it is returned in roster order with duplicates removed.
// An empty roster yields an empty set.
func PlayersMissingBuyins(sessionID model.SessionID, players []model.Player, txns []model.Transaction) []model.PlayerID {
	bought := make(map[model.PlayerID]bool)
	for _, txn := range txns {
		if txn.SessionID == sessionID && txn.Type == model.TransactionBuyin {
			bought[txn.PlayerID] = true
		}
	}

	missing := []model.PlayerID{}
	seen := make(map[model.PlayerID]bool)
	for _, p := range players {
		if bought[p.ID] || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		missing = append(missing, p.ID)
	}
	return missing
}

// Totals sums each rostered player's buy-ins and cash-outs, in roster order
func Totals(sessionID model.SessionID, players []model.Player, txns []model.Transaction) []model.PlayerTotals {
	byPlayer := make(map[model.PlayerID]*model.PlayerTotals, len(players))
	result := make([]model.PlayerTotals, 0, len(players))
	for _, p := range players {
		if _, ok := byPlayer[p.ID]; ok {
			continue
		}
		result = append(result, model.PlayerTotals{PlayerID: p.ID})
		byPlayer[p.ID] = &result[len(result)-1]
	}

	for _, txn := range txns {
		if txn.SessionID != sessionID {
			continue
		}
		totals, ok := byPlayer[txn.PlayerID]
		if !ok {
			continue
		}
		switch txn.Type {
		case model.TransactionBuyin:
			totals.Buyins += txn.Amount
		case model.TransactionCashout:
			totals.Cashouts += txn.Amount
		}
	}

	for i := range result {
		result[i].Net = result[i].Cashouts - result[i].Buyins
	}
	return result
}

// SessionTotals is the money that went into and came out of a session
type SessionTotals struct {
	Buyins   float64
	Cashouts float64
}

// Discrepancy is cash-outs minus buy-ins; zero when the table balances
func (t SessionTotals) Discrepancy() float64 {
	return t.Cashouts - t.Buyins
}

// SumSession totals every ledger entry for the session
func SumSession(sessionID model.SessionID, txns []model.Transaction) SessionTotals {
	var totals SessionTotals
	for _, txn := range txns {
		if txn.SessionID != sessionID {
			continue
		}
		switch txn.Type {
		case model.TransactionBuyin:
			totals.Buyins += txn.Amount
		case model.TransactionCashout:
			totals.Cashouts += txn.Amount
		}
	}
	return totals
}
