// Package stage derives a session's lifecycle stage from its persisted facts.
// The stage is never stored; it is recomputed from the snapshot every time.
package stage

import "github.com/mcoot/pokersession/internal/model"

// Derive returns the stage for one consistent snapshot.
// Rules are checked in priority order and the first match wins.
// The review stage is reserved and never derived.
func Derive(snap *model.Snapshot) model.Stage {
	if snap == nil {
		return model.StagePlayerSetup
	}
	return Of(snap.Session, snap.Players)
}

// Of derives the stage from a session and its roster
func Of(session *model.Session, players []model.Player) model.Stage {
	switch {
	case session == nil:
		return model.StagePlayerSetup
	case session.FinalizedAt != nil:
		return model.StageFinalized
	case session.ChipEntryStartedAt != nil:
		return model.StageChipEntry
	case len(players) == 0:
		return model.StagePlayerSetup
	default:
		return model.StageBuyins
	}
}
