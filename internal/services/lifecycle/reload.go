package lifecycle

import "github.com/mcoot/pokersession/internal/model"

// reloadTracker hands out monotonically increasing request tokens and keeps
// the snapshot from the newest request that has completed.
type reloadTracker struct {
	next   uint64
	latest *model.Snapshot
}

func (r *reloadTracker) issue() uint64 {
	r.next++
	return r.next
}

// commit stores snap unless a newer response already landed.
// It returns the snapshot now considered latest and whether snap was accepted.
func (r *reloadTracker) commit(snap *model.Snapshot) (*model.Snapshot, bool) {
	if r.latest != nil && r.latest.Token >= snap.Token {
		return r.latest, false
	}
	r.latest = snap
	return snap, true
}
