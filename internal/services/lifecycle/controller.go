// Package lifecycle applies guarded stage transitions to sessions.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/pokersession/internal/dependencies/clock"
	"github.com/mcoot/pokersession/internal/events"
	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/services/gate"
	"github.com/mcoot/pokersession/internal/services/stage"
	"github.com/mcoot/pokersession/internal/storage"
)

// Result describes the outcome of a transition attempt that reached the gate
type Result struct {
	// Applied is true when the transition was persisted
	Applied  bool
	Decision gate.Decision

	// Snapshot is the state the stage was derived from: the reload after a
	// successful write, or the pre-write read on denial
	Snapshot *model.Snapshot
	Stage    model.Stage
}

// Status reports a session's controller state
type Status struct {
	Writing   bool
	LastError string
}

// tracked is the per-session controller state: idle or writing, plus reload bookkeeping
type tracked struct {
	writing   bool
	lastError string
	inflight  int
	reloads   reloadTracker
}

// Controller gates and persists stage transitions.
// It never stores a stage: every stage it reports is derived from a snapshot.
type Controller struct {
	storage   storage.Storage
	clock     clock.Clock
	publisher events.Publisher
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[model.SessionID]*tracked
}

// NewController creates a new lifecycle Controller
func NewController(
	storage storage.Storage,
	clock clock.Clock,
	publisher events.Publisher,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:   storage,
		clock:     clock,
		publisher: publisher,
		logger:    logger,
		sessions:  make(map[model.SessionID]*tracked),
	}
}

// state returns the tracked state for a session, creating it if needed. Caller holds c.mu.
func (c *Controller) state(id model.SessionID) *tracked {
	t, ok := c.sessions[id]
	if !ok {
		t = &tracked{}
		c.sessions[id] = t
	}
	return t
}

// Reload reads session, roster and ledger as one snapshot and commits it as the latest.
// If a newer reload has already committed, this response is stale: it is discarded
// and the newer snapshot is returned instead.
// A missing session yields a snapshot with a nil Session, not an error.
func (c *Controller) Reload(ctx context.Context, id model.SessionID) (*model.Snapshot, error) {
	c.mu.Lock()
	t := c.state(id)
	t.inflight++
	token := t.reloads.issue()
	c.mu.Unlock()

	snap, err := c.read(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	t = c.state(id)
	t.inflight--
	defer c.release(id)
	if err != nil {
		return nil, err
	}
	snap.Token = token

	latest, committed := t.reloads.commit(snap)
	if !committed {
		c.logger.Debug("discarded stale reload",
			slog.String("session_id", string(id)),
			slog.Uint64("token", token),
			slog.Uint64("latest_token", latest.Token),
		)
	}
	return latest, nil
}

func (c *Controller) read(ctx context.Context, id model.SessionID) (*model.Snapshot, error) {
	session, err := c.storage.GetSession(ctx, id)
	if errors.Is(err, model.ErrSessionNotFound) {
		return &model.Snapshot{Players: []model.Player{}, Transactions: []model.Transaction{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	players, err := c.storage.ListPlayers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}

	txns, err := c.storage.ListTransactions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	return &model.Snapshot{Session: session, Players: players, Transactions: txns}, nil
}

// Current returns the latest committed snapshot for the session
func (c *Controller) Current(id model.SessionID) (*model.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.sessions[id]
	if !ok || t.reloads.latest == nil {
		return nil, false
	}
	return t.reloads.latest, true
}

// InProgress returns true while a transition write is outstanding for the session
func (c *Controller) InProgress(id model.SessionID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.sessions[id]
	return ok && t.writing
}

// Status returns the controller state for the session
func (c *Controller) Status(id model.SessionID) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.sessions[id]
	if !ok {
		return Status{}
	}
	return Status{Writing: t.writing, LastError: t.lastError}
}

// release drops the session's tracked state once nothing can change it any more:
// no write or reload is outstanding and the latest snapshot is finalized or has no
// session. An entry with no snapshot is dropped too unless it holds a failure.
// Caller holds c.mu.
func (c *Controller) release(id model.SessionID) {
	t, ok := c.sessions[id]
	if !ok || t.writing || t.inflight > 0 {
		return
	}
	latest := t.reloads.latest
	switch {
	case latest == nil && t.lastError == "":
	case latest != nil && (latest.Session == nil || latest.Session.IsFinalized()):
	default:
		return
	}
	delete(c.sessions, id)
}

// begin moves the session from idle to writing. A second caller is rejected, never queued.
func (c *Controller) begin(id model.SessionID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.state(id)
	if t.writing {
		return false
	}
	t.writing = true
	t.lastError = ""
	return true
}

// end returns the session to idle, recording the failure if there was one
func (c *Controller) end(id model.SessionID, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.state(id)
	t.writing = false
	if err != nil {
		t.lastError = err.Error()
	}
	c.release(id)
}

// transition describes one guarded write
type transition struct {
	name      string
	evaluate  func(*model.Snapshot) gate.Decision
	write     func(ctx context.Context, id model.SessionID, at time.Time) error
	eventType model.EventType
}

// StartChipEntry moves a session into chip entry once every player has bought in
func (c *Controller) StartChipEntry(ctx context.Context, id model.SessionID) (*Result, error) {
	return c.apply(ctx, id, transition{
		name:      "start chip entry",
		evaluate:  gate.StartChipEntry,
		write:     c.storage.SetChipEntryStarted,
		eventType: model.EventChipEntryStarted,
	})
}

// Finalize locks the session's settlement. It cannot be undone.
func (c *Controller) Finalize(ctx context.Context, id model.SessionID) (*Result, error) {
	return c.apply(ctx, id, transition{
		name:      "finalize session",
		evaluate:  gate.Finalize,
		write:     c.storage.SetFinalized,
		eventType: model.EventSessionFinalized,
	})
}

func (c *Controller) apply(ctx context.Context, id model.SessionID, tr transition) (result *Result, err error) {
	if !c.begin(id) {
		return nil, model.ErrTransitionInProgress
	}
	defer func() { c.end(id, err) }()

	before, err := c.Reload(ctx, id)
	if err != nil {
		return nil, &WriteError{Transition: tr.name, Err: err}
	}

	from := stage.Derive(before)
	decision := tr.evaluate(before)
	if !decision.Allowed {
		c.logger.Debug("transition denied",
			slog.String("session_id", string(id)),
			slog.String("transition", tr.name),
			slog.String("reason", string(decision.Reason)),
		)
		return &Result{Decision: decision, Snapshot: before, Stage: from}, nil
	}

	now := c.clock.Now()
	if err := tr.write(ctx, id, now); err != nil {
		if isRefusal(err) {
			return c.refused(ctx, id, tr, err)
		}
		// No reload: the last committed snapshot still matches what is persisted
		c.logger.Error("transition write failed",
			slog.String("session_id", string(id)),
			slog.String("transition", tr.name),
			slog.String("error", err.Error()),
		)
		return nil, &WriteError{Transition: tr.name, Err: err}
	}

	after, err := c.Reload(ctx, id)
	if err != nil {
		return &Result{Applied: true, Decision: decision}, fmt.Errorf("reload after %s: %w", tr.name, err)
	}
	to := stage.Derive(after)

	c.logger.Info("transition applied",
		slog.String("session_id", string(id)),
		slog.String("transition", tr.name),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)

	c.publish(ctx, model.Event{
		Type:      tr.eventType,
		Timestamp: now,
		SessionID: id,
		Stage:     to,
		Payload:   model.TransitionPayload{From: from, To: to, At: now},
	})

	return &Result{Applied: true, Decision: decision, Snapshot: after, Stage: to}, nil
}

// refused handles a write the store turned down because the session changed after
// the gate read. The gate runs again on fresh state and its denial is the result.
func (c *Controller) refused(ctx context.Context, id model.SessionID, tr transition, cause error) (*Result, error) {
	fresh, err := c.Reload(ctx, id)
	if err != nil {
		return nil, &WriteError{Transition: tr.name, Err: cause}
	}
	decision := tr.evaluate(fresh)
	if decision.Allowed {
		return nil, &WriteError{Transition: tr.name, Err: cause}
	}
	c.logger.Info("transition refused by store",
		slog.String("session_id", string(id)),
		slog.String("transition", tr.name),
		slog.String("reason", string(decision.Reason)),
	)
	return &Result{Decision: decision, Snapshot: fresh, Stage: stage.Derive(fresh)}, nil
}

func isRefusal(err error) bool {
	return errors.Is(err, model.ErrRosterIncomplete) ||
		errors.Is(err, model.ErrChipEntryAlreadyStarted) ||
		errors.Is(err, model.ErrChipEntryNotStarted) ||
		errors.Is(err, model.ErrSessionFinalized) ||
		errors.Is(err, model.ErrSessionNotFound)
}

func (c *Controller) publish(ctx context.Context, event model.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warn("failed to publish event",
			slog.String("type", string(event.Type)),
			slog.String("session_id", string(event.SessionID)),
			slog.String("error", err.Error()),
		)
	}
}
