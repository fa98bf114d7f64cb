package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/pokersession/internal/dependencies/mocks"
	"github.com/mcoot/pokersession/internal/events"
	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/services/gate"
	"github.com/mcoot/pokersession/internal/storage"
	"github.com/mcoot/pokersession/internal/storage/memory"
	"github.com/mcoot/pokersession/internal/testutil"
)

// hookedStorage lets tests pause or fail individual storage calls
type hookedStorage struct {
	storage.Storage

	mu                sync.Mutex
	beforeChipEntry   func()
	chipEntryErr      error
	beforeListLedger  func()
	setChipEntryCalls int
}

func (h *hookedStorage) SetChipEntryStarted(ctx context.Context, id model.SessionID, at time.Time) error {
	h.mu.Lock()
	h.setChipEntryCalls++
	hook, failure := h.beforeChipEntry, h.chipEntryErr
	h.mu.Unlock()

	if hook != nil {
		hook()
	}
	if failure != nil {
		return failure
	}
	return h.Storage.SetChipEntryStarted(ctx, id, at)
}

func (h *hookedStorage) ListTransactions(ctx context.Context, id model.SessionID) ([]model.Transaction, error) {
	h.mu.Lock()
	hook := h.beforeListLedger
	h.beforeListLedger = nil
	h.mu.Unlock()

	if hook != nil {
		hook()
	}
	return h.Storage.ListTransactions(ctx, id)
}

type ControllerSuite struct {
	suite.Suite
	ctx        context.Context
	store      *hookedStorage
	clock      *mocks.MockClock
	recorder   *events.Recorder
	controller *Controller
	sessionID  model.SessionID
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = &hookedStorage{Storage: memory.New()}
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 21, 0, 0, 0, time.UTC))
	s.recorder = events.NewRecorder()
	s.controller = NewController(s.store, s.clock, s.recorder, testutil.NopLogger())

	s.sessionID = "session-1"
	s.Require().NoError(s.store.CreateSession(s.ctx, &model.Session{
		ID: s.sessionID, Name: "Friday", Currency: model.CurrencyILS, CreatedAt: s.clock.Now(),
	}))
}

func (s *ControllerSuite) addPlayer(id model.PlayerID) {
	s.Require().NoError(s.store.SavePlayer(s.ctx, &model.Player{
		ID: id, SessionID: s.sessionID, Name: string(id), CreatedAt: s.clock.Now(),
	}))
}

func (s *ControllerSuite) buyin(player model.PlayerID, amount float64) {
	s.Require().NoError(s.store.AppendTransaction(s.ctx, &model.Transaction{
		ID: model.TransactionID("t-" + string(player)), SessionID: s.sessionID, PlayerID: player,
		Type: model.TransactionBuyin, Amount: amount, CreatedAt: s.clock.Now(),
	}))
}

func (s *ControllerSuite) readyToStart() {
	s.addPlayer("p1")
	s.buyin("p1", 100)
}

// Scenario D
func (s *ControllerSuite) TestStartChipEntryThenAgain() {
	s.readyToStart()

	result, err := s.controller.StartChipEntry(s.ctx, s.sessionID)
	s.Require().NoError(err)
	s.True(result.Applied)
	s.Equal(model.StageChipEntry, result.Stage)
	s.Require().NotNil(result.Snapshot.Session.ChipEntryStartedAt)
	s.True(s.clock.Now().Equal(*result.Snapshot.Session.ChipEntryStartedAt))

	again, err := s.controller.StartChipEntry(s.ctx, s.sessionID)
	s.Require().NoError(err)
	s.False(again.Applied)
	s.Equal(gate.ReasonChipEntryAlreadyStarted, again.Decision.Reason)
	s.Equal(model.StageChipEntry, again.Stage)

	s.Equal(1, s.store.setChipEntryCalls)
}

func (s *ControllerSuite) TestStartChipEntryPublishesTransition() {
	s.readyToStart()

	_, err := s.controller.StartChipEntry(s.ctx, s.sessionID)
	s.Require().NoError(err)

	evts := s.recorder.Events()
	s.Require().Len(evts, 1)
	s.Equal(model.EventChipEntryStarted, evts[0].Type)
	s.Equal(model.StageChipEntry, evts[0].Stage)
	payload, ok := evts[0].Payload.(model.TransitionPayload)
	s.Require().True(ok)
	s.Equal(model.StageBuyins, payload.From)
	s.Equal(model.StageChipEntry, payload.To)
}

func (s *ControllerSuite) TestDeniedGateWritesNothing() {
	s.addPlayer("p1")
	s.addPlayer("p2")
	s.buyin("p1", 100)

	result, err := s.controller.StartChipEntry(s.ctx, s.sessionID)
	s.Require().NoError(err)
	s.False(result.Applied)
	s.Equal(gate.ReasonPlayersMissingBuyins, result.Decision.Reason)
	s.Equal([]model.PlayerID{"p2"}, result.Decision.Missing)
	s.Equal(model.StageBuyins, result.Stage)

	s.Equal(0, s.store.setChipEntryCalls)
	s.Empty(s.recorder.Events())
	s.Empty(s.controller.Status(s.sessionID).LastError)
}

func (s *ControllerSuite) TestUnknownSessionIsDenialNotError() {
	result, err := s.controller.StartChipEntry(s.ctx, "missing")
	s.Require().NoError(err)
	s.Equal(gate.ReasonSessionNotLoaded, result.Decision.Reason)
	s.Equal(model.StagePlayerSetup, result.Stage)
}

func (s *ControllerSuite) TestWriteFailureSurfacesCauseWithoutReload() {
	s.readyToStart()
	s.store.chipEntryErr = errors.New("connection reset")

	before, err := s.controller.Reload(s.ctx, s.sessionID)
	s.Require().NoError(err)

	result, err := s.controller.StartChipEntry(s.ctx, s.sessionID)
	s.Nil(result)
	s.EqualError(err, "Failed to start chip entry: connection reset")
	var writeErr *WriteError
	s.Require().ErrorAs(err, &writeErr)
	s.Equal("start chip entry", writeErr.Transition)

	// Only the pre-write reload happened
	current, ok := s.controller.Current(s.sessionID)
	s.Require().True(ok)
	s.Equal(before.Token+1, current.Token)
	s.Nil(current.Session.ChipEntryStartedAt)

	status := s.controller.Status(s.sessionID)
	s.False(status.Writing)
	s.Equal("Failed to start chip entry: connection reset", status.LastError)
	s.Empty(s.recorder.Events())
}

func (s *ControllerSuite) TestRetryAfterFailureSucceedsAndClearsError() {
	s.readyToStart()
	s.store.chipEntryErr = errors.New("timeout")
	_, err := s.controller.StartChipEntry(s.ctx, s.sessionID)
	s.Require().Error(err)

	s.store.chipEntryErr = nil
	result, err := s.controller.StartChipEntry(s.ctx, s.sessionID)
	s.Require().NoError(err)
	s.True(result.Applied)
	s.Empty(s.controller.Status(s.sessionID).LastError)
}

func (s *ControllerSuite) TestConcurrentWriterFromAnotherClientLoses() {
	s.readyToStart()
	// Another client sets the timestamp between our gate check and our write
	s.store.beforeChipEntry = func() {
		_ = s.store.Storage.SetChipEntryStarted(s.ctx, s.sessionID, s.clock.Now().Add(-time.Minute))
	}

	result, err := s.controller.StartChipEntry(s.ctx, s.sessionID)
	s.Require().NoError(err)
	s.False(result.Applied)
	s.Equal(gate.ReasonChipEntryAlreadyStarted, result.Decision.Reason)
	s.Equal(model.StageChipEntry, result.Stage)
	s.Empty(s.recorder.Events())
	s.Empty(s.controller.Status(s.sessionID).LastError)
}

func (s *ControllerSuite) TestPlayerAddedDuringStartIsNotLeftBehind() {
	s.readyToStart()
	// A new player sits down after the gate passed but before the timestamp is written
	s.store.beforeChipEntry = func() {
		s.addPlayer("p2")
	}

	result, err := s.controller.StartChipEntry(s.ctx, s.sessionID)
	s.Require().NoError(err)
	s.False(result.Applied)
	s.Equal(gate.ReasonPlayersMissingBuyins, result.Decision.Reason)
	s.Equal([]model.PlayerID{"p2"}, result.Decision.Missing)
	s.Equal(model.StageBuyins, result.Stage)
	s.Empty(s.recorder.Events())

	session, err := s.store.GetSession(s.ctx, s.sessionID)
	s.Require().NoError(err)
	s.Nil(session.ChipEntryStartedAt)
}

func (s *ControllerSuite) TestSecondInvocationWhileWritingIsRejected() {
	s.readyToStart()

	entered := make(chan struct{})
	release := make(chan struct{})
	s.store.beforeChipEntry = func() {
		close(entered)
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.controller.StartChipEntry(s.ctx, s.sessionID)
		done <- err
	}()

	<-entered
	s.True(s.controller.InProgress(s.sessionID))
	s.True(s.controller.Status(s.sessionID).Writing)

	_, err := s.controller.StartChipEntry(s.ctx, s.sessionID)
	s.ErrorIs(err, model.ErrTransitionInProgress)
	_, err = s.controller.Finalize(s.ctx, s.sessionID)
	s.ErrorIs(err, model.ErrTransitionInProgress)

	close(release)
	s.Require().NoError(<-done)
	s.False(s.controller.InProgress(s.sessionID))
	s.Equal(1, s.store.setChipEntryCalls)
}

func (s *ControllerSuite) TestStaleReloadIsDiscarded() {
	s.addPlayer("p1")

	entered := make(chan struct{})
	release := make(chan struct{})
	s.store.beforeListLedger = func() {
		close(entered)
		<-release
	}

	slow := make(chan *model.Snapshot, 1)
	go func() {
		snap, err := s.controller.Reload(s.ctx, s.sessionID)
		s.NoError(err)
		slow <- snap
	}()
	<-entered

	// A newer request sees a buy-in the slow one will miss
	s.buyin("p1", 100)
	fresh, err := s.controller.Reload(s.ctx, s.sessionID)
	s.Require().NoError(err)
	s.Len(fresh.Transactions, 1)

	close(release)
	stale := <-slow

	s.Same(fresh, stale, "stale response must be replaced by the newer snapshot")
	current, ok := s.controller.Current(s.sessionID)
	s.Require().True(ok)
	s.Same(fresh, current)
}

func (s *ControllerSuite) TestFinalizeFromChipEntry() {
	s.readyToStart()
	_, err := s.controller.StartChipEntry(s.ctx, s.sessionID)
	s.Require().NoError(err)

	s.clock.Advance(time.Hour)
	result, err := s.controller.Finalize(s.ctx, s.sessionID)
	s.Require().NoError(err)
	s.True(result.Applied)
	s.Equal(model.StageFinalized, result.Stage)

	again, err := s.controller.Finalize(s.ctx, s.sessionID)
	s.Require().NoError(err)
	s.Equal(gate.ReasonAlreadyFinalized, again.Decision.Reason)

	s.Equal([]model.EventType{model.EventChipEntryStarted, model.EventSessionFinalized}, s.recorder.Types())
}

func (s *ControllerSuite) TestFinalizeBeforeChipEntryDenied() {
	s.readyToStart()

	result, err := s.controller.Finalize(s.ctx, s.sessionID)
	s.Require().NoError(err)
	s.Equal(gate.ReasonChipEntryNotStarted, result.Decision.Reason)
}

func (s *ControllerSuite) TestPublishFailureDoesNotFailTransition() {
	s.readyToStart()
	s.recorder.FailWith(errors.New("broker down"))

	result, err := s.controller.StartChipEntry(s.ctx, s.sessionID)
	s.Require().NoError(err)
	s.True(result.Applied)
}

func (s *ControllerSuite) TestOpenSessionStateIsKept() {
	_, err := s.controller.Reload(s.ctx, s.sessionID)
	s.Require().NoError(err)
	_, ok := s.controller.Current(s.sessionID)
	s.True(ok)
}

func (s *ControllerSuite) TestFinalizedSessionStateIsReleased() {
	s.readyToStart()
	_, err := s.controller.StartChipEntry(s.ctx, s.sessionID)
	s.Require().NoError(err)
	result, err := s.controller.Finalize(s.ctx, s.sessionID)
	s.Require().NoError(err)
	s.Require().True(result.Applied)
	s.Equal(model.StageFinalized, result.Stage)

	_, ok := s.controller.Current(s.sessionID)
	s.False(ok)

	// Reads of a finalized session keep nothing around either
	snap, err := s.controller.Reload(s.ctx, s.sessionID)
	s.Require().NoError(err)
	s.True(snap.Session.IsFinalized())
	_, ok = s.controller.Current(s.sessionID)
	s.False(ok)
	s.Equal(Status{}, s.controller.Status(s.sessionID))
}

func (s *ControllerSuite) TestUnknownSessionStateIsReleased() {
	for i := 0; i < 3; i++ {
		_, err := s.controller.Reload(s.ctx, "missing")
		s.Require().NoError(err)
	}
	_, ok := s.controller.Current("missing")
	s.False(ok)
}

func (s *ControllerSuite) TestFailureIsKeptUntilRetried() {
	s.readyToStart()
	s.store.chipEntryErr = errors.New("disk full")
	_, err := s.controller.StartChipEntry(s.ctx, s.sessionID)
	s.Require().Error(err)

	s.Equal("Failed to start chip entry: disk full", s.controller.Status(s.sessionID).LastError)
}
