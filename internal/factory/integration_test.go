package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/services/auth"
	"github.com/mcoot/pokersession/internal/services/gate"
	"github.com/mcoot/pokersession/internal/services/ledger"
	"github.com/mcoot/pokersession/internal/services/stage"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

// Helper to register an account that has joined a fresh club
func (s *IntegrationSuite) createHost(username string) (*auth.Identity, *model.Club) {
	identity, err := s.app.AuthService.Register(s.ctx, username, "password123", username)
	s.Require().NoError(err)

	c, err := s.app.ClubService.CreateClub(s.ctx, identity.UserID, username+"'s game")
	s.Require().NoError(err)
	return identity, c
}

func (s *IntegrationSuite) TestFullSessionLifecycle() {
	_, c := s.createHost("dana")

	// Step 1: Create a session in the club
	sess, err := s.app.SessionService.CreateSession(s.ctx, "Friday game", "ils", &c.ID)
	s.Require().NoError(err)
	s.Equal(model.CurrencyILS, sess.Currency)

	snap, err := s.app.Lifecycle.Reload(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(model.StagePlayerSetup, stage.Derive(snap))

	// Step 2: Seat three players
	alice, err := s.app.SessionService.AddPlayer(s.ctx, sess.ID, "Alice", nil)
	s.Require().NoError(err)
	bob, err := s.app.SessionService.AddPlayer(s.ctx, sess.ID, "Bob", nil)
	s.Require().NoError(err)
	carol, err := s.app.SessionService.AddPlayer(s.ctx, sess.ID, "Carol", nil)
	s.Require().NoError(err)

	snap, err = s.app.Lifecycle.Reload(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(model.StageBuyins, stage.Derive(snap))

	// Step 3: Only Alice buys in, so chip entry is blocked by two players
	_, err = s.app.LedgerService.RecordBuyin(s.ctx, sess.ID, alice.ID, 100)
	s.Require().NoError(err)

	result, err := s.app.Lifecycle.StartChipEntry(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.False(result.Applied)
	s.Equal(gate.ReasonPlayersMissingBuyins, result.Decision.Reason)
	s.Equal([]model.PlayerID{bob.ID, carol.ID}, result.Decision.Missing)
	s.Equal("2 players missing buy-ins", result.Decision.String())

	// Step 4: Everyone buys in, Bob twice
	_, err = s.app.LedgerService.RecordBuyin(s.ctx, sess.ID, bob.ID, 100)
	s.Require().NoError(err)
	_, err = s.app.LedgerService.RecordBuyin(s.ctx, sess.ID, bob.ID, 50)
	s.Require().NoError(err)
	_, err = s.app.LedgerService.RecordBuyin(s.ctx, sess.ID, carol.ID, 100)
	s.Require().NoError(err)

	s.app.MockClock.Advance(3 * time.Hour)
	result, err = s.app.Lifecycle.StartChipEntry(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.True(result.Applied)
	s.Equal(model.StageChipEntry, result.Stage)
	s.Require().NotNil(result.Snapshot.Session.ChipEntryStartedAt)
	s.Equal(s.app.MockClock.Now(), *result.Snapshot.Session.ChipEntryStartedAt)

	// Step 5: Cash-outs during chip entry
	_, err = s.app.LedgerService.RecordCashout(s.ctx, sess.ID, alice.ID, 220)
	s.Require().NoError(err)
	_, err = s.app.LedgerService.RecordCashout(s.ctx, sess.ID, bob.ID, 30)
	s.Require().NoError(err)
	_, err = s.app.LedgerService.RecordCashout(s.ctx, sess.ID, carol.ID, 100)
	s.Require().NoError(err)

	// Step 6: Finalize
	result, err = s.app.Lifecycle.Finalize(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.True(result.Applied)
	s.Equal(model.StageFinalized, result.Stage)

	totals := ledger.SumSession(sess.ID, result.Snapshot.Transactions)
	s.InDelta(350, totals.Buyins, 1e-9)
	s.InDelta(350, totals.Cashouts, 1e-9)
	s.InDelta(0, totals.Discrepancy(), 1e-9)

	// Step 7: The settlement is locked
	_, err = s.app.LedgerService.RecordBuyin(s.ctx, sess.ID, alice.ID, 10)
	s.ErrorIs(err, model.ErrSessionFinalized)
	_, err = s.app.SessionService.AddPlayer(s.ctx, sess.ID, "Dave", nil)
	s.ErrorIs(err, model.ErrSessionFinalized)

	result, err = s.app.Lifecycle.Finalize(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.False(result.Applied)
	s.Equal(gate.ReasonAlreadyFinalized, result.Decision.Reason)

	s.Equal([]model.EventType{
		model.EventSessionCreated,
		model.EventPlayerAdded,
		model.EventPlayerAdded,
		model.EventPlayerAdded,
		model.EventTransactionRecorded,
		model.EventTransactionRecorded,
		model.EventTransactionRecorded,
		model.EventTransactionRecorded,
		model.EventChipEntryStarted,
		model.EventTransactionRecorded,
		model.EventTransactionRecorded,
		model.EventTransactionRecorded,
		model.EventSessionFinalized,
	}, s.app.Events.Types())
}

func (s *IntegrationSuite) TestOnboardingAndClubScoping() {
	host, c := s.createHost("erin")

	guest, err := s.app.AuthService.CreateGuest(s.ctx, "Frank")
	s.Require().NoError(err)
	s.False(guest.HasClub())

	// Token must reflect membership after joining
	_, err = s.app.ClubService.JoinClub(s.ctx, guest.UserID, c.JoinCode)
	s.Require().NoError(err)
	refreshed, err := s.app.AuthService.ValidateToken(s.ctx, guest.Token)
	s.Require().NoError(err)
	s.True(refreshed.HasClub())

	hostIdentity, err := s.app.AuthService.ValidateToken(s.ctx, host.Token)
	s.Require().NoError(err)

	inClub, err := s.app.SessionService.CreateSession(s.ctx, "Club game", "", hostIdentity.User.ClubID)
	s.Require().NoError(err)

	// A different club can't see it
	_, other := s.createHost("gil")
	sessions, err := s.app.SessionService.ListSessions(s.ctx, &other.ID)
	s.Require().NoError(err)
	s.Empty(sessions)

	sessions, err = s.app.SessionService.ListSessions(s.ctx, refreshed.User.ClubID)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.Equal(inClub.ID, sessions[0].ID)
}

func (s *IntegrationSuite) TestPlayerWithBuyinCannotBeRemoved() {
	_, c := s.createHost("hana")
	sess, err := s.app.SessionService.CreateSession(s.ctx, "Game", "", &c.ID)
	s.Require().NoError(err)

	p, err := s.app.SessionService.AddPlayer(s.ctx, sess.ID, "Ira", nil)
	s.Require().NoError(err)
	_, err = s.app.LedgerService.RecordBuyin(s.ctx, sess.ID, p.ID, 40)
	s.Require().NoError(err)

	err = s.app.SessionService.RemovePlayer(s.ctx, sess.ID, p.ID)
	s.ErrorIs(err, model.ErrPlayerHasTransactions)
}

func (s *IntegrationSuite) TestLogoutRevokesToken() {
	identity, err := s.app.AuthService.CreateGuest(s.ctx, "Jo")
	s.Require().NoError(err)

	s.app.AuthService.Logout(identity.Token)

	_, err = s.app.AuthService.ValidateToken(s.ctx, identity.Token)
	s.ErrorIs(err, auth.ErrInvalidToken)
}
