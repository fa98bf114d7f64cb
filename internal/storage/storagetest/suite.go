// Package storagetest holds behaviour tests shared by every storage backend.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/storage"
)

// Suite runs the storage contract against a backend.
// Backends embed it and set NewStorage in their SetupTest.
type Suite struct {
	suite.Suite
	Storage storage.Storage
	Ctx     context.Context
	Now     time.Time
}

// Init prepares the suite for one test with a fresh backend
func (s *Suite) Init(store storage.Storage) {
	s.Storage = store
	s.Ctx = context.Background()
	s.Now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) createSession(id model.SessionID) *model.Session {
	session := &model.Session{
		ID:        id,
		Name:      "Friday game",
		Currency:  model.CurrencyILS,
		CreatedAt: s.Now,
	}
	s.Require().NoError(s.Storage.CreateSession(s.Ctx, session))
	return session
}

func (s *Suite) addPlayer(sessionID model.SessionID, id model.PlayerID, offset time.Duration) model.Player {
	player := model.Player{
		ID:        id,
		SessionID: sessionID,
		Name:      string(id),
		CreatedAt: s.Now.Add(offset),
	}
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, &player))
	return player
}

// User tests

func (s *Suite) TestSaveAndGetUser() {
	user := &model.User{
		ID:           "user-1",
		Username:     "alice",
		DisplayName:  "Alice",
		PasswordHash: "hash",
		CreatedAt:    s.Now,
	}
	s.Require().NoError(s.Storage.SaveUser(s.Ctx, user))

	retrieved, err := s.Storage.GetUser(s.Ctx, "user-1")
	s.Require().NoError(err)
	s.Equal("Alice", retrieved.DisplayName)
	s.False(retrieved.HasClub())

	byName, err := s.Storage.GetUserByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(user.ID, byName.ID)
}

func (s *Suite) TestGetUserNotFound() {
	_, err := s.Storage.GetUser(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrUserNotFound)

	_, err = s.Storage.GetUserByUsername(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestSaveUserUpdatesClub() {
	user := &model.User{ID: "user-1", DisplayName: "Alice", IsGuest: true, CreatedAt: s.Now}
	s.Require().NoError(s.Storage.SaveUser(s.Ctx, user))

	club := model.ClubID("club-1")
	user.ClubID = &club
	s.Require().NoError(s.Storage.SaveUser(s.Ctx, user))

	retrieved, err := s.Storage.GetUser(s.Ctx, "user-1")
	s.Require().NoError(err)
	s.True(retrieved.HasClub())
	s.Equal(club, *retrieved.ClubID)
}

// Club tests

func (s *Suite) TestSaveAndGetClub() {
	club := &model.Club{ID: "club-1", Name: "Tuesday Crew", JoinCode: "JOIN42", OwnerID: "user-1", CreatedAt: s.Now}
	s.Require().NoError(s.Storage.SaveClub(s.Ctx, club))

	retrieved, err := s.Storage.GetClub(s.Ctx, "club-1")
	s.Require().NoError(err)
	s.Equal("Tuesday Crew", retrieved.Name)

	byCode, err := s.Storage.GetClubByJoinCode(s.Ctx, "JOIN42")
	s.Require().NoError(err)
	s.Equal(club.ID, byCode.ID)

	_, err = s.Storage.GetClubByJoinCode(s.Ctx, "NOPE")
	s.ErrorIs(err, model.ErrClubNotFound)
}

// Session tests

func (s *Suite) TestCreateAndGetSession() {
	club := model.ClubID("club-1")
	session := &model.Session{
		ID:        "session-1",
		Name:      "Friday game",
		Currency:  model.CurrencyEUR,
		ClubID:    &club,
		CreatedAt: s.Now,
	}
	s.Require().NoError(s.Storage.CreateSession(s.Ctx, session))

	retrieved, err := s.Storage.GetSession(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Equal("Friday game", retrieved.Name)
	s.Equal(model.CurrencyEUR, retrieved.Currency)
	s.Require().NotNil(retrieved.ClubID)
	s.Equal(club, *retrieved.ClubID)
	s.True(s.Now.Equal(retrieved.CreatedAt))
	s.Nil(retrieved.ChipEntryStartedAt)
	s.Nil(retrieved.FinalizedAt)
}

func (s *Suite) TestGetSessionNotFound() {
	_, err := s.Storage.GetSession(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *Suite) TestListSessionsFiltersByClub() {
	clubA := model.ClubID("club-a")
	clubB := model.ClubID("club-b")
	s.Require().NoError(s.Storage.CreateSession(s.Ctx, &model.Session{ID: "s1", Name: "one", Currency: model.CurrencyUSD, ClubID: &clubA, CreatedAt: s.Now}))
	s.Require().NoError(s.Storage.CreateSession(s.Ctx, &model.Session{ID: "s2", Name: "two", Currency: model.CurrencyUSD, ClubID: &clubB, CreatedAt: s.Now.Add(time.Minute)}))
	s.Require().NoError(s.Storage.CreateSession(s.Ctx, &model.Session{ID: "s3", Name: "three", Currency: model.CurrencyUSD, CreatedAt: s.Now.Add(2 * time.Minute)}))

	all, err := s.Storage.ListSessions(s.Ctx, nil)
	s.Require().NoError(err)
	s.Len(all, 3)

	onlyA, err := s.Storage.ListSessions(s.Ctx, &clubA)
	s.Require().NoError(err)
	s.Require().Len(onlyA, 1)
	s.Equal(model.SessionID("s1"), onlyA[0].ID)
}

// readyForChipEntry seats one player with a buy-in so chip entry may start
func (s *Suite) readyForChipEntry(id model.SessionID) {
	s.createSession(id)
	s.addPlayer(id, "p1", 0)
	s.buyin(id, "p1", "t-p1")
}

func (s *Suite) buyin(sessionID model.SessionID, player model.PlayerID, id model.TransactionID) {
	s.Require().NoError(s.Storage.AppendTransaction(s.Ctx, &model.Transaction{
		ID: id, SessionID: sessionID, PlayerID: player, Type: model.TransactionBuyin, Amount: 100, CreatedAt: s.Now,
	}))
}

func (s *Suite) TestSetChipEntryStartedOnlyOnce() {
	s.readyForChipEntry("session-1")

	s.Require().NoError(s.Storage.SetChipEntryStarted(s.Ctx, "session-1", s.Now))

	err := s.Storage.SetChipEntryStarted(s.Ctx, "session-1", s.Now.Add(time.Minute))
	s.ErrorIs(err, model.ErrChipEntryAlreadyStarted)

	retrieved, err := s.Storage.GetSession(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Require().NotNil(retrieved.ChipEntryStartedAt)
	s.True(s.Now.Equal(*retrieved.ChipEntryStartedAt), "first write must win")
}

func (s *Suite) TestSetChipEntryStartedUnknownSession() {
	err := s.Storage.SetChipEntryStarted(s.Ctx, "nonexistent", s.Now)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *Suite) TestSetChipEntryStartedNeedsCompleteRoster() {
	s.createSession("session-1")
	s.ErrorIs(s.Storage.SetChipEntryStarted(s.Ctx, "session-1", s.Now), model.ErrRosterIncomplete)

	s.addPlayer("session-1", "p1", 0)
	s.addPlayer("session-1", "p2", time.Second)
	s.buyin("session-1", "p1", "t-p1")
	s.ErrorIs(s.Storage.SetChipEntryStarted(s.Ctx, "session-1", s.Now), model.ErrRosterIncomplete)

	retrieved, err := s.Storage.GetSession(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Nil(retrieved.ChipEntryStartedAt)

	s.buyin("session-1", "p2", "t-p2")
	s.NoError(s.Storage.SetChipEntryStarted(s.Ctx, "session-1", s.Now))
}

func (s *Suite) TestSetChipEntryStartedConcurrentWritersOneWins() {
	s.readyForChipEntry("session-1")

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Storage.SetChipEntryStarted(s.Ctx, "session-1", s.Now.Add(time.Duration(i)*time.Second))
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.ErrorIs(err, model.ErrChipEntryAlreadyStarted)
	}
	s.Equal(1, succeeded)
}

func (s *Suite) TestSetFinalizedIsAppendOnly() {
	s.readyForChipEntry("session-1")
	s.Require().NoError(s.Storage.SetChipEntryStarted(s.Ctx, "session-1", s.Now))

	s.Require().NoError(s.Storage.SetFinalized(s.Ctx, "session-1", s.Now))

	err := s.Storage.SetFinalized(s.Ctx, "session-1", s.Now.Add(time.Hour))
	s.ErrorIs(err, model.ErrSessionFinalized)

	retrieved, err := s.Storage.GetSession(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Require().NotNil(retrieved.FinalizedAt)
	s.True(s.Now.Equal(*retrieved.FinalizedAt))
}

func (s *Suite) TestSetFinalizedNeedsChipEntry() {
	s.readyForChipEntry("session-1")

	s.ErrorIs(s.Storage.SetFinalized(s.Ctx, "session-1", s.Now), model.ErrChipEntryNotStarted)
	s.ErrorIs(s.Storage.SetFinalized(s.Ctx, "nonexistent", s.Now), model.ErrSessionNotFound)

	retrieved, err := s.Storage.GetSession(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Nil(retrieved.FinalizedAt)
}

func (s *Suite) TestSetChipEntryLeavesOtherFieldsUntouched() {
	s.readyForChipEntry("session-1")
	created, err := s.Storage.GetSession(s.Ctx, "session-1")
	s.Require().NoError(err)

	s.Require().NoError(s.Storage.SetChipEntryStarted(s.Ctx, "session-1", s.Now))

	retrieved, err := s.Storage.GetSession(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Equal(created.Name, retrieved.Name)
	s.Equal(created.Currency, retrieved.Currency)
	s.Nil(retrieved.FinalizedAt)
}

// Player tests

func (s *Suite) TestSaveAndListPlayersInCreationOrder() {
	s.createSession("session-1")
	s.createSession("session-2")
	s.addPlayer("session-1", "p2", 2*time.Second)
	s.addPlayer("session-1", "p1", time.Second)
	s.addPlayer("session-2", "other", 0)

	players, err := s.Storage.ListPlayers(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Require().Len(players, 2)
	s.Equal(model.PlayerID("p1"), players[0].ID)
	s.Equal(model.PlayerID("p2"), players[1].ID)
}

func (s *Suite) TestSavePlayerRefusedOnceChipEntryStarted() {
	s.readyForChipEntry("session-1")
	s.Require().NoError(s.Storage.SetChipEntryStarted(s.Ctx, "session-1", s.Now))

	late := model.Player{ID: "late", SessionID: "session-1", Name: "Late", CreatedAt: s.Now}
	s.ErrorIs(s.Storage.SavePlayer(s.Ctx, &late), model.ErrChipEntryAlreadyStarted)

	orphan := model.Player{ID: "orphan", SessionID: "nonexistent", Name: "Orphan", CreatedAt: s.Now}
	s.ErrorIs(s.Storage.SavePlayer(s.Ctx, &orphan), model.ErrSessionNotFound)

	players, err := s.Storage.ListPlayers(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Len(players, 1)
}

func (s *Suite) TestGetPlayerScopedToSession() {
	s.createSession("session-1")
	s.addPlayer("session-1", "p1", 0)

	player, err := s.Storage.GetPlayer(s.Ctx, "session-1", "p1")
	s.Require().NoError(err)
	s.Equal(model.SessionID("session-1"), player.SessionID)

	_, err = s.Storage.GetPlayer(s.Ctx, "session-2", "p1")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestPlayerProfileLinkRoundTrips() {
	s.createSession("session-1")
	profile := model.UserID("user-9")
	player := model.Player{ID: "p1", SessionID: "session-1", Name: "Dana", ProfileID: &profile, CreatedAt: s.Now}
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, &player))

	retrieved, err := s.Storage.GetPlayer(s.Ctx, "session-1", "p1")
	s.Require().NoError(err)
	s.Require().NotNil(retrieved.ProfileID)
	s.Equal(profile, *retrieved.ProfileID)
}

func (s *Suite) TestDeletePlayer() {
	s.createSession("session-1")
	s.addPlayer("session-1", "p1", 0)
	s.addPlayer("session-1", "p2", time.Second)

	s.Require().NoError(s.Storage.DeletePlayer(s.Ctx, "session-1", "p1"))

	players, err := s.Storage.ListPlayers(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Require().Len(players, 1)
	s.Equal(model.PlayerID("p2"), players[0].ID)

	s.ErrorIs(s.Storage.DeletePlayer(s.Ctx, "session-1", "p1"), model.ErrPlayerNotFound)
}

func (s *Suite) TestDeletePlayerWithTransactionsRefused() {
	s.createSession("session-1")
	s.addPlayer("session-1", "p1", 0)
	s.buyin("session-1", "p1", "t-p1")

	s.ErrorIs(s.Storage.DeletePlayer(s.Ctx, "session-1", "p1"), model.ErrPlayerHasTransactions)

	players, err := s.Storage.ListPlayers(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Len(players, 1)
}

func (s *Suite) TestDeletePlayerRefusedOnceFinalized() {
	s.readyForChipEntry("session-1")
	s.addPlayer("session-1", "idle", time.Second)
	s.buyin("session-1", "idle", "t-idle")
	s.Require().NoError(s.Storage.SetChipEntryStarted(s.Ctx, "session-1", s.Now))
	s.Require().NoError(s.Storage.SetFinalized(s.Ctx, "session-1", s.Now))

	s.ErrorIs(s.Storage.DeletePlayer(s.Ctx, "session-1", "p1"), model.ErrSessionFinalized)
}

func (s *Suite) TestListPlayersEmpty() {
	players, err := s.Storage.ListPlayers(s.Ctx, "nonexistent")
	s.Require().NoError(err)
	s.Empty(players)
}

// Ledger tests

func (s *Suite) TestListTransactionsOrderedByCreatedAt() {
	s.createSession("session-1")
	s.createSession("session-2")
	s.addPlayer("session-1", "p1", 0)
	s.addPlayer("session-2", "x", 0)

	late := &model.Transaction{ID: "t-late", SessionID: "session-1", PlayerID: "p1", Type: model.TransactionCashout, Amount: 250.5, CreatedAt: s.Now.Add(time.Hour)}
	early := &model.Transaction{ID: "t-early", SessionID: "session-1", PlayerID: "p1", Type: model.TransactionBuyin, Amount: 100, CreatedAt: s.Now}
	other := &model.Transaction{ID: "t-other", SessionID: "session-2", PlayerID: "x", Type: model.TransactionBuyin, Amount: 5, CreatedAt: s.Now}
	s.Require().NoError(s.Storage.AppendTransaction(s.Ctx, late))
	s.Require().NoError(s.Storage.AppendTransaction(s.Ctx, early))
	s.Require().NoError(s.Storage.AppendTransaction(s.Ctx, other))

	txns, err := s.Storage.ListTransactions(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Require().Len(txns, 2)
	s.Equal(model.TransactionID("t-early"), txns[0].ID)
	s.Equal(model.TransactionID("t-late"), txns[1].ID)
	s.Equal(model.TransactionCashout, txns[1].Type)
	s.InDelta(250.5, txns[1].Amount, 0.001)
}

func (s *Suite) TestAppendTransactionNeedsSeatedPlayer() {
	s.createSession("session-1")

	ghost := &model.Transaction{ID: "t-ghost", SessionID: "session-1", PlayerID: "ghost", Type: model.TransactionBuyin, Amount: 5, CreatedAt: s.Now}
	s.ErrorIs(s.Storage.AppendTransaction(s.Ctx, ghost), model.ErrPlayerNotFound)

	lost := &model.Transaction{ID: "t-lost", SessionID: "nonexistent", PlayerID: "p1", Type: model.TransactionBuyin, Amount: 5, CreatedAt: s.Now}
	s.ErrorIs(s.Storage.AppendTransaction(s.Ctx, lost), model.ErrSessionNotFound)

	txns, err := s.Storage.ListTransactions(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Empty(txns)
}

func (s *Suite) TestAppendTransactionRefusedOnceFinalized() {
	s.readyForChipEntry("session-1")
	s.Require().NoError(s.Storage.SetChipEntryStarted(s.Ctx, "session-1", s.Now))
	s.Require().NoError(s.Storage.SetFinalized(s.Ctx, "session-1", s.Now))

	late := &model.Transaction{ID: "t-late", SessionID: "session-1", PlayerID: "p1", Type: model.TransactionCashout, Amount: 100, CreatedAt: s.Now}
	s.ErrorIs(s.Storage.AppendTransaction(s.Ctx, late), model.ErrSessionFinalized)

	txns, err := s.Storage.ListTransactions(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Len(txns, 1)
}

// Appends racing the finalize either land before it or are refused; none land after
func (s *Suite) TestAppendTransactionRacingFinalize() {
	s.readyForChipEntry("session-1")
	s.Require().NoError(s.Storage.SetChipEntryStarted(s.Ctx, "session-1", s.Now))

	const appenders = 4
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < appenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Storage.AppendTransaction(s.Ctx, &model.Transaction{
				ID: model.TransactionID(fmt.Sprintf("t-race-%d", i)), SessionID: "session-1", PlayerID: "p1",
				Type: model.TransactionCashout, Amount: 10, CreatedAt: s.Now.Add(time.Duration(i+1) * time.Second),
			})
			if err != nil {
				s.ErrorIs(err, model.ErrSessionFinalized)
				return
			}
			mu.Lock()
			accepted++
			mu.Unlock()
		}(i)
	}
	finalizeErr := s.Storage.SetFinalized(s.Ctx, "session-1", s.Now.Add(time.Minute))
	wg.Wait()
	s.Require().NoError(finalizeErr)

	txns, err := s.Storage.ListTransactions(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Len(txns, 1+accepted)

	late := &model.Transaction{ID: "t-after", SessionID: "session-1", PlayerID: "p1", Type: model.TransactionCashout, Amount: 1, CreatedAt: s.Now.Add(time.Hour)}
	s.ErrorIs(s.Storage.AppendTransaction(s.Ctx, late), model.ErrSessionFinalized)
}

func (s *Suite) TestListTransactionsEmpty() {
	txns, err := s.Storage.ListTransactions(s.Ctx, "nonexistent")
	s.Require().NoError(err)
	s.Empty(txns)
}
