package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	users         map[model.UserID]*model.User
	usernameIndex map[string]model.UserID
	clubs         map[model.ClubID]*model.Club
	joinCodeIndex map[string]model.ClubID
	sessions      map[model.SessionID]*model.Session
	sessionOrder  []model.SessionID
	players       map[model.SessionID][]model.Player
	transactions  map[model.SessionID][]model.Transaction
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users:         make(map[model.UserID]*model.User),
		usernameIndex: make(map[string]model.UserID),
		clubs:         make(map[model.ClubID]*model.Club),
		joinCodeIndex: make(map[string]model.ClubID),
		sessions:      make(map[model.SessionID]*model.Session),
		players:       make(map[model.SessionID][]model.Player),
		transactions:  make(map[model.SessionID][]model.Transaction),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.users[user.ID] = &u
	if user.Username != "" {
		s.usernameIndex[user.Username] = user.ID
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

// Club operations

func (s *Storage) SaveClub(ctx context.Context, club *model.Club) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *club
	s.clubs[club.ID] = &c
	s.joinCodeIndex[club.JoinCode] = club.ID
	return nil
}

func (s *Storage) GetClub(ctx context.Context, id model.ClubID) (*model.Club, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	club, ok := s.clubs[id]
	if !ok {
		return nil, model.ErrClubNotFound
	}
	c := *club
	return &c, nil
}

func (s *Storage) GetClubByJoinCode(ctx context.Context, code string) (*model.Club, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.joinCodeIndex[code]
	if !ok {
		return nil, model.ErrClubNotFound
	}
	c := *s.clubs[id]
	return &c, nil
}

// Session operations

func (s *Storage) CreateSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; !exists {
		s.sessionOrder = append(s.sessionOrder, session.ID)
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *Storage) ListSessions(ctx context.Context, clubID *model.ClubID) ([]*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*model.Session, 0, len(s.sessionOrder))
	for _, id := range s.sessionOrder {
		session := s.sessions[id]
		if clubID != nil && (session.ClubID == nil || *session.ClubID != *clubID) {
			continue
		}
		result = append(result, session.Clone())
	}
	return result, nil
}

func (s *Storage) SetChipEntryStarted(ctx context.Context, id model.SessionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return model.ErrSessionNotFound
	}
	roster := s.players[id]
	ids := make([]model.PlayerID, len(roster))
	for i, p := range roster {
		ids[i] = p.ID
	}
	if err := storage.GuardChipEntry(session, ids, s.transactions[id]); err != nil {
		return err
	}
	t := at.UTC()
	session.ChipEntryStartedAt = &t
	return nil
}

func (s *Storage) SetFinalized(ctx context.Context, id model.SessionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return model.ErrSessionNotFound
	}
	if err := storage.GuardFinalize(session); err != nil {
		return err
	}
	t := at.UTC()
	session.FinalizedAt = &t
	return nil
}

// Player operations

// seated reports whether the player is in the roster. Caller holds s.mu.
func (s *Storage) seated(sessionID model.SessionID, id model.PlayerID) bool {
	for _, p := range s.players[sessionID] {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[player.SessionID]
	if !ok {
		return model.ErrSessionNotFound
	}
	if err := storage.GuardAddPlayer(session); err != nil {
		return err
	}
	roster := s.players[player.SessionID]
	for i := range roster {
		if roster[i].ID == player.ID {
			roster[i] = *player
			return nil
		}
	}
	s.players[player.SessionID] = append(roster, *player)
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, sessionID model.SessionID, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.players[sessionID] {
		if p.ID == id {
			player := p
			return &player, nil
		}
	}
	return nil, model.ErrPlayerNotFound
}

func (s *Storage) ListPlayers(ctx context.Context, sessionID model.SessionID) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roster := s.players[sessionID]
	result := make([]model.Player, len(roster))
	copy(result, roster)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, sessionID model.SessionID, id model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return model.ErrSessionNotFound
	}

	hasTransactions := false
	for _, txn := range s.transactions[sessionID] {
		if txn.PlayerID == id {
			hasTransactions = true
			break
		}
	}
	if err := storage.GuardRemovePlayer(session, s.seated(sessionID, id), hasTransactions); err != nil {
		return err
	}

	roster := s.players[sessionID]
	for i, p := range roster {
		if p.ID == id {
			s.players[sessionID] = append(roster[:i:i], roster[i+1:]...)
			break
		}
	}
	return nil
}

// Ledger operations

func (s *Storage) AppendTransaction(ctx context.Context, txn *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[txn.SessionID]
	if !ok {
		return model.ErrSessionNotFound
	}
	if err := storage.GuardAppendTransaction(session, s.seated(txn.SessionID, txn.PlayerID)); err != nil {
		return err
	}
	s.transactions[txn.SessionID] = append(s.transactions[txn.SessionID], *txn)
	return nil
}

func (s *Storage) ListTransactions(ctx context.Context, sessionID model.SessionID) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ledger := s.transactions[sessionID]
	result := make([]model.Transaction, len(ledger))
	copy(result, ledger)
	// Stable keeps insertion order for equal timestamps
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
