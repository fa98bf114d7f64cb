// Package session handles session setup and the player roster.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mcoot/pokersession/internal/dependencies/clock"
	"github.com/mcoot/pokersession/internal/dependencies/idgen"
	"github.com/mcoot/pokersession/internal/events"
	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/services/stage"
	"github.com/mcoot/pokersession/internal/storage"
)

const (
	MaxSessionNameLength = 100
	MaxPlayerNameLength  = 50
)

// Service manages sessions and their rosters
type Service struct {
	storage   storage.Storage
	clock     clock.Clock
	ids       idgen.Generator
	publisher events.Publisher
	logger    *slog.Logger
}

// New creates a new session Service
func New(
	storage storage.Storage,
	clock clock.Clock,
	ids idgen.Generator,
	publisher events.Publisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage:   storage,
		clock:     clock,
		ids:       ids,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateSession starts tracking a new cash game. An empty currency defaults to USD.
func (s *Service) CreateSession(ctx context.Context, name string, currency string, clubID *model.ClubID) (*model.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxSessionNameLength {
		return nil, model.ErrInvalidSessionName
	}
	cur, err := model.ParseCurrency(currency)
	if err != nil {
		return nil, err
	}

	session := &model.Session{
		ID:        model.SessionID(s.ids.NewID()),
		Name:      name,
		Currency:  cur,
		CreatedAt: s.clock.Now(),
	}
	if clubID != nil {
		id := *clubID
		session.ClubID = &id
	}

	if err := s.storage.CreateSession(ctx, session); err != nil {
		s.logger.Error("failed to create session",
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("session created",
		slog.String("session_id", string(session.ID)),
		slog.String("currency", string(cur)),
	)

	s.publish(ctx, model.Event{
		Type:      model.EventSessionCreated,
		Timestamp: session.CreatedAt,
		SessionID: session.ID,
		Stage:     model.StagePlayerSetup,
	})

	return session, nil
}

// GetSession retrieves a session by ID
func (s *Service) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	return s.storage.GetSession(ctx, id)
}

// ListSessions lists sessions, optionally restricted to one club
func (s *Service) ListSessions(ctx context.Context, clubID *model.ClubID) ([]*model.Session, error) {
	return s.storage.ListSessions(ctx, clubID)
}

// CheckAccess reports whether a member of clubID may see the session.
// Sessions without a club are visible to everyone.
func CheckAccess(session *model.Session, clubID *model.ClubID) error {
	if session.ClubID == nil {
		return nil
	}
	if clubID == nil || *clubID != *session.ClubID {
		return model.ErrNotClubMember
	}
	return nil
}

// AddPlayer seats a player in the session
func (s *Service) AddPlayer(ctx context.Context, sessionID model.SessionID, name string, profileID *model.UserID) (*model.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxPlayerNameLength {
		return nil, model.ErrInvalidPlayerName
	}

	session, err := s.storage.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := storage.GuardAddPlayer(session); err != nil {
		return nil, err
	}

	player := &model.Player{
		ID:        model.PlayerID(s.ids.NewID()),
		SessionID: sessionID,
		Name:      name,
		CreatedAt: s.clock.Now(),
	}
	if profileID != nil && *profileID != "" {
		id := *profileID
		player.ProfileID = &id
	}

	// The store re-checks the guard atomically with the insert
	if err := s.storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}

	s.logger.Info("player added",
		slog.String("session_id", string(sessionID)),
		slog.String("player_id", string(player.ID)),
	)

	s.publishRoster(ctx, session, model.EventPlayerAdded, player)

	return player, nil
}

// RemovePlayer unseats a player. Not allowed once the session is finalized,
// nor once the player has ledger entries, which must keep referencing a seated player.
// Both rules are enforced by the store in the same step as the delete.
func (s *Service) RemovePlayer(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) error {
	session, err := s.storage.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	player, err := s.storage.GetPlayer(ctx, sessionID, playerID)
	if err != nil {
		return err
	}

	if err := s.storage.DeletePlayer(ctx, sessionID, playerID); err != nil {
		return err
	}

	s.logger.Info("player removed",
		slog.String("session_id", string(sessionID)),
		slog.String("player_id", string(playerID)),
	)

	s.publishRoster(ctx, session, model.EventPlayerRemoved, player)

	return nil
}

// ListPlayers returns the session roster in seating order
func (s *Service) ListPlayers(ctx context.Context, sessionID model.SessionID) ([]model.Player, error) {
	if _, err := s.storage.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.storage.ListPlayers(ctx, sessionID)
}

// publishRoster emits a roster event with the stage derived after the change
func (s *Service) publishRoster(ctx context.Context, session *model.Session, t model.EventType, player *model.Player) {
	players, err := s.storage.ListPlayers(ctx, session.ID)
	if err != nil && !errors.Is(err, model.ErrSessionNotFound) {
		s.logger.Warn("failed to list players for event",
			slog.String("session_id", string(session.ID)),
			slog.String("error", err.Error()),
		)
	}

	s.publish(ctx, model.Event{
		Type:      t,
		Timestamp: s.clock.Now(),
		SessionID: session.ID,
		Stage:     stage.Of(session, players),
		Payload: model.PlayerPayload{
			PlayerID: player.ID,
			Name:     player.Name,
		},
	})
}

func (s *Service) publish(ctx context.Context, event model.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
	}
}
