// Package club manages club membership, the onboarding step every identity completes before using sessions.
package club

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mcoot/pokersession/internal/dependencies/clock"
	"github.com/mcoot/pokersession/internal/dependencies/idgen"
	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/storage"
)

const (
	JoinCodeLength = 6

	// Max attempts to find an unused join code
	maxCodeAttempts = 10
)

// ErrJoinCodeExhausted is returned when no free join code could be generated
var ErrJoinCodeExhausted = errors.New("could not generate a unique join code")

// Service handles club creation and membership
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	ids     idgen.Generator
	logger  *slog.Logger
}

// New creates a new club Service
func New(storage storage.Storage, clock clock.Clock, ids idgen.Generator, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		clock:   clock,
		ids:     ids,
		logger:  logger,
	}
}

// CreateClub creates a club owned by the user and makes them its first member
func (s *Service) CreateClub(ctx context.Context, ownerID model.UserID, name string) (*model.Club, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.ErrInvalidClubName
	}

	owner, err := s.storage.GetUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner.HasClub() {
		return nil, model.ErrAlreadyInClub
	}

	code, err := s.generateJoinCode(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	club := &model.Club{
		ID:        model.ClubID(s.ids.NewID()),
		Name:      name,
		JoinCode:  code,
		OwnerID:   ownerID,
		CreatedAt: now,
	}

	if err := s.storage.SaveClub(ctx, club); err != nil {
		return nil, err
	}

	clubID := club.ID
	owner.ClubID = &clubID
	owner.UpdatedAt = now
	if err := s.storage.SaveUser(ctx, owner); err != nil {
		return nil, err
	}

	s.logger.Info("club created",
		slog.String("club_id", string(club.ID)),
		slog.String("owner_id", string(ownerID)),
	)

	return club, nil
}

// JoinClub adds the user to the club with the given join code
func (s *Service) JoinClub(ctx context.Context, userID model.UserID, joinCode string) (*model.Club, error) {
	club, err := s.storage.GetClubByJoinCode(ctx, strings.ToUpper(strings.TrimSpace(joinCode)))
	if err != nil {
		return nil, err
	}

	user, err := s.storage.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.HasClub() {
		if *user.ClubID == club.ID {
			return club, nil
		}
		return nil, model.ErrAlreadyInClub
	}

	clubID := club.ID
	user.ClubID = &clubID
	user.UpdatedAt = s.clock.Now()
	if err := s.storage.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user joined club",
		slog.String("club_id", string(club.ID)),
		slog.String("user_id", string(userID)),
	)

	return club, nil
}

// MembershipOf returns the user's club, or ErrNotClubMember before onboarding
func (s *Service) MembershipOf(ctx context.Context, userID model.UserID) (*model.Club, error) {
	user, err := s.storage.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasClub() {
		return nil, model.ErrNotClubMember
	}
	return s.storage.GetClub(ctx, *user.ClubID)
}

func (s *Service) generateJoinCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := s.ids.Code(JoinCodeLength)
		_, err := s.storage.GetClubByJoinCode(ctx, code)
		if errors.Is(err, model.ErrClubNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", ErrJoinCodeExhausted
}
