package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/pokersession/internal/dependencies/mocks"
	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/storage/memory"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Now().UTC().Truncate(time.Second))
	s.service = New(s.storage, s.clock, mocks.NewMockIDs(), Config{Secret: "test-secret", TokenTTL: 24 * time.Hour})
	s.ctx = context.Background()
}

// CreateGuest tests

func (s *ServiceSuite) TestCreateGuestSucceeds() {
	identity, err := s.service.CreateGuest(s.ctx, "Alice")
	s.Require().NoError(err)

	s.NotEmpty(identity.Token)
	s.Equal("Alice", identity.User.DisplayName)
	s.True(identity.User.IsGuest)
	s.False(identity.HasClub())
}

func (s *ServiceSuite) TestCreateGuestPersistsUser() {
	identity, _ := s.service.CreateGuest(s.ctx, "Alice")

	user, err := s.storage.GetUser(s.ctx, identity.UserID)
	s.Require().NoError(err)
	s.Equal("Alice", user.DisplayName)
}

func (s *ServiceSuite) TestCreateGuestRequiresName() {
	_, err := s.service.CreateGuest(s.ctx, "   ")
	s.ErrorIs(err, ErrInvalidDisplayName)
}

// Register tests

func (s *ServiceSuite) TestRegisterHashesPassword() {
	_, err := s.service.Register(s.ctx, "Alice", "password123", "Alice")
	s.Require().NoError(err)

	user, err := s.storage.GetUserByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.NotEmpty(user.PasswordHash)
	s.NotEqual("password123", user.PasswordHash)
	s.False(user.IsGuest)
}

func (s *ServiceSuite) TestRegisterFailsIfUsernameExists() {
	_, _ = s.service.Register(s.ctx, "alice", "password123", "Alice")

	_, err := s.service.Register(s.ctx, "ALICE", "different1", "Alice2")
	s.ErrorIs(err, ErrUsernameExists)
}

func (s *ServiceSuite) TestRegisterValidation() {
	_, err := s.service.Register(s.ctx, "", "password123", "x")
	s.ErrorIs(err, ErrInvalidUsername)

	_, err = s.service.Register(s.ctx, "bob", "short", "Bob")
	s.ErrorIs(err, ErrWeakPassword)
}

// Login tests

func (s *ServiceSuite) TestLoginSucceeds() {
	registered, _ := s.service.Register(s.ctx, "alice", "password123", "Alice")

	identity, err := s.service.Login(s.ctx, "alice", "password123")
	s.Require().NoError(err)
	s.Equal(registered.UserID, identity.UserID)
}

func (s *ServiceSuite) TestLoginFailsWithWrongPassword() {
	_, _ = s.service.Register(s.ctx, "alice", "password123", "Alice")

	_, err := s.service.Login(s.ctx, "alice", "wrongpassword")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestLoginFailsWithUnknownUser() {
	_, err := s.service.Login(s.ctx, "nobody", "password123")
	s.ErrorIs(err, ErrInvalidCredentials)
}

// ValidateToken tests

func (s *ServiceSuite) TestValidateTokenSucceeds() {
	identity, _ := s.service.CreateGuest(s.ctx, "Alice")

	validated, err := s.service.ValidateToken(s.ctx, identity.Token)
	s.Require().NoError(err)
	s.Equal(identity.UserID, validated.UserID)
}

func (s *ServiceSuite) TestValidateTokenSeesLaterMembership() {
	identity, _ := s.service.CreateGuest(s.ctx, "Alice")

	user, _ := s.storage.GetUser(s.ctx, identity.UserID)
	club := model.ClubID("club-1")
	user.ClubID = &club
	s.Require().NoError(s.storage.SaveUser(s.ctx, user))

	validated, err := s.service.ValidateToken(s.ctx, identity.Token)
	s.Require().NoError(err)
	s.True(validated.HasClub())
}

func (s *ServiceSuite) TestValidateTokenFailsWithGarbage() {
	_, err := s.service.ValidateToken(s.ctx, "invalid_token")
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestValidateTokenFailsWithOtherSecret() {
	other := New(s.storage, s.clock, mocks.NewMockIDs(), Config{Secret: "other-secret"})
	identity, _ := other.CreateGuest(s.ctx, "Mallory")

	_, err := s.service.ValidateToken(s.ctx, identity.Token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestValidateTokenFailsWhenExpired() {
	identity, _ := s.service.CreateGuest(s.ctx, "Alice")

	s.clock.Advance(25 * time.Hour)

	_, err := s.service.ValidateToken(s.ctx, identity.Token)
	s.ErrorIs(err, ErrInvalidToken)
}

// Logout tests

func (s *ServiceSuite) TestLogoutRevokesToken() {
	identity, _ := s.service.CreateGuest(s.ctx, "Alice")

	s.service.Logout(identity.Token)

	_, err := s.service.ValidateToken(s.ctx, identity.Token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestLogoutLeavesOtherTokensValid() {
	alice, _ := s.service.CreateGuest(s.ctx, "Alice")
	bob, _ := s.service.CreateGuest(s.ctx, "Bob")

	s.service.Logout(alice.Token)

	_, err := s.service.ValidateToken(s.ctx, bob.Token)
	s.NoError(err)
}

func (s *ServiceSuite) TestLogoutNoopForUnknownToken() {
	// Should not panic
	s.service.Logout("unknown_token")
}

func (s *ServiceSuite) TestCleanRevokedDropsExpiredEntries() {
	identity, _ := s.service.CreateGuest(s.ctx, "Alice")
	s.service.Logout(identity.Token)
	s.Len(s.service.revoked, 1)

	s.clock.Advance(25 * time.Hour)
	s.service.CleanRevoked()

	s.Empty(s.service.revoked)
}
