package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/pokersession/internal/dependencies/clock"
	"github.com/mcoot/pokersession/internal/dependencies/idgen"
	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidUsername    = errors.New("username is required")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidDisplayName = errors.New("display name is required")
)

const (
	tokenIssuer       = "pokersession"
	minPasswordLength = 8
)

// Identity is a resolved, authenticated caller.
// It is passed explicitly to everything that needs to know who is acting.
type Identity struct {
	Token     string
	UserID    model.UserID
	User      model.User
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasClub returns true once the identity has completed onboarding
func (i *Identity) HasClub() bool {
	return i != nil && i.User.HasClub()
}

// Service handles accounts and token-based identity
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	ids     idgen.Generator

	secret   []byte
	tokenTTL time.Duration

	// revoked maps token IDs to their expiry so logout survives until the token would lapse anyway
	mu      sync.Mutex
	revoked map[string]time.Time
}

// Config holds configuration for the auth service
type Config struct {
	Secret   string
	TokenTTL time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		Secret:   "dev-secret-change-me",
		TokenTTL: 24 * time.Hour,
	}
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, ids idgen.Generator, cfg Config) *Service {
	defaults := DefaultConfig()
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = defaults.TokenTTL
	}
	if cfg.Secret == "" {
		cfg.Secret = defaults.Secret
	}
	return &Service{
		storage:  storage,
		clock:    clock,
		ids:      ids,
		secret:   []byte(cfg.Secret),
		tokenTTL: cfg.TokenTTL,
		revoked:  make(map[string]time.Time),
	}
}

// CreateGuest creates an account without credentials and signs a token for it
func (s *Service) CreateGuest(ctx context.Context, displayName string) (*Identity, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, ErrInvalidDisplayName
	}

	now := s.clock.Now()
	user := &model.User{
		ID:          model.UserID(s.ids.NewID()),
		DisplayName: displayName,
		IsGuest:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

// Register creates a registered account and signs a token for it
func (s *Service) Register(ctx context.Context, username, password, displayName string) (*Identity, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, ErrInvalidUsername
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = username
	}

	// Check if username exists
	_, err := s.storage.GetUserByUsername(ctx, username)
	if err == nil {
		return nil, ErrUsernameExists
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &model.User{
		ID:           model.UserID(s.ids.NewID()),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

// Login checks a registered account's password and signs a token
func (s *Service) Login(ctx context.Context, username, password string) (*Identity, error) {
	user, err := s.storage.GetUserByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

type claims struct {
	jwt.RegisteredClaims
	Guest bool `json:"guest,omitempty"`
}

// ValidateToken verifies a token and resolves its identity from storage,
// so membership changes made after the token was issued are visible.
func (s *Service) ValidateToken(ctx context.Context, token string) (*Identity, error) {
	parsed := &claims{}
	_, err := jwt.ParseWithClaims(token, parsed,
		func(t *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if s.isRevoked(parsed.ID) {
		return nil, ErrInvalidToken
	}

	user, err := s.storage.GetUser(ctx, model.UserID(parsed.Subject))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	return &Identity{
		Token:     token,
		UserID:    user.ID,
		User:      *user,
		IssuedAt:  parsed.IssuedAt.Time,
		ExpiresAt: parsed.ExpiresAt.Time,
	}, nil
}

// Logout revokes a token. Unknown or malformed tokens are ignored.
func (s *Service) Logout(token string) {
	parsed := &claims{}
	_, err := jwt.ParseWithClaims(token, parsed,
		func(t *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || parsed.ID == "" || parsed.ExpiresAt == nil {
		return
	}

	s.mu.Lock()
	s.revoked[parsed.ID] = parsed.ExpiresAt.Time
	s.mu.Unlock()
}

// GetUser returns a user by ID
func (s *Service) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	return s.storage.GetUser(ctx, id)
}

// CleanRevoked drops revocations for tokens that have expired anyway (call periodically)
func (s *Service) CleanRevoked() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, expires := range s.revoked {
		if now.After(expires) {
			delete(s.revoked, id)
		}
	}
}

func (s *Service) isRevoked(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[id]
	return ok
}

// issue signs a token for the user
func (s *Service) issue(user *model.User) (*Identity, error) {
	now := s.clock.Now()
	expires := now.Add(s.tokenTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ids.NewID(),
			Issuer:    tokenIssuer,
			Subject:   string(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Guest: user.IsGuest,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Identity{
		Token:     signed,
		UserID:    user.ID,
		User:      *user,
		IssuedAt:  now,
		ExpiresAt: expires,
	}, nil
}
