package model

import "time"

// PlayerID uniquely identifies a player seated in a session
type PlayerID string

// UserID identifies an authenticated account
type UserID string

// Player represents someone seated in a single session.
// SessionID never changes after creation.
type Player struct {
	ID        PlayerID
	SessionID SessionID
	Name      string
	ProfileID *UserID // optional link to a registered account
	CreatedAt time.Time
}

// User is an authenticated identity.
// Stored separately from players: one user may sit in many sessions.
type User struct {
	ID           UserID
	Username     string // login username (immutable), empty for guests
	DisplayName  string
	PasswordHash string // bcrypt hash, empty for guests
	IsGuest      bool
	ClubID       *ClubID // nil until onboarding completes
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasClub returns true once the user has joined a club
func (u *User) HasClub() bool {
	return u != nil && u.ClubID != nil && *u.ClubID != ""
}

// Club is the tenant sessions are grouped under
type Club struct {
	ID        ClubID
	Name      string
	JoinCode  string
	OwnerID   UserID
	CreatedAt time.Time
}
