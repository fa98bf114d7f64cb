package redis

import (
	"fmt"

	"github.com/mcoot/pokersession/internal/model"
)

// Key prefix for all session tracker data
const keyPrefix = "pkr"

func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

// usernameIndexKey returns the Redis key for the username -> user_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

func clubKey(id model.ClubID) string {
	return fmt.Sprintf("%s:club:%s", keyPrefix, id)
}

// joinCodeIndexKey returns the Redis key for the join code -> club_id index
func joinCodeIndexKey(code string) string {
	return fmt.Sprintf("%s:idx:join_code:%s", keyPrefix, code)
}

func sessionKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

// sessionsIndexKey returns the Redis key for the ZSET of all sessions scored by creation time
func sessionsIndexKey() string {
	return fmt.Sprintf("%s:idx:sessions", keyPrefix)
}

func playerKey(sessionID model.SessionID, id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s:%s", keyPrefix, sessionID, id)
}

// rosterIndexKey returns the Redis key for the ZSET of player IDs in a session scored by creation time
func rosterIndexKey(sessionID model.SessionID) string {
	return fmt.Sprintf("%s:idx:roster:%s", keyPrefix, sessionID)
}

// ledgerKey returns the Redis key for the append-only LIST of a session's transactions
func ledgerKey(sessionID model.SessionID) string {
	return fmt.Sprintf("%s:ledger:%s", keyPrefix, sessionID)
}
