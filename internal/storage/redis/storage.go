package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks connectivity for health reporting
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// reader is the read side shared by *redis.Client and a WATCHed *redis.Tx
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	ZScore(ctx context.Context, key, member string) *redis.FloatCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

func getJSON[T any](ctx context.Context, c reader, key string, notFound error) (*T, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound
		}
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if user.IsGuest {
		ttl = s.cfg.GuestUserTTL
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, userKey(user.ID), data, ttl)
	if user.Username != "" {
		pipe.Set(ctx, usernameIndexKey(user.Username), string(user.ID), 0)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	return getJSON[model.User](ctx, s.client, userKey(id), model.ErrUserNotFound)
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	id, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}
	return s.GetUser(ctx, model.UserID(id))
}

// Club operations

func (s *Storage) SaveClub(ctx context.Context, club *model.Club) error {
	data, err := json.Marshal(club)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, clubKey(club.ID), data, 0)
	pipe.Set(ctx, joinCodeIndexKey(club.JoinCode), string(club.ID), 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetClub(ctx context.Context, id model.ClubID) (*model.Club, error) {
	return getJSON[model.Club](ctx, s.client, clubKey(id), model.ErrClubNotFound)
}

func (s *Storage) GetClubByJoinCode(ctx context.Context, code string) (*model.Club, error) {
	id, err := s.client.Get(ctx, joinCodeIndexKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrClubNotFound
		}
		return nil, err
	}
	return s.GetClub(ctx, model.ClubID(id))
}

// Session operations

func (s *Storage) CreateSession(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), data, 0)
	pipe.ZAdd(ctx, sessionsIndexKey(), redis.Z{
		Score:  float64(session.CreatedAt.UnixMilli()),
		Member: string(session.ID),
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	return getJSON[model.Session](ctx, s.client, sessionKey(id), model.ErrSessionNotFound)
}

func (s *Storage) ListSessions(ctx context.Context, clubID *model.ClubID) ([]*model.Session, error) {
	ids, err := s.client.ZRange(ctx, sessionsIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Session{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(model.SessionID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	sessions := make([]*model.Session, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		var session model.Session
		if err := json.Unmarshal([]byte(str), &session); err != nil {
			continue // Skip invalid data
		}
		if clubID != nil && (session.ClubID == nil || *session.ClubID != *clubID) {
			continue
		}
		sessions = append(sessions, &session)
	}
	return sessions, nil
}

func (s *Storage) SetChipEntryStarted(ctx context.Context, id model.SessionID, at time.Time) error {
	return s.watchSession(ctx, id, func(tx *redis.Tx, session *model.Session) (func(redis.Pipeliner), error) {
		players, err := listPlayers(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		ids := make([]model.PlayerID, len(players))
		for i, p := range players {
			ids[i] = p.ID
		}
		txns, err := listTransactions(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if err := storage.GuardChipEntry(session, ids, txns); err != nil {
			return nil, err
		}

		t := at.UTC()
		session.ChipEntryStartedAt = &t
		return putSession(ctx, session)
	})
}

func (s *Storage) SetFinalized(ctx context.Context, id model.SessionID, at time.Time) error {
	return s.watchSession(ctx, id, func(tx *redis.Tx, session *model.Session) (func(redis.Pipeliner), error) {
		if err := storage.GuardFinalize(session); err != nil {
			return nil, err
		}
		t := at.UTC()
		session.FinalizedAt = &t
		return putSession(ctx, session)
	})
}

// putSession queues the updated session record
func putSession(ctx context.Context, session *model.Session) (func(redis.Pipeliner), error) {
	data, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}
	return func(pipe redis.Pipeliner) {
		pipe.Set(ctx, sessionKey(session.ID), data, redis.KeepTTL)
	}, nil
}

// watchSession WATCHes the session, roster and ledger keys, runs check against the
// session read under the watch, and applies the returned writes in MULTI/EXEC.
// Every guarded write touches one of those keys, so a concurrent writer aborts the
// EXEC and the check runs again on the winner's state.
func (s *Storage) watchSession(ctx context.Context, id model.SessionID, check func(tx *redis.Tx, session *model.Session) (func(redis.Pipeliner), error)) error {
	txf := func(tx *redis.Tx) error {
		session, err := getJSON[model.Session](ctx, tx, sessionKey(id), model.ErrSessionNotFound)
		if err != nil {
			return err
		}
		write, err := check(tx, session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			write(pipe)
			return nil
		})
		return err
	}

	retries := max(s.cfg.MaxWatchRetries, 1)
	for i := 0; i < retries; i++ {
		err := s.client.Watch(ctx, txf, sessionKey(id), rosterIndexKey(id), ledgerKey(id))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("conditional write to session %s: %w", id, redis.TxFailedErr)
}

func isSeated(ctx context.Context, r reader, sessionID model.SessionID, id model.PlayerID) (bool, error) {
	err := r.ZScore(ctx, rosterIndexKey(sessionID), string(id)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	return s.watchSession(ctx, player.SessionID, func(tx *redis.Tx, session *model.Session) (func(redis.Pipeliner), error) {
		if err := storage.GuardAddPlayer(session); err != nil {
			return nil, err
		}
		return func(pipe redis.Pipeliner) {
			pipe.Set(ctx, playerKey(player.SessionID, player.ID), data, 0)
			pipe.ZAdd(ctx, rosterIndexKey(player.SessionID), redis.Z{
				Score:  float64(player.CreatedAt.UnixMilli()),
				Member: string(player.ID),
			})
		}, nil
	})
}

func (s *Storage) GetPlayer(ctx context.Context, sessionID model.SessionID, id model.PlayerID) (*model.Player, error) {
	return getJSON[model.Player](ctx, s.client, playerKey(sessionID, id), model.ErrPlayerNotFound)
}

func (s *Storage) ListPlayers(ctx context.Context, sessionID model.SessionID) ([]model.Player, error) {
	return listPlayers(ctx, s.client, sessionID)
}

func listPlayers(ctx context.Context, r reader, sessionID model.SessionID) ([]model.Player, error) {
	ids, err := r.ZRange(ctx, rosterIndexKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Player{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = playerKey(sessionID, model.PlayerID(id))
	}

	values, err := r.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	players := make([]model.Player, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		var player model.Player
		if err := json.Unmarshal([]byte(str), &player); err != nil {
			continue
		}
		players = append(players, player)
	}

	// ZSET scores are millisecond resolution; restore full ordering
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].CreatedAt.Before(players[j].CreatedAt)
	})
	return players, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, sessionID model.SessionID, id model.PlayerID) error {
	return s.watchSession(ctx, sessionID, func(tx *redis.Tx, session *model.Session) (func(redis.Pipeliner), error) {
		seated, err := isSeated(ctx, tx, sessionID, id)
		if err != nil {
			return nil, err
		}
		txns, err := listTransactions(ctx, tx, sessionID)
		if err != nil {
			return nil, err
		}
		referenced := false
		for _, txn := range txns {
			if txn.PlayerID == id {
				referenced = true
				break
			}
		}
		if err := storage.GuardRemovePlayer(session, seated, referenced); err != nil {
			return nil, err
		}

		return func(pipe redis.Pipeliner) {
			pipe.Del(ctx, playerKey(sessionID, id))
			pipe.ZRem(ctx, rosterIndexKey(sessionID), string(id))
		}, nil
	})
}

// Ledger operations

func (s *Storage) AppendTransaction(ctx context.Context, txn *model.Transaction) error {
	data, err := json.Marshal(txn)
	if err != nil {
		return err
	}

	return s.watchSession(ctx, txn.SessionID, func(tx *redis.Tx, session *model.Session) (func(redis.Pipeliner), error) {
		seated, err := isSeated(ctx, tx, txn.SessionID, txn.PlayerID)
		if err != nil {
			return nil, err
		}
		if err := storage.GuardAppendTransaction(session, seated); err != nil {
			return nil, err
		}
		return func(pipe redis.Pipeliner) {
			pipe.RPush(ctx, ledgerKey(txn.SessionID), data)
		}, nil
	})
}

func (s *Storage) ListTransactions(ctx context.Context, sessionID model.SessionID) ([]model.Transaction, error) {
	return listTransactions(ctx, s.client, sessionID)
}

func listTransactions(ctx context.Context, r reader, sessionID model.SessionID) ([]model.Transaction, error) {
	values, err := r.LRange(ctx, ledgerKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	txns := make([]model.Transaction, 0, len(values))
	for _, val := range values {
		var txn model.Transaction
		if err := json.Unmarshal([]byte(val), &txn); err != nil {
			return nil, fmt.Errorf("decode ledger entry: %w", err)
		}
		txns = append(txns, txn)
	}

	// The list is in append order, which breaks created_at ties
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].CreatedAt.Before(txns[j].CreatedAt)
	})
	return txns, nil
}
