// Package sqlstore provides a database/sql storage implementation for SQLite and MySQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/storage"
	"github.com/mcoot/pokersession/internal/storage/sqlstore/migrations"
)

// Store persists sessions, rosters and ledgers in a relational database
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Ensure Store implements the interface
var _ storage.Storage = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func timePtr(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func nullString[T ~string](value *T) sql.NullString {
	if value == nil || *value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*value), Valid: true}
}

func stringPtr[T ~string](value sql.NullString) *T {
	if !value.Valid {
		return nil
	}
	v := T(value.String)
	return &v
}

// OpenSQLite opens a SQLite database file and applies embedded migrations
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open(DialectSQLite.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single writer connection keeps conditional updates serialised without SQLITE_BUSY
	db.SetMaxOpenConns(1)
	return open(ctx, db, DialectSQLite)
}

// OpenMySQL connects to MySQL and applies embedded migrations.
// The DSN should carry charset=utf8mb4; timestamps are stored as unix milliseconds so parseTime is not needed.
func OpenMySQL(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("mysql dsn is required")
	}
	db, err := sql.Open(DialectMySQL.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql db: %w", err)
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)
	return open(ctx, db, DialectMySQL)
}

func open(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", dialect, err)
	}
	if err := applyMigrations(ctx, db, dialect, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, dialect: dialect}, nil
}

// Close closes the database handle
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks connectivity for health reporting
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// User operations

func (s *Store) SaveUser(ctx context.Context, user *model.User) error {
	username := sql.NullString{String: user.Username, Valid: user.Username != ""}
	_, err := s.db.ExecContext(ctx,
		s.dialect.upsert("users", []string{"id"}, []string{
			"id", "username", "display_name", "password_hash", "is_guest", "club_id", "created_at", "updated_at",
		}),
		string(user.ID),
		username,
		user.DisplayName,
		user.PasswordHash,
		user.IsGuest,
		nullString(user.ClubID),
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

const userColumns = "id, username, display_name, password_hash, is_guest, club_id, created_at, updated_at"

func (s *Store) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", string(id))
	return scanUser(row)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		user      model.User
		id        string
		username  sql.NullString
		clubID    sql.NullString
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&id, &username, &user.DisplayName, &user.PasswordHash, &user.IsGuest, &clubID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.ID = model.UserID(id)
	user.Username = username.String
	user.ClubID = stringPtr[model.ClubID](clubID)
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return &user, nil
}

// Club operations

func (s *Store) SaveClub(ctx context.Context, club *model.Club) error {
	_, err := s.db.ExecContext(ctx,
		s.dialect.upsert("clubs", []string{"id"}, []string{"id", "name", "join_code", "owner_id", "created_at"}),
		string(club.ID),
		club.Name,
		club.JoinCode,
		string(club.OwnerID),
		toMillis(club.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save club: %w", err)
	}
	return nil
}

func (s *Store) GetClub(ctx context.Context, id model.ClubID) (*model.Club, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, name, join_code, owner_id, created_at FROM clubs WHERE id = ?", string(id))
	return scanClub(row)
}

func (s *Store) GetClubByJoinCode(ctx context.Context, code string) (*model.Club, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, name, join_code, owner_id, created_at FROM clubs WHERE join_code = ?", code)
	return scanClub(row)
}

func scanClub(row *sql.Row) (*model.Club, error) {
	var (
		club      model.Club
		id        string
		ownerID   string
		createdAt int64
	)
	if err := row.Scan(&id, &club.Name, &club.JoinCode, &ownerID, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrClubNotFound
		}
		return nil, fmt.Errorf("get club: %w", err)
	}
	club.ID = model.ClubID(id)
	club.OwnerID = model.UserID(ownerID)
	club.CreatedAt = fromMillis(createdAt)
	return &club, nil
}

// Session operations

func (s *Store) CreateSession(ctx context.Context, session *model.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, name, currency, club_id, created_at, chip_entry_started_at, finalized_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(session.ID),
		session.Name,
		string(session.Currency),
		nullString(session.ClubID),
		toMillis(session.CreatedAt),
		nullMillis(session.ChipEntryStartedAt),
		nullMillis(session.FinalizedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create session %s: already exists", session.ID)
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

const sessionColumns = "id, name, currency, club_id, created_at, chip_entry_started_at, finalized_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		session     model.Session
		id          string
		currency    string
		clubID      sql.NullString
		createdAt   int64
		chipEntryAt sql.NullInt64
		finalizedAt sql.NullInt64
	)
	if err := row.Scan(&id, &session.Name, &currency, &clubID, &createdAt, &chipEntryAt, &finalizedAt); err != nil {
		return nil, err
	}
	session.ID = model.SessionID(id)
	session.Currency = model.Currency(currency)
	session.ClubID = stringPtr[model.ClubID](clubID)
	session.CreatedAt = fromMillis(createdAt)
	session.ChipEntryStartedAt = timePtr(chipEntryAt)
	session.FinalizedAt = timePtr(finalizedAt)
	return &session, nil
}

func (s *Store) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", string(id))
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (s *Store) ListSessions(ctx context.Context, clubID *model.ClubID) ([]*model.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions"
	var args []any
	if clubID != nil {
		query += " WHERE club_id = ?"
		args = append(args, string(*clubID))
	}
	query += " ORDER BY created_at ASC, seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*model.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// querier is the part of *sql.DB and *sql.Tx the read helpers need
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withSession runs fn in a transaction that owns the session for its duration.
// MySQL locks the session row with FOR UPDATE; SQLite has one connection, so the
// open transaction already excludes every other writer.
func (s *Store) withSession(ctx context.Context, id model.SessionID, op string, fn func(tx *sql.Tx, session *model.Session) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: start transaction: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := "SELECT " + sessionColumns + " FROM sessions WHERE id = ?"
	if s.dialect == DialectMySQL {
		query += " FOR UPDATE"
	}
	session, err := scanSession(tx.QueryRowContext(ctx, query, string(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrSessionNotFound
		}
		return fmt.Errorf("%s: lock session: %w", op, err)
	}

	if err := fn(tx, session); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (s *Store) SetChipEntryStarted(ctx context.Context, id model.SessionID, at time.Time) error {
	return s.withSession(ctx, id, "start chip entry", func(tx *sql.Tx, session *model.Session) error {
		players, err := listPlayers(ctx, tx, id)
		if err != nil {
			return err
		}
		ids := make([]model.PlayerID, len(players))
		for i, p := range players {
			ids[i] = p.ID
		}
		txns, err := listTransactions(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := storage.GuardChipEntry(session, ids, txns); err != nil {
			return err
		}
		return setTimestampIfNull(ctx, tx, id, "chip_entry_started_at", at, model.ErrChipEntryAlreadyStarted)
	})
}

func (s *Store) SetFinalized(ctx context.Context, id model.SessionID, at time.Time) error {
	return s.withSession(ctx, id, "finalize", func(tx *sql.Tx, session *model.Session) error {
		if err := storage.GuardFinalize(session); err != nil {
			return err
		}
		return setTimestampIfNull(ctx, tx, id, "finalized_at", at, model.ErrSessionFinalized)
	})
}

// setTimestampIfNull only changes the row while the column is still NULL
func setTimestampIfNull(ctx context.Context, tx *sql.Tx, id model.SessionID, column string, at time.Time, alreadySet error) error {
	result, err := tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE sessions SET %s = ? WHERE id = ? AND %s IS NULL", column, column),
		toMillis(at),
		string(id),
	)
	if err != nil {
		return fmt.Errorf("update session %s: %w", column, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session %s: %w", column, err)
	}
	if affected != 1 {
		return alreadySet
	}
	return nil
}

// Player operations

func (s *Store) SavePlayer(ctx context.Context, player *model.Player) error {
	return s.withSession(ctx, player.SessionID, "save player", func(tx *sql.Tx, session *model.Session) error {
		if err := storage.GuardAddPlayer(session); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			s.dialect.upsert("players", []string{"session_id", "id"}, []string{"id", "session_id", "name", "profile_id", "created_at"}),
			string(player.ID),
			string(player.SessionID),
			player.Name,
			nullString(player.ProfileID),
			toMillis(player.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("save player: %w", err)
		}
		return nil
	})
}

const playerColumns = "id, session_id, name, profile_id, created_at"

func scanPlayer(row rowScanner) (model.Player, error) {
	var (
		player    model.Player
		id        string
		sessionID string
		profileID sql.NullString
		createdAt int64
	)
	if err := row.Scan(&id, &sessionID, &player.Name, &profileID, &createdAt); err != nil {
		return model.Player{}, err
	}
	player.ID = model.PlayerID(id)
	player.SessionID = model.SessionID(sessionID)
	player.ProfileID = stringPtr[model.UserID](profileID)
	player.CreatedAt = fromMillis(createdAt)
	return player, nil
}

func (s *Store) GetPlayer(ctx context.Context, sessionID model.SessionID, id model.PlayerID) (*model.Player, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+playerColumns+" FROM players WHERE session_id = ? AND id = ?",
		string(sessionID), string(id),
	)
	player, err := scanPlayer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("get player: %w", err)
	}
	return &player, nil
}

func (s *Store) ListPlayers(ctx context.Context, sessionID model.SessionID) ([]model.Player, error) {
	return listPlayers(ctx, s.db, sessionID)
}

func listPlayers(ctx context.Context, q querier, sessionID model.SessionID) ([]model.Player, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+playerColumns+" FROM players WHERE session_id = ? ORDER BY created_at ASC, seq ASC",
		string(sessionID),
	)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	players := []model.Player{}
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, player)
	}
	return players, rows.Err()
}

// exists runs a SELECT 1 query and reports whether it matched a row
func exists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func isSeated(ctx context.Context, q querier, sessionID model.SessionID, id model.PlayerID) (bool, error) {
	seated, err := exists(ctx, q, "SELECT 1 FROM players WHERE session_id = ? AND id = ?", string(sessionID), string(id))
	if err != nil {
		return false, fmt.Errorf("check player: %w", err)
	}
	return seated, nil
}

func (s *Store) DeletePlayer(ctx context.Context, sessionID model.SessionID, id model.PlayerID) error {
	return s.withSession(ctx, sessionID, "delete player", func(tx *sql.Tx, session *model.Session) error {
		seated, err := isSeated(ctx, tx, sessionID, id)
		if err != nil {
			return err
		}
		referenced, err := exists(ctx, tx,
			"SELECT 1 FROM transactions WHERE session_id = ? AND player_id = ? LIMIT 1",
			string(sessionID), string(id),
		)
		if err != nil {
			return fmt.Errorf("check player transactions: %w", err)
		}
		if err := storage.GuardRemovePlayer(session, seated, referenced); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM players WHERE session_id = ? AND id = ?", string(sessionID), string(id)); err != nil {
			return fmt.Errorf("delete player: %w", err)
		}
		return nil
	})
}

// Ledger operations

func (s *Store) AppendTransaction(ctx context.Context, txn *model.Transaction) error {
	return s.withSession(ctx, txn.SessionID, "append transaction", func(tx *sql.Tx, session *model.Session) error {
		seated, err := isSeated(ctx, tx, txn.SessionID, txn.PlayerID)
		if err != nil {
			return err
		}
		if err := storage.GuardAppendTransaction(session, seated); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO transactions (id, session_id, player_id, type, amount, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			string(txn.ID),
			string(txn.SessionID),
			string(txn.PlayerID),
			string(txn.Type),
			txn.Amount,
			toMillis(txn.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}
		return nil
	})
}

func (s *Store) ListTransactions(ctx context.Context, sessionID model.SessionID) ([]model.Transaction, error) {
	return listTransactions(ctx, s.db, sessionID)
}

func listTransactions(ctx context.Context, q querier, sessionID model.SessionID) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, session_id, player_id, type, amount, created_at
		 FROM transactions WHERE session_id = ? ORDER BY created_at ASC, seq ASC`,
		string(sessionID),
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := []model.Transaction{}
	for rows.Next() {
		var (
			txn       model.Transaction
			id        string
			sid       string
			playerID  string
			txnType   string
			createdAt int64
		)
		// DECIMAL columns arrive as text from MySQL; database/sql parses them into float64
		if err := rows.Scan(&id, &sid, &playerID, &txnType, &txn.Amount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txn.ID = model.TransactionID(id)
		txn.SessionID = model.SessionID(sid)
		txn.PlayerID = model.PlayerID(playerID)
		txn.Type = model.TransactionType(txnType)
		txn.CreatedAt = fromMillis(createdAt)
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}
