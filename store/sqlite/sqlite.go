/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements game.TxStore and users.Store on SQLite. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences - with
  transactions opened at the SERIALIZABLE level. SQLite transactions are
  serializable by construction, which is exactly the isolation contract the
  tap admission path assumes.

KEY TABLES:
  rounds:  One row per round; total_score is the denormalized running sum,
           winner_id stays NULL until resolution
  taps:    Append-only tap ledger; UNIQUE(round_id, user_id, tap_number)
           backs the contiguous-sequence invariant at the schema level
  users:   Credential records consumed by the auth surface

TAP IMMUTABILITY:
  No UPDATE and no DELETE statements touch the taps table. The round row is
  mutated only by the atomic total_score increment and the conditional
  winner write.

CONCURRENCY:
  A sync.Mutex serializes in-process writers on top of SQLite's own
  single-writer model; busy/locked errors from concurrent processes map to
  game.ErrTxConflict so the ledger's retry loop can handle them. The pool
  is pinned to one connection, which also makes ":memory:" databases safe
  to share across goroutines.

WAL MODE:
  The database is opened with WAL (Write-Ahead Logging): readers don't
  block, one writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/guss.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - game/store.go: Interface definitions and contracts
  - game/ledger.go: The transaction that runs through WithTx
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/guss/tap-arena/game"
	"github.com/guss/tap-arena/users"
)

// timeLayout pads nanoseconds to a fixed width so stored timestamps compare
// correctly as strings (MIN(created_at) is the winner tie-break).
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements game.TxStore and users.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: SQLite allows one writer anyway, and this keeps
	// in-memory databases stable across goroutines.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rounds (
		id TEXT PRIMARY KEY,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		total_score INTEGER NOT NULL DEFAULT 0,
		winner_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_rounds_created_at
		ON rounds(created_at DESC);

	-- Append-only tap ledger
	CREATE TABLE IF NOT EXISTS taps (
		id TEXT PRIMARY KEY,
		round_id TEXT NOT NULL REFERENCES rounds(id),
		user_id TEXT NOT NULL,
		score INTEGER NOT NULL,
		tap_number INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: backs the contiguous per-(user, round) sequence invariant.
	-- Two transactions assigning the same tap number cannot both commit.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_taps_sequence
		ON taps(round_id, user_id, tap_number);

	-- Hot path for per-user aggregates and last-tap lookups
	CREATE INDEX IF NOT EXISTS idx_taps_round_user
		ON taps(round_id, user_id);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ROUND STORE (game.Store interface)
// =============================================================================

// InsertRound persists a newly scheduled round.
func (s *Store) InsertRound(ctx context.Context, round game.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRound(ctx, s.db, round)
}

func insertRound(ctx context.Context, db dbtx, round game.Round) error {
	query := `
		INSERT INTO rounds (id, start_date, end_date, created_at, total_score, winner_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var winnerID *string
	if round.WinnerID != nil {
		id := string(*round.WinnerID)
		winnerID = &id
	}

	_, err := db.ExecContext(ctx, query,
		round.ID,
		round.StartDate.UTC().Format(timeLayout),
		round.EndDate.UTC().Format(timeLayout),
		round.CreatedAt.UTC().Format(timeLayout),
		round.TotalScore,
		winnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert round: %w", mapSQLiteError(err))
	}
	return nil
}

// GetRound returns a round by identity, or nil if absent.
func (s *Store) GetRound(ctx context.Context, id game.RoundID) (*game.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getRound(ctx, s.db, id)
}

func getRound(ctx context.Context, db dbtx, id game.RoundID) (*game.Round, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, start_date, end_date, created_at, total_score, winner_id
		 FROM rounds WHERE id = ?`, id)

	round, err := scanRound(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", mapSQLiteError(err))
	}
	return round, nil
}

// ListRounds returns all rounds, newest first.
func (s *Store) ListRounds(ctx context.Context) ([]game.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, start_date, end_date, created_at, total_score, winner_id
		 FROM rounds ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", mapSQLiteError(err))
	}
	defer rows.Close()

	var rounds []game.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, *round)
	}
	return rounds, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRound(row scanner) (*game.Round, error) {
	var (
		round     game.Round
		startDate string
		endDate   string
		createdAt string
		winnerID  sql.NullString
	)

	err := row.Scan(&round.ID, &startDate, &endDate, &createdAt, &round.TotalScore, &winnerID)
	if err != nil {
		return nil, err
	}

	if round.StartDate, err = time.Parse(timeLayout, startDate); err != nil {
		return nil, fmt.Errorf("failed to parse round start_date: %w", err)
	}
	if round.EndDate, err = time.Parse(timeLayout, endDate); err != nil {
		return nil, fmt.Errorf("failed to parse round end_date: %w", err)
	}
	if round.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse round created_at: %w", err)
	}
	if winnerID.Valid {
		id := game.UserID(winnerID.String)
		round.WinnerID = &id
	}
	return &round, nil
}

// =============================================================================
// TAP STORE (game.Store interface)
// =============================================================================

// LastTapNumber returns the user's highest tap number in the round, 0 if none.
func (s *Store) LastTapNumber(ctx context.Context, roundID game.RoundID, userID game.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lastTapNumber(ctx, s.db, roundID, userID)
}

func lastTapNumber(ctx context.Context, db dbtx, roundID game.RoundID, userID game.UserID) (int, error) {
	var last int
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(tap_number), 0) FROM taps WHERE round_id = ? AND user_id = ?`,
		roundID, userID,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to read last tap number: %w", mapSQLiteError(err))
	}
	return last, nil
}

// InsertTap appends a tap row.
func (s *Store) InsertTap(ctx context.Context, tap game.Tap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertTap(ctx, s.db, tap)
}

func insertTap(ctx context.Context, db dbtx, tap game.Tap) error {
	query := `
		INSERT INTO taps (id, round_id, user_id, score, tap_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		tap.ID,
		tap.RoundID,
		tap.UserID,
		tap.Score,
		tap.TapNumber,
		tap.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		// A sequence-index violation means a concurrent transaction won the
		// same tap number: a serialization conflict, retried by the ledger.
		if isUniqueConstraintError(err) {
			return game.ErrTxConflict
		}
		return fmt.Errorf("failed to insert tap: %w", mapSQLiteError(err))
	}
	return nil
}

// IncrementRoundScore atomically adds delta to the round's total score.
func (s *Store) IncrementRoundScore(ctx context.Context, roundID game.RoundID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return incrementRoundScore(ctx, s.db, roundID, delta)
}

func incrementRoundScore(ctx context.Context, db dbtx, roundID game.RoundID, delta int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE rounds SET total_score = total_score + ? WHERE id = ?`,
		delta, roundID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment round score: %w", mapSQLiteError(err))
	}
	return nil
}

// UserRoundScore returns the sum of the user's tap scores in the round.
func (s *Store) UserRoundScore(ctx context.Context, roundID game.RoundID, userID game.UserID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return userRoundScore(ctx, s.db, roundID, userID)
}

func userRoundScore(ctx context.Context, db dbtx, roundID game.RoundID, userID game.UserID) (int64, error) {
	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(score), 0) FROM taps WHERE round_id = ? AND user_id = ?`,
		roundID, userID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum user score: %w", mapSQLiteError(err))
	}
	return total, nil
}

// WinnerAggregates returns per-user score sums and first-tap times.
func (s *Store) WinnerAggregates(ctx context.Context, roundID game.RoundID) ([]game.UserAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return winnerAggregates(ctx, s.db, roundID)
}

func winnerAggregates(ctx context.Context, db dbtx, roundID game.RoundID) ([]game.UserAggregate, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT user_id, SUM(score), MIN(created_at)
		 FROM taps WHERE round_id = ? GROUP BY user_id`,
		roundID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate taps: %w", mapSQLiteError(err))
	}
	defer rows.Close()

	var aggs []game.UserAggregate
	for rows.Next() {
		var agg game.UserAggregate
		var firstTap string
		if err := rows.Scan(&agg.UserID, &agg.TotalScore, &firstTap); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		// The tie-break key: a corrupt timestamp must not silently rank as
		// the zero time.
		if agg.FirstTapAt, err = time.Parse(timeLayout, firstTap); err != nil {
			return nil, fmt.Errorf("failed to parse tap created_at: %w", err)
		}
		aggs = append(aggs, agg)
	}
	return aggs, rows.Err()
}

// SetWinnerIfUnset writes the winner only when winner_id is still null.
func (s *Store) SetWinnerIfUnset(ctx context.Context, roundID game.RoundID, winnerID game.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setWinnerIfUnset(ctx, s.db, roundID, winnerID)
}

func setWinnerIfUnset(ctx context.Context, db dbtx, roundID game.RoundID, winnerID game.UserID) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE rounds SET winner_id = ? WHERE id = ? AND winner_id IS NULL`,
		winnerID, roundID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set winner: %w", mapSQLiteError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// =============================================================================
// TRANSACTIONAL STORE (game.TxStore interface)
// =============================================================================

// WithTx executes fn within a serializable database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(game.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapSQLiteError(err))
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapSQLiteError(err))
	}
	return nil
}

// txStore runs the game.Store operations against an open transaction.
// The parent's mutex is already held by WithTx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) InsertRound(ctx context.Context, round game.Round) error {
	return insertRound(ctx, ts.tx, round)
}

func (ts *txStore) GetRound(ctx context.Context, id game.RoundID) (*game.Round, error) {
	return getRound(ctx, ts.tx, id)
}

func (ts *txStore) ListRounds(ctx context.Context) ([]game.Round, error) {
	return nil, fmt.Errorf("ListRounds is not available inside a transaction")
}

func (ts *txStore) LastTapNumber(ctx context.Context, roundID game.RoundID, userID game.UserID) (int, error) {
	return lastTapNumber(ctx, ts.tx, roundID, userID)
}

func (ts *txStore) InsertTap(ctx context.Context, tap game.Tap) error {
	return insertTap(ctx, ts.tx, tap)
}

func (ts *txStore) IncrementRoundScore(ctx context.Context, roundID game.RoundID, delta int64) error {
	return incrementRoundScore(ctx, ts.tx, roundID, delta)
}

func (ts *txStore) UserRoundScore(ctx context.Context, roundID game.RoundID, userID game.UserID) (int64, error) {
	return userRoundScore(ctx, ts.tx, roundID, userID)
}

func (ts *txStore) WinnerAggregates(ctx context.Context, roundID game.RoundID) ([]game.UserAggregate, error) {
	return winnerAggregates(ctx, ts.tx, roundID)
}

func (ts *txStore) SetWinnerIfUnset(ctx context.Context, roundID game.RoundID, winnerID game.UserID) (bool, error) {
	return setWinnerIfUnset(ctx, ts.tx, roundID, winnerID)
}

// =============================================================================
// USER STORE (users.Store interface)
// =============================================================================

// SaveUser inserts a user record.
func (s *Store) SaveUser(ctx context.Context, u users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (id, username, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Username, u.PasswordHash, u.Role,
		u.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return users.ErrUsernameTaken
		}
		return fmt.Errorf("failed to save user: %w", mapSQLiteError(err))
	}
	return nil
}

// GetUserByUsername returns a user by username, or nil if absent.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE username = ?`,
		username)
	return scanUser(row)
}

// GetUserByID returns a user by identity, or nil if absent.
func (s *Store) GetUserByID(ctx context.Context, id game.UserID) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE id = ?`,
		id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*users.User, error) {
	var u users.User
	var createdAt string

	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if u.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse user created_at: %w", err)
	}
	return &u, nil
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// mapSQLiteError converts busy/locked errors into the engine's retryable
// conflict sentinel.
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") {
		return game.ErrTxConflict
	}
	return err
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
