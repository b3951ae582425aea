// Package store provides trial storage implementations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/gonogo/internal/constants"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteTrialStore implements TrialStore using SQLite for persistence.
type SQLiteTrialStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteTrialStore opens (or creates) dataDir/gonogo.db.
func NewSQLiteTrialStore(dataDir string) (*SQLiteTrialStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return OpenSQLiteTrialStore(filepath.Join(dataDir, DBFileName))
}

// OpenSQLiteTrialStore opens the database file at dbPath.
func OpenSQLiteTrialStore(dbPath string) (*SQLiteTrialStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteTrialStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteTrialStore) Path() string {
	return s.dbPath
}

// AddTrial inserts a trial and returns its row id.
func (s *SQLiteTrialStore) AddTrial(ctx context.Context, trial TrialRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertTrial(ctx, s.db, trial)
}

// AddTrials inserts trials in a single transaction. Nothing is written if
// any insert fails.
func (s *SQLiteTrialStore) AddTrials(ctx context.Context, trials []TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, t := range trials {
		if _, err := insertTrial(ctx, tx, t); err != nil {
			return fmt.Errorf("trial %d: %w", i, err)
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTrial(ctx context.Context, db execer, t TrialRecord) (int64, error) {
	if t.UserID == "" {
		return 0, fmt.Errorf("userId is required")
	}
	t = normalize(t)

	var pGo sql.NullFloat64
	if t.PGo != nil {
		pGo = sql.NullFloat64{Float64: *t.PGo, Valid: true}
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO trial_data (
			user_id, session_id, source, trial_number, block, stimulus,
			reaction_time, correct, score_change, new_score, action, p_go, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, nullString(t.SessionID), string(t.Source), t.TrialNumber, nullString(t.Block), t.Stimulus,
		t.ReactionTime, boolToInt(t.Correct), t.ScoreChange, t.NewScore, nullString(t.Action), pGo,
		t.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trial: %w", err)
	}
	return res.LastInsertId()
}

const trialColumns = `id, user_id, session_id, source, trial_number, block, stimulus,
	reaction_time, correct, score_change, new_score, action, p_go, timestamp`

// GetTrial retrieves a trial by id. Returns ErrNotFound if missing.
func (s *SQLiteTrialStore) GetTrial(ctx context.Context, id int64) (*TrialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+trialColumns+` FROM trial_data WHERE id = ?`, id)
	t, err := scanTrial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trial %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTrials returns matching trials ordered by id.
func (s *SQLiteTrialStore) ListTrials(ctx context.Context, filter Filter) ([]TrialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := whereClause(filter)
	query := `SELECT ` + trialColumns + ` FROM trial_data` + where + ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	trials := make([]TrialRecord, 0)
	for rows.Next() {
		t, err := scanTrial(rows)
		if err != nil {
			return nil, err
		}
		trials = append(trials, t)
	}
	return trials, rows.Err()
}

// CountTrials returns the number of matching trials.
func (s *SQLiteTrialStore) CountTrials(ctx context.Context, filter Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := whereClause(filter)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trial_data`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count trials: %w", err)
	}
	return n, nil
}

// DeleteTrials removes matching trials and returns how many were deleted.
func (s *SQLiteTrialStore) DeleteTrials(ctx context.Context, filter Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	where, args := whereClause(filter)
	res, err := s.db.ExecContext(ctx, `DELETE FROM trial_data`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete trials: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// CreateSession records a simulated session.
func (s *SQLiteTrialStore) CreateSession(ctx context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}
	if session.Source == "" {
		session.Source = constants.SourceAgent
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, source, seed, config, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, string(session.Source), session.Seed,
		nullString(session.ConfigJSON), session.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by id. Returns ErrNotFound if missing.
func (s *SQLiteTrialStore) GetSession(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, source, seed, config, created_at FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions returns all sessions, oldest first.
func (s *SQLiteTrialStore) ListSessions(ctx context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, source, seed, config, created_at FROM sessions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteTrialStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrial(row scanner) (TrialRecord, error) {
	var (
		t                      TrialRecord
		session, block, action sql.NullString
		source, ts             string
		correct                int
		pGo                    sql.NullFloat64
	)
	err := row.Scan(&t.ID, &t.UserID, &session, &source, &t.TrialNumber, &block, &t.Stimulus,
		&t.ReactionTime, &correct, &t.ScoreChange, &t.NewScore, &action, &pGo, &ts)
	if err != nil {
		return t, err
	}
	t.SessionID = session.String
	t.Source = constants.Source(source)
	t.Block = block.String
	t.Action = action.String
	t.Correct = correct != 0
	if pGo.Valid {
		v := pGo.Float64
		t.PGo = &v
	}
	t.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return t, fmt.Errorf("trial %d: bad timestamp %q: %w", t.ID, ts, err)
	}
	return t, nil
}

func scanSession(row scanner) (Session, error) {
	var (
		sess    Session
		source  string
		config  sql.NullString
		created string
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &source, &sess.Seed, &config, &created); err != nil {
		return sess, err
	}
	sess.Source = constants.Source(source)
	sess.ConfigJSON = config.String
	var err error
	sess.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return sess, fmt.Errorf("session %s: bad created_at %q: %w", sess.ID, created, err)
	}
	return sess, nil
}

func whereClause(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, string(f.Source))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
