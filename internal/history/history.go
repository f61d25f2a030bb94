// Package history persists a per-session log of completed conversation turns
// to a local SQLite database.
//
// The log is an operator aid for reviewing what the relay heard and said; the
// live conversation context lives in memory on the session. A disabled store
// is a valid no-op so callers never branch on whether persistence is on.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Config controls the turn log.
type Config struct {
	// Enabled turns persistence on. When false the store is a no-op.
	Enabled bool

	// Path is the SQLite database file path.
	Path string
}

// Turn is one completed exchange: what the speaker said and what the relay
// answered.
type Turn struct {
	ID         int64
	SessionID  string
	Transcript string
	Reply      string
	Outcome    string
	Elapsed    time.Duration
	CreatedAt  time.Time
}

// Store wraps the SQLite-backed turn log. The zero Store (or one opened with
// Enabled false) discards all writes.
type Store struct {
	db    *sql.DB
	log   *slog.Logger
	clock func() time.Time
}

// Open initialises the turn log according to cfg. With Enabled false it
// returns a no-op store and touches no files.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if !cfg.Enabled {
		return &Store{log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping sqlite: %w", err)
	}

	s := &Store{db: db, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    transcript TEXT NOT NULL,
    reply TEXT NOT NULL,
    outcome TEXT NOT NULL,
    elapsed_ms INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session_created ON turns(session_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Ping verifies the underlying database is reachable. A no-op store is
// always healthy.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

// Close releases the underlying database. Safe on a no-op store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends one turn to the log. No-op when persistence is disabled.
func (s *Store) Record(ctx context.Context, t Turn) error {
	if s.db == nil {
		return nil
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns(session_id, transcript, reply, outcome, elapsed_ms, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		t.SessionID, t.Transcript, t.Reply, t.Outcome, t.Elapsed.Milliseconds(), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("history: record turn: %w", err)
	}
	return nil
}

// ListSession retrieves up to limit turns for one session, oldest first.
func (s *Store) ListSession(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, transcript, reply, outcome, elapsed_ms, created_at
		 FROM turns WHERE session_id = ? ORDER BY created_at ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t         Turn
			elapsedMs int64
			created   string
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Transcript, &t.Reply, &t.Outcome, &elapsedMs, &created); err != nil {
			return nil, err
		}
		t.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			t.CreatedAt = ts
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
