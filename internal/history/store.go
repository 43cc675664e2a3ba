package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"ignition/internal/config"
)

// EventType labels a launch history entry.
type EventType string

const (
	EventStarted       EventType = "started"
	EventStopped       EventType = "stopped"
	EventStopRequested EventType = "stop_requested"
	EventLaunchFailed  EventType = "launch_failed"
)

// Event is one recorded launcher lifecycle transition.
type Event struct {
	ID        int64
	Launcher  string
	PID       int
	SessionID string
	Type      EventType
	Detail    string
	CreatedAt time.Time
}

// Store persists launcher lifecycle events backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies
// migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.HistoryDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) applyMigrations(ctx context.Context) error {
	schema := `CREATE TABLE IF NOT EXISTS launch_events (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        launcher TEXT NOT NULL,
        pid INTEGER NOT NULL,
        session_id TEXT NOT NULL,
        event TEXT NOT NULL,
        detail TEXT,
        created_at TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_launch_events_launcher ON launch_events (launcher, created_at);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Record inserts a lifecycle event.
func (s *Store) Record(ctx context.Context, event Event) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO launch_events (launcher, pid, session_id, event, detail, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		event.Launcher,
		event.PID,
		event.SessionID,
		string(event.Type),
		event.Detail,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert launch event: %w", err)
	}
	return nil
}

// List returns events newest first, optionally filtered by launcher name.
// A limit of 0 returns everything.
func (s *Store) List(ctx context.Context, launcher string, limit int) ([]Event, error) {
	query := `SELECT id, launcher, pid, session_id, event, detail, created_at
              FROM launch_events`
	args := []any{}
	if launcher != "" {
		query += " WHERE launcher = ?"
		args = append(args, launcher)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query launch events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event   Event
			detail  sql.NullString
			created string
		)
		if err := rows.Scan(&event.ID, &event.Launcher, &event.PID, &event.SessionID,
			(*string)(&event.Type), &detail, &created); err != nil {
			return nil, fmt.Errorf("scan launch event: %w", err)
		}
		event.Detail = detail.String
		if ts, parseErr := time.Parse(time.RFC3339Nano, created); parseErr == nil {
			event.CreatedAt = ts
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate launch events: %w", err)
	}
	return events, nil
}
