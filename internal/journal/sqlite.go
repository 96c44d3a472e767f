package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one finished bulk action.
type Entry struct {
	ID         int64
	Action     string
	Query      string
	Labels     []string
	Mode       string
	Processed  int
	Matched    int
	Estimated  int
	Canceled   bool
	Err        string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store keeps the action history in a local SQLite database. It is a log,
// not resumable state.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS actions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	action      TEXT    NOT NULL,
	query       TEXT    NOT NULL DEFAULT '',
	labels      TEXT    NOT NULL DEFAULT '',
	mode        TEXT    NOT NULL DEFAULT '',
	processed   INTEGER NOT NULL DEFAULT 0,
	matched     INTEGER NOT NULL DEFAULT 0,
	estimated   INTEGER NOT NULL DEFAULT 0,
	canceled    INTEGER NOT NULL DEFAULT 0,
	error       TEXT    NOT NULL DEFAULT '',
	started_at  TEXT    NOT NULL,
	finished_at TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS actions_finished ON actions (finished_at);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends e and returns its row id.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (action, query, labels, mode, processed, matched, estimated, canceled, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Action,
		e.Query,
		strings.Join(e.Labels, ","),
		e.Mode,
		e.Processed,
		e.Matched,
		e.Estimated,
		boolToInt(e.Canceled),
		e.Err,
		e.StartedAt.UTC().Format(time.RFC3339Nano),
		e.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("record action: %w", err)
	}
	return res.LastInsertId()
}

// List returns the most recent entries first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	q := `SELECT id, action, query, labels, mode, processed, matched, estimated, canceled, error, started_at, finished_at
		FROM actions ORDER BY id DESC`
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                 Entry
			labels            string
			canceled          int
			started, finished string
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.Query, &labels, &e.Mode, &e.Processed,
			&e.Matched, &e.Estimated, &canceled, &e.Err, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if labels != "" {
			e.Labels = strings.Split(labels, ",")
		}
		e.Canceled = canceled != 0
		e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		e.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
