package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pablasso/etp/internal/statustree"
)

// DBFileName is the database file OpenSQLite creates in its directory.
const DBFileName = "history.db"

// SQLiteStore keeps entries in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates <dir>/history.db.
func OpenSQLite(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, DBFileName))
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set history db journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set history db busy timeout: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS transitions (
	id TEXT PRIMARY KEY,
	ip_id TEXT NOT NULL,
	node_id TEXT NOT NULL,
	node_name TEXT NOT NULL,
	kind TEXT NOT NULL,
	parent_id TEXT NOT NULL DEFAULT '',
	from_status TEXT NOT NULL DEFAULT '',
	to_status TEXT NOT NULL DEFAULT '',
	change TEXT NOT NULL,
	recorded_at TEXT NOT NULL
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS transitions_ip ON transitions (ip_id, id)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Record inserts entries in one transaction.
func (s *SQLiteStore) Record(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transitions
		(id, ip_id, node_id, node_name, kind, parent_id, from_status, to_status, change, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare history insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.IPID, e.NodeID, e.NodeName, string(e.Kind),
			e.ParentID, string(e.From), string(e.To), string(e.Change),
			e.Time.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert history entry %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history transaction: %w", err)
	}
	return nil
}

// List returns entries for ipID ordered by id, newest first.
func (s *SQLiteStore) List(ctx context.Context, ipID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, ip_id, node_id, node_name, kind, parent_id,
		from_status, to_status, change, recorded_at
		FROM transitions WHERE ip_id = ? ORDER BY id DESC LIMIT ?`, ipID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var kind, from, to, change, at string
		if err := rows.Scan(&e.ID, &e.IPID, &e.NodeID, &e.NodeName, &kind, &e.ParentID,
			&from, &to, &change, &at); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Kind = statustree.Kind(kind)
		e.From = statustree.Status(from)
		e.To = statustree.Status(to)
		e.Change = statustree.ChangeKind(change)
		if e.Time, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse history time %q: %w", at, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
