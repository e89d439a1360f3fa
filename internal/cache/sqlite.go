package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/agentic-research/dirworld/api"
	_ "modernc.org/sqlite"
)

// SQLiteStore spills the cache to disk so edits made to rooms that were
// left but never saved survive a restart.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLite opens (creating if needed) the store at dbPath.
func OpenSQLite(dbPath string, log *slog.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS evicted (
		path TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	) WITHOUT ROWID;
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, log: log}, nil
}

// Flush replaces the stored entries with entries, in one transaction.
func (s *SQLiteStore) Flush(ctx context.Context, entries map[string]*api.Payload) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin flush: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM evicted`); err != nil {
		return fmt.Errorf("clear evicted: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO evicted (path, payload) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for path, p := range entries {
		b, err := api.MarshalPayload(p)
		if err != nil {
			return fmt.Errorf("flush %s: %w", path, err)
		}
		if _, err := stmt.ExecContext(ctx, path, b); err != nil {
			return fmt.Errorf("insert %s: %w", path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit flush: %w", err)
	}
	return nil
}

// Restore reads every stored entry. Rows that no longer parse are skipped.
func (s *SQLiteStore) Restore(ctx context.Context) (map[string]*api.Payload, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, payload FROM evicted`)
	if err != nil {
		return nil, fmt.Errorf("query evicted: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]*api.Payload)
	for rows.Next() {
		var path string
		var b []byte
		if err := rows.Scan(&path, &b); err != nil {
			return nil, fmt.Errorf("scan evicted: %w", err)
		}
		p, err := api.UnmarshalPayload(b)
		if err != nil {
			s.log.Warn("cache: skipping malformed spilled payload", "path", path, "error", err)
			continue
		}
		out[path] = p
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
