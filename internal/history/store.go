package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"ytcmd/internal/model"
	"ytcmd/internal/runstore"
)

// MaxItems is how many commands the history keeps.
const MaxItems = 10

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id        TEXT PRIMARY KEY,
	url       TEXT NOT NULL UNIQUE,
	mode      TEXT NOT NULL,
	command   TEXT NOT NULL,
	title     TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS history_timestamp ON history (timestamp DESC);
`

// Store keeps the most recently copied commands, one per URL.
type Store struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("history database path is required")
	}
	if path != ":memory:" {
		if err := runstore.Mkdir(filepath.Dir(path)); err != nil {
			return nil, err
		}
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{conn: conn, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// Add records item at the front. An existing entry for the same URL is
// replaced and entries beyond MaxItems are dropped.
func (s *Store) Add(ctx context.Context, item model.HistoryItem) (model.HistoryItem, error) {
	item.URL = strings.TrimSpace(item.URL)
	if item.URL == "" {
		return model.HistoryItem{}, fmt.Errorf("history item requires a url")
	}
	if strings.TrimSpace(item.Command) == "" {
		return model.HistoryItem{}, fmt.Errorf("history item requires a command")
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Timestamp == 0 {
		item.Timestamp = s.now().UnixMilli()
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return model.HistoryItem{}, fmt.Errorf("begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM history WHERE url = ?`, item.URL); err != nil {
		return model.HistoryItem{}, fmt.Errorf("replace history entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO history (id, url, mode, command, title, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.URL, string(item.Mode), item.Command, item.Title, item.Timestamp,
	); err != nil {
		return model.HistoryItem{}, fmt.Errorf("insert history entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM history WHERE id NOT IN (SELECT id FROM history ORDER BY timestamp DESC, rowid DESC LIMIT ?)`,
		MaxItems,
	); err != nil {
		return model.HistoryItem{}, fmt.Errorf("trim history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.HistoryItem{}, fmt.Errorf("commit history entry: %w", err)
	}
	return item, nil
}

// List returns the entries most recent first.
func (s *Store) List(ctx context.Context) ([]model.HistoryItem, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, url, mode, command, title, timestamp FROM history ORDER BY timestamp DESC, rowid DESC LIMIT ?`,
		MaxItems,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	items := make([]model.HistoryItem, 0, MaxItems)
	for rows.Next() {
		var (
			item model.HistoryItem
			mode string
		)
		if err := rows.Scan(&item.ID, &item.URL, &mode, &item.Command, &item.Title, &item.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		item.Mode = model.Mode(mode)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history rows: %w", err)
	}
	return items, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
