package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Schema for the settings table. One row per key; value is JSON. rev grows
// with every write so other processes can detect changes by polling.
const Schema = `
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	rev        INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLiteStore persists the configuration in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the settings database at path with
// WAL journaling, a 10s busy timeout and synchronous=NORMAL.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("settings: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("settings: open: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("settings: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("settings: schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStore wraps an already opened database. The caller applies Schema.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Get loads every stored key over defaults.
func (s *SQLiteStore) Get(ctx context.Context, defaults Configuration) (Configuration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return defaults, fmt.Errorf("settings: query: %w", err)
	}
	defer rows.Close()

	cfg := defaults.Clone()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return defaults, fmt.Errorf("settings: scan: %w", err)
		}
		if err := decodeKey(&cfg, key, []byte(value)); err != nil {
			return defaults, err
		}
	}
	if err := rows.Err(); err != nil {
		return defaults, fmt.Errorf("settings: rows: %w", err)
	}
	return cfg, nil
}

// Set writes the non-nil fields of p in one transaction.
func (s *SQLiteStore) Set(ctx context.Context, p Partial) error {
	values, err := encodePartial(p)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("settings: begin: %w", err)
	}
	defer tx.Rollback()

	var rev int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(rev), 0) + 1 FROM settings`).Scan(&rev); err != nil {
		return fmt.Errorf("settings: next rev: %w", err)
	}
	now := time.Now().UnixMilli()
	for _, key := range Keys {
		v, ok := values[key]
		if !ok {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value, rev, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, rev = excluded.rev, updated_at = excluded.updated_at`,
			key, string(v), rev, now)
		if err != nil {
			return fmt.Errorf("settings: write %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("settings: commit: %w", err)
	}
	return nil
}

// Version returns the highest revision written so far, 0 when empty.
func (s *SQLiteStore) Version(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(rev), 0) FROM settings`).Scan(&v)
	return v, err
}

func decodeKey(cfg *Configuration, key string, raw []byte) error {
	var err error
	switch key {
	case KeyHideReels:
		err = json.Unmarshal(raw, &cfg.HideReels)
	case KeyHideStories:
		err = json.Unmarshal(raw, &cfg.HideStories)
	case KeyHideSuggested:
		err = json.Unmarshal(raw, &cfg.HideSuggested)
	case KeyEnableBlacklist:
		err = json.Unmarshal(raw, &cfg.EnableBlacklist)
	case KeyBlacklistWords:
		var words []string
		err = json.Unmarshal(raw, &words)
		if words == nil {
			words = []string{}
		}
		cfg.BlacklistWords = words
	default:
		// Keys from a newer schema are ignored.
		return nil
	}
	if err != nil {
		return fmt.Errorf("settings: decode %s: %w", key, err)
	}
	return nil
}

func encodePartial(p Partial) (map[string][]byte, error) {
	out := make(map[string][]byte)
	put := func(key string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("settings: encode %s: %w", key, err)
		}
		out[key] = data
		return nil
	}
	var err error
	if p.HideReels != nil {
		err = put(KeyHideReels, *p.HideReels)
	}
	if err == nil && p.HideStories != nil {
		err = put(KeyHideStories, *p.HideStories)
	}
	if err == nil && p.HideSuggested != nil {
		err = put(KeyHideSuggested, *p.HideSuggested)
	}
	if err == nil && p.EnableBlacklist != nil {
		err = put(KeyEnableBlacklist, *p.EnableBlacklist)
	}
	if err == nil && p.BlacklistWords != nil {
		words := *p.BlacklistWords
		if words == nil {
			words = []string{}
		}
		err = put(KeyBlacklistWords, words)
	}
	return out, err
}
