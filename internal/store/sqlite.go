package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cinetaste/authkit/internal/model"
)

// sqliteStore persists entries in a single key-value table, the same shape
// the mobile platform's async storage keeps on device.
type sqliteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) a SQLite-backed store at path.
func NewSQLite(path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *sqliteStore) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

func (s *sqliteStore) delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) Session(ctx context.Context) (*model.Session, error) {
	value, err := s.get(ctx, KeySession)
	if err != nil {
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal([]byte(value), &session); err != nil {
		return nil, fmt.Errorf("failed to decode stored session: %w", err)
	}
	return &session, nil
}

func (s *sqliteStore) PutSession(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.put(ctx, KeySession, string(data))
}

func (s *sqliteStore) DeleteSession(ctx context.Context) error {
	return s.delete(ctx, KeySession)
}

func (s *sqliteStore) Token(ctx context.Context) (string, error) {
	return s.get(ctx, KeyToken)
}

func (s *sqliteStore) PutToken(ctx context.Context, token string) error {
	return s.put(ctx, KeyToken, token)
}

func (s *sqliteStore) Clear(ctx context.Context) error {
	return s.delete(ctx, KeySession, KeyToken)
}
