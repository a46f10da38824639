// Package profile persists the local user profile in a SQLite key-value
// table.
package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"virtualfit/internal/domain"
)

// UserDataKey is the key the profile is stored under.
const UserDataKey = "userData"

// KVStore is a string key-value table in SQLite.
type KVStore struct {
	db *sql.DB
}

// OpenKVStore opens (or creates) a SQLite database at dbPath and runs the
// schema migration. ":memory:" is accepted for tests.
func OpenKVStore(dbPath string) (*KVStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("%w: create data dir: %v", domain.ErrStorage, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open kv db: %v", domain.ErrStorage, err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: set WAL mode: %v", domain.ErrStorage, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate kv db: %v", domain.ErrStorage, err)
	}
	return &KVStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *KVStore) Close() error {
	return s.db.Close()
}

// Get returns the value for key, or domain.ErrNotFound.
func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: get %q: %v", domain.ErrStorage, key, err)
	}
	return value, nil
}

// Put inserts or replaces the value for key.
func (s *KVStore) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: put %q: %v", domain.ErrStorage, key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("%w: delete %q: %v", domain.ErrStorage, key, err)
	}
	return nil
}

// Keys lists every stored key in order.
func (s *KVStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM kv ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("%w: list keys: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("%w: list keys: %v", domain.ErrStorage, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Store implements domain.ProfileStore on a KVStore. The profile is kept as
// JSON under UserDataKey.
type Store struct {
	kv *KVStore
}

// NewStore wraps kv.
func NewStore(kv *KVStore) *Store {
	return &Store{kv: kv}
}

var _ domain.ProfileStore = (*Store)(nil)

// LoadProfile returns the stored profile or a profile-subsystem ErrNotFound.
func (s *Store) LoadProfile(ctx context.Context) (*domain.UserProfile, error) {
	raw, err := s.kv.Get(ctx, UserDataKey)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewSubSystemError("profile", "profile.Load", domain.ErrNotFound, "no profile saved")
	}
	if err != nil {
		return nil, domain.WrapOp("profile.Load", err)
	}
	var p domain.UserProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, domain.NewSubSystemError("profile", "profile.Load", domain.ErrStorage, "stored profile is corrupt: "+err.Error())
	}
	return &p, nil
}

// SaveProfile validates p and stores it.
func (s *Store) SaveProfile(ctx context.Context, p *domain.UserProfile) error {
	if p == nil {
		return domain.NewSubSystemError("profile", "profile.Save", domain.ErrInvalidInput, "profile is nil")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return domain.WrapOp("profile.Save", err)
	}
	return domain.WrapOp("profile.Save", s.kv.Put(ctx, UserDataKey, string(b)))
}

// DeleteProfile removes the stored profile.
func (s *Store) DeleteProfile(ctx context.Context) error {
	return domain.WrapOp("profile.Delete", s.kv.Delete(ctx, UserDataKey))
}
