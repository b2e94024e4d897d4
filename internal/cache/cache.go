// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists provider responses in SQLite with a TTL so batch
// runs that revisit a phrase or URL skip the paid API call.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/overlap-engine/pkg/types"
)

const defaultPath = "overlap-cache.db"

// Store is a TTL'd key/value response cache backed by SQLite.
type Store struct {
	db  *sql.DB
	ttl time.Duration
}

// Open creates or opens the cache database and its schema.
func Open(cfg types.CacheConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = defaultPath
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	s := &Store{db: db, ttl: ttl}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS responses (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		expires_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("executing schema statement: %w", err)
	}
	return nil
}

// Key derives a cache key from the operation name and its arguments.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Get unmarshals the cached value for key into out. The second return is
// false when the key is absent or expired.
func (s *Store) Get(ctx context.Context, key string, out any) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM responses WHERE key = ? AND expires_at > ?`,
		key, time.Now().UTC(),
	).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache read: %w", err)
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return false, fmt.Errorf("decoding cached value: %w", err)
	}
	return true, nil
}

// Put stores v under key with the configured TTL, replacing any previous
// entry.
func (s *Store) Put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding cache value: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO responses (key, value, expires_at) VALUES (?, ?, ?)`,
		key, string(data), time.Now().UTC().Add(s.ttl),
	)
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

// Cleanup deletes expired entries and returns how many were removed.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM responses WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("cache cleanup: %w", err)
	}
	return res.RowsAffected()
}
