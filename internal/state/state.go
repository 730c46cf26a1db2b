// Package state persists per-user view state (dismissed inbox items)
// in a local sqlite database. It is deliberately tiny: a user-scoped
// key/value table, JSON-encoded values.
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

const dismissedKey = "inbox:dismissed"

// Store is a handle to the local state database.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the state database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	// WAL allows concurrent readers while a writer is active.
	// busy_timeout reduces SQLITE_BUSY errors under contention.
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS user_state (
			user_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, key)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure user_state table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(userID, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM user_state WHERE user_id = ? AND key = ?`, userID, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get user state: %w", err)
	}
	return v, true, nil
}

func (s *Store) set(userID, key, value string) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(`
		INSERT INTO user_state (user_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, userID, key, value, now)
	if err != nil {
		return fmt.Errorf("set user state: %w", err)
	}
	return nil
}

// Dismissed returns the set of dismissed inbox item IDs for a user.
func (s *Store) Dismissed(userID string) (map[string]bool, error) {
	raw, ok, err := s.get(userID, dismissedKey)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool)
	if !ok {
		return set, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		// A corrupt value degrades to an empty set rather than an error.
		return set, nil
	}
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// Dismiss adds an item ID to the user's dismissed set. Dismissing an
// already-dismissed item is a no-op.
func (s *Store) Dismiss(userID, itemID string) error {
	set, err := s.Dismissed(userID)
	if err != nil {
		return err
	}
	if set[itemID] {
		return nil
	}
	set[itemID] = true

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode dismissed set: %w", err)
	}
	return s.set(userID, dismissedKey, string(raw))
}

// ClearDismissed drops the user's entire dismissed set.
func (s *Store) ClearDismissed(userID string) error {
	_, err := s.db.Exec(`DELETE FROM user_state WHERE user_id = ? AND key = ?`, userID, dismissedKey)
	if err != nil {
		return fmt.Errorf("clear dismissed set: %w", err)
	}
	return nil
}

// DismissedOrEmpty loads the dismissed set, degrading to an empty set
// on storage errors. The caller sees unpersisted state, never a crash.
func DismissedOrEmpty(s *Store, userID string) map[string]bool {
	if s == nil {
		return map[string]bool{}
	}
	set, err := s.Dismissed(userID)
	if err != nil {
		log.Printf("warning: dismissed-set load failed, using empty set: %v", err)
		return map[string]bool{}
	}
	return set
}
