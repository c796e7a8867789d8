// Package selection persists the selected-for-checkout entity set across
// process restarts.
//
// Storage is a single SQLite-backed key holding the JSON-serialized array of
// selected entity ids. Every mutation rewrites the key synchronously, so
// there is no consistency window between the in-memory set and the durable
// copy. The collection store prunes the set after every collection mutation,
// keeping the invariant that every selected id references a live item.
package selection

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// DefaultCartKey is the durable key for the cart's selection set.
const DefaultCartKey = "cart.selected"

// Store is the durable selection set for one collection.
//
// Thread-safety: all methods are safe for concurrent use. The in-memory set
// is the source of truth during a session; the SQLite row is rewritten on
// every change and read once at Open.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	key string
	ids map[string]struct{}
}

// Open creates or opens the local-state database at path and restores the
// selection stored under key. The database is shared with nothing else; a
// single connection avoids SQLITE_BUSY between interleaved writes.
func Open(path, key string) (*Store, error) {
	if key == "" {
		return nil, fmt.Errorf("selection key is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open selection db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect selection db: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply selection schema: %w", err)
	}

	s := &Store{db: db, key: key, ids: make(map[string]struct{})}
	if err := s.restore(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Selected returns the selected entity ids, sorted for stable output.
func (s *Store) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether an entity id is selected.
func (s *Store) Contains(entityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[entityID]
	return ok
}

// Toggle flips one entity's selection and persists. Returns the new state.
func (s *Store) Toggle(entityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[entityID]; ok {
		delete(s.ids, entityID)
		return false, s.persistLocked()
	}
	s.ids[entityID] = struct{}{}
	return true, s.persistLocked()
}

// SelectAll replaces the selection with the given ids and persists.
func (s *Store) SelectAll(entityIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]struct{}, len(entityIDs))
	for _, id := range entityIDs {
		s.ids[id] = struct{}{}
	}
	return s.persistLocked()
}

// ClearSelection empties the selection and persists.
func (s *Store) ClearSelection() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]struct{})
	return s.persistLocked()
}

// Prune drops every selected id not present in live, persisting only when
// something was actually removed. Called by the collection store after every
// mutation; must stay cheap on the no-op path.
func (s *Store) Prune(live []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]struct{}, len(live))
	for _, id := range live {
		keep[id] = struct{}{}
	}

	changed := false
	for id := range s.ids {
		if _, ok := keep[id]; !ok {
			delete(s.ids, id)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.persistLocked()
}

// restore loads the persisted id array, tolerating a missing row (first run).
func (s *Store) restore() error {
	var value string
	err := s.db.QueryRow(`SELECT value FROM local_state WHERE key = ?`, s.key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore selection: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(value), &ids); err != nil {
		return fmt.Errorf("restore selection: corrupt value under %q: %w", s.key, err)
	}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return nil
}

// persistLocked rewrites the durable key with the current set as a sorted
// JSON array. Caller must hold mu.
func (s *Store) persistLocked() error {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	value, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("persist selection: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO local_state (key, value, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, s.key, string(value))
	if err != nil {
		return fmt.Errorf("persist selection: %w", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}
