// Package store provides SQLite-based persistence for the trust engine:
// the flavor catalog, flavor groups and their host memberships, the
// flavor-host trust cache, append-only host status history, signed reports,
// and the verification queue.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound reports a lookup that matched no row. Callers distinguish it
// from infrastructure failures with errors.Is.
var ErrNotFound = errors.New("not found")

// Store provides trust-engine persistence operations.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the default database path following the XDG spec.
func DefaultPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "hvs", "hvs.db")
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// WAL lets the worker pool read while another worker commits, and the
	// busy timeout keeps concurrent link upserts from failing with
	// SQLITE_BUSY under contention.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS flavors (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		label TEXT NOT NULL,
		hardware_uuid TEXT,
		content TEXT NOT NULL,
		created_at INTEGER DEFAULT (strftime('%s', 'now'))
	);
	CREATE INDEX IF NOT EXISTS idx_flavors_category ON flavors(category);
	CREATE INDEX IF NOT EXISTS idx_flavors_hardware_uuid ON flavors(hardware_uuid);

	CREATE TABLE IF NOT EXISTS flavor_groups (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		match_policy TEXT,
		created_at INTEGER DEFAULT (strftime('%s', 'now'))
	);
	CREATE INDEX IF NOT EXISTS idx_flavor_groups_name ON flavor_groups(name);

	CREATE TABLE IF NOT EXISTS flavorgroup_flavors (
		flavorgroup_id TEXT NOT NULL REFERENCES flavor_groups(id) ON DELETE CASCADE,
		flavor_id TEXT NOT NULL REFERENCES flavors(id) ON DELETE CASCADE,
		PRIMARY KEY (flavorgroup_id, flavor_id)
	);

	CREATE TABLE IF NOT EXISTS hosts (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		connection_string TEXT NOT NULL,
		hardware_uuid TEXT,
		tls_policy TEXT,
		created_at INTEGER DEFAULT (strftime('%s', 'now'))
	);
	CREATE INDEX IF NOT EXISTS idx_hosts_name ON hosts(name);

	CREATE TABLE IF NOT EXISTS flavorgroup_hosts (
		flavorgroup_id TEXT NOT NULL REFERENCES flavor_groups(id) ON DELETE CASCADE,
		host_id TEXT NOT NULL REFERENCES hosts(id) ON DELETE CASCADE,
		PRIMARY KEY (flavorgroup_id, host_id)
	);

	CREATE TABLE IF NOT EXISTS flavor_hosts (
		flavor_id TEXT NOT NULL REFERENCES flavors(id) ON DELETE CASCADE,
		host_id TEXT NOT NULL REFERENCES hosts(id) ON DELETE CASCADE,
		created_at INTEGER DEFAULT (strftime('%s', 'now')),
		PRIMARY KEY (flavor_id, host_id)
	);
	CREATE INDEX IF NOT EXISTS idx_flavor_hosts_host ON flavor_hosts(host_id);

	CREATE TABLE IF NOT EXISTS host_status (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		host_id TEXT NOT NULL REFERENCES hosts(id) ON DELETE CASCADE,
		state TEXT NOT NULL,
		manifest TEXT,
		created_at INTEGER DEFAULT (strftime('%s', 'now'))
	);
	CREATE INDEX IF NOT EXISTS idx_host_status_host ON host_status(host_id, id);

	CREATE TABLE IF NOT EXISTS trust_cache_reports (
		host_id TEXT NOT NULL REFERENCES hosts(id) ON DELETE CASCADE,
		flavorgroup_id TEXT NOT NULL REFERENCES flavor_groups(id) ON DELETE CASCADE,
		report TEXT NOT NULL,
		updated_at INTEGER DEFAULT (strftime('%s', 'now')),
		PRIMARY KEY (host_id, flavorgroup_id)
	);

	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		host_id TEXT NOT NULL REFERENCES hosts(id) ON DELETE CASCADE,
		trust_report TEXT NOT NULL,
		signed_assertion TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_host ON reports(host_id, created_at);

	CREATE TABLE IF NOT EXISTS queue (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		host_id TEXT NOT NULL,
		force_update INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL DEFAULT 'NEW',
		message TEXT DEFAULT '',
		claimed_at INTEGER,
		created_at INTEGER DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER DEFAULT (strftime('%s', 'now'))
	);
	CREATE INDEX IF NOT EXISTS idx_queue_state ON queue(state, claimed_at, created_at);
	CREATE INDEX IF NOT EXISTS idx_queue_host ON queue(host_id, action, state);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// generateID generates a unique id with the given prefix plus the first 8
// characters of a UUID, e.g. "fl_3f2a9c41".
func generateID(prefix string) string {
	u := uuid.New().String()
	return prefix + "_" + u[:8]
}
