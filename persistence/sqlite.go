// Package persistence keeps the revision history of saved workflows in a
// local SQLite database.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"
)

const currentSchemaVersion = 3

// ErrRevisionNotFound is returned when no revision matches an id.
var ErrRevisionNotFound = errors.New("revision not found")

// ErrAmbiguousRevision is returned when an id prefix matches more than one
// revision.
var ErrAmbiguousRevision = errors.New("revision id is ambiguous")

// HistoryDB stores saved revisions.
type HistoryDB struct {
	db   *sql.DB
	path string
	log  *zap.Logger
	now  func() time.Time
}

// Option configures a HistoryDB.
type Option func(*HistoryDB)

// WithLogger sets the database logger.
func WithLogger(log *zap.Logger) Option {
	return func(h *HistoryDB) { h.log = log }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(h *HistoryDB) { h.now = now }
}

// Open opens or creates the history database at path.
func Open(path string, opts ...Option) (*HistoryDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// One connection: SQLite has a single writer and the CLI is short-lived.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, closeWith(db, fmt.Errorf("failed to execute %s: %w", pragma, err))
		}
	}

	h := &HistoryDB{db: db, path: path, log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(h)
	}

	if err := h.initSchema(); err != nil {
		return nil, closeWith(db, fmt.Errorf("failed to initialize schema: %w", err))
	}
	if err := secureDBFiles(path); err != nil {
		return nil, closeWith(db, fmt.Errorf("failed to set database permissions: %w", err))
	}
	return h, nil
}

func closeWith(db *sql.DB, err error) error {
	if closeErr := db.Close(); closeErr != nil {
		return fmt.Errorf("%w (additionally, failed to close database: %v)", err, closeErr)
	}
	return err
}

// secureDBFiles restricts the database and its WAL/SHM files to the owner.
func secureDBFiles(dbPath string) error {
	// #nosec G302 - intentionally restrictive
	if err := os.Chmod(dbPath, 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", dbPath, err)
	}
	for _, f := range []string{dbPath + "-wal", dbPath + "-shm"} {
		// #nosec G302 - intentionally restrictive
		if err := os.Chmod(f, 0o600); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("chmod %s: %w", f, err)
		}
	}
	return nil
}

func (h *HistoryDB) initSchema() error {
	if _, err := h.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	);`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	if err := h.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to query schema version: %w", err)
	}
	if version < currentSchemaVersion {
		return h.applyMigrations(version)
	}
	return nil
}

func (h *HistoryDB) applyMigrations(fromVersion int) error {
	migrations := []struct {
		version int
		name    string
		sql     string
	}{
		{
			version: 1,
			name:    "initial_schema",
			sql: `
			CREATE TABLE IF NOT EXISTS revisions (
				revision_id TEXT PRIMARY KEY,
				locator TEXT NOT NULL,
				fingerprint TEXT NOT NULL,
				content TEXT NOT NULL,
				size INTEGER NOT NULL,
				created_at INTEGER NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_revisions_locator_time ON revisions(locator, created_at DESC);
			`,
		},
		{
			version: 2,
			name:    "add_workflow_summary",
			sql: `
			ALTER TABLE revisions ADD COLUMN workflow_name TEXT DEFAULT '';
			ALTER TABLE revisions ADD COLUMN job_count INTEGER DEFAULT 0;
			`,
		},
		{
			version: 3,
			name:    "add_fingerprint_index",
			sql: `
			CREATE INDEX IF NOT EXISTS idx_revisions_fingerprint ON revisions(locator, fingerprint);
			`,
		},
	}

	for _, m := range migrations {
		if m.version <= fromVersion {
			continue
		}

		tx, err := h.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
			m.version, time.Now().Unix()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration v%d: %w", m.version, err)
		}
		h.log.Debug("applied history migration", zap.Int("version", m.version), zap.String("name", m.name))
	}
	return nil
}

// SchemaVersion reports the applied schema version.
func (h *HistoryDB) SchemaVersion() (int, error) {
	var version int
	err := h.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	return version, err
}

// Close closes the database and re-secures its files.
func (h *HistoryDB) Close() error {
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	if h.path != "" {
		_ = secureDBFiles(h.path)
	}
	return err
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.path
}
