// Package filesafety is the cross-agent advisory file lock manager. It
// is backed by a single SQLite database shared by every locally-running
// agent, so a lock acquired by one agent is visible to all others
// without a central broker. Locks held by a process that has since
// died are reclaimed using the same zero-signal liveness check the
// registry uses.
package filesafety

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/shiroa-systems/a2a-runtime/internal/constants"
	"github.com/shiroa-systems/a2a-runtime/internal/registry"
)

const defaultBusyTimeout = 5 * time.Second

// Store is the shared lock table plus the append-only modification
// log, both backed by one SQLite file.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the shared lock database at
// dbPath and ensures its schema exists.
func Open(dbPath string) (*Store, error) {
	if err := ensureDir(dbPath); err != nil {
		return nil, fmt.Errorf("filesafety: prepare path: %w", err)
	}

	// Single writer, WAL mode, short busy timeout: several agent
	// processes share this file and must never see SQLITE_BUSY on a
	// routine lock check.
	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_mode=rwc&_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL&_cache=shared",
		dbPath,
		int(defaultBusyTimeout/time.Millisecond),
	)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("filesafety: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0700)
}

func (s *Store) initSchema() error {
	locksSchema := `
	CREATE TABLE IF NOT EXISTS file_locks (
		path TEXT PRIMARY KEY,
		holder_agent_id TEXT NOT NULL,
		holder_agent_kind TEXT NOT NULL DEFAULT '',
		holder_pid INTEGER NOT NULL,
		intent TEXT NOT NULL DEFAULT '',
		acquired_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP
	);
	`
	if _, err := s.db.Exec(locksSchema); err != nil {
		return fmt.Errorf("filesafety: create file_locks table: %w", err)
	}
	// Idempotent migration for databases created before holder_agent_kind,
	// intent, and expires_at existed: SQLite has no "ADD COLUMN IF NOT
	// EXISTS", so the error from a column that's already there is ignored.
	for _, stmt := range []string{
		`ALTER TABLE file_locks ADD COLUMN holder_agent_kind TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE file_locks ADD COLUMN intent TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE file_locks ADD COLUMN expires_at TIMESTAMP`,
	} {
		_, _ = s.db.Exec(stmt)
	}

	modsSchema := `
	CREATE TABLE IF NOT EXISTS modifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		task_id TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL DEFAULT '',
		intent TEXT NOT NULL DEFAULT '',
		recorded_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_modifications_path ON modifications(path);
	CREATE INDEX IF NOT EXISTS idx_modifications_recorded_at ON modifications(recorded_at);
	`
	if _, err := s.db.Exec(modsSchema); err != nil {
		return fmt.Errorf("filesafety: create modifications table: %w", err)
	}
	// Idempotent migration for databases created before task_id, kind,
	// and intent existed; see the file_locks migration above for why
	// the already-exists error from each statement is ignored.
	for _, stmt := range []string{
		`ALTER TABLE modifications ADD COLUMN task_id TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE modifications ADD COLUMN kind TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE modifications ADD COLUMN intent TEXT NOT NULL DEFAULT ''`,
	} {
		_, _ = s.db.Exec(stmt)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// lockRow mirrors one row of file_locks.
type lockRow struct {
	Path            string       `db:"path"`
	HolderAgentID   string       `db:"holder_agent_id"`
	HolderAgentKind string       `db:"holder_agent_kind"`
	HolderPID       int          `db:"holder_pid"`
	Intent          string       `db:"intent"`
	AcquiredAt      time.Time    `db:"acquired_at"`
	ExpiresAt       sql.NullTime `db:"expires_at"`
}

// expired reports whether row's TTL, if any, has passed.
func (r lockRow) expired(now time.Time) bool {
	return r.ExpiresAt.Valid && now.After(r.ExpiresAt.Time)
}

const lockRowColumns = `path, holder_agent_id, holder_agent_kind, holder_pid, intent, acquired_at, expires_at`

// Acquire attempts to take the advisory lock on path for agentID/pid,
// with an optional expiry (zero means no TTL). It returns (true, "") on
// success. On contention it first checks whether the current holder's
// process is still alive and its TTL unexpired; if either is stale, the
// lock is reclaimed and the caller's acquisition proceeds. If the
// holder is alive and unexpired, it returns (false, holderAgentID).
func (s *Store) Acquire(path, agentID, agentKind string, pid int, intent string, ttl time.Duration) (granted bool, holder string, err error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return false, "", fmt.Errorf("filesafety: begin acquire: %w", err)
	}
	defer tx.Rollback()

	var row lockRow
	err = tx.Get(&row, `SELECT `+lockRowColumns+` FROM file_locks WHERE path = ?`, path)
	switch {
	case err == sql.ErrNoRows:
		// no existing holder
	case err != nil:
		return false, "", fmt.Errorf("filesafety: read lock row: %w", err)
	default:
		if row.HolderAgentID == agentID {
			// Already held by this agent: idempotent re-acquire.
			return true, "", tx.Commit()
		}
		if registry.IsAlive(row.HolderPID) && !row.expired(time.Now()) {
			return false, row.HolderAgentID, tx.Rollback()
		}
		// Holder's process is gone or its TTL lapsed: reclaim.
	}

	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: time.Now().UTC().Add(ttl), Valid: true}
	}

	_, err = tx.Exec(`
		INSERT INTO file_locks (path, holder_agent_id, holder_agent_kind, holder_pid, intent, acquired_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			holder_agent_id = excluded.holder_agent_id,
			holder_agent_kind = excluded.holder_agent_kind,
			holder_pid = excluded.holder_pid,
			intent = excluded.intent,
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
	`, path, agentID, agentKind, pid, intent, time.Now().UTC(), expiresAt)
	if err != nil {
		return false, "", fmt.Errorf("filesafety: write lock row: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, "", fmt.Errorf("filesafety: commit acquire: %w", err)
	}
	return true, "", nil
}

// AcquireWait retries Acquire at constants.MinLockWaitPoll intervals
// until it succeeds or maxWait elapses, whichever happens first.
// maxWait is clamped to constants.MaxLockWait.
func (s *Store) AcquireWait(path, agentID, agentKind string, pid int, intent string, ttl, maxWait time.Duration) (granted bool, holder string, err error) {
	if maxWait > constants.MaxLockWait {
		maxWait = constants.MaxLockWait
	}
	deadline := time.Now().Add(maxWait)
	for {
		granted, holder, err = s.Acquire(path, agentID, agentKind, pid, intent, ttl)
		if err != nil || granted {
			return granted, holder, err
		}
		if time.Now().After(deadline) {
			return false, holder, nil
		}
		time.Sleep(constants.MinLockWaitPoll)
	}
}

// Release drops the lock on path, provided agentID currently holds it.
// Releasing a lock held by a different agent or no agent is a no-op,
// not an error.
func (s *Store) Release(path, agentID string) error {
	_, err := s.db.Exec(`DELETE FROM file_locks WHERE path = ? AND holder_agent_id = ?`, path, agentID)
	if err != nil {
		return fmt.Errorf("filesafety: release lock: %w", err)
	}
	return nil
}

// ValidateWrite reports whether agentID may write to path right now.
// A coordinator-mode agent is denied unconditionally: it delegates
// file modification to the agents it coordinates and must never write
// directly, regardless of lock state. Otherwise the write is valid
// only if no other live agent holds the lock.
func (s *Store) ValidateWrite(path, agentID string, coordinator bool) (bool, string, error) {
	if coordinator {
		return false, "coordinator agents may not write files directly", nil
	}

	var row lockRow
	err := s.db.Get(&row, `SELECT `+lockRowColumns+` FROM file_locks WHERE path = ?`, path)
	if err == sql.ErrNoRows {
		return true, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("filesafety: read lock row: %w", err)
	}
	if row.HolderAgentID == agentID {
		return true, "", nil
	}
	if registry.IsAlive(row.HolderPID) && !row.expired(time.Now()) {
		return false, fmt.Sprintf("locked by %s", row.HolderAgentID), nil
	}
	return true, "", nil
}

// ReclaimStale scans every held lock and releases any whose holder
// process is no longer alive or whose TTL has lapsed. It returns the
// paths reclaimed.
func (s *Store) ReclaimStale() ([]string, error) {
	var rows []lockRow
	if err := s.db.Select(&rows, `SELECT `+lockRowColumns+` FROM file_locks`); err != nil {
		return nil, fmt.Errorf("filesafety: list locks: %w", err)
	}

	now := time.Now()
	var reclaimed []string
	for _, row := range rows {
		if registry.IsAlive(row.HolderPID) && !row.expired(now) {
			continue
		}
		if _, err := s.db.Exec(`DELETE FROM file_locks WHERE path = ?`, row.Path); err != nil {
			return reclaimed, fmt.Errorf("filesafety: reclaim %s: %w", row.Path, err)
		}
		reclaimed = append(reclaimed, row.Path)
	}
	return reclaimed, nil
}

// ReleaseAllHeldBy drops every lock held by agentID regardless of
// liveness or TTL, for a clean agent shutdown rather than a stale-lock
// reclaim by someone else. Returns the paths released.
func (s *Store) ReleaseAllHeldBy(agentID string) ([]string, error) {
	var paths []string
	if err := s.db.Select(&paths, `SELECT path FROM file_locks WHERE holder_agent_id = ?`, agentID); err != nil {
		return nil, fmt.Errorf("filesafety: list locks held by %s: %w", agentID, err)
	}
	if _, err := s.db.Exec(`DELETE FROM file_locks WHERE holder_agent_id = ?`, agentID); err != nil {
		return nil, fmt.Errorf("filesafety: release locks held by %s: %w", agentID, err)
	}
	return paths, nil
}

// ModificationKind constrains the change kind recorded for a
// modification.
type ModificationKind string

const (
	ModificationCreate ModificationKind = "create"
	ModificationModify ModificationKind = "modify"
	ModificationDelete ModificationKind = "delete"
)

func (k ModificationKind) valid() bool {
	switch k {
	case ModificationCreate, ModificationModify, ModificationDelete:
		return true
	default:
		return false
	}
}

// RecordModification appends an entry to the modification log. The log
// is append-only: callers never update or delete individual rows,
// except via PruneModifications. taskID may be empty when the change
// wasn't made on behalf of a task.
func (s *Store) RecordModification(path, agentID, taskID string, kind ModificationKind, intent string) error {
	if !kind.valid() {
		return fmt.Errorf("filesafety: invalid modification kind %q", kind)
	}
	_, err := s.db.Exec(
		`INSERT INTO modifications (path, agent_id, task_id, kind, intent, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		path, agentID, taskID, string(kind), intent, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("filesafety: record modification: %w", err)
	}
	return nil
}

// Modification is one row of the modification log.
type Modification struct {
	Path       string    `db:"path" json:"path"`
	AgentID    string    `db:"agent_id" json:"agent_id"`
	TaskID     string    `db:"task_id" json:"task_id,omitempty"`
	Kind       string    `db:"kind" json:"kind"`
	Intent     string    `db:"intent" json:"intent,omitempty"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// ModificationsFor returns every logged modification to path recorded
// at or after since, oldest first. A zero since returns the full
// history.
func (s *Store) ModificationsFor(path string, since time.Time) ([]Modification, error) {
	var rows []Modification
	err := s.db.Select(&rows,
		`SELECT path, agent_id, task_id, kind, intent, recorded_at FROM modifications WHERE path = ? AND recorded_at >= ? ORDER BY recorded_at ASC`,
		path, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("filesafety: read modifications: %w", err)
	}
	return rows, nil
}

// PruneModifications deletes modification log rows older than the
// retention window, returning the number of rows removed.
func (s *Store) PruneModifications() (int64, error) {
	cutoff := time.Now().Add(-constants.ModificationRetention).UTC()
	res, err := s.db.Exec(`DELETE FROM modifications WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("filesafety: prune modifications: %w", err)
	}
	return res.RowsAffected()
}
