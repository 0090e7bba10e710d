// Package registry is the filesystem-backed directory of locally-running
// agents. Every bootstrapped agent writes one entry file under the
// registry directory and removes it on clean shutdown; readers discover
// peers by listing the directory and filtering out entries whose PID is
// no longer alive.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/shiroa-systems/a2a-runtime/internal/constants"
)

// DefaultDir is the registry directory under the user's home, used when
// no override is supplied.
const DefaultDir = ".a2a/registry"

// Entry is one agent's registration record, written as
// "<agent_id>.json" inside the registry directory.
type Entry struct {
	AgentID   string    `json:"agent_id"`
	Kind      string    `json:"kind"`
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	Endpoint  string    `json:"endpoint"`
	UDSPath   string    `json:"uds_path,omitempty"`
	StartedAt time.Time `json:"started_at"`

	// DisplayName, when set, takes precedence over AgentID and Kind
	// during target resolution (resolution rule 1: exact display-name
	// match, case-sensitive).
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
	WorkingDir  string `json:"working_dir,omitempty"`

	// Status and CurrentTaskPreview are self-reported by the wrapped
	// program's state machine; StatusUpdatedAt is monotonic per agent
	// and only ever moves forward.
	Status             string    `json:"status,omitempty"`
	CurrentTaskPreview string    `json:"current_task_preview,omitempty"`
	StatusUpdatedAt    time.Time `json:"status_updated_at,omitempty"`

	// LastTransport is an observability-only hint recording which
	// transport (tcp or uds) most recently succeeded talking to this
	// agent. It carries no authority: resolution always prefers UDS
	// when the socket file exists, regardless of this field's value.
	LastTransport string    `json:"last_transport,omitempty"`
	LastSeenAt    time.Time `json:"last_seen_at,omitempty"`
}

// Registry reads and writes entries under a single directory.
type Registry struct {
	dir string
}

// Open returns a Registry rooted at dir, creating it with 0700
// permissions if it does not yet exist.
func Open(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("registry: create directory: %w", err)
	}
	return &Registry{dir: dir}, nil
}

func (r *Registry) path(agentID string) string {
	return filepath.Join(r.dir, agentID+".json")
}

// Register atomically writes entry's record, creating or replacing it.
// The write goes to a temp file in the same directory, fsynced, then
// renamed into place, so a reader never observes a partially written
// file.
func (r *Registry) Register(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("registry: marshal entry: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, entry.AgentID+".*.tmp")
	if err != nil {
		return fmt.Errorf("registry: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("registry: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("registry: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("registry: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path(entry.AgentID)); err != nil {
		return fmt.Errorf("registry: rename into place: %w", err)
	}
	return nil
}

// Unregister removes an agent's entry. Removing a file that does not
// exist is not an error: shutdown is idempotent.
func (r *Registry) Unregister(agentID string) error {
	err := os.Remove(r.path(agentID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("registry: remove entry: %w", err)
	}
	return nil
}

// Lookup reads a single agent's entry by ID.
func (r *Registry) Lookup(agentID string) (Entry, bool, error) {
	data, err := os.ReadFile(r.path(agentID))
	if os.IsNotExist(err) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("registry: read entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("registry: decode entry: %w", err)
	}
	return entry, true, nil
}

// List returns every entry currently on disk, live or not.
func (r *Registry) List() ([]Entry, error) {
	files, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("registry: read directory: %w", err)
	}

	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || strings.HasSuffix(name, ".tmp") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				// Removed between the directory listing and the read; a
				// concurrent unregister raced us, not corruption.
				continue
			}
			return nil, fmt.Errorf("registry: read %s: %w", name, err)
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			// A file that does not parse may be a write caught
			// mid-flight: wait constants.RegistryReadRetry and read it
			// once more, then skip it rather than fail the whole listing.
			time.Sleep(constants.RegistryReadRetry)
			data, err = os.ReadFile(filepath.Join(r.dir, name))
			if err != nil || json.Unmarshal(data, &entry) != nil {
				continue
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ListLive returns every entry whose PID is currently alive. As a side
// effect, any entry whose process is definitively gone is reaped from
// disk: the next agent that notices a dead peer removes its file, so
// no single owner is responsible for cleaning up after a crash. A
// permission-denied probe is never treated as a basis for reaping —
// it means the PID belongs to someone else, not that it's dead.
func (r *Registry) ListLive() ([]Entry, error) {
	all, err := r.List()
	if err != nil {
		return nil, err
	}
	live := make([]Entry, 0, len(all))
	for _, e := range all {
		if IsAlive(e.PID) {
			live = append(live, e)
			continue
		}
		if isDefinitelyDead(e.PID) {
			if rmErr := r.Unregister(e.AgentID); rmErr != nil {
				return nil, fmt.Errorf("registry: reap dead entry %s: %w", e.AgentID, rmErr)
			}
		}
	}
	return live, nil
}

// Resolve looks up a single agent and reports whether it is both
// registered and alive.
func (r *Registry) Resolve(agentID string) (Entry, bool, error) {
	entry, ok, err := r.Lookup(agentID)
	if err != nil || !ok {
		return entry, false, err
	}
	return entry, IsAlive(entry.PID), nil
}

// IsAlive reports whether pid refers to a running process, using a
// zero-signal probe. Permission-denied means a process with that PID
// exists but is owned by someone else — treated as ALIVE, never as a
// basis for reclaiming the entry. Only an explicit "no such process"
// error is treated as dead; every other error is conservatively
// reported as alive so a transient probe failure never causes a live
// agent's entry to be reclaimed out from under it.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if err == syscall.ESRCH {
		return false
	}
	if err == syscall.EPERM {
		return true
	}
	return true
}

// isDefinitelyDead reports whether pid is conclusively gone: either
// never valid, or an explicit "no such process" from the signal
// probe. Any other outcome, including permission-denied, is not
// proof of death and must never trigger reaping.
func isDefinitelyDead(pid int) bool {
	if pid <= 0 {
		return true
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return true
	}
	return proc.Signal(syscall.Signal(0)) == syscall.ESRCH
}

// StaleAfter reports whether an entry's LastSeenAt hint has aged past
// the transport-hint TTL, independent of whether the agent is alive.
func StaleAfter(e Entry, now time.Time) bool {
	if e.LastSeenAt.IsZero() {
		return true
	}
	return now.Sub(e.LastSeenAt) > constants.LastTransportTTL
}
