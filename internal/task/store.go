// Package task is the in-memory task lifecycle catalog. Every inbound
// message creates exactly one task, tracked here until the process
// exits; there is no persistence across a restart.
package task

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/shiroa-systems/a2a-runtime/pkg/a2a"
)

// minPrefixLen is the shortest prefix Resolve will accept, matching the
// documented minimum for unambiguous task-ID addressing.
const minPrefixLen = 8

// Store is the task table for a single agent. It is safe for
// concurrent use.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*a2a.Task
}

// NewStore returns an empty task store.
func NewStore() *Store {
	return &Store{tasks: make(map[string]*a2a.Task)}
}

// NewID generates a 32-character lowercase-hex task ID.
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Create inserts a new task in the submitted state and returns it.
func (s *Store) Create(msg a2a.Message, meta a2a.Metadata, contextID string) *a2a.Task {
	now := a2a.Now()
	t := &a2a.Task{
		ID:        NewID(),
		ContextID: contextID,
		State:     a2a.StateSubmitted,
		Message:   msg,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()
	return t
}

// Get returns the task with the exact ID.
func (s *Store) Get(id string) (*a2a.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Resolve looks up a task by exact ID or, failing that, by unambiguous
// prefix. It returns an error if the prefix is too short, matches
// nothing, or matches more than one task.
func (s *Store) Resolve(idOrPrefix string) (*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.tasks[idOrPrefix]; ok {
		return t, nil
	}
	if len(idOrPrefix) < minPrefixLen {
		return nil, fmt.Errorf("task: prefix %q is shorter than %d characters", idOrPrefix, minPrefixLen)
	}

	var matches []*a2a.Task
	for id, t := range s.tasks {
		if strings.HasPrefix(id, idOrPrefix) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("task: no task matches prefix %q", idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, t := range matches {
			ids[i] = t.ID
		}
		sort.Strings(ids)
		return nil, fmt.Errorf("task: prefix %q matches %d tasks: %s", idOrPrefix, len(matches), strings.Join(ids, ", "))
	}
}

// allowedTransitions enumerates every lifecycle edge. submitted moves
// to working or is canceled; working may finish in
// completed/failed/canceled, or step aside into input-required;
// input-required goes back to working or is canceled. Every other
// attempted transition is rejected.
var allowedTransitions = map[a2a.State]map[a2a.State]bool{
	a2a.StateSubmitted: {
		a2a.StateWorking:  true,
		a2a.StateCanceled: true,
	},
	a2a.StateWorking: {
		a2a.StateCompleted:     true,
		a2a.StateFailed:        true,
		a2a.StateCanceled:      true,
		a2a.StateInputRequired: true,
	},
	a2a.StateInputRequired: {
		a2a.StateWorking:  true,
		a2a.StateCanceled: true,
	},
}

// Transition moves a task to newState, rejecting any edge not in
// allowedTransitions and any transition out of a terminal state.
func (s *Store) Transition(id string, newState a2a.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task: %s not found", id)
	}
	if t.State.Terminal() {
		return fmt.Errorf("task: %s is in terminal state %s, cannot transition to %s", id, t.State, newState)
	}
	if !allowedTransitions[t.State][newState] {
		return fmt.Errorf("task: invalid transition %s -> %s", t.State, newState)
	}
	t.State = newState
	t.UpdatedAt = a2a.Now()
	return nil
}

// AppendArtifact adds an artifact to a task and bumps UpdatedAt.
func (s *Store) AppendArtifact(id string, artifact a2a.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task: %s not found", id)
	}
	t.Artifacts = append(t.Artifacts, artifact)
	t.UpdatedAt = a2a.Now()
	return nil
}

// List returns every task, most recently created first.
func (s *Store) List() []*a2a.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*a2a.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Time.After(out[j].CreatedAt.Time)
	})
	return out
}
