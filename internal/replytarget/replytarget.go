// Package replytarget tracks, per local agent, the senders that are
// eligible to receive a reply: the most recent sender descriptor for
// each distinct remote agent that sent a message with
// response_expected set to true. Entries persist to a single JSON file
// so a restarted agent does not forget who its interlocutors are.
package replytarget

import (
	"container/list"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shiroa-systems/a2a-runtime/pkg/a2a"
)

// record is one tracked sender, held both in the ordered list (for
// recency) and in the lookup map (for O(1) access by sender agent ID).
type record struct {
	sender a2a.SenderDescriptor
	elem   *list.Element
}

// Store is the reply-target table for a single local agent. It is safe
// for concurrent use.
type Store struct {
	mu      sync.Mutex
	agentID string
	path    string

	order *list.List // most-recently-updated at the back
	byID  map[string]*record
}

// entryOnDisk is the JSON shape persisted to "<agent_id>.reply.json":
// an ordered array, oldest first, matching in-memory recency order.
type entryOnDisk struct {
	Senders []a2a.SenderDescriptor `json:"senders"`
}

// Open loads (or initializes) the reply-target store for agentID,
// persisting to "<agentID>.reply.json" inside dir.
func Open(dir, agentID string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("replytarget: create directory: %w", err)
	}
	s := &Store{
		agentID: agentID,
		path:    filepath.Join(dir, agentID+".reply.json"),
		order:   list.New(),
		byID:    make(map[string]*record),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("replytarget: read %s: %w", s.path, err)
	}
	var onDisk entryOnDisk
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return fmt.Errorf("replytarget: decode %s: %w", s.path, err)
	}
	for _, sender := range onDisk.Senders {
		s.insertLocked(sender)
	}
	return nil
}

// persist writes the current order to disk via the temp-then-rename
// pattern shared with the registry.
func (s *Store) persist() error {
	onDisk := entryOnDisk{Senders: make([]a2a.SenderDescriptor, 0, s.order.Len())}
	for e := s.order.Front(); e != nil; e = e.Next() {
		onDisk.Senders = append(onDisk.Senders, e.Value.(a2a.SenderDescriptor))
	}
	data, err := json.Marshal(onDisk)
	if err != nil {
		return fmt.Errorf("replytarget: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, s.agentID+".reply.*.tmp")
	if err != nil {
		return fmt.Errorf("replytarget: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("replytarget: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("replytarget: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("replytarget: close temp file: %w", err)
	}
	return os.Rename(tmpName, s.path)
}

// insertLocked records sender as the most recent entry for its agent
// ID, moving an existing entry to the back rather than duplicating it.
// Caller must hold s.mu.
func (s *Store) insertLocked(sender a2a.SenderDescriptor) {
	if existing, ok := s.byID[sender.AgentID]; ok {
		s.order.Remove(existing.elem)
	}
	elem := s.order.PushBack(sender)
	s.byID[sender.AgentID] = &record{sender: sender, elem: elem}
}

// Record stores sender as eligible for a reply, provided the message
// metadata requested one and the descriptor is well-formed. A message
// that does not request a response, or carries an invalid sender, is
// silently ignored: it was never eligible for a reply in the first
// place.
func (s *Store) Record(meta a2a.Metadata) error {
	if !meta.ResponseExpected || meta.Sender == nil || !meta.Sender.Valid() {
		return nil
	}
	s.mu.Lock()
	s.insertLocked(*meta.Sender)
	err := s.persist()
	s.mu.Unlock()
	return err
}

// Lookup returns the most recently recorded descriptor for senderAgentID.
func (s *Store) Lookup(senderAgentID string) (a2a.SenderDescriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[senderAgentID]
	if !ok {
		return a2a.SenderDescriptor{}, false
	}
	return rec.sender, true
}

// Most recent returns the most recently recorded sender overall — the
// natural reply target when the wrapped program's output does not
// address any particular peer.
func (s *Store) MostRecent() (a2a.SenderDescriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	back := s.order.Back()
	if back == nil {
		return a2a.SenderDescriptor{}, false
	}
	return back.Value.(a2a.SenderDescriptor), true
}

// List returns every tracked sender, most-recent last.
func (s *Store) List() []a2a.SenderDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]a2a.SenderDescriptor, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(a2a.SenderDescriptor))
	}
	return out
}

// Pop returns and removes the most recently recorded descriptor for
// senderAgentID.
func (s *Store) Pop(senderAgentID string) (a2a.SenderDescriptor, bool, error) {
	desc, ok := s.Lookup(senderAgentID)
	if !ok {
		return a2a.SenderDescriptor{}, false, nil
	}
	if err := s.Forget(senderAgentID); err != nil {
		return desc, true, err
	}
	return desc, true, nil
}

// PopMostRecent returns and removes the single most recently recorded
// sender overall, the natural target when the caller did not say who
// they mean to reply to.
func (s *Store) PopMostRecent() (a2a.SenderDescriptor, bool, error) {
	desc, ok := s.MostRecent()
	if !ok {
		return a2a.SenderDescriptor{}, false, nil
	}
	if err := s.Forget(desc.AgentID); err != nil {
		return desc, true, err
	}
	return desc, true, nil
}

// Forget removes a tracked sender, e.g. once its registry entry is
// observed dead.
func (s *Store) Forget(senderAgentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[senderAgentID]
	if !ok {
		return nil
	}
	s.order.Remove(rec.elem)
	delete(s.byID, senderAgentID)
	return s.persist()
}
