package task

import (
	"testing"

	"github.com/shiroa-systems/a2a-runtime/pkg/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessage() a2a.Message {
	return a2a.Message{Role: a2a.RoleUser, Parts: []a2a.Part{{Kind: a2a.PartText, Text: "hello"}}}
}

func TestNewIDIsLowercaseHex32(t *testing.T) {
	id := NewID()
	assert.Len(t, id, 32)
	for _, r := range id {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}
}

func TestCreateStartsSubmitted(t *testing.T) {
	s := NewStore()
	tk := s.Create(newMessage(), a2a.Metadata{}, "ctx-1")
	assert.Equal(t, a2a.StateSubmitted, tk.State)

	got, ok := s.Get(tk.ID)
	require.True(t, ok)
	assert.Equal(t, tk.ID, got.ID)
}

func TestResolveByPrefix(t *testing.T) {
	s := NewStore()
	tk := s.Create(newMessage(), a2a.Metadata{}, "")

	got, err := s.Resolve(tk.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, tk.ID, got.ID)
}

func TestResolveRejectsShortPrefix(t *testing.T) {
	s := NewStore()
	s.Create(newMessage(), a2a.Metadata{}, "")

	_, err := s.Resolve("abc")
	assert.Error(t, err)
}

func TestResolveRejectsAmbiguousPrefix(t *testing.T) {
	s := NewStore()
	s.tasks["aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"] = &a2a.Task{ID: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}
	s.tasks["aaaaaaaabbbbbbbbbbbbbbbbbbbbbbbb"] = &a2a.Task{ID: "aaaaaaaabbbbbbbbbbbbbbbbbbbbbbbb"}

	_, err := s.Resolve("aaaaaaaa")
	assert.Error(t, err)
}

func TestTransitionFollowsLifecycle(t *testing.T) {
	s := NewStore()
	tk := s.Create(newMessage(), a2a.Metadata{}, "")

	require.NoError(t, s.Transition(tk.ID, a2a.StateWorking))
	require.NoError(t, s.Transition(tk.ID, a2a.StateInputRequired))
	require.NoError(t, s.Transition(tk.ID, a2a.StateWorking))
	require.NoError(t, s.Transition(tk.ID, a2a.StateCompleted))

	got, _ := s.Get(tk.ID)
	assert.Equal(t, a2a.StateCompleted, got.State)
}

func TestTransitionRejectsInvalidEdge(t *testing.T) {
	s := NewStore()
	tk := s.Create(newMessage(), a2a.Metadata{}, "")

	assert.Error(t, s.Transition(tk.ID, a2a.StateCompleted))
}

func TestTransitionRejectsLeavingTerminalState(t *testing.T) {
	s := NewStore()
	tk := s.Create(newMessage(), a2a.Metadata{}, "")
	require.NoError(t, s.Transition(tk.ID, a2a.StateWorking))
	require.NoError(t, s.Transition(tk.ID, a2a.StateCompleted))

	assert.Error(t, s.Transition(tk.ID, a2a.StateWorking))
}

func TestListOrdersNewestFirst(t *testing.T) {
	s := NewStore()
	first := s.Create(newMessage(), a2a.Metadata{}, "")
	second := s.Create(newMessage(), a2a.Metadata{}, "")
	second.CreatedAt = a2a.Time{Time: first.CreatedAt.Time.Add(1)}

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
}
