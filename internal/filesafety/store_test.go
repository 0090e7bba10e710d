package filesafety

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "locks.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAcquireGrantsWhenFree(t *testing.T) {
	s := openTestStore(t)

	granted, holder, err := s.Acquire("/repo/main.go", "agent-a", "claude", os.Getpid(), "edit", 0)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Empty(t, holder)
}

func TestAcquireDeniedWhileLiveHolderHoldsIt(t *testing.T) {
	s := openTestStore(t)

	granted, _, err := s.Acquire("/repo/main.go", "agent-a", "claude", os.Getpid(), "edit", 0)
	require.NoError(t, err)
	require.True(t, granted)

	granted, holder, err := s.Acquire("/repo/main.go", "agent-b", "claude", os.Getpid(), "edit", 0)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, "agent-a", holder)
}

func TestAcquireIsIdempotentForSameHolder(t *testing.T) {
	s := openTestStore(t)

	_, _, err := s.Acquire("/repo/main.go", "agent-a", "claude", os.Getpid(), "edit", 0)
	require.NoError(t, err)

	granted, holder, err := s.Acquire("/repo/main.go", "agent-a", "claude", os.Getpid(), "edit", 0)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Empty(t, holder)
}

func TestAcquireReclaimsStaleLockFromDeadHolder(t *testing.T) {
	s := openTestStore(t)

	_, _, err := s.Acquire("/repo/main.go", "agent-a", "claude", 999999999, "edit", 0)
	require.NoError(t, err)

	granted, holder, err := s.Acquire("/repo/main.go", "agent-b", "claude", os.Getpid(), "edit", 0)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Empty(t, holder)
}

func TestAcquireReclaimsExpiredTTLEvenFromLiveHolder(t *testing.T) {
	s := openTestStore(t)

	_, _, err := s.Acquire("/repo/main.go", "agent-a", "claude", os.Getpid(), "edit", time.Millisecond)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	granted, holder, err := s.Acquire("/repo/main.go", "agent-b", "claude", os.Getpid(), "edit", 0)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Empty(t, holder)
}

func TestReleaseIsNoOpForNonHolder(t *testing.T) {
	s := openTestStore(t)

	_, _, err := s.Acquire("/repo/main.go", "agent-a", "claude", os.Getpid(), "edit", 0)
	require.NoError(t, err)

	require.NoError(t, s.Release("/repo/main.go", "agent-b"))

	granted, holder, err := s.Acquire("/repo/main.go", "agent-b", "claude", os.Getpid(), "edit", 0)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, "agent-a", holder)
}

func TestValidateWriteDeniesCoordinatorUnconditionally(t *testing.T) {
	s := openTestStore(t)

	ok, reason, err := s.ValidateWrite("/repo/main.go", "agent-a", true)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
}

func TestValidateWriteAllowsUnlockedPath(t *testing.T) {
	s := openTestStore(t)

	ok, _, err := s.ValidateWrite("/repo/main.go", "agent-a", false)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateWriteDeniesWhenLockedByOther(t *testing.T) {
	s := openTestStore(t)

	_, _, err := s.Acquire("/repo/main.go", "agent-a", "claude", os.Getpid(), "edit", 0)
	require.NoError(t, err)

	ok, reason, err := s.ValidateWrite("/repo/main.go", "agent-b", false)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "agent-a")
}

func TestReclaimStaleReleasesDeadHolders(t *testing.T) {
	s := openTestStore(t)

	_, _, err := s.Acquire("/repo/a.go", "agent-a", "claude", 999999999, "edit", 0)
	require.NoError(t, err)
	_, _, err = s.Acquire("/repo/b.go", "agent-b", "claude", os.Getpid(), "edit", 0)
	require.NoError(t, err)

	reclaimed, err := s.ReclaimStale()
	require.NoError(t, err)
	assert.Equal(t, []string{"/repo/a.go"}, reclaimed)
}

func TestReleaseAllHeldByDropsOnlyThatAgentsLocks(t *testing.T) {
	s := openTestStore(t)

	_, _, err := s.Acquire("/repo/a.go", "agent-a", "claude", os.Getpid(), "edit", 0)
	require.NoError(t, err)
	_, _, err = s.Acquire("/repo/b.go", "agent-a", "claude", os.Getpid(), "edit", 0)
	require.NoError(t, err)
	_, _, err = s.Acquire("/repo/c.go", "agent-b", "claude", os.Getpid(), "edit", 0)
	require.NoError(t, err)

	released, err := s.ReleaseAllHeldBy("agent-a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/repo/a.go", "/repo/b.go"}, released)

	ok, _, err := s.ValidateWrite("/repo/c.go", "agent-c", false)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _, err = s.ValidateWrite("/repo/a.go", "agent-c", false)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestModificationLogRecordsAndLists(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RecordModification("/repo/main.go", "agent-a", "task-1", ModificationModify, "fix bug"))
	require.NoError(t, s.RecordModification("/repo/main.go", "agent-a", "task-2", ModificationModify, "fix another bug"))

	mods, err := s.ModificationsFor("/repo/main.go", time.Time{})
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.Equal(t, "agent-a", mods[0].AgentID)
	assert.Equal(t, "task-1", mods[0].TaskID)
	assert.Equal(t, "modify", mods[0].Kind)
	assert.Equal(t, "fix bug", mods[0].Intent)
}

func TestModificationLogRejectsUnknownKind(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.RecordModification("/repo/main.go", "agent-a", "", ModificationKind("rename"), ""))
}

func TestModificationsForFiltersBySince(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RecordModification("/repo/main.go", "agent-a", "", ModificationCreate, ""))
	time.Sleep(5 * time.Millisecond)
	cutoff := time.Now()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.RecordModification("/repo/main.go", "agent-a", "", ModificationDelete, ""))

	mods, err := s.ModificationsFor("/repo/main.go", cutoff)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "delete", mods[0].Kind)

	mods, err = s.ModificationsFor("/repo/main.go", time.Time{})
	require.NoError(t, err)
	assert.Len(t, mods, 2)
}

func TestPruneModificationsRemovesOldRows(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RecordModification("/repo/main.go", "agent-a", "", ModificationCreate, ""))
	_, err := s.db.Exec(`UPDATE modifications SET recorded_at = ?`, time.Now().Add(-60*24*time.Hour))
	require.NoError(t, err)

	n, err := s.PruneModifications()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mods, err := s.ModificationsFor("/repo/main.go", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, mods)
}
