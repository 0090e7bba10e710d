package cli

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiroa-systems/a2a-runtime/internal/client"
	"github.com/shiroa-systems/a2a-runtime/internal/registry"
)

func openTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Open(t.TempDir())
	require.NoError(t, err)
	return reg
}

func TestResolveTargetMatchesExactLiveAgent(t *testing.T) {
	reg := openTestRegistry(t)
	require.NoError(t, reg.Register(registry.Entry{AgentID: "a2a-claude-8100", Kind: "claude", PID: os.Getpid()}))

	e, err := resolveTarget(reg, "a2a-claude-8100")
	require.NoError(t, err)
	assert.Equal(t, "a2a-claude-8100", e.AgentID)
}

func TestResolveTargetReturnsNotFoundForUnknown(t *testing.T) {
	reg := openTestRegistry(t)

	_, err := resolveTarget(reg, "a2a-ghost-9999")
	require.Error(t, err)
	assert.Equal(t, ExitTargetNotFound, ExitCode(err))
}

func TestResolveTargetReturnsAmbiguousForSharedKind(t *testing.T) {
	reg := openTestRegistry(t)
	require.NoError(t, reg.Register(registry.Entry{AgentID: "a2a-k-8100", Kind: "k", PID: os.Getpid()}))
	require.NoError(t, reg.Register(registry.Entry{AgentID: "a2a-k-8101", Kind: "k", PID: os.Getpid()}))

	_, err := resolveTarget(reg, "k")
	require.Error(t, err)
	assert.Equal(t, ExitAmbiguousTarget, ExitCode(err))
	assert.ErrorIs(t, err, ErrAmbiguousTarget)
}

func TestClassifyErrMapsClientSentinels(t *testing.T) {
	assert.Equal(t, ExitTargetNotFound, ExitCode(classifyErr(client.ErrTargetNotFound)))
	assert.Equal(t, ExitAuthFailure, ExitCode(classifyErr(client.ErrSelfNotAuthenticated)))
}
