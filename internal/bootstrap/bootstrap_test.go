package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestProfile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "profile.yaml")
	contents := `
kind: test
executable: cat
detection: timeout
idle_timeout_ms: 50
submit_sequence: lf
ports:
  base: 42100
  max: 42199
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func setTestEnv(t *testing.T, base, profilePath string) {
	t.Helper()
	t.Setenv("A2A_SYSTEM", "test")
	t.Setenv("A2A_PROFILE", profilePath)
	t.Setenv("A2A_REGISTRY_DIR", filepath.Join(base, "registry"))
	t.Setenv("A2A_EXTERNAL_DIR", filepath.Join(base, "external"))
	t.Setenv("A2A_UDS_DIR", filepath.Join(base, "uds"))
	t.Setenv("A2A_SCRATCH_DIR", filepath.Join(base, "scratch"))
	t.Setenv("A2A_FILESAFETY_DB", filepath.Join(base, "filesafety.db"))
	t.Setenv("XDG_RUNTIME_DIR", "")
}

func TestNewFailsWithoutProfilePath(t *testing.T) {
	base := t.TempDir()
	setTestEnv(t, base, "")

	_, err := New()
	assert.Error(t, err)
}

func TestNewWiresAgentAndRunRegistersThenCleansUp(t *testing.T) {
	base := t.TempDir()
	profilePath := writeTestProfile(t, base)
	setTestEnv(t, base, profilePath)

	agent, err := New()
	require.NoError(t, err)

	registryPath := filepath.Join(base, "registry", agent.AgentID()+".json")
	udsPath := agent.udsPath

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(registryPath)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond, "registry entry should appear once Run starts")

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	_, statErr := os.Stat(registryPath)
	assert.True(t, os.IsNotExist(statErr), "registry entry should be removed on shutdown")
	_, statErr = os.Stat(udsPath)
	assert.True(t, os.IsNotExist(statErr), "uds socket file should be removed on shutdown")
}
