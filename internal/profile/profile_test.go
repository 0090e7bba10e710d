package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaultsDetectionAndSubmitSequence(t *testing.T) {
	p := &Profile{
		Kind:       "claude",
		Executable: "claude",
		IdleRegex:  `\$\s*$`,
		Ports:      PortRange{Base: 8100, Max: 8109},
	}
	require.NoError(t, p.Validate())
	assert.Equal(t, StyleHybrid, p.Detection)
	assert.Equal(t, SubmitLF, p.SubmitSequence)
	assert.Equal(t, "auto", p.ApprovalMode)
}

func TestValidateRejectsMissingKind(t *testing.T) {
	p := &Profile{Executable: "claude", Ports: PortRange{Base: 8100, Max: 8109}}
	assert.Error(t, p.Validate())
}

func TestValidateRejectsInvertedPortRange(t *testing.T) {
	p := &Profile{Kind: "claude", Executable: "claude", Ports: PortRange{Base: 8109, Max: 8100}}
	assert.Error(t, p.Validate())
}

func TestValidateRequiresIdleRegexUnlessTimeoutStyle(t *testing.T) {
	p := &Profile{
		Kind:       "claude",
		Executable: "claude",
		Detection:  StyleHybrid,
		Ports:      PortRange{Base: 8100, Max: 8109},
	}
	assert.Error(t, p.Validate())

	p.Detection = StyleTimeout
	assert.NoError(t, p.Validate())
}

func TestSubmitSequenceBytes(t *testing.T) {
	assert.Equal(t, []byte{'\r'}, SubmitCR.Bytes())
	assert.Equal(t, []byte{'\r', '\n'}, SubmitCRLF.Bytes())
	assert.Equal(t, []byte{'\n'}, SubmitLF.Bytes())
}

func TestLoadFileParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	contents := `
kind: claude
executable: claude
args: ["--resume"]
detection: pattern
idle_regex: '\$\s*$'
submit_sequence: cr
ports:
  base: 8100
  max: 8109
initial_instruction: "you are a2a-claude-8100"
approval_mode: interactive
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "claude", p.Kind)
	assert.Equal(t, []string{"--resume"}, p.Args)
	assert.Equal(t, SubmitCR, p.SubmitSequence)
	assert.Equal(t, "interactive", p.ApprovalMode)
}

func TestLoadFileRejectsInvalidProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kind: claude\n"), 0644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFileRejectsMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
