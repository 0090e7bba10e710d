package client

import (
	"fmt"
	"os"
	"regexp"
)

// agentIDShape validates the "<system>-<kind>-<port>" identifier shape
// before trusting a caller-supplied identity.
var agentIDShape = regexp.MustCompile(`^[^-]+-[^-]+-[0-9]+$`)

// resolveSelf determines the calling process's own agent identifier.
// An explicit value is trusted once its shape and registry presence
// are confirmed. Otherwise a non-empty A2A_AGENT_ID is returned as is,
// without a registry check; failing that, the process's ancestor chain
// is walked, matching each ancestor PID against every registry entry,
// live or not. The first
// match is the caller — this lets a helper tool invoked inside the
// wrapped program (a shell alias, a script) self-identify without
// being told its agent id explicitly.
func (c *Client) resolveSelf(explicit string) (string, error) {
	if explicit != "" {
		if !agentIDShape.MatchString(explicit) {
			return "", fmt.Errorf("agent id %q does not match <system>-<kind>-<port>", explicit)
		}
		if _, ok, err := c.registry.Lookup(explicit); err != nil {
			return "", err
		} else if !ok {
			return "", fmt.Errorf("%w: agent id %q is not registered", ErrSelfNotAuthenticated, explicit)
		}
		return explicit, nil
	}

	if envID := os.Getenv(envAgentID); envID != "" {
		return envID, nil
	}

	entries, err := c.registry.List()
	if err != nil {
		return "", fmt.Errorf("list registry: %w", err)
	}
	byPID := make(map[int]string, len(entries))
	for _, e := range entries {
		byPID[e.PID] = e.AgentID
	}

	for pid := os.Getpid(); pid > 1; {
		if agentID, ok := byPID[pid]; ok {
			return agentID, nil
		}
		parent, err := parentPID(pid)
		if err != nil || parent == pid {
			break
		}
		pid = parent
	}

	return "", fmt.Errorf("%w: no registry entry matches this process or any ancestor; set %s or pass an explicit agent id", ErrSelfNotAuthenticated, envAgentID)
}

// envAgentID lets a caller short-circuit ancestor-PID walking — the
// robust alternative the spec names for platforms or sandboxes where
// the process tree isn't available to walk (e.g. /proc unmounted).
const envAgentID = "A2A_AGENT_ID"
