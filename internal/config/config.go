// Package config reads environment variables over built-in defaults to
// produce the paths and settings bootstrap needs (it does not read the
// profile; bootstrap loads that separately from ProfilePath): where the registry
// lives, where the Unix-domain socket goes, how verbose logging is.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shiroa-systems/a2a-runtime/internal/registry"
)

// DefaultSystem is the "<system>" component of the "<system>-<kind>-<port>"
// agent identifier when A2A_SYSTEM is not set.
const DefaultSystem = "a2a"

// Config is the runtime-wide configuration layered from the environment.
type Config struct {
	// System is this host's namespace tag, the first segment of every
	// agent identifier minted here.
	System string

	// ProfilePath points at the YAML file describing the wrapped program.
	ProfilePath string

	// RegistryDir is the shared directory every agent on the host
	// registers into.
	RegistryDir string

	// ExternalDir holds hand-authored entries for agents outside this
	// host's process tree.
	ExternalDir string

	// UDSDir is the directory new Unix-domain sockets are created in.
	UDSDir string

	// ScratchDir holds spilled long-payload files.
	ScratchDir string

	// FileSafetyDBPath is the SQLite database backing the file-safety
	// lock manager.
	FileSafetyDBPath string

	LogLevel  string
	LogFormat string
}

// Load builds a Config from environment variables, falling back to
// `~/.a2a/...` defaults when unset.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".a2a")

	return &Config{
		System:           getEnv("A2A_SYSTEM", DefaultSystem),
		ProfilePath:      getEnv("A2A_PROFILE", ""),
		RegistryDir:      getEnv("A2A_REGISTRY_DIR", filepath.Join(base, "registry")),
		ExternalDir:      getEnv("A2A_EXTERNAL_DIR", filepath.Join(base, "external")),
		UDSDir:           getEnv("A2A_UDS_DIR", udsDir(base, getEnv("A2A_SYSTEM", DefaultSystem))),
		ScratchDir:       getEnv("A2A_SCRATCH_DIR", filepath.Join(base, "scratch")),
		FileSafetyDBPath: getEnv("A2A_FILESAFETY_DB", filepath.Join(base, "filesafety.db")),
		LogLevel:         getEnvWithFallback("A2A_LOG_LEVEL", "A2A_ENV", "info"),
		LogFormat:        getEnv("A2A_LOG_FORMAT", "json"),
	}, nil
}

// udsDir prefers $XDG_RUNTIME_DIR/<system> when the platform provides a
// runtime directory, matching the profile's documented socket layout;
// otherwise sockets live alongside the registry under the home directory.
func udsDir(homeBase, system string) string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, system)
	}
	return filepath.Join(homeBase, "uds")
}

// UDSPath returns the deterministic socket path for agentID.
func (c *Config) UDSPath(agentID string) string {
	return filepath.Join(c.UDSDir, agentID+".sock")
}

// AgentID builds the "<system>-<kind>-<port>" identifier for this host.
func (c *Config) AgentID(kind string, port int) string {
	return c.System + "-" + kind + "-" + strconv.Itoa(port)
}

// OpenRegistry opens the configured registry directory.
func (c *Config) OpenRegistry() (*registry.Registry, error) {
	return registry.Open(c.RegistryDir)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// getEnvWithFallback checks the primary key, then the fallback key
// ("A2A_ENV" doubles as a coarse log-level hint when A2A_LOG_LEVEL is
// unset: "production"/"prod" imply "info", anything else "debug"),
// before giving up and returning defaultValue.
func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if v := os.Getenv(primary); v != "" {
		return v
	}
	if v := os.Getenv(fallback); v != "" {
		if env := strings.ToLower(v); env == "production" || env == "prod" {
			return "info"
		}
		return "debug"
	}
	return defaultValue
}
