package cli

import (
	"fmt"
	"strings"

	"github.com/shiroa-systems/a2a-runtime/internal/client"
	"github.com/shiroa-systems/a2a-runtime/internal/config"
	"github.com/shiroa-systems/a2a-runtime/internal/logging"
	"github.com/shiroa-systems/a2a-runtime/internal/registry"
)

// cliDeps bundles the registry and client every subcommand needs,
// built fresh per invocation since the CLI is a short-lived process
// distinct from the long-running agent daemon it talks to.
type cliDeps struct {
	cfg      *config.Config
	registry *registry.Registry
	client   *client.Client
}

func newDeps() (*cliDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, withExit(ExitFailure, fmt.Errorf("load config: %w", err))
	}
	reg, err := cfg.OpenRegistry()
	if err != nil {
		return nil, withExit(ExitFailure, fmt.Errorf("open registry: %w", err))
	}
	return &cliDeps{
		cfg:      cfg,
		registry: reg,
		client:   client.New(reg, logging.Default()),
	}, nil
}

// resolveTarget maps a user-facing target into a live agent, trying
// each resolution rule in order and taking the first match: (1) exact
// display-name match, case-sensitive; (2) exact agent identifier
// match; (3) "<kind>-<port>" shorthand; (4) kind alone, but only when
// exactly one agent of that kind is live.
func resolveTarget(reg *registry.Registry, target string) (registry.Entry, error) {
	live, err := reg.ListLive()
	if err != nil {
		return registry.Entry{}, withExit(ExitFailure, fmt.Errorf("list registry: %w", err))
	}

	for _, e := range live {
		if e.DisplayName != "" && e.DisplayName == target {
			return e, nil
		}
	}

	if e, alive, err := reg.Resolve(target); err != nil {
		return registry.Entry{}, withExit(ExitFailure, fmt.Errorf("look up target %q: %w", target, err))
	} else if alive {
		return e, nil
	}

	for _, e := range live {
		if fmt.Sprintf("%s-%d", e.Kind, e.Port) == target {
			return e, nil
		}
	}

	var matches []registry.Entry
	for _, e := range live {
		if e.Kind == target {
			matches = append(matches, e)
		}
	}

	switch len(matches) {
	case 0:
		return registry.Entry{}, withExit(ExitTargetNotFound, fmt.Errorf("%w: %q", client.ErrTargetNotFound, target))
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.AgentID
		}
		return registry.Entry{}, withExit(ExitAmbiguousTarget,
			fmt.Errorf("%w: %q matches %d agents: %s", ErrAmbiguousTarget, target, len(matches), strings.Join(ids, ", ")))
	}
}

// classifyErr re-wraps errors surfaced from the client package that
// the CLI layer didn't originate itself, so every path out of a
// subcommand carries the right exit code.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isErr(err, client.ErrTargetNotFound):
		return withExit(ExitTargetNotFound, err)
	case isErr(err, client.ErrSelfNotAuthenticated):
		return withExit(ExitAuthFailure, err)
	default:
		return withExit(ExitFailure, err)
	}
}
