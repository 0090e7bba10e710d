package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shiroa-systems/a2a-runtime/internal/filesafety"
)

var (
	lockFrom   string
	lockIntent string
	lockTTL    time.Duration
	lockWait   time.Duration
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Acquire or release this agent's file-safety locks",
}

var lockAcquireCmd = &cobra.Command{
	Use:   "acquire <path>",
	Short: "Acquire the advisory lock on a file on behalf of this agent",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return withExit(ExitUsage, fmt.Errorf("lock acquire requires exactly a path"))
		}
		return nil
	},
	RunE: runLockAcquire,
}

var lockReleaseCmd = &cobra.Command{
	Use:   "release <path>",
	Short: "Release the advisory lock this agent holds on a file",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return withExit(ExitUsage, fmt.Errorf("lock release requires exactly a path"))
		}
		return nil
	},
	RunE: runLockRelease,
}

func init() {
	lockAcquireCmd.Flags().StringVar(&lockFrom, "from", "", "this agent's own identifier (defaults to ancestor-PID self-identification)")
	lockAcquireCmd.Flags().StringVar(&lockIntent, "intent", "", "free-text description of why the lock is being taken")
	lockAcquireCmd.Flags().DurationVar(&lockTTL, "ttl", 0, "lock expiry, 0 means no TTL")
	lockAcquireCmd.Flags().DurationVar(&lockWait, "wait", 0, "retry until granted or this long elapses, 0 means try once")
	lockReleaseCmd.Flags().StringVar(&lockFrom, "from", "", "this agent's own identifier (defaults to ancestor-PID self-identification)")

	lockCmd.AddCommand(lockAcquireCmd, lockReleaseCmd)
}

func openFileSafety(deps *cliDeps) (*filesafety.Store, error) {
	store, err := filesafety.Open(deps.cfg.FileSafetyDBPath)
	if err != nil {
		return nil, withExit(ExitFailure, fmt.Errorf("open file-safety store: %w", err))
	}
	return store, nil
}

// runLockAcquire takes the lock as the caller's own running agent, not
// as the short-lived CLI process: liveness reclaim must track the
// agent daemon, which outlives any one invocation of this command.
func runLockAcquire(cmd *cobra.Command, args []string) error {
	path := args[0]

	deps, err := newDeps()
	if err != nil {
		return err
	}
	selfID, err := deps.client.ResolveSelf(lockFrom)
	if err != nil {
		return classifyErr(fmt.Errorf("determine own identity: %w", err))
	}
	self, alive, err := deps.registry.Resolve(selfID)
	if err != nil {
		return withExit(ExitFailure, fmt.Errorf("look up own registry entry: %w", err))
	}
	if !alive {
		return withExit(ExitAuthFailure, fmt.Errorf("own registry entry %q not found or not alive", selfID))
	}

	store, err := openFileSafety(deps)
	if err != nil {
		return err
	}
	defer store.Close()

	var granted bool
	var holder string
	if lockWait > 0 {
		granted, holder, err = store.AcquireWait(path, self.AgentID, self.Kind, self.PID, lockIntent, lockTTL, lockWait)
	} else {
		granted, holder, err = store.Acquire(path, self.AgentID, self.Kind, self.PID, lockIntent, lockTTL)
	}
	if err != nil {
		return withExit(ExitFailure, fmt.Errorf("acquire lock: %w", err))
	}
	if !granted {
		return withExit(ExitFailure, fmt.Errorf("locked by %s", holder))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "locked %s\n", path)
	return nil
}

func runLockRelease(cmd *cobra.Command, args []string) error {
	path := args[0]

	deps, err := newDeps()
	if err != nil {
		return err
	}
	selfID, err := deps.client.ResolveSelf(lockFrom)
	if err != nil {
		return classifyErr(fmt.Errorf("determine own identity: %w", err))
	}

	store, err := openFileSafety(deps)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Release(path, selfID); err != nil {
		return withExit(ExitFailure, fmt.Errorf("release lock: %w", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "released %s\n", path)
	return nil
}
