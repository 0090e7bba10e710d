// Package cli is the command-line surface over the Client and the
// local registry: send a message to a peer agent, reply to whoever
// last asked this agent something, or list every live agent on the
// host.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "a2a",
	Short: "Exchange structured messages with locally running agents",
	Long: `a2a sends and receives messages between locally running agents:
each agent wraps one interactive program and exposes itself over a
shared filesystem registry. This command talks to that registry and
to agents' HTTP/UDS endpoints; it does not itself run an agent — see
a2a-agentd for that.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command, returning an error classified with
// one of the documented exit codes via ExitCode.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(sendCmd, replyCmd, listCmd, lockCmd)
}
