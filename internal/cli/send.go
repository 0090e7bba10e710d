package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shiroa-systems/a2a-runtime/internal/client"
	"github.com/shiroa-systems/a2a-runtime/pkg/a2a"
)

var (
	sendFrom             string
	sendPriority         int
	sendResponseExpected bool
	sendNoResponse       bool
	sendReplyTo          string
)

var sendCmd = &cobra.Command{
	Use:   "send <target> <message>",
	Short: "Send a message to a peer agent",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return withExit(ExitUsage, fmt.Errorf("send requires exactly a target and a message"))
		}
		return nil
	},
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendFrom, "from", "", "this agent's own identifier (defaults to ancestor-PID self-identification)")
	sendCmd.Flags().IntVar(&sendPriority, "priority", 0, "injection priority 1-5 (0 uses the receiver's default lane)")
	sendCmd.Flags().BoolVar(&sendResponseExpected, "response", false, "expect a reply, recording this agent as the reply target")
	sendCmd.Flags().BoolVar(&sendNoResponse, "no-response", false, "explicitly do not expect a reply (the default)")
	sendCmd.Flags().StringVar(&sendReplyTo, "reply-to", "", "task id prefix this message answers")
}

func runSend(cmd *cobra.Command, args []string) error {
	target, text := args[0], args[1]
	if sendPriority != 0 && (sendPriority < 1 || sendPriority > 5) {
		return withExit(ExitUsage, fmt.Errorf("--priority must be 1-5, got %d", sendPriority))
	}
	if sendResponseExpected && sendNoResponse {
		return withExit(ExitUsage, fmt.Errorf("--response and --no-response are mutually exclusive"))
	}

	deps, err := newDeps()
	if err != nil {
		return err
	}
	entry, err := resolveTarget(deps.registry, target)
	if err != nil {
		return err
	}

	msg := a2a.Message{Role: a2a.RoleAgent, Parts: []a2a.Part{{Kind: a2a.PartText, Text: text}}}
	opts := client.SendOptions{
		SelfAgentID:      sendFrom,
		Priority:         sendPriority,
		ResponseExpected: sendResponseExpected,
		InReplyTo:        sendReplyTo,
	}

	task, err := deps.client.SendToLocal(context.Background(), entry.AgentID, msg, opts)
	if err != nil {
		return classifyErr(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent to %s: task %s (%s)\n", entry.AgentID, task.ID, task.State)
	return nil
}
