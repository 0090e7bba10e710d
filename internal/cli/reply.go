package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shiroa-systems/a2a-runtime/internal/client"
	"github.com/shiroa-systems/a2a-runtime/internal/replytarget"
	"github.com/shiroa-systems/a2a-runtime/pkg/a2a"
)

var (
	replyFrom string
	replyTo   string
)

var replyCmd = &cobra.Command{
	Use:   "reply <message>",
	Short: "Answer whoever last sent this agent a reply-expecting message",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return withExit(ExitUsage, fmt.Errorf("reply requires exactly a message"))
		}
		return nil
	},
	RunE: runReply,
}

func init() {
	replyCmd.Flags().StringVar(&replyFrom, "from", "", "this agent's own identifier (defaults to ancestor-PID self-identification)")
	replyCmd.Flags().StringVar(&replyTo, "to", "", "sender agent id to pop a specific record instead of the most recent")
}

func runReply(cmd *cobra.Command, args []string) error {
	text := args[0]

	deps, err := newDeps()
	if err != nil {
		return err
	}
	selfID, err := deps.client.ResolveSelf(replyFrom)
	if err != nil {
		return classifyErr(fmt.Errorf("determine own identity: %w", err))
	}

	replies, err := replytarget.Open(deps.cfg.RegistryDir, selfID)
	if err != nil {
		return withExit(ExitFailure, fmt.Errorf("open reply-target store: %w", err))
	}

	var sender a2a.SenderDescriptor
	var ok bool
	if replyTo != "" {
		sender, ok, err = replies.Pop(replyTo)
	} else {
		sender, ok, err = replies.PopMostRecent()
	}
	if err != nil {
		return withExit(ExitFailure, fmt.Errorf("pop reply target: %w", err))
	}
	if !ok {
		return withExit(ExitFailure, fmt.Errorf("no pending messages to reply to"))
	}

	msg := a2a.Message{Role: a2a.RoleAgent, Parts: []a2a.Part{{Kind: a2a.PartText, Text: text}}}
	opts := client.SendOptions{
		SelfAgentID: selfID,
		InReplyTo:   sender.SenderTaskID,
	}

	task, err := deps.client.SendToLocal(context.Background(), sender.AgentID, msg, opts)
	if err != nil {
		return classifyErr(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "replied to %s: task %s (%s)\n", sender.AgentID, task.ID, task.State)
	return nil
}
