package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List live agents registered on this host",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	deps, err := newDeps()
	if err != nil {
		return err
	}
	entries, err := deps.registry.ListLive()
	if err != nil {
		return withExit(ExitFailure, fmt.Errorf("list registry: %w", err))
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT ID\tDISPLAY NAME\tKIND\tPID\tPORT\tENDPOINT\tSTATUS\tCURRENT TASK")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			e.AgentID, e.DisplayName, e.Kind, e.PID, e.Port, e.Endpoint, e.Status, e.CurrentTaskPreview)
	}
	return w.Flush()
}
