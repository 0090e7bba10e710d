// Package main is the entry point for a2a, the command-line helper
// that sends messages to and lists peer agents registered on the host.
// It is a short-lived client of the long-running a2a-agentd daemon,
// not a daemon itself.
package main

import (
	"fmt"
	"os"

	"github.com/shiroa-systems/a2a-runtime/internal/cli"
)

func main() {
	err := cli.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "a2a:", err)
	}
	os.Exit(cli.ExitCode(err))
}
