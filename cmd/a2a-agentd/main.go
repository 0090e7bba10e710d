// Package main is the entry point for a2a-agentd, the daemon that
// wraps one interactive program and turns it into a network-reachable
// agent: it spawns the program under a supervising PTY, serves the
// task API over TCP and a Unix-domain socket, and registers itself so
// peer agents on the host can find it.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shiroa-systems/a2a-runtime/internal/bootstrap"
)

func main() {
	agent, err := bootstrap.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "a2a-agentd: %v\n", err)
		os.Exit(1)
	}

	if err := agent.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "a2a-agentd: %v\n", err)
		os.Exit(1)
	}
}
