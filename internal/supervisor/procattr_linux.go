//go:build linux

package supervisor

import (
	"os/exec"
	"syscall"
)

// setProcGroup places the wrapped program in its own process group and
// arranges for it to receive SIGTERM if this agent process dies
// without an orderly shutdown.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}

func killProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}

func terminateProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}
