//go:build windows

package supervisor

import (
	"fmt"
	"os/exec"
	"syscall"
)

func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// killProcessGroup kills the wrapped program and its descendants via
// taskkill, since Windows has no single-syscall process-group kill.
func killProcessGroup(pid int) error {
	kill := exec.Command("taskkill", "/F", "/T", "/PID", fmt.Sprintf("%d", pid))
	return kill.Run()
}

func terminateProcessGroup(pid int) error {
	return killProcessGroup(pid)
}
