//go:build windows

package supervisor

import (
	"os"
	"os/exec"
)

// terminateProcess kills the process; Windows has no SIGTERM
// equivalent, so termination is immediate rather than graceful.
func terminateProcess(p *os.Process) error {
	return p.Kill()
}

func waitPtyProcess(cmd *exec.Cmd) (exitCode int, signalName string, err error) {
	state, err := cmd.Process.Wait()
	if err != nil {
		return 1, "", err
	}
	code := state.ExitCode()
	if code != 0 {
		return code, "", &exec.ExitError{ProcessState: state}
	}
	return 0, "", nil
}

const interruptByte = 0x03
