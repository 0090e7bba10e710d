//go:build !linux

package client

import "fmt"

// parentPID has no portable implementation without a per-OS syscall
// binding (sysctl KERN_PROC on BSD/Darwin, NtQueryInformationProcess on
// Windows). Ancestor-chain self-identification degrades to the
// A2A_AGENT_ID environment variable on these platforms, which
// resolveSelf already checks before calling this.
func parentPID(pid int) (int, error) {
	return 0, fmt.Errorf("client: ancestor-pid walking is unsupported on this platform")
}
