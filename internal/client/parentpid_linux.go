//go:build linux

package client

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// parentPID reads /proc/<pid>/stat and returns the parent process id,
// field 4 of the space-separated stat line. The second field (comm) is
// parenthesized and may itself contain spaces or parens, so it is
// located by its trailing ") " rather than by naive field splitting.
func parentPID(pid int) (int, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}
	line := string(data)
	closeParen := strings.LastIndexByte(line, ')')
	if closeParen < 0 || closeParen+2 >= len(line) {
		return 0, fmt.Errorf("client: malformed /proc/%d/stat", pid)
	}
	fields := strings.Fields(line[closeParen+2:])
	if len(fields) < 2 {
		return 0, fmt.Errorf("client: /proc/%d/stat missing ppid field", pid)
	}
	// fields[0] is state, fields[1] is ppid.
	return strconv.Atoi(fields[1])
}
