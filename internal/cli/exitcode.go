package cli

import "errors"

// Exit codes per the documented command-surface contract: 0 success, 1
// generic failure, 2 usage error, 3 target not found, 4 ambiguous
// target, 5 authentication failure.
const (
	ExitOK = iota
	ExitFailure
	ExitUsage
	ExitTargetNotFound
	ExitAmbiguousTarget
	ExitAuthFailure
)

// ErrAmbiguousTarget marks a target argument that matched more than one
// live agent; the wrapping error lists the candidates.
var ErrAmbiguousTarget = errors.New("cli: ambiguous target")

// exitCodeErr pairs an error with the process exit code it should
// produce, letting main map failures to the documented codes without
// each subcommand calling os.Exit itself.
type exitCodeErr struct {
	code int
	err  error
}

func (e *exitCodeErr) Error() string { return e.err.Error() }
func (e *exitCodeErr) Unwrap() error { return e.err }

func withExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitCodeErr{code: code, err: err}
}

// ExitCode inspects err and returns the process exit code it maps to,
// falling back to ExitFailure for anything not explicitly classified.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ec *exitCodeErr
	if errors.As(err, &ec) {
		return ec.code
	}
	return ExitFailure
}
