package supervisor

import "io"

// PTYHandle abstracts pseudo-terminal operations across Unix and
// Windows. On Unix it wraps creack/pty (backed by an *os.File); on
// Windows it wraps a conpty.ConPty pseudo-console.
type PTYHandle interface {
	io.ReadWriteCloser
	Resize(cols, rows uint16) error
}
