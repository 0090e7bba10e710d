// Package supervisor spawns the wrapped program under a pseudo-terminal,
// mirrors its output to the user's terminal while classifying its
// state, and serializes input from the user and from the framework so
// neither stream corrupts the other mid-line.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shiroa-systems/a2a-runtime/internal/constants"
	"github.com/shiroa-systems/a2a-runtime/internal/logging"
	"github.com/shiroa-systems/a2a-runtime/internal/profile"
)

// Supervisor owns one wrapped-program process for the lifetime of the
// agent. Only one may run per agent process.
type Supervisor struct {
	logger  *logging.Logger
	profile *profile.Profile

	cmd *exec.Cmd
	pty PTYHandle

	buffer   *ringBuffer
	observer *Observer
	queue    *injectionQueue

	userInput  io.Reader
	userOutput io.Writer

	scratchDir string

	writeMu sync.Mutex

	exitCode   int
	exitSignal string
	exited     chan struct{}
	exitOnce   sync.Once
}

// Options configures a new Supervisor.
type Options struct {
	Profile    *profile.Profile
	Logger     *logging.Logger
	UserInput  io.Reader // typically os.Stdin
	UserOutput io.Writer // typically os.Stdout
	ScratchDir string
	OnState    StateChangeFunc
	Cols, Rows int
}

// New spawns the wrapped program described by opts.Profile under a
// PTY sized opts.Cols x opts.Rows (defaulting to 80x24), and returns a
// Supervisor ready to have Run called on it.
func New(opts Options) (*Supervisor, error) {
	if opts.Cols <= 0 {
		opts.Cols = 80
	}
	if opts.Rows <= 0 {
		opts.Rows = 24
	}

	observer, err := NewObserver(opts.Profile, opts.Logger, opts.OnState)
	if err != nil {
		return nil, fmt.Errorf("supervisor: build observer: %w", err)
	}
	observer.Resize(opts.Cols, opts.Rows)

	cmd := exec.Command(opts.Profile.Executable, opts.Profile.Args...)
	if opts.Profile.WorkDir != "" {
		cmd.Dir = opts.Profile.WorkDir
	}
	cmd.Env = os.Environ()
	setProcGroup(cmd)

	handle, err := startPTY(cmd, opts.Cols, opts.Rows)
	if err != nil {
		return nil, fmt.Errorf("supervisor: start pty: %w", err)
	}

	s := &Supervisor{
		logger:     opts.Logger,
		profile:    opts.Profile,
		cmd:        cmd,
		pty:        handle,
		buffer:     newRingBuffer(2 * 1024 * 1024),
		observer:   observer,
		queue:      newInjectionQueue(),
		userInput:  opts.UserInput,
		userOutput: opts.UserOutput,
		scratchDir: opts.ScratchDir,
		exited:     make(chan struct{}),
	}
	return s, nil
}

// Run blocks, driving the three cooperating workers described by the
// runtime's concurrency model: the output pump, the input pump, and
// the injection queue consumer. Alongside them it waits for the wrapped
// program to exit and re-evaluates its state every
// constants.StateCheckInterval, so output silence is noticed even when
// no further output arrives. It returns when the wrapped program exits
// or ctx is canceled.
func (s *Supervisor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.outputPump(ctx) })
	g.Go(func() error { return s.inputPump(ctx) })
	g.Go(func() error { return s.injectionConsumer(ctx) })
	g.Go(func() error { return s.waitForExit() })
	g.Go(func() error {
		ticker := time.NewTicker(constants.StateCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-s.exited:
				return errSupervisorExited
			case <-ticker.C:
				s.observer.Evaluate()
			}
		}
	})

	err := g.Wait()
	if err == errSupervisorExited {
		return nil
	}
	return err
}

var errSupervisorExited = fmt.Errorf("supervisor: wrapped program exited")

// outputPump reads raw bytes from the PTY master, mirrors them to the
// user's terminal, feeds the state observer, and buffers them.
func (s *Supervisor) outputPump(ctx context.Context) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.exited:
			return errSupervisorExited
		default:
		}

		n, err := s.pty.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			s.buffer.append(chunk)
			s.observer.Write(chunk)
			if s.userOutput != nil {
				_, _ = s.userOutput.Write(chunk)
			}
			s.observer.Evaluate()
		}
		if err != nil {
			if err == io.EOF {
				return errSupervisorExited
			}
			return err
		}
	}
}

// inputPump reads user keystrokes and forwards them to the PTY
// unmodified. It never takes the injection lock mid-keystroke; instead
// every write — user or framework — passes through writeLocked so the
// two streams never interleave within a single write.
func (s *Supervisor) inputPump(ctx context.Context) error {
	if s.userInput == nil {
		<-ctx.Done()
		return nil
	}
	buf := make([]byte, 1024)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.exited:
			return errSupervisorExited
		default:
		}
		n, err := s.userInput.Read(buf)
		if n > 0 {
			if werr := s.writeLocked(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// injectionConsumer serializes framework-originated writes: initial
// instructions, protocol-delivered task messages, and interrupts. A
// leading newline always precedes an injected payload so it renders
// on its own line regardless of what the user was mid-typing.
func (s *Supervisor) injectionConsumer(ctx context.Context) error {
	stop := ctx.Done()
	for {
		in, ok := s.queue.next(stop)
		if !ok {
			return nil
		}

		if in.Priority == 5 {
			if err := s.writeLocked([]byte{interruptByte}); err != nil {
				return err
			}
		}

		payload, err := spillToScratch(s.scratchDir, in.Payload, s.profile.LongPayloadThreshold)
		if err != nil {
			s.logger.Warn("failed to spill long injection payload to scratch file")
			payload = in.Payload
		}

		out := submitSuffix(envelope(payload), s.profile.SubmitSequence)
		if err := s.writeLocked(out); err != nil {
			return err
		}
		s.observer.HoldReady()
	}
}

func (s *Supervisor) writeLocked(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.pty.Write(data)
	return err
}

func (s *Supervisor) waitForExit() error {
	code, signal, err := waitPtyProcess(s.cmd)
	s.exitCode = code
	s.exitSignal = signal
	s.exitOnce.Do(func() { close(s.exited) })
	if err != nil {
		return errSupervisorExited
	}
	return errSupervisorExited
}

// Inject enqueues a framework-originated write. Priority 5 requests
// are treated as an emergency interrupt ahead of every other lane.
func (s *Supervisor) Inject(payload string, priority int) error {
	return s.queue.push(Injection{Payload: payload, Priority: priority})
}

// State returns the last-evaluated wrapped-program state.
func (s *Supervisor) State() State {
	return s.observer.Current()
}

// Resize updates both the real PTY and the state observer's emulator
// to new dimensions.
func (s *Supervisor) Resize(cols, rows int) error {
	s.observer.Resize(cols, rows)
	return s.pty.Resize(uint16(cols), uint16(rows))
}

// OutputSince returns the buffered output chunks, most recent last.
func (s *Supervisor) OutputSince() []outputChunk {
	return s.buffer.snapshot()
}

// Shutdown terminates the wrapped program, escalating from SIGTERM to
// SIGKILL after constants.ShutdownGrace if it has not exited.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	if s.cmd.Process == nil {
		return nil
	}
	pid := s.cmd.Process.Pid
	if err := terminateProcessGroup(pid); err != nil {
		_ = terminateProcess(s.cmd.Process)
	}

	select {
	case <-s.exited:
		return nil
	case <-time.After(constants.ShutdownGrace):
	case <-ctx.Done():
	}

	select {
	case <-s.exited:
		return nil
	default:
		return killProcessGroup(pid)
	}
}

// ExitInfo reports the wrapped program's exit code and, if it died by
// signal, the signal name.
func (s *Supervisor) ExitInfo() (code int, signal string) {
	return s.exitCode, s.exitSignal
}

// Close releases the PTY handle.
func (s *Supervisor) Close() error {
	return s.pty.Close()
}
