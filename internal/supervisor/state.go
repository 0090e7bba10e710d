package supervisor

import (
	"regexp"
	"sync"
	"time"

	"github.com/tuzig/vt10x"

	"github.com/shiroa-systems/a2a-runtime/internal/constants"
	"github.com/shiroa-systems/a2a-runtime/internal/logging"
	"github.com/shiroa-systems/a2a-runtime/internal/profile"
	"go.uber.org/zap"
)

// State is the wrapped program's classification, matching the three
// states the server's /status endpoint reports.
type State string

const (
	StateProcessing State = "processing"
	StateReady      State = "ready"
	StateWaiting    State = "waiting"
)

// StateChangeFunc is invoked whenever the observed state changes.
type StateChangeFunc func(old, new State)

// Observer feeds PTY output into a vt10x terminal emulator and
// classifies the wrapped program's state by matching the profile's
// regular expressions against the emulator's rendered, visible lines
// rather than the raw byte stream — this survives ANSI cursor
// movement and redraws that a tail-of-bytes match would miss.
type Observer struct {
	logger *logging.Logger

	idleRegex       *regexp.Regexp
	inputReadyRegex *regexp.Regexp
	waitingRegex    *regexp.Regexp
	style           profile.DetectionStyle
	idleTimeout     time.Duration

	mu            sync.Mutex
	term          vt10x.Terminal
	rows, cols    int
	state         State
	lastOutputAt  time.Time
	suppressReady time.Time
	onChange      StateChangeFunc
}

// NewObserver compiles profile's regexes and returns an Observer sized
// to a default 80x24 terminal; Resize adjusts it to the real PTY size
// once known.
func NewObserver(p *profile.Profile, log *logging.Logger, onChange StateChangeFunc) (*Observer, error) {
	o := &Observer{
		logger:   log,
		style:    p.Detection,
		state:    StateProcessing,
		onChange: onChange,
		rows:     24,
		cols:     80,
	}
	o.term = vt10x.New(vt10x.WithSize(o.cols, o.rows))

	if p.IdleTimeoutMS > 0 {
		o.idleTimeout = time.Duration(p.IdleTimeoutMS) * time.Millisecond
	} else {
		o.idleTimeout = constants.StateCheckInterval * 50
	}

	var err error
	if p.IdleRegex != "" {
		if o.idleRegex, err = regexp.Compile(p.IdleRegex); err != nil {
			return nil, err
		}
	}
	if p.InputReadyRegex != "" {
		if o.inputReadyRegex, err = regexp.Compile(p.InputReadyRegex); err != nil {
			return nil, err
		}
	}
	if p.WaitingRegex != "" {
		if o.waitingRegex, err = regexp.Compile(p.WaitingRegex); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Write feeds PTY output to the terminal emulator. Safe to call from
// the output pump on every read.
func (o *Observer) Write(data []byte) {
	o.mu.Lock()
	_, _ = o.term.Write(data)
	o.lastOutputAt = time.Now()
	o.mu.Unlock()
}

// Resize updates the emulator's dimensions to match the real PTY.
func (o *Observer) Resize(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	o.mu.Lock()
	o.term.Resize(cols, rows)
	o.cols, o.rows = cols, rows
	o.mu.Unlock()
}

func (o *Observer) visibleLines() []string {
	lines := make([]string, o.rows)
	for row := 0; row < o.rows; row++ {
		chars := make([]rune, 0, o.cols)
		for col := 0; col < o.cols; col++ {
			g := o.term.Cell(col, row)
			if g.Char == 0 {
				chars = append(chars, ' ')
			} else {
				chars = append(chars, g.Char)
			}
		}
		lines[row] = string(chars)
	}
	return lines
}

// Evaluate re-derives the current state from the rendered terminal
// content and, for timeout/hybrid styles, output silence. It calls
// onChange if the state moved.
func (o *Observer) Evaluate() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	lines := o.visibleLines()
	idle := o.idleRegex == nil || matchesAny(o.idleRegex, lines)
	silentLongEnough := time.Since(o.lastOutputAt) >= o.idleTimeout

	var next State
	switch o.style {
	case profile.StyleTimeout:
		if silentLongEnough {
			next = StateReady
		} else {
			next = StateProcessing
		}
	case profile.StylePattern:
		next = o.classify(idle, lines)
	default: // hybrid: pattern match guarded by timeout
		if idle && silentLongEnough {
			next = o.classify(idle, lines)
		} else {
			next = StateProcessing
		}
	}

	if next == StateReady && time.Now().Before(o.suppressReady) {
		next = StateProcessing
	}

	if next != o.state {
		old := o.state
		o.state = next
		if o.onChange != nil {
			o.logger.Debug("supervisor state changed", zap.String("old_state", string(old)), zap.String("new_state", string(next)))
			o.onChange(old, next)
		}
	}
	return o.state
}

func (o *Observer) classify(idle bool, lines []string) State {
	if !idle {
		return StateProcessing
	}
	if o.waitingRegex != nil && matchesAny(o.waitingRegex, lines) {
		return StateWaiting
	}
	if o.inputReadyRegex == nil || matchesAny(o.inputReadyRegex, lines) {
		return StateReady
	}
	return StateProcessing
}

// HoldReady keeps Evaluate from reporting "ready" until constants.DoneStateHold
// has elapsed, giving the wrapped program a moment to start reacting to a
// just-delivered injection before its still-blank prompt is mistaken for idle.
func (o *Observer) HoldReady() {
	o.mu.Lock()
	o.suppressReady = time.Now().Add(constants.DoneStateHold)
	o.mu.Unlock()
}

// Current returns the last-evaluated state without re-evaluating.
func (o *Observer) Current() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func matchesAny(re *regexp.Regexp, lines []string) bool {
	for _, line := range lines {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
