package supervisor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/shiroa-systems/a2a-runtime/internal/constants"
	"github.com/shiroa-systems/a2a-runtime/internal/profile"
)

// Injection is one request to write framework-originated input into
// the PTY: an initial instruction, a delivered task message, or an
// interrupt.
type Injection struct {
	Payload  string
	Priority int // 1-4 normal, 5 emergency interrupt
}

// injectionQueue holds pending injections in two lanes: priorities 1-4
// share lane 1 and are drained in enqueue order, and priority 5 has lane
// 5, drained ahead of everything else by the consumer, which treats it
// as an emergency interrupt rather than an ordinary enqueued write.
type injectionQueue struct {
	lanes [6]chan Injection // only lanes 1 and 5 receive injections
}

func newInjectionQueue() *injectionQueue {
	q := &injectionQueue{}
	for i := 1; i <= 5; i++ {
		q.lanes[i] = make(chan Injection, 64)
	}
	return q
}

func (q *injectionQueue) push(in Injection) error {
	if in.Priority < 1 || in.Priority > 5 {
		return fmt.Errorf("supervisor: invalid injection priority %d", in.Priority)
	}
	lane := in.Priority
	if lane < 5 {
		lane = 1
	}
	select {
	case q.lanes[lane] <- in:
		return nil
	default:
		return fmt.Errorf("supervisor: injection queue full at priority %d", in.Priority)
	}
}

// next blocks until an injection is available, always preferring the
// highest-priority non-empty lane.
func (q *injectionQueue) next(stop <-chan struct{}) (Injection, bool) {
	for {
		for p := 5; p >= 1; p-- {
			select {
			case in := <-q.lanes[p]:
				return in, true
			default:
			}
		}
		select {
		case in := <-q.lanes[5]:
			return in, true
		case in := <-q.lanes[4]:
			return in, true
		case in := <-q.lanes[3]:
			return in, true
		case in := <-q.lanes[2]:
			return in, true
		case in := <-q.lanes[1]:
			return in, true
		case <-stop:
			return Injection{}, false
		}
	}
}

// spillToScratch writes payload to a scratch file under dir and
// returns a short reference message in its place, used when payload
// exceeds the long-payload threshold: writing it inline byte-by-byte
// through a PTY line discipline is slow and risks being interleaved
// with the wrapped program's own output mid-line.
func spillToScratch(dir, payload string, threshold int) (string, error) {
	if threshold <= 0 {
		threshold = constants.LongPayloadThreshold
	}
	if len(payload) <= threshold {
		return payload, nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("supervisor: create scratch directory: %w", err)
	}
	name := filepath.Join(dir, uuid.NewString()+".txt")
	if err := os.WriteFile(name, []byte(payload), 0600); err != nil {
		return "", fmt.Errorf("supervisor: write scratch file: %w", err)
	}
	return fmt.Sprintf("Long message saved to %s", name), nil
}

// envelope formats payload as the wire-level injection marker the
// wrapped program's own output shows back to the user, so a human
// reading the terminal can tell framework-delivered input from their
// own typing.
func envelope(payload string) []byte {
	return []byte(fmt.Sprintf("\nA2A: %s", payload))
}

// submitSuffix appends the profile's declared submit sequence.
func submitSuffix(payload []byte, seq profile.SubmitSequence) []byte {
	return append(payload, seq.Bytes()...)
}
