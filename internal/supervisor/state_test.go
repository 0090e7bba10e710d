package supervisor

import (
	"testing"
	"time"

	"github.com/shiroa-systems/a2a-runtime/internal/logging"
	"github.com/shiroa-systems/a2a-runtime/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProfile() *profile.Profile {
	p := &profile.Profile{
		Kind:            "test",
		Executable:      "cat",
		Detection:       profile.StylePattern,
		IdleRegex:       `\$\s*$`,
		InputReadyRegex: "",
		WaitingRegex:    `\[y/n\]`,
		Ports:           profile.PortRange{Base: 41000, Max: 41999},
	}
	return p
}

func TestObserverClassifiesProcessingWhenIdleRegexAbsentFromOutput(t *testing.T) {
	p := testProfile()
	o, err := NewObserver(p, logging.Default(), nil)
	require.NoError(t, err)

	o.Write([]byte("compiling...\r\n"))
	assert.Equal(t, StateProcessing, o.Evaluate())
}

func TestObserverClassifiesReadyWhenIdleRegexMatches(t *testing.T) {
	p := testProfile()
	o, err := NewObserver(p, logging.Default(), nil)
	require.NoError(t, err)

	o.Write([]byte("$ "))
	assert.Equal(t, StateReady, o.Evaluate())
}

func TestObserverClassifiesWaitingWhenWaitingRegexMatches(t *testing.T) {
	p := testProfile()
	o, err := NewObserver(p, logging.Default(), nil)
	require.NoError(t, err)

	o.Write([]byte("proceed? [y/n] $ "))
	assert.Equal(t, StateWaiting, o.Evaluate())
}

func TestObserverInvokesOnChangeExactlyOnceForATransition(t *testing.T) {
	p := testProfile()
	var transitions []State
	o, err := NewObserver(p, logging.Default(), func(old, new State) {
		transitions = append(transitions, new)
	})
	require.NoError(t, err)

	o.Write([]byte("$ "))
	o.Evaluate()
	o.Evaluate()

	require.Len(t, transitions, 1)
	assert.Equal(t, StateReady, transitions[0])
}

func TestObserverTimeoutStyleIgnoresPatterns(t *testing.T) {
	p := testProfile()
	p.Detection = profile.StyleTimeout
	p.IdleTimeoutMS = 1
	o, err := NewObserver(p, logging.Default(), nil)
	require.NoError(t, err)

	o.Write([]byte("still compiling, no prompt here"))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, StateReady, o.Evaluate())
}
