package supervisor

import (
	"testing"

	"github.com/shiroa-systems/a2a-runtime/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectionQueueRejectsOutOfRangePriority(t *testing.T) {
	q := newInjectionQueue()
	assert.Error(t, q.push(Injection{Payload: "x", Priority: 0}))
	assert.Error(t, q.push(Injection{Payload: "x", Priority: 6}))
}

func TestInjectionQueueDrainsHighestPriorityFirst(t *testing.T) {
	q := newInjectionQueue()
	require.NoError(t, q.push(Injection{Payload: "low", Priority: 1}))
	require.NoError(t, q.push(Injection{Payload: "emergency", Priority: 5}))

	stop := make(chan struct{})
	in, ok := q.next(stop)
	require.True(t, ok)
	assert.Equal(t, "emergency", in.Payload)

	in, ok = q.next(stop)
	require.True(t, ok)
	assert.Equal(t, "low", in.Payload)
}

func TestInjectionQueueNextStopsOnSignal(t *testing.T) {
	q := newInjectionQueue()
	stop := make(chan struct{})
	close(stop)

	_, ok := q.next(stop)
	assert.False(t, ok)
}

func TestSpillToScratchPassesThroughShortPayload(t *testing.T) {
	out, err := spillToScratch(t.TempDir(), "short message", 200)
	require.NoError(t, err)
	assert.Equal(t, "short message", out)
}

func TestSpillToScratchWritesLongPayloadToFile(t *testing.T) {
	dir := t.TempDir()
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}

	out, err := spillToScratch(dir, string(long), 200)
	require.NoError(t, err)
	assert.Contains(t, out, "Long message saved to")
}

func TestEnvelopeAndSubmitSuffix(t *testing.T) {
	env := envelope("hello")
	assert.Equal(t, "\nA2A: hello", string(env))

	out := submitSuffix(env, profile.SubmitCRLF)
	assert.Equal(t, "\nA2A: hello\r\n", string(out))
}
