package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBufferEvictsOldestWhenOverLimit(t *testing.T) {
	b := newRingBuffer(10)
	b.append([]byte("0123456789"))
	b.append([]byte("abcde"))

	snap := b.snapshot()
	var total int
	for _, c := range snap {
		total += len(c.Data)
	}
	assert.LessOrEqual(t, total, 10)
	assert.Equal(t, "abcde", snap[len(snap)-1].Data)
}

func TestRingBufferTailRespectsMaxBytes(t *testing.T) {
	b := newRingBuffer(1024)
	b.append([]byte("hello "))
	b.append([]byte("world"))

	assert.Equal(t, "world", b.tail(5))
	assert.Equal(t, "hello world", b.tail(1024))
}

func TestRingBufferDefaultsWhenMaxBytesNonPositive(t *testing.T) {
	b := newRingBuffer(0)
	assert.Equal(t, int64(2*1024*1024), b.maxBytes)
}
