package supervisor

import (
	"sync"
	"time"
)

// outputChunk is one slice of PTY output, captured as it is read off
// the master side.
type outputChunk struct {
	Data      string    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// ringBuffer is memory-bounded FIFO storage for recently observed
// output, filled by the output pump. The state observer does not read
// it; it matches regexes against its own terminal emulator.
type ringBuffer struct {
	mu       sync.Mutex
	maxBytes int64
	size     int64
	chunks   []outputChunk
}

func newRingBuffer(maxBytes int64) *ringBuffer {
	if maxBytes <= 0 {
		maxBytes = 2 * 1024 * 1024
	}
	return &ringBuffer{maxBytes: maxBytes}
}

func (b *ringBuffer) append(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = append(b.chunks, outputChunk{Data: string(data), Timestamp: time.Now().UTC()})
	b.size += int64(len(data))

	for b.size > b.maxBytes && len(b.chunks) > 0 {
		b.size -= int64(len(b.chunks[0].Data))
		b.chunks = b.chunks[1:]
	}
}

func (b *ringBuffer) snapshot() []outputChunk {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]outputChunk, len(b.chunks))
	copy(out, b.chunks)
	return out
}

// tail returns the concatenated text of the most recent chunks whose
// combined size does not exceed maxBytes, for regex matching against
// recent output without re-scanning the whole buffer.
func (b *ringBuffer) tail(maxBytes int) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var size int
	start := len(b.chunks)
	for start > 0 {
		chunkLen := len(b.chunks[start-1].Data)
		if size+chunkLen > maxBytes {
			break
		}
		size += chunkLen
		start--
	}

	var sb []byte
	for _, c := range b.chunks[start:] {
		sb = append(sb, c.Data...)
	}
	return string(sb)
}
