package indexer

import "sync"

// Default tail buffer sizing: trim to retainBytes once the buffer grows past
// maxBytes. The retained tail must stay much larger than any sentinel line so
// trimming cannot split a match.
const (
	defaultMaxBytes    = 10240
	defaultRetainBytes = 5120
)

// tailBuffer accumulates process output while bounding memory. Once the
// buffer exceeds max bytes it is trimmed to its newest retain bytes, so the
// captured text always reflects the most recent output.
type tailBuffer struct {
	mu     sync.Mutex
	buf    []byte
	max    int
	retain int
}

func newTailBuffer(maxBytes, retainBytes int) *tailBuffer {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	if retainBytes <= 0 || retainBytes > maxBytes {
		retainBytes = maxBytes / 2
	}
	return &tailBuffer{max: maxBytes, retain: retainBytes}
}

// Write appends p, then trims the buffer to its newest retain bytes if it
// grew past max. Never fails; implements io.Writer.
func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		tail := t.buf[len(t.buf)-t.retain:]
		next := make([]byte, t.retain)
		copy(next, tail)
		t.buf = next
	}
	return len(p), nil
}

// String returns the currently retained output.
func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// Len returns the number of retained bytes.
func (t *tailBuffer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buf)
}
