package framing

import (
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/framer/pkg/protocol"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingObserver captures observer events.
type recordingObserver struct {
	mu       sync.Mutex
	frames   []int
	fast     int
	discards []DiscardReason
	bytes    int
}

func (o *recordingObserver) FrameDecoded(size int, fast bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames = append(o.frames, size)
	if fast {
		o.fast++
	}
}

func (o *recordingObserver) BufferDiscarded(reason DiscardReason, bytes int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.discards = append(o.discards, reason)
	o.bytes += bytes
}

func encode(t *testing.T, layout protocol.Layout, header, payload []byte) []byte {
	t.Helper()
	frame, err := layout.Encode(header, payload)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return frame
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
