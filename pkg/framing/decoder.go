package framing

import (
	"sync"
	"time"

	"github.com/vango-dev/framer/pkg/protocol"
)

// Frame is one complete frame: header bytes, length field and payload.
// The decoder keeps no reference to a Frame once it is returned.
type Frame []byte

// Len returns the total frame length.
func (f Frame) Len() int {
	return len(f)
}

// Payload strips the header and length field according to layout.
func (f Frame) Payload(layout protocol.Layout) ([]byte, error) {
	return layout.Payload(f)
}

// Decoder reassembles frames from the chunks of one session.
//
// Submit, Buffered and Reset are serialized by a per-decoder mutex: the
// staleness check, the append, the length probe and the extraction of one
// call are never interleaved with another call's.
type Decoder struct {
	mu sync.Mutex

	layout         protocol.Layout
	expire         time.Duration
	maxFrameLength int
	now            func() time.Time
	observer       Observer

	buf          sessionBuffer
	lastActivity time.Time
}

func newDecoder(cfg config) *Decoder {
	return &Decoder{
		layout:         cfg.layout,
		expire:         cfg.expire,
		maxFrameLength: cfg.maxFrameLength,
		now:            cfg.clock,
		observer:       cfg.observer,
		buf:            sessionBuffer{size: cfg.bufferSize},
	}
}

// Submit feeds one chunk to the decoder and returns at most one frame.
//
// A nil chunk re-probes the retained bytes without adding data; callers
// loop on Submit(nil) after every returned frame until it reports false,
// since one chunk may carry several frames.
//
// When nothing is retained and chunk is exactly one frame, chunk itself is
// returned. Otherwise the returned Frame is a copy and stays valid after
// later calls.
func (d *Decoder) Submit(chunk []byte) (Frame, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if d.buf.Len() > 0 && d.lastActivity.Add(d.expire).Before(now) {
		d.discard(DiscardStale)
	}
	d.lastActivity = now

	if d.buf.Len() == 0 && len(chunk) > 0 {
		if n, res := probe(chunk, d.layout, d.maxFrameLength); res == probeResolved && n == len(chunk) {
			d.observer.FrameDecoded(n, true)
			return Frame(chunk), true
		}
	}

	d.buf.Append(chunk)
	return d.extract()
}

// Drain submits chunk and keeps re-probing until no complete frame is left.
func (d *Decoder) Drain(chunk []byte) []Frame {
	var frames []Frame
	frame, ok := d.Submit(chunk)
	for ok {
		frames = append(frames, frame)
		frame, ok = d.Submit(nil)
	}
	return frames
}

// Buffered returns the number of retained bytes.
func (d *Decoder) Buffered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Len()
}

// Reset drops all retained bytes without reporting them.
func (d *Decoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf.Reset()
}

// Layout returns the frame layout the decoder reads.
func (d *Decoder) Layout() protocol.Layout {
	return d.layout
}

// extract must be called with d.mu held.
func (d *Decoder) extract() (Frame, bool) {
	n, res := probe(d.buf.Bytes(), d.layout, d.maxFrameLength)
	switch res {
	case probeResolved:
		d.observer.FrameDecoded(n, false)
		return Frame(d.buf.Next(n)), true
	case probeOversize:
		d.discard(DiscardOversize)
	case probeMalformed:
		d.discard(DiscardMalformed)
	}
	return nil, false
}

// discard must be called with d.mu held.
func (d *Decoder) discard(reason DiscardReason) {
	n := d.buf.Len()
	d.buf.Reset()
	d.observer.BufferDiscarded(reason, n)
}
