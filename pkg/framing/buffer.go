package framing

// maxRetainedCapacity is the largest backing array kept around once a
// session buffer drains; anything bigger is released.
const maxRetainedCapacity = 64 * 1024

// sessionBuffer holds the bytes of a session that are not yet part of an
// emitted frame. Bytes are appended at w and consumed from r:
//
//	0 <= r <= w <= len(data)
//
// The backing array is allocated on first use, compacted to the left when
// the tail runs out of room, and grown only when compaction is not enough.
type sessionBuffer struct {
	data []byte
	r, w int
	size int
}

// Len returns the number of retained bytes.
func (b *sessionBuffer) Len() int {
	return b.w - b.r
}

// Bytes returns the retained bytes. The slice is only valid until the next
// Append, Next or Reset.
func (b *sessionBuffer) Bytes() []byte {
	return b.data[b.r:b.w]
}

// Append copies p to the end of the buffer.
func (b *sessionBuffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	if b.r == b.w {
		b.r, b.w = 0, 0
	}

	need := b.w + len(p)
	if need > len(b.data) {
		unread := b.w - b.r
		if unread+len(p) <= len(b.data) {
			copy(b.data, b.data[b.r:b.w])
		} else {
			capacity := 2 * len(b.data)
			if capacity < b.size {
				capacity = b.size
			}
			if capacity < unread+len(p) {
				capacity = unread + len(p)
			}
			grown := make([]byte, capacity)
			copy(grown, b.data[b.r:b.w])
			b.data = grown
		}
		b.r, b.w = 0, unread
	}

	b.w += copy(b.data[b.w:], p)
}

// Next removes the first n retained bytes and returns a copy of them.
func (b *sessionBuffer) Next(n int) []byte {
	out := make([]byte, n)
	copy(out, b.data[b.r:b.r+n])
	b.r += n
	if b.r == b.w {
		b.r, b.w = 0, 0
	}
	return out
}

// Reset drops all retained bytes.
func (b *sessionBuffer) Reset() {
	b.r, b.w = 0, 0
	if len(b.data) > maxRetainedCapacity {
		b.data = nil
	}
}
