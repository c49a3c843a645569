package framing

import (
	"bytes"
	"testing"
)

func TestSessionBufferLazyAllocation(t *testing.T) {
	var b sessionBuffer
	b.Append(nil)
	if b.data != nil {
		t.Fatal("empty append allocated a backing array")
	}
	b.Append([]byte("abc"))
	if b.Len() != 3 || string(b.Bytes()) != "abc" {
		t.Fatalf("after append: Len()=%d Bytes()=%q", b.Len(), b.Bytes())
	}
}

func TestSessionBufferCompaction(t *testing.T) {
	b := sessionBuffer{size: 8}
	b.Append([]byte("abcdefgh"))
	if len(b.data) != 8 {
		t.Fatalf("capacity = %d, want 8", len(b.data))
	}

	if got := b.Next(6); string(got) != "abcdef" {
		t.Fatalf("Next(6) = %q", got)
	}
	// Two bytes unread at the tail; four more fit after compaction.
	b.Append([]byte("1234"))
	if len(b.data) != 8 {
		t.Errorf("buffer grew to %d instead of compacting", len(b.data))
	}
	if b.r != 0 || b.w != 6 {
		t.Errorf("cursors after compaction r=%d w=%d, want 0,6", b.r, b.w)
	}
	if string(b.Bytes()) != "gh1234" {
		t.Errorf("Bytes() = %q, want gh1234", b.Bytes())
	}
}

func TestSessionBufferGrowth(t *testing.T) {
	b := sessionBuffer{size: 4}
	b.Append([]byte("abcd"))
	b.Append([]byte("efghij"))
	if string(b.Bytes()) != "abcdefghij" {
		t.Fatalf("Bytes() = %q", b.Bytes())
	}
	if len(b.data) < 10 {
		t.Errorf("capacity = %d, want >= 10", len(b.data))
	}
	if b.r < 0 || b.r > b.w || b.w > len(b.data) {
		t.Errorf("cursor invariant broken: r=%d w=%d cap=%d", b.r, b.w, len(b.data))
	}
}

func TestSessionBufferNextCopies(t *testing.T) {
	var b sessionBuffer
	b.Append([]byte("xyz"))
	out := b.Next(3)
	if b.Len() != 0 || b.r != 0 || b.w != 0 {
		t.Fatalf("drained buffer cursors r=%d w=%d", b.r, b.w)
	}
	b.Append([]byte("QQQ"))
	if string(out) != "xyz" {
		t.Errorf("Next() result aliased the buffer: %q", out)
	}
}

func TestSessionBufferResetReleasesLargeArrays(t *testing.T) {
	var b sessionBuffer
	b.Append(bytes.Repeat([]byte{1}, maxRetainedCapacity+1))
	b.Reset()
	if b.data != nil {
		t.Error("Reset kept an oversized backing array")
	}

	b.Append([]byte{1, 2, 3})
	b.Reset()
	if b.data == nil || b.Len() != 0 {
		t.Error("Reset released a small backing array or kept bytes")
	}
}
