package framing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/framer/pkg/protocol"
)

var testLayouts = []struct {
	name   string
	layout protocol.Layout
}{
	{"default", protocol.DefaultLayout()},
	{"uint8_no_header", protocol.Layout{HeaderOffset: 0, LengthField: protocol.LengthField8, ByteOrder: binary.BigEndian}},
	{"uint32_header4", protocol.Layout{HeaderOffset: 4, LengthField: protocol.LengthField32, ByteOrder: binary.BigEndian}},
	{"uint16_little", protocol.Layout{HeaderOffset: 1, LengthField: protocol.LengthField16, ByteOrder: binary.LittleEndian}},
	{"varint_header3", protocol.Layout{HeaderOffset: 3, LengthField: protocol.LengthFieldVarint, ByteOrder: binary.BigEndian}},
}

func newTestDecoder(t *testing.T, layout protocol.Layout, opts ...Option) *Decoder {
	t.Helper()
	f, err := NewFactory(append([]Option{WithLayout(layout)}, opts...)...)
	if err != nil {
		t.Fatalf("NewFactory() error = %v", err)
	}
	return f.Create()
}

func testPayloads() [][]byte {
	return [][]byte{
		{},
		{0x01},
		[]byte("hello, frame"),
		bytes.Repeat([]byte{0xAB}, 200),
	}
}

func TestSubmitExactFit(t *testing.T) {
	for _, tl := range testLayouts {
		t.Run(tl.name, func(t *testing.T) {
			for _, payload := range testPayloads() {
				obs := &recordingObserver{}
				dec := newTestDecoder(t, tl.layout, WithObserver(obs))
				frame := encode(t, tl.layout, nil, payload)

				got, ok := dec.Submit(frame)
				if !ok {
					t.Fatalf("Submit(frame of %d) = none, want frame", len(frame))
				}
				if !bytes.Equal(got, frame) {
					t.Errorf("Submit() = %x, want %x", got, frame)
				}
				if dec.Buffered() != 0 {
					t.Errorf("Buffered() = %d, want 0", dec.Buffered())
				}
				if obs.fast != 1 {
					t.Errorf("fast path hits = %d, want 1", obs.fast)
				}
			}
		})
	}
}

func TestSubmitSplit(t *testing.T) {
	for _, tl := range testLayouts {
		t.Run(tl.name, func(t *testing.T) {
			frame := encode(t, tl.layout, nil, []byte("split me across chunks"))
			for cut := 1; cut < len(frame); cut++ {
				dec := newTestDecoder(t, tl.layout)

				if got, ok := dec.Submit(frame[:cut]); ok {
					t.Fatalf("cut %d: first Submit() = %x, want none", cut, got)
				}
				if dec.Buffered() != cut {
					t.Fatalf("cut %d: Buffered() = %d", cut, dec.Buffered())
				}
				got, ok := dec.Submit(frame[cut:])
				if !ok {
					t.Fatalf("cut %d: second Submit() = none, want frame", cut)
				}
				if !bytes.Equal(got, frame) {
					t.Errorf("cut %d: Submit() = %x, want %x", cut, got, frame)
				}
				if dec.Buffered() != 0 {
					t.Errorf("cut %d: Buffered() = %d after frame", cut, dec.Buffered())
				}
			}
		})
	}
}

func TestSubmitByteAtATime(t *testing.T) {
	layout := protocol.Layout{HeaderOffset: 2, LengthField: protocol.LengthFieldVarint, ByteOrder: binary.BigEndian}
	frame := encode(t, layout, []byte{0x09, 0x08}, bytes.Repeat([]byte{0x42}, 300))
	dec := newTestDecoder(t, layout)

	for i := 0; i < len(frame)-1; i++ {
		if _, ok := dec.Submit(frame[i : i+1]); ok {
			t.Fatalf("byte %d produced a frame early", i)
		}
	}
	got, ok := dec.Submit(frame[len(frame)-1:])
	if !ok || !bytes.Equal(got, frame) {
		t.Fatalf("final byte: Submit() = %x, %v", got, ok)
	}
}

func TestSubmitCoalesced(t *testing.T) {
	for _, tl := range testLayouts {
		t.Run(tl.name, func(t *testing.T) {
			f1 := encode(t, tl.layout, nil, []byte("first"))
			f2 := encode(t, tl.layout, nil, []byte("second frame"))
			dec := newTestDecoder(t, tl.layout)

			got, ok := dec.Submit(concat(f1, f2))
			if !ok || !bytes.Equal(got, f1) {
				t.Fatalf("Submit(f1+f2) = %x, %v; want %x", got, ok, f1)
			}
			got, ok = dec.Submit(nil)
			if !ok || !bytes.Equal(got, f2) {
				t.Fatalf("Submit(nil) = %x, %v; want %x", got, ok, f2)
			}
			if got, ok := dec.Submit(nil); ok {
				t.Errorf("third Submit(nil) = %x, want none", got)
			}
		})
	}
}

func TestSubmitFrameWithLeftover(t *testing.T) {
	layout := protocol.DefaultLayout()
	f1 := encode(t, layout, []byte{1, 0}, []byte("one"))
	f2 := encode(t, layout, []byte{2, 0}, []byte("two"))
	dec := newTestDecoder(t, layout)

	got, ok := dec.Submit(concat(f1, f2[:3]))
	if !ok || !bytes.Equal(got, f1) {
		t.Fatalf("Submit(f1 + partial f2) = %x, %v", got, ok)
	}
	if _, ok := dec.Submit(nil); ok {
		t.Fatal("Submit(nil) with partial f2 returned a frame")
	}
	if dec.Buffered() != 3 {
		t.Fatalf("Buffered() = %d, want 3", dec.Buffered())
	}
	got, ok = dec.Submit(f2[3:])
	if !ok || !bytes.Equal(got, f2) {
		t.Fatalf("Submit(rest of f2) = %x, %v", got, ok)
	}
}

func TestDrain(t *testing.T) {
	layout := protocol.DefaultLayout()
	var stream []byte
	var want [][]byte
	for i := 0; i < 5; i++ {
		f := encode(t, layout, []byte{byte(i), 0}, bytes.Repeat([]byte{byte(i)}, i*3))
		want = append(want, f)
		stream = append(stream, f...)
	}
	tail := encode(t, layout, nil, []byte("tail"))
	stream = append(stream, tail[:4]...)

	dec := newTestDecoder(t, layout)
	frames := dec.Drain(stream)
	if len(frames) != len(want) {
		t.Fatalf("Drain() returned %d frames, want %d", len(frames), len(want))
	}
	for i := range want {
		if !bytes.Equal(frames[i], want[i]) {
			t.Errorf("frame %d = %x, want %x", i, frames[i], want[i])
		}
	}
	if dec.Buffered() != 4 {
		t.Errorf("Buffered() = %d, want 4", dec.Buffered())
	}
	if frames := dec.Drain(tail[4:]); len(frames) != 1 || !bytes.Equal(frames[0], tail) {
		t.Errorf("Drain(rest) = %x", frames)
	}
}

func TestIdempotentInsufficiency(t *testing.T) {
	layout := protocol.DefaultLayout()
	frame := encode(t, layout, []byte{0x11, 0x22}, []byte("patience"))
	prefix := frame[:5]
	dec := newTestDecoder(t, layout)

	if _, ok := dec.Submit(prefix); ok {
		t.Fatal("Submit(prefix) returned a frame")
	}
	for i := 0; i < 10; i++ {
		chunk := []byte{}
		if i%2 == 0 {
			chunk = nil
		}
		if _, ok := dec.Submit(chunk); ok {
			t.Fatalf("empty Submit #%d returned a frame", i)
		}
		dec.mu.Lock()
		retained := append([]byte(nil), dec.buf.Bytes()...)
		dec.mu.Unlock()
		if !bytes.Equal(retained, prefix) {
			t.Fatalf("retained bytes = %x, want %x", retained, prefix)
		}
	}

	got, ok := dec.Submit(frame[5:])
	if !ok || !bytes.Equal(got, frame) {
		t.Fatalf("Submit(rest) = %x, %v", got, ok)
	}
}

func TestStaleBufferDiscarded(t *testing.T) {
	clock := newFakeClock()
	obs := &recordingObserver{}
	layout := protocol.DefaultLayout()
	dec := newTestDecoder(t, layout,
		WithExpire(100*time.Millisecond),
		WithClock(clock.Now),
		WithObserver(obs),
	)

	// The remainder starts inside the payload; its first bytes read as a
	// length far larger than what follows, so on its own it never resolves.
	frame := encode(t, layout, []byte{0x01, 0x00}, bytes.Repeat([]byte{0xFF}, 16))
	if _, ok := dec.Submit(frame[:6]); ok {
		t.Fatal("Submit(partial) returned a frame")
	}

	clock.Advance(150 * time.Millisecond)
	if got, ok := dec.Submit(frame[6:]); ok {
		t.Fatalf("Submit(remainder after expiry) = %x, want none", got)
	}
	if len(obs.discards) != 1 || obs.discards[0] != DiscardStale || obs.bytes != 6 {
		t.Fatalf("discards = %v (%d bytes), want one stale discard of 6 bytes", obs.discards, obs.bytes)
	}
	if dec.Buffered() != len(frame)-6 {
		t.Fatalf("Buffered() = %d, want only the remainder (%d)", dec.Buffered(), len(frame)-6)
	}

	// The orphaned remainder expires too; the next frame decodes cleanly.
	clock.Advance(150 * time.Millisecond)
	next := encode(t, layout, []byte{0x02, 0x00}, []byte("fresh"))
	got, ok := dec.Submit(next)
	if !ok || !bytes.Equal(got, next) {
		t.Fatalf("Submit(next) = %x, %v; want %x", got, ok, next)
	}
	if len(obs.discards) != 2 {
		t.Errorf("discards = %v, want two", obs.discards)
	}
}

func TestStaleNotTriggeredWithinExpiry(t *testing.T) {
	clock := newFakeClock()
	layout := protocol.DefaultLayout()
	dec := newTestDecoder(t, layout, WithExpire(100*time.Millisecond), WithClock(clock.Now))
	frame := encode(t, layout, nil, []byte("slow but fine"))

	dec.Submit(frame[:3])
	clock.Advance(100 * time.Millisecond) // exactly at the boundary is not stale
	got, ok := dec.Submit(frame[3:])
	if !ok || !bytes.Equal(got, frame) {
		t.Fatalf("Submit() at expiry boundary = %x, %v", got, ok)
	}
}

func TestZeroExpire(t *testing.T) {
	clock := newFakeClock()
	layout := protocol.DefaultLayout()
	dec := newTestDecoder(t, layout, WithExpire(0), WithClock(clock.Now))
	frame := encode(t, layout, nil, []byte("x"))

	dec.Submit(frame[:2])
	clock.Advance(time.Nanosecond)
	if _, ok := dec.Submit(frame[2:]); ok {
		t.Fatal("zero expiry kept a partial frame across a clock tick")
	}
}

func TestZeroLengthPayload(t *testing.T) {
	for _, tl := range testLayouts {
		t.Run(tl.name, func(t *testing.T) {
			frame := encode(t, tl.layout, nil, nil)
			width := tl.layout.LengthField.Width()
			if width == 0 {
				width = 1 // a zero varint is one byte
			}
			want := tl.layout.HeaderOffset + width
			if len(frame) != want {
				t.Fatalf("zero-length frame size = %d, want %d", len(frame), want)
			}

			dec := newTestDecoder(t, tl.layout)
			got, ok := dec.Submit(frame)
			if !ok || !bytes.Equal(got, frame) {
				t.Fatalf("Submit(zero-length) = %x, %v", got, ok)
			}

			// Zero-length frames also come out of a coalesced chunk.
			got, ok = dec.Submit(concat(frame, frame))
			if !ok || !bytes.Equal(got, frame) {
				t.Fatalf("Submit(two zero-length) = %x, %v", got, ok)
			}
			if got, ok = dec.Submit(nil); !ok || !bytes.Equal(got, frame) {
				t.Fatalf("Submit(nil) = %x, %v", got, ok)
			}
		})
	}
}

func TestLengthFieldBoundaries(t *testing.T) {
	layout := protocol.Layout{HeaderOffset: 2, LengthField: protocol.LengthField8, ByteOrder: binary.BigEndian}

	tests := []struct {
		name string
		size int
	}{
		{"zero", 0},
		{"max_uint8", math.MaxUint8},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			frame := encode(t, layout, []byte{0xAA, 0xBB}, bytes.Repeat([]byte{0x5A}, tc.size))
			if len(frame) != 3+tc.size {
				t.Fatalf("frame size = %d", len(frame))
			}
			n, res := probe(frame, layout, 0)
			if res != probeResolved || n != len(frame) {
				t.Fatalf("probe() = %d, %v; want %d resolved", n, res, len(frame))
			}
			n, res = probe(frame[:len(frame)-1], layout, 0)
			if tc.size > 0 && res != probeInsufficient {
				t.Fatalf("probe(short) = %d, %v; want insufficient", n, res)
			}
		})
	}
}

func TestProbeVarint(t *testing.T) {
	layout := protocol.Layout{HeaderOffset: 1, LengthField: protocol.LengthFieldVarint, ByteOrder: binary.BigEndian}

	t.Run("multi_byte", func(t *testing.T) {
		payload := bytes.Repeat([]byte{0x01}, 20000) // three-byte varint
		frame := encode(t, layout, []byte{0x00}, payload)
		if frame[1]&0x80 == 0 || frame[2]&0x80 == 0 || frame[3]&0x80 != 0 {
			t.Fatalf("expected a 3-byte varint, got %x", frame[1:4])
		}
		n, res := probe(frame, layout, 0)
		if res != probeResolved || n != len(frame) {
			t.Fatalf("probe() = %d, %v", n, res)
		}
	})

	t.Run("truncated_continuation", func(t *testing.T) {
		for _, window := range [][]byte{
			{0x00, 0x80},
			{0x00, 0xFF, 0xFF},
			{0x00, 0x80, 0x80, 0x80},
		} {
			if n, res := probe(window, layout, 0); res != probeInsufficient {
				t.Errorf("probe(%x) = %d, %v; want insufficient", window, n, res)
			}
		}
	})

	t.Run("overflow", func(t *testing.T) {
		window := append([]byte{0x00}, bytes.Repeat([]byte{0xFF}, protocol.MaxVarintLen+1)...)
		if _, res := probe(window, layout, 0); res != probeMalformed {
			t.Errorf("probe(overflow) = %v, want malformed", res)
		}
	})
}

func TestProbeHeaderBoundary(t *testing.T) {
	layout := protocol.DefaultLayout()
	for i := 0; i <= layout.HeaderOffset; i++ {
		if _, res := probe(make([]byte, i), layout, 0); res != probeInsufficient {
			t.Errorf("probe(%d bytes) = %v, want insufficient", i, res)
		}
	}
}

func TestMalformedVarintDiscards(t *testing.T) {
	obs := &recordingObserver{}
	layout := protocol.Layout{HeaderOffset: 0, LengthField: protocol.LengthFieldVarint, ByteOrder: binary.BigEndian}
	dec := newTestDecoder(t, layout, WithObserver(obs))

	garbage := bytes.Repeat([]byte{0x80}, protocol.MaxVarintLen+2)
	if _, ok := dec.Submit(garbage); ok {
		t.Fatal("garbage produced a frame")
	}
	if dec.Buffered() != 0 {
		t.Errorf("Buffered() = %d after malformed discard", dec.Buffered())
	}
	if len(obs.discards) != 1 || obs.discards[0] != DiscardMalformed {
		t.Errorf("discards = %v, want [malformed]", obs.discards)
	}

	frame := encode(t, layout, nil, []byte("ok"))
	if got, ok := dec.Submit(frame); !ok || !bytes.Equal(got, frame) {
		t.Errorf("Submit(frame) after discard = %x, %v", got, ok)
	}

	overflows := []struct {
		name  string
		chunk []byte
	}{
		{"ten_continuation_bytes", bytes.Repeat([]byte{0x80}, protocol.MaxVarintLen)},
		{"tenth_byte_above_one", append(bytes.Repeat([]byte{0x80}, protocol.MaxVarintLen-1), 0x02)},
	}
	for _, tc := range overflows {
		t.Run(tc.name, func(t *testing.T) {
			obs := &recordingObserver{}
			dec := newTestDecoder(t, layout, WithObserver(obs))
			if got, ok := dec.Submit(tc.chunk); ok {
				t.Fatalf("Submit(%x) = %x, want no frame", tc.chunk, got)
			}
			if dec.Buffered() != 0 {
				t.Errorf("Buffered() = %d, want 0", dec.Buffered())
			}
			if len(obs.discards) != 1 || obs.discards[0] != DiscardMalformed {
				t.Errorf("discards = %v, want [malformed]", obs.discards)
			}
		})
	}
}

func TestMaxFrameLength(t *testing.T) {
	obs := &recordingObserver{}
	layout := protocol.DefaultLayout()
	dec := newTestDecoder(t, layout, WithMaxFrameLength(16), WithObserver(obs))

	big := encode(t, layout, nil, make([]byte, 13)) // 17 bytes total
	if _, ok := dec.Submit(big[:6]); ok {
		t.Fatal("oversize frame produced a frame")
	}
	if dec.Buffered() != 0 {
		t.Errorf("Buffered() = %d after oversize discard", dec.Buffered())
	}
	if len(obs.discards) != 1 || obs.discards[0] != DiscardOversize || obs.bytes != 6 {
		t.Errorf("discards = %v (%d bytes), want one oversize of 6", obs.discards, obs.bytes)
	}

	fits := encode(t, layout, nil, make([]byte, 12)) // exactly 16 bytes
	if got, ok := dec.Submit(fits); !ok || !bytes.Equal(got, fits) {
		t.Errorf("Submit(max-size frame) = %x, %v", got, ok)
	}
}

func TestReturnedFrameIsIndependent(t *testing.T) {
	layout := protocol.DefaultLayout()
	f1 := encode(t, layout, nil, []byte("aaaa"))
	f2 := encode(t, layout, nil, []byte("bbbb"))
	dec := newTestDecoder(t, layout)

	got1, _ := dec.Submit(concat(f1, f2[:2]))
	snapshot := append([]byte(nil), got1...)
	dec.Submit(f2[2:])
	dec.Submit(concat(f1, f1))
	dec.Submit(nil)
	if !bytes.Equal(got1, snapshot) {
		t.Errorf("returned frame changed after later calls: %x, want %x", got1, snapshot)
	}
}

func TestReset(t *testing.T) {
	obs := &recordingObserver{}
	layout := protocol.DefaultLayout()
	dec := newTestDecoder(t, layout, WithObserver(obs))
	frame := encode(t, layout, nil, []byte("reset"))

	dec.Submit(frame[:4])
	dec.Reset()
	if dec.Buffered() != 0 {
		t.Fatalf("Buffered() = %d after Reset", dec.Buffered())
	}
	if len(obs.discards) != 0 {
		t.Errorf("Reset reported discards %v", obs.discards)
	}
	if got, ok := dec.Submit(frame); !ok || !bytes.Equal(got, frame) {
		t.Errorf("Submit(frame) after Reset = %x, %v", got, ok)
	}
}

func TestConcurrentSubmit(t *testing.T) {
	layout := protocol.DefaultLayout()
	frame := encode(t, layout, []byte{0x07, 0x07}, []byte("concurrent"))
	dec := newTestDecoder(t, layout)

	const writers = 8
	const perWriter = 200

	var mu sync.Mutex
	var count int
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				// Whole frames only: any interleaving of whole frames is a valid stream.
				for _, f := range dec.Drain(frame) {
					if !bytes.Equal(f, frame) {
						t.Errorf("corrupt frame %x", f)
						return
					}
					mu.Lock()
					count++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if count != writers*perWriter {
		t.Errorf("decoded %d frames, want %d", count, writers*perWriter)
	}
	if dec.Buffered() != 0 {
		t.Errorf("Buffered() = %d, want 0", dec.Buffered())
	}
}

func TestNewFactoryErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want error
	}{
		{"length_field_3", WithLengthField(protocol.LengthField(3)), ErrUnsupportedLengthField},
		{"length_field_0", WithLengthField(0), ErrUnsupportedLengthField},
		{"negative_header", WithHeaderOffset(-1), ErrInvalidConfig},
		{"negative_expire", WithExpire(-time.Second), ErrInvalidConfig},
		{"negative_max", WithMaxFrameLength(-1), ErrInvalidConfig},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := NewFactory(tc.opt)
			if f != nil {
				t.Error("NewFactory() returned a factory on error")
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("NewFactory() error = %v, want %v", err, tc.want)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("error %T is not a *ConfigError", err)
			}
		})
	}
}

func TestMustFactoryPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustFactory did not panic on a bad length field")
		}
	}()
	MustFactory(WithLengthField(protocol.LengthField(8)))
}

func TestFactoryDefaults(t *testing.T) {
	f := MustFactory()
	l := f.Layout()
	if l.HeaderOffset != 2 || l.LengthField != protocol.LengthField16 || l.ByteOrder != binary.BigEndian {
		t.Errorf("default layout = %+v", l)
	}
	if f.Expire() != 500*time.Millisecond {
		t.Errorf("default expire = %v", f.Expire())
	}
	if f.MaxFrameLength() != 0 {
		t.Errorf("default max frame length = %d", f.MaxFrameLength())
	}
}

func TestFactoryCreatesIndependentDecoders(t *testing.T) {
	f := MustFactory()
	layout := f.Layout()
	frame := encode(t, layout, nil, []byte("isolated"))

	a, b := f.Create(), f.Create()
	a.Submit(frame[:5])
	if b.Buffered() != 0 {
		t.Fatalf("decoder b sees %d bytes submitted to a", b.Buffered())
	}
	if got, ok := b.Submit(frame); !ok || !bytes.Equal(got, frame) {
		t.Errorf("b.Submit(frame) = %x, %v", got, ok)
	}
	if got, ok := a.Submit(frame[5:]); !ok || !bytes.Equal(got, frame) {
		t.Errorf("a.Submit(rest) = %x, %v", got, ok)
	}
}
