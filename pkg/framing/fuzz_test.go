package framing

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/vango-dev/framer/pkg/protocol"
)

// FuzzProbe tests that probing arbitrary bytes doesn't panic and never
// resolves past the end of the window.
func FuzzProbe(f *testing.F) {
	f.Add([]byte{0x00, 0x00, 0x00, 0x02, 0x01, 0x02}, uint8(2))
	f.Add([]byte{0x00, 0xFF, 0xFF, 0xFF}, uint8(0xFF))
	f.Add(bytes.Repeat([]byte{0x80}, 12), uint8(0xFF))

	f.Fuzz(func(t *testing.T, data []byte, width uint8) {
		lf := protocol.LengthField16
		switch width % 4 {
		case 0:
			lf = protocol.LengthField8
		case 2:
			lf = protocol.LengthField32
		case 3:
			lf = protocol.LengthFieldVarint
		}
		layout := protocol.Layout{HeaderOffset: 2, LengthField: lf, ByteOrder: binary.BigEndian}
		n, res := probe(data, layout, 0)
		if res == probeResolved && (n > len(data) || n <= layout.HeaderOffset) {
			t.Fatalf("probe resolved %d for a %d byte window", n, len(data))
		}
	})
}

// FuzzSubmitChunking splits a stream of valid frames at arbitrary points
// and checks that the same frames come out.
func FuzzSubmitChunking(f *testing.F) {
	f.Add([]byte("hello world, this is a stream"), []byte{3, 1, 7, 2})
	f.Add([]byte{}, []byte{1})
	f.Add(bytes.Repeat([]byte{0xAA}, 300), []byte{255, 1, 64})

	layout := protocol.Layout{HeaderOffset: 2, LengthField: protocol.LengthFieldVarint, ByteOrder: binary.BigEndian}

	f.Fuzz(func(t *testing.T, payload []byte, cuts []byte) {
		var stream []byte
		var want [][]byte
		for i := 0; i <= len(payload); i += 17 {
			end := i + 17
			if end > len(payload) {
				end = len(payload)
			}
			frame, err := layout.Encode([]byte{byte(i), 0}, payload[i:end])
			if err != nil {
				t.Fatal(err)
			}
			want = append(want, frame)
			stream = append(stream, frame...)
		}

		dec := MustFactory(WithLayout(layout)).Create()
		var got [][]byte
		for i := 0; len(stream) > 0; i++ {
			size := 1
			if len(cuts) > 0 {
				size = int(cuts[i%len(cuts)])%32 + 1
			}
			if size > len(stream) {
				size = len(stream)
			}
			for _, fr := range dec.Drain(stream[:size]) {
				got = append(got, append([]byte(nil), fr...))
			}
			stream = stream[size:]
		}

		if len(got) != len(want) {
			t.Fatalf("decoded %d frames, want %d", len(got), len(want))
		}
		for i := range want {
			if !bytes.Equal(got[i], want[i]) {
				t.Fatalf("frame %d = %x, want %x", i, got[i], want[i])
			}
		}
	})
}
