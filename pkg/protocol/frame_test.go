package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestLayoutEncode(t *testing.T) {
	tests := []struct {
		name    string
		layout  Layout
		header  []byte
		payload []byte
		want    []byte
	}{
		{
			name:    "default",
			layout:  DefaultLayout(),
			header:  []byte{0x01, 0x04},
			payload: []byte("abc"),
			want:    []byte{0x01, 0x04, 0x00, 0x03, 'a', 'b', 'c'},
		},
		{
			name:    "empty_payload",
			layout:  DefaultLayout(),
			header:  []byte{0x02, 0x00},
			payload: nil,
			want:    []byte{0x02, 0x00, 0x00, 0x00},
		},
		{
			name:    "nil_header_zero_filled",
			layout:  DefaultLayout(),
			payload: []byte{0xAA},
			want:    []byte{0x00, 0x00, 0x00, 0x01, 0xAA},
		},
		{
			name:    "uint8_no_header",
			layout:  Layout{HeaderOffset: 0, LengthField: LengthField8},
			payload: []byte{0x01, 0x02},
			want:    []byte{0x02, 0x01, 0x02},
		},
		{
			name:    "uint32_little_endian",
			layout:  Layout{HeaderOffset: 1, LengthField: LengthField32, ByteOrder: binary.LittleEndian},
			header:  []byte{0x7F},
			payload: []byte{0x01},
			want:    []byte{0x7F, 0x01, 0x00, 0x00, 0x00, 0x01},
		},
		{
			name:    "varint_two_bytes",
			layout:  Layout{HeaderOffset: 0, LengthField: LengthFieldVarint},
			payload: bytes.Repeat([]byte{0x55}, 200),
			want:    append([]byte{0xC8, 0x01}, bytes.Repeat([]byte{0x55}, 200)...),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.layout.Encode(tc.header, tc.payload)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Errorf("Encode() = %x, want %x", got, tc.want)
			}
			if len(got) != tc.layout.FrameSize(len(tc.payload)) {
				t.Errorf("FrameSize(%d) = %d, encoded %d", len(tc.payload), tc.layout.FrameSize(len(tc.payload)), len(got))
			}

			header, payload, err := tc.layout.Split(got)
			if err != nil {
				t.Fatalf("Split() error = %v", err)
			}
			if tc.header != nil && !bytes.Equal(header, tc.header) {
				t.Errorf("Split() header = %x, want %x", header, tc.header)
			}
			if !bytes.Equal(payload, tc.payload) {
				t.Errorf("Split() payload = %x, want %x", payload, tc.payload)
			}
		})
	}
}

func TestLayoutEncodeErrors(t *testing.T) {
	if _, err := DefaultLayout().Encode([]byte{0x01}, nil); !errors.Is(err, ErrHeaderSize) {
		t.Errorf("short header error = %v, want ErrHeaderSize", err)
	}

	l8 := Layout{LengthField: LengthField8}
	if _, err := l8.Encode(nil, make([]byte, math.MaxUint8+1)); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("oversize payload error = %v, want ErrFrameTooLarge", err)
	}
	if _, err := l8.Encode(nil, make([]byte, math.MaxUint8)); err != nil {
		t.Errorf("max payload error = %v, want nil", err)
	}

	bad := Layout{LengthField: LengthField(3)}
	if _, err := bad.Encode(nil, nil); !errors.Is(err, ErrUnsupportedLengthField) {
		t.Errorf("bad length field error = %v, want ErrUnsupportedLengthField", err)
	}

	neg := Layout{HeaderOffset: -1, LengthField: LengthField16}
	if err := neg.Validate(); !errors.Is(err, ErrInvalidHeaderOffset) {
		t.Errorf("negative offset error = %v, want ErrInvalidHeaderOffset", err)
	}
}

func TestLayoutSplitShort(t *testing.T) {
	layout := DefaultLayout()
	frame, _ := layout.Encode([]byte{1, 2}, []byte("hello"))

	for i := 0; i < len(frame); i++ {
		if _, _, err := layout.Split(frame[:i]); !errors.Is(err, ErrBufferTooShort) {
			t.Errorf("Split(frame[:%d]) error = %v, want ErrBufferTooShort", i, err)
		}
	}
}

func TestParseLengthField(t *testing.T) {
	tests := []struct {
		in   string
		want LengthField
	}{
		{"1", LengthField8},
		{"2", LengthField16},
		{"4", LengthField32},
		{"varint", LengthFieldVarint},
		{" VARINT ", LengthFieldVarint},
	}
	for _, tc := range tests {
		got, err := ParseLengthField(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseLengthField(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
		if again, _ := ParseLengthField(got.String()); again != got {
			t.Errorf("ParseLengthField(%q.String()) = %v", got, again)
		}
	}

	if _, err := ParseLengthField("3"); !errors.Is(err, ErrUnsupportedLengthField) {
		t.Errorf("ParseLengthField(3) error = %v", err)
	}
}

func TestParseByteOrder(t *testing.T) {
	if o, err := ParseByteOrder(""); err != nil || o != binary.BigEndian {
		t.Errorf("ParseByteOrder(\"\") = %v, %v", o, err)
	}
	if o, err := ParseByteOrder("little"); err != nil || o != binary.LittleEndian {
		t.Errorf("ParseByteOrder(little) = %v, %v", o, err)
	}
	if _, err := ParseByteOrder("middle"); err == nil {
		t.Error("ParseByteOrder(middle) should fail")
	}
}

func TestWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	layout := DefaultLayout()
	if err := layout.WriteFrame(&buf, []byte{0x03, 0x00}, []byte("ping")); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	payload, err := layout.Payload(buf.Bytes())
	if err != nil || string(payload) != "ping" {
		t.Errorf("Payload() = %q, %v", payload, err)
	}
}
