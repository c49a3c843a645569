package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// LengthField identifies how the payload length is encoded on the wire.
type LengthField int

const (
	LengthField8      LengthField = 1  // unsigned 8-bit
	LengthField16     LengthField = 2  // unsigned 16-bit, fixed width
	LengthField32     LengthField = 4  // unsigned 32-bit, fixed width
	LengthFieldVarint LengthField = -1 // uvarint, 7 bits per byte
)

// String returns the configuration spelling of the length field.
func (lf LengthField) String() string {
	switch lf {
	case LengthField8:
		return "1"
	case LengthField16:
		return "2"
	case LengthField32:
		return "4"
	case LengthFieldVarint:
		return "varint"
	default:
		return fmt.Sprintf("LengthField(%d)", int(lf))
	}
}

// Valid reports whether lf is one of the supported encodings.
func (lf LengthField) Valid() bool {
	switch lf {
	case LengthField8, LengthField16, LengthField32, LengthFieldVarint:
		return true
	}
	return false
}

// Width returns the fixed width in bytes, or 0 for the varint encoding.
func (lf LengthField) Width() int {
	if lf == LengthFieldVarint {
		return 0
	}
	return int(lf)
}

// MaxLength returns the largest payload length the field can express.
func (lf LengthField) MaxLength() uint64 {
	switch lf {
	case LengthField8:
		return math.MaxUint8
	case LengthField16:
		return math.MaxUint16
	case LengthField32:
		return math.MaxUint32
	default:
		return math.MaxUint64
	}
}

// ParseLengthField parses "1", "2", "4" or "varint".
func ParseLengthField(s string) (LengthField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "8", "uint8":
		return LengthField8, nil
	case "2", "16", "uint16":
		return LengthField16, nil
	case "4", "32", "uint32":
		return LengthField32, nil
	case "varint", "uvarint", "var":
		return LengthFieldVarint, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedLengthField, s)
}

// ParseByteOrder parses "big" or "little". An empty string means big-endian.
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "big", "be", "network":
		return binary.BigEndian, nil
	case "little", "le":
		return binary.LittleEndian, nil
	}
	return nil, fmt.Errorf("protocol: unknown byte order %q", s)
}

// Layout errors.
var (
	ErrUnsupportedLengthField = errors.New("protocol: unsupported length field")
	ErrInvalidHeaderOffset    = errors.New("protocol: invalid header offset")
	ErrFrameTooLarge          = errors.New("protocol: frame payload too large")
	ErrHeaderSize             = errors.New("protocol: header size does not match layout")
)

// Default layout values.
const (
	DefaultHeaderOffset = 2
	DefaultLengthField  = LengthField16
)

// Layout describes the wire shape of a frame.
//
// Wire format:
//
//	┌────────────────────────┬──────────────────────┬─────────────────────┐
//	│ Header                 │ Length               │ Payload             │
//	│ (HeaderOffset bytes,   │ (1, 2, 4 bytes or    │ (Length bytes)      │
//	│  passed through)       │  uvarint)            │                     │
//	└────────────────────────┴──────────────────────┴─────────────────────┘
//
// The default layout is a 2-byte header (type, flags) followed by a
// big-endian uint16 payload length. Fixed-width lengths use ByteOrder;
// the byte order is part of the deployment's configuration and is never
// detected from the data.
type Layout struct {
	HeaderOffset int
	LengthField  LengthField
	ByteOrder    binary.ByteOrder
}

// DefaultLayout returns the 2-byte header, big-endian uint16 length layout.
func DefaultLayout() Layout {
	return Layout{
		HeaderOffset: DefaultHeaderOffset,
		LengthField:  DefaultLengthField,
		ByteOrder:    binary.BigEndian,
	}
}

// Validate checks that the layout can be encoded and decoded.
func (l Layout) Validate() error {
	if l.HeaderOffset < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidHeaderOffset, l.HeaderOffset)
	}
	if !l.LengthField.Valid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedLengthField, l.LengthField)
	}
	return nil
}

// Order returns the byte order used for fixed-width length fields.
func (l Layout) Order() binary.ByteOrder {
	if l.ByteOrder == nil {
		return binary.BigEndian
	}
	return l.ByteOrder
}

// FrameSize returns the encoded size of a frame carrying n payload bytes.
func (l Layout) FrameSize(n int) int {
	width := l.LengthField.Width()
	if width == 0 {
		width = UvarintLen(uint64(n))
	}
	return l.HeaderOffset + width + n
}

// ReadLength reads the length field at the decoder's position.
// The decoder must already be positioned after the header.
func (l Layout) ReadLength(d *Decoder) (uint64, error) {
	switch l.LengthField {
	case LengthField8:
		v, err := d.ReadUint8()
		return uint64(v), err
	case LengthField16:
		v, err := d.ReadUint16()
		return uint64(v), err
	case LengthField32:
		v, err := d.ReadUint32()
		return uint64(v), err
	case LengthFieldVarint:
		return d.ReadUvarint()
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedLengthField, l.LengthField)
}

// Append encodes one frame onto dst.
// header must be exactly HeaderOffset bytes long; a nil header is written as zeros.
func (l Layout) Append(dst, header, payload []byte) ([]byte, error) {
	if err := l.Validate(); err != nil {
		return dst, err
	}
	if header != nil && len(header) != l.HeaderOffset {
		return dst, fmt.Errorf("%w: got %d bytes, want %d", ErrHeaderSize, len(header), l.HeaderOffset)
	}
	if uint64(len(payload)) > l.LengthField.MaxLength() {
		return dst, ErrFrameTooLarge
	}

	e := &Encoder{buf: dst, order: l.Order()}
	if header == nil {
		e.WriteZeros(l.HeaderOffset)
	} else {
		e.WriteBytes(header)
	}

	n := len(payload)
	switch l.LengthField {
	case LengthField8:
		e.WriteByte(byte(n))
	case LengthField16:
		e.WriteUint16(uint16(n))
	case LengthField32:
		e.WriteUint32(uint32(n))
	case LengthFieldVarint:
		e.WriteUvarint(uint64(n))
	}
	e.WriteBytes(payload)
	return e.Bytes(), nil
}

// Encode encodes one frame into a new slice.
func (l Layout) Encode(header, payload []byte) ([]byte, error) {
	return l.Append(make([]byte, 0, l.FrameSize(len(payload))), header, payload)
}

// Split separates a complete frame into its header and payload.
// Both results reference frame.
func (l Layout) Split(frame []byte) (header, payload []byte, err error) {
	d := NewDecoderOrder(frame, l.Order())
	header, err = d.ReadBytes(l.HeaderOffset)
	if err != nil {
		return nil, nil, ErrBufferTooShort
	}
	length, err := l.ReadLength(d)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil, ErrBufferTooShort
		}
		return nil, nil, err
	}
	if length > uint64(d.Remaining()) {
		return nil, nil, ErrBufferTooShort
	}
	payload, _ = d.ReadBytes(int(length))
	return header, payload, nil
}

// Payload returns the payload of a complete frame, stripping header and length field.
func (l Layout) Payload(frame []byte) ([]byte, error) {
	_, payload, err := l.Split(frame)
	return payload, err
}

// WriteFrame encodes a frame and writes it to w in a single call.
func (l Layout) WriteFrame(w io.Writer, header, payload []byte) error {
	data, err := l.Encode(header, payload)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
