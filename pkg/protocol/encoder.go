package protocol

import "encoding/binary"

// Encoder is a binary encoder that appends data to an internal buffer.
// It is designed for efficient encoding without allocations in the hot path.
type Encoder struct {
	buf   []byte
	order binary.ByteOrder
}

// NewEncoder creates a new big-endian encoder with a default initial capacity.
func NewEncoder() *Encoder {
	return &Encoder{
		buf:   make([]byte, 0, 256),
		order: binary.BigEndian,
	}
}

// NewEncoderOrder creates an encoder writing fixed-width integers in the given order.
// A nil order means big-endian.
func NewEncoderOrder(capacity int, order binary.ByteOrder) *Encoder {
	if order == nil {
		order = binary.BigEndian
	}
	return &Encoder{
		buf:   make([]byte, 0, capacity),
		order: order,
	}
}

// Reset resets the encoder to empty state, reusing the underlying buffer.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the encoded bytes. The returned slice is valid until
// the next call to Reset or any Write method.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes currently encoded.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// WriteByte appends a single byte.
// Note: This intentionally doesn't return error (unlike io.ByteWriter)
// because our buffer is unbounded and can always append.
func (e *Encoder) WriteByte(b byte) {
	e.buf = append(e.buf, b)
}

// WriteBytes appends raw bytes.
func (e *Encoder) WriteBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// WriteZeros appends n zero bytes.
func (e *Encoder) WriteZeros(n int) {
	for i := 0; i < n; i++ {
		e.buf = append(e.buf, 0)
	}
}

// WriteUvarint appends an unsigned varint.
func (e *Encoder) WriteUvarint(v uint64) {
	e.buf = AppendUvarint(e.buf, v)
}

// WriteUint16 appends a uint16 in the encoder's byte order.
func (e *Encoder) WriteUint16(v uint16) {
	var b [2]byte
	e.order.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// WriteUint32 appends a uint32 in the encoder's byte order.
func (e *Encoder) WriteUint32(v uint32) {
	var b [4]byte
	e.order.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}
