package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

// Common decoding errors.
var (
	ErrBufferTooShort = errors.New("protocol: buffer too short")
	ErrVarintOverflow = errors.New("protocol: varint overflow")
)

// Decoder is a positional reader over a byte window.
//
// A Decoder never mutates the window it reads from. Callers that need to
// look ahead create a Decoder over the bytes they own and simply drop it
// when the data turns out to be incomplete; the owner's cursors are untouched.
type Decoder struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
}

// NewDecoder creates a new big-endian decoder over buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf, order: binary.BigEndian}
}

// NewDecoderOrder creates a decoder that reads fixed-width integers in the given byte order.
// A nil order means big-endian.
func NewDecoderOrder(buf []byte, order binary.ByteOrder) *Decoder {
	if order == nil {
		order = binary.BigEndian
	}
	return &Decoder{buf: buf, order: order}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// EOF returns true if all bytes have been read.
func (d *Decoder) EOF() bool {
	return d.pos >= len(d.buf)
}

// Position returns the current read position.
func (d *Decoder) Position() int {
	return d.pos
}

// Seek moves the read position back to a value previously returned by Position.
func (d *Decoder) Seek(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(d.buf) {
		pos = len(d.buf)
	}
	d.pos = pos
}

// Skip advances the position by n bytes.
func (d *Decoder) Skip(n int) error {
	if n < 0 || d.pos+n > len(d.buf) {
		return io.ErrUnexpectedEOF
	}
	d.pos += n
	return nil
}

// ReadByte reads a single byte.
func (d *Decoder) ReadByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes and returns them.
// The returned slice references the decoder's buffer; do not modify.
func (d *Decoder) ReadBytes(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// ReadUvarint reads an unsigned varint.
// A varint cut short by the end of the window reports io.ErrUnexpectedEOF
// and leaves the position where it was; more than MaxVarintLen continuation
// bytes report ErrVarintOverflow.
func (d *Decoder) ReadUvarint() (uint64, error) {
	v, n := DecodeUvarint(d.buf[d.pos:])
	switch n {
	case varintIncomplete:
		return 0, io.ErrUnexpectedEOF
	case varintOverflow:
		return 0, ErrVarintOverflow
	}
	d.pos += n
	return v, nil
}

// ReadUint8 reads a single byte as an unsigned integer.
func (d *Decoder) ReadUint8() (uint8, error) {
	return d.ReadByte()
}

// ReadUint16 reads a uint16 in the decoder's byte order.
func (d *Decoder) ReadUint16() (uint16, error) {
	if d.pos+2 > len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := d.order.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v, nil
}

// ReadUint32 reads a uint32 in the decoder's byte order.
func (d *Decoder) ReadUint32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := d.order.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}
