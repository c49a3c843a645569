// Package protocol implements the wire primitives for length-delimited frames.
//
// A frame is a fixed number of opaque header bytes, a length field and a
// payload of exactly that many bytes. The package describes that shape with
// a Layout and provides the low-level readers and writers the framing engine
// and its peers use to agree on it byte for byte.
//
// # Wire Format
//
// The default layout carries a 2-byte header followed by a big-endian
// uint16 payload length:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (2 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// Other layouts change the header size, the width of the length field
// (1, 2 or 4 bytes, or a uvarint) and the byte order of fixed-width fields.
//
// # Encoding
//
//   - Varint: protobuf-style, 7 bits per byte, MSB indicates continuation
//   - Fixed width: uint8, uint16, uint32 in the layout's byte order
//
// # Usage Example
//
//	layout := protocol.DefaultLayout()
//	data, err := layout.Encode([]byte{0x01, 0x00}, []byte("hello"))
//	if err != nil {
//	    // payload too large for the length field
//	}
//
//	payload, err := layout.Payload(data)
//
// # File Structure
//
//   - varint.go: Varint encoding/decoding
//   - encoder.go: Binary encoder
//   - decoder.go: Positional binary decoder
//   - frame.go: Layout, length fields and frame encoding
package protocol
