// Package transport adapts stream sockets and WebSocket connections to a
// common chunk-oriented Conn.
//
// A TCP read returns whatever the kernel has buffered; a WebSocket read
// returns one binary message. Either way the result is just the next chunk
// of a byte stream, to be fed to a framing.Decoder.
package transport
