// Package framing reconstructs length-delimited frames from a byte stream.
//
// Connection-oriented transports deliver bytes in chunks that do not line up
// with application frames: a chunk may hold part of a frame, several frames,
// or a frame plus the start of the next one. A Decoder keeps the bytes that
// are not yet part of a complete frame and hands out one frame per call.
//
// # Usage
//
//	factory, err := framing.NewFactory(
//	    framing.WithHeaderOffset(2),
//	    framing.WithLengthField(protocol.LengthField16),
//	    framing.WithExpire(500*time.Millisecond),
//	)
//	if err != nil {
//	    // unsupported length field or invalid value
//	}
//
//	dec := factory.Create() // one per session
//	for chunk := range chunks {
//	    frame, ok := dec.Submit(chunk)
//	    for ok {
//	        handle(frame)
//	        frame, ok = dec.Submit(nil)
//	    }
//	}
//
// # Recovery
//
// A stream that loses a byte never lines up again on its own. Retained bytes
// that sit idle longer than the expiry are discarded before the next chunk
// is appended, so a desynchronized session recovers at the next quiet
// period. A length over WithMaxFrameLength or a varint length that can never
// terminate discards the buffer immediately. Every discard is reported to
// the Observer.
package framing
