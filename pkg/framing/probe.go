package framing

import (
	"errors"

	"github.com/vango-dev/framer/pkg/protocol"
)

type probeResult uint8

const (
	probeInsufficient probeResult = iota
	probeResolved
	probeOversize
	probeMalformed
)

// probe resolves the total length of the frame at the start of window.
//
// The length is read through a protocol.Decoder created over window, so a
// probe that runs out of bytes has nothing to restore: the caller's cursors
// are only moved once a length is resolved.
func probe(window []byte, layout protocol.Layout, maxFrameLength int) (int, probeResult) {
	if len(window) <= layout.HeaderOffset {
		return 0, probeInsufficient
	}

	d := protocol.NewDecoderOrder(window, layout.ByteOrder)
	if err := d.Skip(layout.HeaderOffset); err != nil {
		return 0, probeInsufficient
	}

	declared, err := layout.ReadLength(d)
	if err != nil {
		if errors.Is(err, protocol.ErrVarintOverflow) {
			return 0, probeMalformed
		}
		return 0, probeInsufficient
	}

	consumed := d.Position()
	if maxFrameLength > 0 {
		if declared > uint64(maxFrameLength) || consumed+int(declared) > maxFrameLength {
			return 0, probeOversize
		}
	}

	if uint64(d.Remaining()) < declared {
		return 0, probeInsufficient
	}
	return consumed + int(declared), probeResolved
}
