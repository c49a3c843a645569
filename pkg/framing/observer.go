package framing

import (
	"context"
	"log/slog"
)

// DiscardReason says why retained bytes were thrown away.
type DiscardReason uint8

const (
	// DiscardStale: the buffer sat idle longer than the configured expiry.
	DiscardStale DiscardReason = iota + 1
	// DiscardOversize: the declared frame length exceeds the configured maximum.
	DiscardOversize
	// DiscardMalformed: the varint length field can never complete.
	DiscardMalformed
)

// String returns the lowercase name used in logs and metric labels.
func (r DiscardReason) String() string {
	switch r {
	case DiscardStale:
		return "stale"
	case DiscardOversize:
		return "oversize"
	case DiscardMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Observer receives decoder events for operational visibility.
//
// Methods are called while the decoder holds its lock; implementations must
// be quick and must not call back into the decoder.
type Observer interface {
	// FrameDecoded is called for every emitted frame. fast reports whether
	// the chunk was returned as-is without touching the session buffer.
	FrameDecoded(size int, fast bool)

	// BufferDiscarded is called when retained bytes are dropped.
	BufferDiscarded(reason DiscardReason, bytes int)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) FrameDecoded(int, bool)             {}
func (NopObserver) BufferDiscarded(DiscardReason, int) {}

// LogObserver returns an Observer that logs discards at warn level and
// frames at debug level.
func LogObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &logObserver{logger: logger.With("component", "framing")}
}

type logObserver struct {
	logger *slog.Logger
}

func (o *logObserver) FrameDecoded(size int, fast bool) {
	if o.logger.Enabled(context.Background(), slog.LevelDebug) {
		o.logger.Debug("frame decoded", "size", size, "fast_path", fast)
	}
}

func (o *logObserver) BufferDiscarded(reason DiscardReason, bytes int) {
	o.logger.Warn("buffer discarded", "reason", reason.String(), "bytes", bytes)
}

// MultiObserver fans events out to several observers.
func MultiObserver(observers ...Observer) Observer {
	list := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) FrameDecoded(size int, fast bool) {
	for _, o := range m {
		o.FrameDecoded(size, fast)
	}
}

func (m multiObserver) BufferDiscarded(reason DiscardReason, bytes int) {
	for _, o := range m {
		o.BufferDiscarded(reason, bytes)
	}
}
