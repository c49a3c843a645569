package framing

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/vango-dev/framer/pkg/protocol"
)

func TestDiscardReasonString(t *testing.T) {
	tests := map[DiscardReason]string{
		DiscardStale:     "stale",
		DiscardOversize:  "oversize",
		DiscardMalformed: "malformed",
		DiscardReason(0): "unknown",
	}
	for reason, want := range tests {
		if got := reason.String(); got != want {
			t.Errorf("DiscardReason(%d).String() = %q, want %q", reason, got, want)
		}
	}
}

func TestLogObserver(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	obs := LogObserver(logger)

	obs.FrameDecoded(12, true)
	obs.BufferDiscarded(DiscardStale, 7)

	logs := out.String()
	for _, want := range []string{
		"frame decoded", "size=12", "fast_path=true",
		"buffer discarded", "reason=stale", "bytes=7", "component=framing",
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("log output missing %q:\n%s", want, logs)
		}
	}
}

func TestMultiObserver(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	layout := protocol.DefaultLayout()
	dec := MustFactory(WithObserver(MultiObserver(a, nil, b))).Create()

	frame, _ := layout.Encode(nil, []byte("fan out"))
	dec.Submit(frame)
	dec.Submit(frame[:3])
	dec.Submit(frame[3:])

	for name, o := range map[string]*recordingObserver{"a": a, "b": b} {
		if len(o.frames) != 2 || o.fast != 1 {
			t.Errorf("observer %s saw frames=%v fast=%d, want 2 frames, 1 fast", name, o.frames, o.fast)
		}
	}
}
