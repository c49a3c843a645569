package archive

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/framer/pkg/framing"
	"github.com/vango-dev/framer/pkg/protocol"
	"github.com/vango-dev/framer/pkg/server"
	"github.com/vango-dev/framer/pkg/transport"
)

type putCall struct {
	bucket      string
	key         string
	contentType string
	body        []byte
	metadata    map[string]string
}

type fakeS3 struct {
	mu    sync.Mutex
	calls []putCall
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, putCall{
		bucket:      aws.ToString(in.Bucket),
		key:         aws.ToString(in.Key),
		contentType: aws.ToString(in.ContentType),
		body:        body,
		metadata:    in.Metadata,
	})
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) Calls() []putCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]putCall(nil), f.calls...)
}

func frame(t *testing.T, payload string) []byte {
	t.Helper()
	data, err := protocol.DefaultLayout().Encode([]byte{0x01, 0x00}, []byte(payload))
	require.NoError(t, err)
	return data
}

func TestS3Sink_Flush(t *testing.T) {
	fake := &fakeS3{}
	sink := NewS3Sink(S3Config{Client: fake, Bucket: "frames", Prefix: "sessions/"})

	f1, f2 := frame(t, "one"), frame(t, "two")
	require.NoError(t, sink.Append("abc", f1))
	require.NoError(t, sink.Append("abc", f2))

	// The sink owns a copy.
	f1[4] = 'X'

	require.NoError(t, sink.Flush(context.Background(), "abc"))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "frames", calls[0].bucket)
	assert.Equal(t, "sessions/abc.frames", calls[0].key)
	assert.Equal(t, "application/octet-stream", calls[0].contentType)
	assert.Equal(t, "2", calls[0].metadata["framer-frames"])

	// The object replays through a decoder.
	d := framing.MustFactory().Create()
	frames := d.Drain(calls[0].body)
	require.Len(t, frames, 2)
	assert.Equal(t, framing.Frame(frame(t, "one")), frames[0])
	assert.Equal(t, framing.Frame(f2), frames[1])

	assert.Equal(t, 0, sink.Pending())
	require.NoError(t, sink.Flush(context.Background(), "abc"), "nothing left to flush")
	assert.Len(t, fake.Calls(), 1)
}

func TestS3Sink_MaxSessionBytes(t *testing.T) {
	fake := &fakeS3{}
	sink := NewS3Sink(S3Config{Client: fake, Bucket: "b", MaxSessionBytes: 10})

	require.NoError(t, sink.Append("s", frame(t, "12345")))
	assert.ErrorIs(t, sink.Append("s", frame(t, "12345")), ErrSessionTooLarge)

	require.NoError(t, sink.Flush(context.Background(), "s"))
	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "1", calls[0].metadata["framer-dropped"])
	assert.Len(t, calls[0].body, 9)
}

func TestS3Sink_UploadError(t *testing.T) {
	fail := errors.New("access denied")
	sink := NewS3Sink(S3Config{Client: &fakeS3{err: fail}, Bucket: "b"})

	require.NoError(t, sink.Append("s", frame(t, "x")))
	err := sink.Flush(context.Background(), "s")
	assert.ErrorIs(t, err, fail)
	assert.Contains(t, err.Error(), "s.frames")
}

func TestS3Sink_Shutdown(t *testing.T) {
	fake := &fakeS3{}
	sink := NewS3Sink(S3Config{Client: fake, Bucket: "b"})

	require.NoError(t, sink.Append("a", frame(t, "1")))
	require.NoError(t, sink.Append("b", frame(t, "2")))

	require.NoError(t, sink.Shutdown(context.Background()))
	assert.Len(t, fake.Calls(), 2)
	assert.ErrorIs(t, sink.Append("c", frame(t, "3")), ErrClosed)
}

func TestMiddlewareAndAttach(t *testing.T) {
	fake := &fakeS3{}
	sink := NewS3Sink(S3Config{Client: fake, Bucket: "b", Prefix: "p/"})

	sm := server.NewSessionManager(framing.MustFactory(), 0, nil)
	sink.Attach(sm)

	a, b := net.Pipe()
	defer b.Close()
	s, err := sm.Create(transport.NewStream(a, 0))
	require.NoError(t, err)

	var handled int
	h := Middleware(sink)(server.HandlerFunc(func(context.Context, *server.Session, framing.Frame) error {
		handled++
		return nil
	}))

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, h.HandleFrame(context.Background(), s, frame(t, p)))
	}
	assert.Equal(t, 3, handled)

	s.Close()

	require.Eventually(t, func() bool { return len(fake.Calls()) == 1 }, 2*time.Second, 5*time.Millisecond)
	call := fake.Calls()[0]
	assert.Equal(t, "p/"+s.ID+".frames", call.key)
	assert.Equal(t, "3", call.metadata["framer-frames"])

	require.NoError(t, sink.Shutdown(context.Background()))
}
