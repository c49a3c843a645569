package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/framer/pkg/server"
)

// PutObjectAPI is the part of *s3.Client the sink uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures the S3 sink.
type S3Config struct {
	Client PutObjectAPI
	Bucket string
	Prefix string // Optional prefix for object keys (e.g., "sessions/")

	// MaxSessionBytes caps what is kept per session. 0 means no limit.
	MaxSessionBytes int

	// UploadTimeout bounds each PutObject made on session close (default: 30s).
	UploadTimeout time.Duration

	Logger *slog.Logger
}

type recording struct {
	buf     bytes.Buffer
	frames  int
	started time.Time
	dropped int
}

// S3Sink keeps each session's frames in memory and uploads them as one
// object when the session is flushed.
//
// Object key: <prefix><session-id>.frames. The body is the frames as
// received, back to back; they are self-delimiting under the session layout,
// so the object can be replayed through a decoder (framer decode).
type S3Sink struct {
	client        PutObjectAPI
	bucket        string
	prefix        string
	maxBytes      int
	uploadTimeout time.Duration
	logger        *slog.Logger

	mu       sync.Mutex
	sessions map[string]*recording
	closed   bool

	wg sync.WaitGroup
}

// NewS3Sink creates a sink writing to config.Bucket.
func NewS3Sink(config S3Config) *S3Sink {
	if config.UploadTimeout == 0 {
		config.UploadTimeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &S3Sink{
		client:        config.Client,
		bucket:        config.Bucket,
		prefix:        config.Prefix,
		maxBytes:      config.MaxSessionBytes,
		uploadTimeout: config.UploadTimeout,
		logger:        config.Logger.With("component", "archive"),
		sessions:      make(map[string]*recording),
	}
}

// Key returns the object key for a session.
func (a *S3Sink) Key(sessionID string) string {
	return a.prefix + sessionID + ".frames"
}

// Append implements Sink.
func (a *S3Sink) Append(sessionID string, frame []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	rec, ok := a.sessions[sessionID]
	if !ok {
		rec = &recording{started: time.Now()}
		a.sessions[sessionID] = rec
	}
	if a.maxBytes > 0 && rec.buf.Len()+len(frame) > a.maxBytes {
		rec.dropped++
		return ErrSessionTooLarge
	}
	rec.buf.Write(frame)
	rec.frames++
	return nil
}

// Flush implements Sink. A session with no frames uploads nothing.
func (a *S3Sink) Flush(ctx context.Context, sessionID string) error {
	a.mu.Lock()
	rec, ok := a.sessions[sessionID]
	delete(a.sessions, sessionID)
	a.mu.Unlock()

	if !ok || rec.frames == 0 {
		return nil
	}
	return a.upload(ctx, sessionID, rec)
}

func (a *S3Sink) upload(ctx context.Context, sessionID string, rec *recording) error {
	key := a.Key(sessionID)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(rec.buf.Bytes()),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"framer-session": sessionID,
			"framer-frames":  strconv.Itoa(rec.frames),
			"framer-dropped": strconv.Itoa(rec.dropped),
			"framer-started": rec.started.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("archive: put %s: %w", key, err)
	}

	a.logger.Debug("archived session",
		"bucket", a.bucket,
		"key", key,
		"frames", rec.frames,
		"bytes", rec.buf.Len())
	return nil
}

// Pending returns the number of sessions with recorded frames.
func (a *S3Sink) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

// Attach flushes each session of sm in the background when it closes.
// Upload errors are logged.
func (a *S3Sink) Attach(sm *server.SessionManager) {
	sm.OnSessionClose(func(s *server.Session) {
		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			return
		}
		a.wg.Add(1)
		a.mu.Unlock()

		go func() {
			defer a.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), a.uploadTimeout)
			defer cancel()
			if err := a.Flush(ctx, s.ID); err != nil {
				a.logger.Error("failed to archive session",
					"session_id", s.ID,
					"error", err)
			}
		}()
	})
}

// Shutdown stops accepting frames, waits for in-flight uploads and then
// uploads whatever is still recorded.
func (a *S3Sink) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("archive: shutdown: %w", ctx.Err())
	}

	a.mu.Lock()
	remaining := a.sessions
	a.sessions = make(map[string]*recording)
	a.mu.Unlock()

	var firstErr error
	for id, rec := range remaining {
		if rec.frames == 0 {
			continue
		}
		if err := a.upload(ctx, id, rec); err != nil {
			a.logger.Error("failed to archive session during shutdown",
				"session_id", id,
				"error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
