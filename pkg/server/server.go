package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/framer/pkg/framing"
	"github.com/vango-dev/framer/pkg/transport"
)

// Server accepts stream and WebSocket connections and delivers the frames
// found on each of them to a Handler.
type Server struct {
	config   *Config
	factory  *framing.Factory
	handler  Handler
	sessions *SessionManager

	// Middleware applied around handler, outermost first
	middleware []Middleware

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// Extra HTTP endpoints
	metricsHandler http.Handler

	mu         sync.Mutex
	listeners  map[*net.Listener]struct{}
	httpServer *http.Server
	closed     atomic.Bool

	// Session loops
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *slog.Logger
}

// New creates a Server. Each connection gets its own decoder from factory.
// A nil config uses DefaultConfig; a nil handler discards frames.
func New(config *Config, factory *framing.Factory, handler Handler) *Server {
	config = config.withDefaults()
	if handler == nil {
		handler = Discard
	}

	logger := slog.Default().With("component", "server")
	sessions := NewSessionManager(factory, config.MaxSessions, logger)
	sessions.writeTimeout = config.WriteTimeout

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:   config,
		factory:  factory,
		handler:  handler,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.ReadBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		listeners: make(map[*net.Listener]struct{}),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}
}

// Use adds middleware around the frame handler.
// It must be called before the server starts accepting connections.
func (s *Server) Use(mws ...Middleware) {
	s.middleware = append(s.middleware, mws...)
}

// SetMetricsHandler mounts h at /metrics on the HTTP handler.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.metricsHandler = h
}

// ListenAndServe listens on Config.TCPAddress and serves stream connections.
func (s *Server) ListenAndServe() error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	l, err := net.Listen("tcp", s.config.TCPAddress)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts stream connections on l until Shutdown.
// It always returns a non-nil error; after Shutdown it is ErrServerClosed.
func (s *Server) Serve(l net.Listener) error {
	if !s.trackListener(&l, true) {
		l.Close()
		return ErrServerClosed
	}
	defer s.trackListener(&l, false)

	s.logger.Info("stream listener started", "address", l.Addr().String())

	var tempDelay time.Duration
	for {
		c, err := l.Accept()
		if err != nil {
			if s.closed.Load() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if tempDelay > time.Second {
					tempDelay = time.Second
				}
				s.logger.Warn("accept error", "error", err, "retry_in", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0

		conn := transport.NewStream(c, s.config.ReadBufferSize)
		if !s.startLoop() {
			conn.Close()
			return ErrServerClosed
		}
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) trackListener(l *net.Listener, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.closed.Load() {
			return false
		}
		s.listeners[l] = struct{}{}
	} else {
		delete(s.listeners, l)
	}
	return true
}

// HandleWebSocket upgrades the request and serves the connection until it
// closes. Every binary message is one chunk of the stream.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.closed.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	if s.config.MaxSessions > 0 && s.sessions.Count() >= s.config.MaxSessions {
		http.Error(w, "too many sessions", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	if s.config.MaxMessageSize > 0 {
		ws.SetReadLimit(s.config.MaxMessageSize)
	}

	conn := transport.NewWebSocket(ws)
	if !s.startLoop() {
		conn.Close()
		return
	}
	defer s.wg.Done()
	s.serveConn(conn)
}

// startLoop accounts for a session loop unless the server is shutting down.
func (s *Server) startLoop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.wg.Add(1)
	return true
}

// serveConn registers a session for conn and runs its read loop.
func (s *Server) serveConn(conn transport.Conn) {
	session, err := s.sessions.Create(conn)
	if err != nil {
		s.logger.Warn("connection rejected",
			"remote_addr", conn.RemoteAddr(),
			"error", err)
		conn.Close()
		return
	}

	h := Chain(s.handler, s.middleware...)
	if err := session.serve(s.ctx, h, s.config.ReadTimeout); err != nil {
		session.logger.Warn("session ended", "error", err)
	}
}

// Run starts the configured listeners and blocks until ctx is done or a
// listener fails, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	if s.config.TCPAddress != "" {
		go func() {
			errCh <- s.ListenAndServe()
		}()
	}
	if s.config.HTTPAddress != "" {
		go func() {
			errCh <- s.ListenAndServeHTTP()
		}()
	}

	var runErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrServerClosed) && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case <-ctx.Done():
		s.logger.Info("shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown stops the listeners, closes every session and waits for the
// session loops to exit or ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed.Swap(true) {
		s.mu.Unlock()
		return nil
	}
	for l := range s.listeners {
		(*l).Close()
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	var firstErr error
	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("http shutdown error", "error", err)
			firstErr = err
		}
	}

	if err := s.sessions.ShutdownWithContext(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if firstErr == nil {
			firstErr = ctx.Err()
		}
	}

	s.logger.Info("server shutdown complete")
	return firstErr
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}

// Factory returns the decoder factory.
func (s *Server) Factory() *framing.Factory {
	return s.factory
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// SetLogger sets the server logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger.With("component", "server")
	s.sessions.logger = logger.With("component", "session_manager")
}
