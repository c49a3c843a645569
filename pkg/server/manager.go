package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/framer/pkg/framing"
	"github.com/vango-dev/framer/pkg/transport"
)

// SessionManager manages all active sessions.
// It handles session creation, lookup, cleanup, and lifecycle callbacks.
type SessionManager struct {
	// Sessions map protected by RWMutex
	sessions map[string]*Session
	mu       sync.RWMutex
	shutdown bool

	factory      *framing.Factory
	maxSessions  int
	writeTimeout time.Duration

	// Metrics
	totalCreated atomic.Uint64
	totalClosed  atomic.Uint64
	peakSessions int

	// Counters of sessions that already closed
	closedFrames atomic.Uint64
	closedBytes  atomic.Uint64
	closedPanics atomic.Uint64

	// Callbacks
	hooksMu         sync.RWMutex
	onSessionCreate []func(*Session)
	onSessionClose  []func(*Session)

	logger *slog.Logger
}

// NewSessionManager creates a SessionManager that gives every session its
// own decoder from factory. maxSessions of 0 means no limit.
func NewSessionManager(factory *framing.Factory, maxSessions int, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		sessions:     make(map[string]*Session),
		factory:      factory,
		maxSessions:  maxSessions,
		writeTimeout: DefaultConfig().WriteTimeout,
		logger:       logger.With("component", "session_manager"),
	}
}

// Create registers a new session for conn.
func (sm *SessionManager) Create(conn transport.Conn) (*Session, error) {
	sm.mu.Lock()
	if sm.shutdown {
		sm.mu.Unlock()
		return nil, ErrServerClosed
	}
	if sm.maxSessions > 0 && len(sm.sessions) >= sm.maxSessions {
		sm.mu.Unlock()
		return nil, ErrMaxSessionsReached
	}

	session := NewSession(conn, sm.factory.Create(), sm.logger)
	session.writeTimeout = sm.writeTimeout
	session.onClose = sm.remove

	sm.sessions[session.ID] = session
	sm.totalCreated.Add(1)
	if len(sm.sessions) > sm.peakSessions {
		sm.peakSessions = len(sm.sessions)
	}
	active := len(sm.sessions)
	sm.mu.Unlock()

	sm.logger.Info("session created",
		"session_id", session.ID,
		"remote_addr", session.RemoteAddr,
		"transport", session.Transport,
		"active_sessions", active)

	sm.hooksMu.RLock()
	hooks := sm.onSessionCreate
	sm.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(session)
	}

	return session, nil
}

// remove is called once by Session.Close.
func (sm *SessionManager) remove(s *Session) {
	sm.mu.Lock()
	if _, ok := sm.sessions[s.ID]; ok {
		delete(sm.sessions, s.ID)
	}
	sm.mu.Unlock()

	stats := s.Stats()
	sm.totalClosed.Add(1)
	sm.closedFrames.Add(stats.FramesReceived)
	sm.closedBytes.Add(stats.BytesReceived)
	sm.closedPanics.Add(stats.HandlerPanics)

	sm.hooksMu.RLock()
	hooks := sm.onSessionClose
	sm.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(s)
	}
}

// Get returns the session with the given ID, or nil.
func (sm *SessionManager) Get(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// Close closes the session with the given ID.
func (sm *SessionManager) Close(id string) error {
	s := sm.Get(id)
	if s == nil {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

// Count returns the number of active sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// ForEach iterates over all sessions.
// The callback should not perform long-running operations as it holds the read lock.
func (sm *SessionManager) ForEach(fn func(*Session) bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, session := range sm.sessions {
		if !fn(session) {
			break
		}
	}
}

// OnSessionCreate registers a callback run after a session is created.
func (sm *SessionManager) OnSessionCreate(fn func(*Session)) {
	sm.hooksMu.Lock()
	defer sm.hooksMu.Unlock()
	sm.onSessionCreate = append(sm.onSessionCreate, fn)
}

// OnSessionClose registers a callback run after a session is closed.
func (sm *SessionManager) OnSessionClose(fn func(*Session)) {
	sm.hooksMu.Lock()
	defer sm.hooksMu.Unlock()
	sm.onSessionClose = append(sm.onSessionClose, fn)
}

// Shutdown closes all sessions and rejects new ones.
func (sm *SessionManager) Shutdown() {
	sm.ShutdownWithContext(context.Background())
}

// ShutdownWithContext closes all sessions concurrently and waits for their
// close callbacks, or for ctx to end.
func (sm *SessionManager) ShutdownWithContext(ctx context.Context) error {
	sm.mu.Lock()
	sm.shutdown = true
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		sessions = append(sessions, s)
	}
	sm.mu.Unlock()

	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close()
		}(session)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	sm.logger.Info("session manager shutdown",
		"closed_sessions", len(sessions))

	return nil
}

// Stats returns aggregated session statistics.
func (sm *SessionManager) Stats() ManagerStats {
	sm.mu.RLock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		sessions = append(sessions, s)
	}
	peak := sm.peakSessions
	sm.mu.RUnlock()

	stats := ManagerStats{
		Active:         len(sessions),
		TotalCreated:   sm.totalCreated.Load(),
		TotalClosed:    sm.totalClosed.Load(),
		Peak:           peak,
		FramesReceived: sm.closedFrames.Load(),
		BytesReceived:  sm.closedBytes.Load(),
		HandlerPanics:  sm.closedPanics.Load(),
	}
	for _, s := range sessions {
		ss := s.Stats()
		stats.FramesReceived += ss.FramesReceived
		stats.BytesReceived += ss.BytesReceived
		stats.HandlerPanics += ss.HandlerPanics
		stats.Buffered += ss.Buffered
	}
	return stats
}

// ManagerStats contains aggregated session manager statistics.
type ManagerStats struct {
	Active         int    `json:"active"`
	TotalCreated   uint64 `json:"totalCreated"`
	TotalClosed    uint64 `json:"totalClosed"`
	Peak           int    `json:"peak"`
	FramesReceived uint64 `json:"framesReceived"`
	BytesReceived  uint64 `json:"bytesReceived"`
	HandlerPanics  uint64 `json:"handlerPanics"`
	Buffered       int    `json:"buffered"`
}
