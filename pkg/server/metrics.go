package server

import "time"

// ServerMetrics is a point-in-time snapshot of the server.
type ServerMetrics struct {
	// Sessions
	ActiveSessions int64 `json:"activeSessions"`
	TotalSessions  int64 `json:"totalSessions"`
	SessionCloses  int64 `json:"sessionCloses"`
	PeakSessions   int64 `json:"peakSessions"`

	// Frames
	FramesReceived int64 `json:"framesReceived"`
	BytesReceived  int64 `json:"bytesReceived"`
	BufferedBytes  int64 `json:"bufferedBytes"`

	// Errors
	HandlerPanics int64 `json:"handlerPanics"`

	// Timestamp
	CollectedAt time.Time `json:"collectedAt"`
}

// Metrics collects and returns server metrics.
func (s *Server) Metrics() *ServerMetrics {
	stats := s.sessions.Stats()

	return &ServerMetrics{
		ActiveSessions: int64(stats.Active),
		TotalSessions:  int64(stats.TotalCreated),
		SessionCloses:  int64(stats.TotalClosed),
		PeakSessions:   int64(stats.Peak),
		FramesReceived: int64(stats.FramesReceived),
		BytesReceived:  int64(stats.BytesReceived),
		BufferedBytes:  int64(stats.Buffered),
		HandlerPanics:  int64(stats.HandlerPanics),
		CollectedAt:    time.Now(),
	}
}
