package api

import (
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/nerrad567/doorguard/internal/events"
	"github.com/nerrad567/doorguard/internal/voice"
)

// shutdownConfirmation must be sent verbatim to stop the controller.
const shutdownConfirmation = "EXIT"

// voiceTestKey prefixes operator test announcements so they never collide
// with the once-per-session keys.
const voiceTestKey = "operator_test"

// SystemMetrics is the response of GET /metrics.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Events        EventMetrics   `json:"events"`
	Voice         *voice.Stats   `json:"voice,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// EventMetrics reports event bus health.
type EventMetrics struct {
	Dropped uint64 `json:"dropped"`
}

type voiceTestRequest struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

type shutdownRequest struct {
	Confirm string `json:"confirm"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / (1 << 20),
			MemoryTotalMB: float64(mem.TotalAlloc) / (1 << 20),
			NumGC:         mem.NumGC,
		},
		WebSocket: WSMetrics{ConnectedClients: s.hub.ClientCount()},
	}
	if s.dropped != nil {
		m.Events.Dropped = s.dropped()
	}
	if s.voice != nil {
		st := s.voice.Stats()
		m.Voice = &st
	}
	writeJSON(w, http.StatusOK, m)
}

// handleVoiceTest speaks text through the door speaker, bypassing the
// once-per-session filter.
func (s *Server) handleVoiceTest(w http.ResponseWriter, r *http.Request) {
	if s.voice == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "voice not configured")
		return
	}
	var req voiceTestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "text is required")
		return
	}
	key := voiceTestKey
	if req.Key != "" {
		key += ":" + req.Key
	}
	s.voice.ForceSpeak(key, text)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "key": key})
}

// handleShutdown stops the controller after an explicit confirmation.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	var req shutdownRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Confirm != shutdownConfirmation {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, `confirm must be "EXIT"`)
		return
	}
	if s.shutdown == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "shutdown not available")
		return
	}

	subject := ""
	if c := claimsFrom(r.Context()); c != nil {
		subject = c.Subject
	}
	s.logger.Warn("shutdown requested by operator", "subject", subject)
	s.events.Post(events.Event{
		Kind:    events.KindSystem,
		Level:   events.LevelWarning,
		Outcome: "shutdown_requested",
		Source:  "api",
		Message: "operator requested shutdown",
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "shutting_down"})
	go s.shutdown()
}
