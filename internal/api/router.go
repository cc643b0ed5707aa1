package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/doorguard/internal/panel"
)

// healthCheckTimeout bounds each dependency check in /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Post("/auth/login", s.handleLogin)

		// Kiosk input: the same actions as the physical keypad.
		r.Route("/kiosk", func(r chi.Router) {
			r.Post("/passcode", s.handleKioskPasscode)
			r.Post("/passcode/cancel", s.handleKioskPasscodeCancel)
			r.Post("/admin", s.handleKioskAdmin)
			r.Post("/admin/passcode", s.handleKioskAdminPasscode)
			r.Post("/admin/cancel", s.handleKioskAdminCancel)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Post("/session/restart", s.handleRestartSession)
			r.Put("/mode", s.handleSetMode)

			r.Route("/policy", func(r chi.Router) {
				r.Get("/", s.handleGetPolicy)
				r.Put("/passcode", s.handleSetPasscode)
				r.Put("/admin-passcode", s.handleSetAdminPasscode)
				r.Get("/history", s.handleModeHistory)
				r.Post("/cards", s.handleAddCard)
				r.Delete("/cards/{id}", s.handleRemoveCard)
				r.Post("/fingerprints", s.handleAddFingerprint)
				r.Delete("/fingerprints/{id}", s.handleRemoveFingerprint)
			})

			r.Get("/audit", s.handleListAudit)

			r.Post("/voice/test", s.handleVoiceTest)
			r.Get("/metrics", s.handleMetrics)
			r.Post("/system/shutdown", s.handleShutdown)
		})

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)
	})

	// Kiosk display
	r.Handle("/*", panel.Handler(s.cfg.PanelDir))

	return r
}

// handleHealth reports the server version and the state of each
// registered dependency. Any failing check turns the response into 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.health))
	status := http.StatusOK
	for name, check := range s.health {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":  overall,
		"version": s.version,
		"checks":  checks,
	})
}
