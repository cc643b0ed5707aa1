package api

import (
	"net/http"

	"github.com/nerrad567/doorguard/internal/policy"
)

// codeRequest carries a keypad entry.
type codeRequest struct {
	Code string `json:"code"`
}

// modeRequest is the body of PUT /mode.
type modeRequest struct {
	Mode string `json:"mode"`
}

// handleStatus returns the live session snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.access.Status())
}

func (s *Server) handleKioskPasscode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.access.SubmitPasscode(req.Code); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleKioskPasscodeCancel(w http.ResponseWriter, _ *http.Request) {
	if err := s.access.CancelPasscode(); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelled"})
}

func (s *Server) handleKioskAdmin(w http.ResponseWriter, _ *http.Request) {
	if err := s.access.TriggerAdmin("kiosk"); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "admin_prompt"})
}

// handleKioskAdminPasscode answers the admin prompt. A wrong code is a
// 403 and the session resumes where it was.
func (s *Server) handleKioskAdminPasscode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.access.SubmitAdminPasscode(r.Context(), req.Code); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

func (s *Server) handleKioskAdminCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.access.CancelAdmin(r.Context()); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleRestartSession(w http.ResponseWriter, _ *http.Request) {
	if err := s.access.RestartSession(); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.access.Status())
}

// handleSetMode switches between sequential and any-factor authentication.
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mode, err := policy.ParseMode(req.Mode)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.access.SwitchMode(r.Context(), mode); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": mode.String()})
}
