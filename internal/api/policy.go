package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/doorguard/internal/events"
	"github.com/nerrad567/doorguard/internal/policy"
)

// policyResponse is the operator view of the stored policy. Passcodes are
// never returned.
type policyResponse struct {
	Mode         policy.Mode `json:"mode"`
	HasPasscode  bool        `json:"has_passcode"`
	Cards        []string    `json:"cards"`
	Fingerprints []int       `json:"fingerprints"`
}

type cardRequest struct {
	CardID string `json:"card_id"`
}

type fingerprintRequest struct {
	ID *int `json:"id"`
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, _ *http.Request) {
	cards := s.policy.Cards()
	resp := policyResponse{
		Mode:         s.policy.Mode(),
		HasPasscode:  s.policy.HasPasscode(),
		Cards:        make([]string, 0, len(cards)),
		Fingerprints: s.policy.Fingerprints(),
	}
	for _, c := range cards {
		resp.Cards = append(resp.Cards, c.String())
	}
	if resp.Fingerprints == nil {
		resp.Fingerprints = []int{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModeHistory(w http.ResponseWriter, _ *http.Request) {
	history := s.policy.History()
	if history == nil {
		history = []policy.ModeChange{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *Server) handleSetPasscode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.editPolicy(w, r.Context(), "passcode", "passcode_changed", func(ctx context.Context) error {
		return s.policy.SetPasscode(ctx, req.Code)
	})
}

func (s *Server) handleSetAdminPasscode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.editPolicy(w, r.Context(), "admin", "admin_passcode_changed", func(ctx context.Context) error {
		return s.policy.SetAdminPasscode(ctx, req.Code)
	})
}

func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := policy.ParseCardID(req.CardID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.editPolicy(w, r.Context(), "rfid", "card_added", func(ctx context.Context) error {
		return s.policy.AddCard(ctx, id)
	})
}

func (s *Server) handleRemoveCard(w http.ResponseWriter, r *http.Request) {
	id, err := policy.ParseCardID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.editPolicy(w, r.Context(), "rfid", "card_removed", func(ctx context.Context) error {
		return s.policy.RemoveCard(ctx, id)
	})
}

func (s *Server) handleAddFingerprint(w http.ResponseWriter, r *http.Request) {
	var req fingerprintRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "id is required")
		return
	}
	s.editPolicy(w, r.Context(), "fingerprint", "fingerprint_added", func(ctx context.Context) error {
		return s.policy.AddFingerprint(ctx, *req.ID)
	})
}

func (s *Server) handleRemoveFingerprint(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "fingerprint id must be an integer")
		return
	}
	s.editPolicy(w, r.Context(), "fingerprint", "fingerprint_removed", func(ctx context.Context) error {
		return s.policy.RemoveFingerprint(ctx, id)
	})
}

// editPolicy runs edit and, on success, records the change on the event
// bus and answers with the updated policy.
func (s *Server) editPolicy(w http.ResponseWriter, ctx context.Context, factor, outcome string, edit func(context.Context) error) { //nolint:revive // writer first matches the other handlers
	if err := edit(ctx); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.events.Post(events.Event{
		Kind:    events.KindPolicy,
		Level:   events.LevelInfo,
		Factor:  factor,
		Outcome: outcome,
		Source:  "api",
	})
	s.logger.Info("policy updated", "change", outcome)
	s.handleGetPolicy(w, nil)
}
