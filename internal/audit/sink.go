package audit

import (
	"context"
	"strconv"

	"github.com/nerrad567/doorguard/internal/events"
)

// Entity types recorded in the trail.
const (
	EntityFactor  = "factor"
	EntitySession = "session"
	EntityDoor    = "door"
	EntityAdmin   = "admin"
	EntityPolicy  = "policy"
	EntitySystem  = "system"
)

// Sink writes access events to the audit trail. It is registered on the
// dispatcher, which makes it the only writer.
type Sink struct {
	repo Repository
}

// NewSink creates a sink over repo.
func NewSink(repo Repository) *Sink {
	return &Sink{repo: repo}
}

// Handle converts e into an Entry and stores it. Events that are not part
// of the trail (step changes, countdown ticks, voice) are ignored.
func (s *Sink) Handle(ctx context.Context, e events.Event) error {
	entry, ok := EntryFor(e)
	if !ok {
		return nil
	}
	return s.repo.Create(ctx, &entry)
}

// EntryFor maps an event to its audit entry. ok is false for events the
// trail does not record.
func EntryFor(e events.Event) (entry Entry, ok bool) {
	entry = Entry{
		Source:    e.Source,
		CreatedAt: e.At,
		Details:   details(e),
	}
	if entry.Source == "" {
		entry.Source = "core"
	}

	switch e.Kind {
	case events.KindAttempt:
		entry.Action = "auth_" + orDefault(e.Outcome, "unknown")
		entry.EntityType = EntityFactor
		entry.EntityID = e.Factor
	case events.KindCommitted:
		entry.Action = "access_granted"
		entry.EntityType = EntitySession
		entry.EntityID = generation(e.Generation)
	case events.KindSessionRestarted:
		entry.Action = "session_restarted"
		entry.EntityType = EntitySession
		entry.EntityID = generation(e.Generation)
	case events.KindModeChanged:
		entry.Action = "mode_changed"
		entry.EntityType = EntityPolicy
		entry.EntityID = e.Mode
	case events.KindAdmin:
		entry.Action = "admin_" + orDefault(e.Outcome, "event")
		entry.EntityType = EntityAdmin
		entry.EntityID = generation(e.Generation)
	case events.KindDoor:
		if e.Outcome == "" || e.Outcome == "countdown" {
			return Entry{}, false
		}
		entry.Action = "door_" + e.Outcome
		entry.EntityType = EntityDoor
	case events.KindPolicy:
		entry.Action = "policy_" + orDefault(e.Outcome, "changed")
		entry.EntityType = EntityPolicy
		entry.EntityID = e.Factor
	case events.KindSystem:
		entry.Action = "system_" + orDefault(e.Outcome, "event")
		entry.EntityType = EntitySystem
	default:
		return Entry{}, false
	}
	return entry, true
}

func details(e events.Event) map[string]any {
	d := map[string]any{}
	if e.Mode != "" {
		d["mode"] = e.Mode
	}
	if e.Step != "" {
		d["step"] = e.Step
	}
	if e.Message != "" {
		d["message"] = e.Message
	}
	if e.Level != "" {
		d["level"] = string(e.Level)
	}
	if e.Elapsed > 0 {
		d["elapsed_ms"] = e.Elapsed.Milliseconds()
	}
	if len(d) == 0 {
		return nil
	}
	return d
}

func generation(g uint64) string {
	if g == 0 {
		return ""
	}
	return strconv.FormatUint(g, 10)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
