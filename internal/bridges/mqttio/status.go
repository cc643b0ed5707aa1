package mqttio

import (
	"context"

	"github.com/nerrad567/doorguard/internal/access"
	"github.com/nerrad567/doorguard/internal/events"
)

// StatusPublisher mirrors the event stream onto the bus and keeps the
// retained status topic current for wall panels.
type StatusPublisher struct {
	bus    Bus
	status func() access.Status
	logger Logger
}

// NewStatusPublisher creates an event sink publishing on bus. status is
// read after every event that can change the session snapshot.
func NewStatusPublisher(bus Bus, status func() access.Status, logger Logger) *StatusPublisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &StatusPublisher{bus: bus, status: status, logger: logger}
}

// Handle publishes e and, unless it is a voice event, a fresh retained
// snapshot. Publish failures are logged only.
func (p *StatusPublisher) Handle(_ context.Context, e events.Event) error {
	if err := p.bus.PublishJSON(topics.CoreEvent(string(e.Kind)), e, false); err != nil {
		p.logger.Debug("event not published", "kind", e.Kind, "error", err)
		return nil
	}
	if e.Kind == events.KindVoice {
		return nil
	}
	if err := p.bus.PublishJSON(topics.CoreStatus(), p.status(), true); err != nil {
		p.logger.Warn("status not published", "error", err)
	}
	return nil
}
