package notify

import (
	"context"
	"strings"
	"time"

	"github.com/nerrad567/doorguard/internal/events"
	"github.com/nerrad567/doorguard/internal/infrastructure/mqtt"
)

// Publisher is the part of the MQTT client the notifier uses.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// Logger is the logging surface the notifier needs.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Alert is the payload published for each notification.
type Alert struct {
	ID      string    `json:"id,omitempty"`
	Level   string    `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Kind    string    `json:"kind,omitempty"`
	Site    string    `json:"site,omitempty"`
	At      time.Time `json:"at"`
}

var titles = map[events.Kind]string{
	events.KindAttempt:          "Authentication",
	events.KindCommitted:        "Access granted",
	events.KindSessionRestarted: "Session restarted",
	events.KindModeChanged:      "Mode changed",
	events.KindAdmin:            "Admin override",
	events.KindDoor:             "Door",
	events.KindPolicy:           "Policy",
	events.KindSystem:           "System",
}

// Notifier sends alert events to the bus.
type Notifier struct {
	pub    Publisher
	site   string
	logger Logger
	now    func() time.Time
}

// New creates a notifier publishing through pub. site is copied into each
// alert so several doors can share one broker.
func New(pub Publisher, site string, logger Logger) *Notifier {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Notifier{pub: pub, site: site, logger: logger, now: time.Now}
}

// Handle publishes e if it is an alert. It never returns an error.
func (n *Notifier) Handle(_ context.Context, e events.Event) error {
	if !e.IsAlert() {
		return nil
	}
	title, ok := titles[e.Kind]
	if !ok {
		title = string(e.Kind)
	}
	n.publish(Alert{
		ID:      e.ID,
		Level:   string(e.Level),
		Title:   title,
		Message: e.Message,
		Kind:    string(e.Kind),
		Site:    n.site,
		At:      e.At,
	})
	return nil
}

// Send publishes an ad hoc alert outside the event flow.
func (n *Notifier) Send(level events.Level, title, message string) {
	n.publish(Alert{
		Level:   string(level),
		Title:   title,
		Message: message,
		Site:    n.site,
		At:      n.now(),
	})
}

func (n *Notifier) publish(a Alert) {
	topic := mqtt.Topics{}.CoreAlert(strings.ToLower(a.Level))
	if err := n.pub.PublishJSON(topic, a, false); err != nil {
		n.logger.Warn("alert not delivered", "level", a.Level, "title", a.Title, "error", err)
	}
}
