package access

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/doorguard/internal/events"
	"github.com/nerrad567/doorguard/internal/infrastructure/config"
	"github.com/nerrad567/doorguard/internal/policy"
)

// Deps are the collaborators shared by the controllers.
type Deps struct {
	Config  config.AccessConfig
	Session *Session
	Sensors Sensors
	Voice   Speaker
	Events  events.Poster
	Logger  Logger
	Now     func() time.Time
}

type discardPoster struct{}

func (discardPoster) Post(events.Event) bool { return false }

// withDefaults fills nil collaborators so the controllers never nil-check.
func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Session == nil {
		d.Session = NewSession(d.Now)
	}
	if d.Voice == nil {
		d.Voice = noopSpeaker{}
	}
	if d.Events == nil {
		d.Events = discardPoster{}
	}
	if d.Logger == nil {
		d.Logger = noopLogger{}
	}
	return d
}

// adminCard parses the configured admin card. ok is false when none is set.
func (d Deps) adminCard() (id policy.CardID, ok bool, err error) {
	if d.Config.AdminCardID == "" {
		return policy.CardID{}, false, nil
	}
	id, err = policy.ParseCardID(d.Config.AdminCardID)
	if err != nil {
		return policy.CardID{}, false, fmt.Errorf("admin card: %w", err)
	}
	return id, true, nil
}

// attempt posts one factor outcome.
func (d Deps) attempt(gen uint64, mode policy.Mode, f Factor, outcome, detail string) {
	e := events.Event{
		Kind:       events.KindAttempt,
		Mode:       mode.String(),
		Factor:     string(f),
		Outcome:    outcome,
		Message:    detail,
		Generation: gen,
	}
	if outcome != outcomeSuccess {
		e.Level = events.LevelWarning
	}
	d.Events.Post(e)
}

// sleep waits for delay or until ctx ends. It returns false if ctx ended.
func sleep(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Attempt outcomes reported in events and telemetry.
const (
	outcomeSuccess     = "success"
	outcomeFailure     = "failure"
	outcomeTimeout     = "timeout"
	outcomeSensorError = "sensor_error"
	outcomeExhausted   = "exhausted"
)
