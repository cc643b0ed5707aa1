package door

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nerrad567/doorguard/internal/infrastructure/config"
)

const (
	defaultUnlockDuration = 3 * time.Second
	defaultTick           = time.Second
	relayTimeout          = 5 * time.Second
)

// Relay is the lock output. Energized means locked.
type Relay interface {
	SetEnergized(ctx context.Context, energized bool) error
}

// Pattern is a buzzer sequence.
type Pattern string

const (
	PatternSuccess Pattern = "success"
	PatternFailure Pattern = "failure"
	PatternAlarm   Pattern = "alarm"
)

// Buzzer is the audible feedback output, independent of speech.
type Buzzer interface {
	Beep(ctx context.Context, p Pattern) error
}

// Logger is the logging surface the actuator needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// EventKind identifies an actuator event.
type EventKind string

const (
	EventUnlocked      EventKind = "door_unlocked"
	EventCountdown     EventKind = "door_countdown"
	EventRelocked      EventKind = "door_locked"
	EventUnlockFailed  EventKind = "door_unlock_failed"
	EventRelockRetried EventKind = "door_relock_retried"
	EventRelockFailed  EventKind = "door_relock_failed"
)

// Event reports a lock transition.
type Event struct {
	Kind      EventKind
	Remaining int // seconds, for EventCountdown
	Err       error
	At        time.Time
}

// State is a point-in-time view of the lock.
type State struct {
	Locked   bool      `json:"locked"`
	Deadline time.Time `json:"deadline,omitzero"`
	Fault    bool      `json:"fault"`
}

// Actuator sequences the lock.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Relay commands are serialised.
//   - State never blocks on relay I/O.
type Actuator struct {
	relay    Relay
	buzzer   Buzzer
	duration time.Duration
	tick     time.Duration
	logger   Logger
	listener func(Event)
	now      func() time.Time

	// relayMu serialises relay commands. It is taken before mu and is the
	// only lock held across relay I/O, so State never waits on the relay.
	relayMu sync.Mutex

	mu         sync.Mutex
	state      State
	cycle      uint64
	cancel     context.CancelFunc
	onRelocked func(State)
}

// Option configures an Actuator.
type Option func(*Actuator)

// WithBuzzer attaches a buzzer.
func WithBuzzer(b Buzzer) Option { return func(a *Actuator) { a.buzzer = b } }

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(a *Actuator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithListener receives every Event. The listener may run while a relay
// command is in progress, so it must not block or send lock commands.
func WithListener(fn func(Event)) Option { return func(a *Actuator) { a.listener = fn } }

// WithTick overrides the countdown interval (one second by default).
func WithTick(d time.Duration) Option { return func(a *Actuator) { a.tick = d } }

// New creates an Actuator. The door is assumed locked; call Secure at
// startup to drive the relay to match.
func New(cfg config.DoorConfig, relay Relay, opts ...Option) *Actuator {
	a := &Actuator{
		relay:    relay,
		duration: cfg.UnlockDuration,
		tick:     defaultTick,
		logger:   noopLogger{},
		now:      time.Now,
		state:    State{Locked: true},
	}
	if a.duration <= 0 {
		a.duration = defaultUnlockDuration
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetOnRelocked registers the hand-back callback invoked after every
// relock attempt that ends an unlock cycle, including a failed one.
func (a *Actuator) SetOnRelocked(fn func(State)) {
	a.mu.Lock()
	a.onRelocked = fn
	a.mu.Unlock()
}

// State returns the current lock state.
func (a *Actuator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Duration returns the configured unlock window.
func (a *Actuator) Duration() time.Duration { return a.duration }

// Secure drives the relay to locked. Used at startup and shutdown.
func (a *Actuator) Secure(ctx context.Context) error {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.cycle++
	a.mu.Unlock()

	_, err := a.relock(ctx, true)
	return err
}

// Unlock opens the door for the configured duration.
//
// The relay is de-energized, the state becomes Unlocked with a deadline,
// and a countdown goroutine relocks at the deadline. A relay failure drives
// the output back toward locked and returns an error wrapping ErrActuator.
func (a *Actuator) Unlock(ctx context.Context) error {
	a.relayMu.Lock()
	defer a.relayMu.Unlock()

	a.mu.Lock()
	fault, locked := a.state.Fault, a.state.Locked
	a.mu.Unlock()
	if fault {
		return ErrManualIntervention
	}
	if !locked {
		return ErrAlreadyUnlocked
	}

	opCtx, cancel := context.WithTimeout(ctx, relayTimeout)
	err := a.relay.SetEnergized(opCtx, false)
	cancel()
	if err != nil {
		a.logger.Error("unlock failed, securing door", "error", err)
		a.emit(Event{Kind: EventUnlockFailed, Err: err})
		if _, serr := a.relockHeld(context.WithoutCancel(ctx), true); serr != nil {
			return fmt.Errorf("%w: unlock: %w (secure: %w)", ErrActuator, err, serr)
		}
		return fmt.Errorf("%w: unlock: %w", ErrActuator, err)
	}

	now := a.now()
	a.mu.Lock()
	a.state = State{Locked: false, Deadline: now.Add(a.duration)}
	a.cycle++
	cycle := a.cycle
	cycleCtx, cycleCancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cycleCancel
	deadline := a.state.Deadline
	a.mu.Unlock()

	a.logger.Info("door unlocked", "duration", a.duration)
	a.emit(Event{Kind: EventUnlocked, Remaining: secondsLeft(deadline, now)})

	go a.countdown(cycleCtx, cycle, deadline)
	return nil
}

// Relock ends the current unlock cycle early and hands control back through
// the OnRelocked callback. On a locked door it does nothing.
func (a *Actuator) Relock(ctx context.Context) error {
	a.mu.Lock()
	wasUnlocked := !a.state.Locked
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.cycle++
	cb := a.onRelocked
	a.mu.Unlock()

	st, err := a.relock(ctx, false)
	if wasUnlocked && cb != nil {
		cb(st)
	}
	return err
}

// countdown reports the seconds left on every tick and relocks at the
// deadline. A newer cycle or Secure supersedes it.
func (a *Actuator) countdown(ctx context.Context, cycle uint64, deadline time.Time) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if left := secondsLeft(deadline, a.now()); left > 0 {
				a.emit(Event{Kind: EventCountdown, Remaining: left})
			}
		case <-timer.C:
			a.mu.Lock()
			current := a.cycle == cycle
			if current {
				a.cancel = nil
			}
			a.mu.Unlock()
			if !current {
				return
			}
			st, _ := a.relock(ctx, true) //nolint:errcheck // reported through events and onRelocked
			a.mu.Lock()
			cb := a.onRelocked
			a.mu.Unlock()
			if cb != nil {
				cb(st)
			}
			return
		}
	}
}

// relock energizes the relay, retrying once. A door that is already locked
// and fault-free is left alone unless force is set.
func (a *Actuator) relock(ctx context.Context, force bool) (State, error) {
	a.relayMu.Lock()
	defer a.relayMu.Unlock()
	return a.relockHeld(ctx, force)
}

// relockHeld is relock for callers already holding relayMu.
func (a *Actuator) relockHeld(ctx context.Context, force bool) (State, error) {
	a.mu.Lock()
	st := a.state
	a.mu.Unlock()
	if st.Locked && !st.Fault && !force {
		return st, nil
	}

	err := a.energize(ctx)
	if err != nil {
		a.logger.Error("relock failed, retrying", "error", err)
		a.emit(Event{Kind: EventRelockRetried, Err: err})
		err = a.energize(ctx)
	}

	st = State{Locked: true}
	if err != nil {
		st = State{Locked: false, Fault: true}
	}
	a.mu.Lock()
	a.state = st
	a.mu.Unlock()

	if err != nil {
		a.logger.Error("relock failed after retry, manual intervention required", "error", err)
		a.emit(Event{Kind: EventRelockFailed, Err: err})
		go a.Beep(context.WithoutCancel(ctx), PatternAlarm)
		return st, fmt.Errorf("%w: %w", ErrManualIntervention, err)
	}
	a.logger.Info("door locked")
	a.emit(Event{Kind: EventRelocked})
	return st, nil
}

func (a *Actuator) energize(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, relayTimeout)
	defer cancel()
	return a.relay.SetEnergized(opCtx, true)
}

// Beep plays a buzzer pattern. Failures are logged and ignored.
func (a *Actuator) Beep(ctx context.Context, p Pattern) {
	if a.buzzer == nil {
		return
	}
	if err := a.buzzer.Beep(ctx, p); err != nil {
		a.logger.Warn("buzzer failed", "pattern", p, "error", err)
	}
}

func (a *Actuator) emit(e Event) {
	if a.listener == nil {
		return
	}
	if e.At.IsZero() {
		e.At = a.now()
	}
	a.listener(e)
}

func secondsLeft(deadline, now time.Time) int {
	return int(math.Ceil(deadline.Sub(now).Seconds()))
}
