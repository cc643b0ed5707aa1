package voice

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/doorguard/internal/infrastructure/config"
)

const (
	defaultQueueCapacity   = 3
	defaultDuplicateWindow = 3 * time.Second
	drainPollInterval      = 20 * time.Millisecond
)

// Speaker turns text into audio. Implementations block until playback has
// finished so the gate can keep a single audio channel.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Logger is the logging surface the gate needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

type noopSpeaker struct{}

func (noopSpeaker) Speak(context.Context, string) error { return nil }

// Outcome is the gate's decision for one cue.
type Outcome string

const (
	OutcomeEmitted    Outcome = "emitted"
	OutcomeEmpty      Outcome = "suppressed_empty"
	OutcomeCooldown   Outcome = "suppressed_cooldown"
	OutcomeOnce       Outcome = "suppressed_once"
	OutcomeDuplicate  Outcome = "suppressed_duplicate"
	OutcomeDropped    Outcome = "dropped"
	OutcomeForced     Outcome = "forced"
	OutcomeSpeakError Outcome = "speak_error"
)

// Suppressed reports whether o kept a cue off the speaker.
func (o Outcome) Suppressed() bool {
	switch o {
	case OutcomeEmpty, OutcomeCooldown, OutcomeOnce, OutcomeDuplicate:
		return true
	default:
		return false
	}
}

// Observer is told about every decision the gate makes. It runs with no
// gate lock held and must not block.
type Observer func(key string, outcome Outcome)

// Stats counts gate decisions since start.
type Stats struct {
	Emitted    int `json:"emitted"`
	Suppressed int `json:"suppressed"`
	Dropped    int `json:"dropped"`
	Queued     int `json:"queued"`
}

type utterance struct {
	key  string
	text string
}

// Gate throttles, deduplicates and serialises speech.
//
// Thread Safety:
//   - Speak, SpeakImmediate, ForceSpeak and ResetSessionAnnouncements may be
//     called from any goroutine and never block on playback.
type Gate struct {
	speaker   Speaker
	logger    Logger
	observer  Observer
	now       func() time.Time
	messages  map[string]string
	cooldowns map[string]time.Duration
	capacity  int
	dupWindow time.Duration

	mu          sync.Mutex
	lastEmitted map[string]time.Time
	announced   map[string]bool
	lastText    string
	lastTextAt  time.Time
	queue       []utterance
	busy        bool
	stats       Stats

	wake     chan struct{}
	playMu   sync.Mutex
	inflight sync.WaitGroup
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithObserver registers a decision observer.
func WithObserver(o Observer) Option {
	return func(g *Gate) { g.observer = o }
}

// New creates a Gate. Message and cooldown overrides from cfg are merged
// over the built-in tables. A nil speaker or cfg.Enabled=false yields a gate
// that runs every rule but plays nothing.
func New(cfg config.VoiceConfig, speaker Speaker, opts ...Option) *Gate {
	if speaker == nil || !cfg.Enabled {
		speaker = noopSpeaker{}
	}

	g := &Gate{
		speaker:     speaker,
		logger:      noopLogger{},
		now:         time.Now,
		messages:    DefaultMessages(),
		cooldowns:   DefaultCooldowns(),
		capacity:    cfg.QueueCapacity,
		dupWindow:   cfg.DuplicateWindow,
		lastEmitted: make(map[string]time.Time),
		announced:   make(map[string]bool),
		wake:        make(chan struct{}, 1),
	}
	if g.capacity < 1 {
		g.capacity = defaultQueueCapacity
	}
	if g.dupWindow <= 0 {
		g.dupWindow = defaultDuplicateWindow
	}
	for k, v := range cfg.Messages {
		g.messages[k] = v
	}
	for k, v := range cfg.Cooldowns {
		g.cooldowns[k] = v
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Speak queues the cue for key unless a suppression rule applies. custom,
// when non-empty, replaces the catalogue text. It reports whether the cue
// was queued.
func (g *Gate) Speak(key, custom string) bool {
	u := utterance{key: key, text: g.resolve(key, custom)}

	g.mu.Lock()
	outcome := g.decideLocked(u)
	var dropped *utterance
	if outcome == OutcomeEmitted {
		dropped = g.enqueueLocked(u)
	}
	g.mu.Unlock()

	g.notify(key, outcome)
	if dropped != nil {
		g.notify(dropped.key, OutcomeDropped)
	}
	if outcome == OutcomeEmitted {
		g.signal()
	}
	return outcome == OutcomeEmitted
}

// SpeakImmediate applies the same rules as Speak but plays on its own
// goroutine instead of the queue. It still waits for the audio channel.
func (g *Gate) SpeakImmediate(key, custom string) bool {
	u := utterance{key: key, text: g.resolve(key, custom)}

	g.mu.Lock()
	outcome := g.decideLocked(u)
	g.mu.Unlock()

	g.notify(key, outcome)
	if outcome != OutcomeEmitted {
		return false
	}

	g.inflight.Add(1)
	go func() {
		defer g.inflight.Done()
		g.play(context.Background(), u)
	}()
	return true
}

// ForceSpeak queues text with no suppression. Reserved for startup and
// shutdown announcements and operator voice tests.
func (g *Gate) ForceSpeak(key, text string) {
	u := utterance{key: key, text: text}
	if u.text == "" {
		u.text = g.messages[key]
	}
	if u.text == "" {
		return
	}

	g.mu.Lock()
	dropped := g.enqueueLocked(u)
	g.lastText = u.text
	g.lastTextAt = g.now()
	g.mu.Unlock()

	g.notify(key, OutcomeForced)
	if dropped != nil {
		g.notify(dropped.key, OutcomeDropped)
	}
	g.signal()
}

// ResetSessionAnnouncements clears the session-once flags and their
// cooldown timestamps.
func (g *Gate) ResetSessionAnnouncements() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key := range sessionOnceKeys {
		delete(g.announced, key)
		delete(g.lastEmitted, key)
	}
}

// Stats returns decision counters.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.stats
	s.Queued = len(g.queue)
	return s
}

// Run plays queued cues one at a time until ctx is cancelled.
func (g *Gate) Run(ctx context.Context) {
	for {
		u, ok := g.next(ctx)
		if !ok {
			return
		}
		g.play(ctx, u)
	}
}

// Drain blocks until the queue is empty and nothing is playing, or ctx ends.
func (g *Gate) Drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for {
		g.mu.Lock()
		idle := len(g.queue) == 0 && !g.busy
		g.mu.Unlock()
		if idle {
			g.inflight.Wait()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (g *Gate) resolve(key, custom string) string {
	if custom != "" {
		return custom
	}
	return g.messages[key]
}

// decideLocked applies the suppression rules and, when the cue passes,
// records it in the bookkeeping. g.mu must be held.
func (g *Gate) decideLocked(u utterance) Outcome {
	now := g.now()

	outcome := OutcomeEmitted
	switch {
	case u.text == "":
		outcome = OutcomeEmpty
	case g.inCooldown(u.key, now):
		outcome = OutcomeCooldown
	case sessionOnceKeys[u.key] && g.announced[u.key]:
		outcome = OutcomeOnce
	case u.text == g.lastText && now.Sub(g.lastTextAt) < g.dupWindow:
		outcome = OutcomeDuplicate
	}

	if outcome != OutcomeEmitted {
		g.stats.Suppressed++
		return outcome
	}

	g.lastEmitted[u.key] = now
	if sessionOnceKeys[u.key] {
		g.announced[u.key] = true
	}
	g.lastText = u.text
	g.lastTextAt = now
	g.stats.Emitted++
	return outcome
}

func (g *Gate) inCooldown(key string, now time.Time) bool {
	window, ok := g.cooldowns[key]
	if !ok || window <= 0 {
		return false
	}
	last, seen := g.lastEmitted[key]
	return seen && now.Sub(last) < window
}

// enqueueLocked appends u, evicting the oldest entry when full. It returns
// the evicted entry, if any.
func (g *Gate) enqueueLocked(u utterance) *utterance {
	var dropped *utterance
	if len(g.queue) >= g.capacity {
		d := g.queue[0]
		dropped = &d
		g.queue = g.queue[1:]
		g.stats.Dropped++
	}
	g.queue = append(g.queue, u)
	return dropped
}

func (g *Gate) signal() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

func (g *Gate) next(ctx context.Context) (utterance, bool) {
	for {
		g.mu.Lock()
		if len(g.queue) > 0 {
			u := g.queue[0]
			g.queue = g.queue[1:]
			g.busy = true
			g.mu.Unlock()
			return u, true
		}
		g.busy = false
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return utterance{}, false
		case <-g.wake:
		}
	}
}

func (g *Gate) play(ctx context.Context, u utterance) {
	g.playMu.Lock()
	err := g.speaker.Speak(ctx, u.text)
	g.playMu.Unlock()

	if err != nil {
		g.logger.Warn("speech failed", "key", u.key, "error", err)
		g.notify(u.key, OutcomeSpeakError)
		return
	}
	g.logger.Debug("spoke", "key", u.key)
}

func (g *Gate) notify(key string, outcome Outcome) {
	if g.observer != nil {
		g.observer(key, outcome)
	}
}
