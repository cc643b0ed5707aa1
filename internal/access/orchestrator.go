package access

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/doorguard/internal/door"
	"github.com/nerrad567/doorguard/internal/events"
	"github.com/nerrad567/doorguard/internal/infrastructure/config"
	"github.com/nerrad567/doorguard/internal/policy"
	"github.com/nerrad567/doorguard/internal/voice"
)

const defaultSessionRestartDelay = 3 * time.Second

// PolicyStore is what the orchestrator needs from the policy store.
type PolicyStore interface {
	AdminVerifier
	Snapshot() policy.Snapshot
	SetMode(ctx context.Context, m policy.Mode) (bool, error)
}

// Door is the lock actuator.
type Door interface {
	Unlock(ctx context.Context) error
	State() door.State
	SetOnRelocked(fn func(door.State))
	Beep(ctx context.Context, p door.Pattern)
}

// Voice is the voice gate surface the orchestrator drives.
type Voice interface {
	Speaker
	ResetSessionAnnouncements()
}

// Options wires an Orchestrator.
type Options struct {
	Access  config.AccessConfig
	Door    config.DoorConfig
	Store   PolicyStore
	Lock    Door
	Sensors Sensors
	Voice   Voice
	Panel   AdminPanel
	Events  events.Poster
	Logger  Logger
	Now     func() time.Time
}

// Orchestrator owns the live session and wires the controllers, the door
// and the admin override together.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
type Orchestrator struct {
	deps         Deps
	store        PolicyStore
	lock         Door
	voice        Voice
	restartDelay time.Duration

	sequential *Sequential
	arbiter    *Arbiter
	admin      *AdminOverride
	passcodes  chan PasscodeInput

	mu           sync.Mutex
	root         context.Context //nolint:containedctx // lifetime of Start..Stop
	stop         context.CancelFunc
	running      bool
	sessionStop  context.CancelFunc
	restartTimer *time.Timer
	wg           sync.WaitGroup
}

// New creates an Orchestrator. It fails if the configured admin card is
// not a valid card identifier.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("access: policy store is required")
	}
	if opts.Lock == nil {
		return nil, errors.New("access: door actuator is required")
	}

	o := &Orchestrator{
		store:        opts.Store,
		lock:         opts.Lock,
		restartDelay: opts.Door.SessionRestartDelay,
		passcodes:    make(chan PasscodeInput, 1),
	}
	if o.restartDelay <= 0 {
		o.restartDelay = defaultSessionRestartDelay
	}
	var sp Speaker
	if opts.Voice != nil {
		o.voice = opts.Voice
		sp = opts.Voice
	} else {
		o.voice = silentVoice{}
	}
	o.deps = Deps{
		Config:  opts.Access,
		Sensors: opts.Sensors,
		Voice:   sp,
		Events:  opts.Events,
		Logger:  opts.Logger,
		Now:     opts.Now,
	}.withDefaults()

	var err error
	if o.sequential, err = NewSequential(o.deps, o.passcodes); err != nil {
		return nil, err
	}
	if o.arbiter, err = NewArbiter(o.deps, o.onDecision); err != nil {
		return nil, err
	}
	o.admin = NewAdminOverride(o.deps, o.store, opts.Panel)
	return o, nil
}

type silentVoice struct{ noopSpeaker }

func (silentVoice) ResetSessionAnnouncements() {}

// Session returns the live session.
func (o *Orchestrator) Session() *Session { return o.deps.Session }

// Start announces readiness and begins the first session in the stored
// mode.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return errors.New("access: orchestrator already running")
	}
	o.root, o.stop = context.WithCancel(ctx)
	o.running = true
	o.mu.Unlock()

	o.lock.SetOnRelocked(o.onRelocked)
	o.voice.Speak(voice.KeySystemReady, "")
	o.deps.Events.Post(events.Event{Kind: events.KindSystem, Level: events.LevelInfo, Outcome: "started"})
	o.deps.Logger.Info("access orchestrator started")
	return o.startSession("startup")
}

// Stop ends the session, stops every worker and waits for them.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	if o.restartTimer != nil {
		o.restartTimer.Stop()
		o.restartTimer = nil
	}
	if o.sessionStop != nil {
		o.sessionStop()
	}
	o.stop()
	o.mu.Unlock()

	o.arbiter.StopAll()
	o.arbiter.Wait()
	o.wg.Wait()
	o.lock.SetOnRelocked(nil)
	o.deps.Logger.Info("access orchestrator stopped")
}

// RestartSession abandons the current session and starts a new one in the
// stored mode. It is refused while the door is open or the admin override
// holds the session.
func (o *Orchestrator) RestartSession() error {
	switch o.deps.Session.Step() {
	case StepCompleted:
		return ErrDoorCycleActive
	case StepAdmin:
		return ErrAdminActive
	}
	return o.startSession("operator")
}

// SwitchMode persists mode and, if it changed, clears the once-per-session
// announcements and restarts the session in the new mode. While the door is
// open or the admin override runs, the new mode applies to the next session.
func (o *Orchestrator) SwitchMode(ctx context.Context, mode policy.Mode) error {
	from := o.deps.Session.Mode()
	changed, err := o.store.SetMode(ctx, mode)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	o.voice.ResetSessionAnnouncements()
	o.deps.Logger.Info("authentication mode changed", "from", from, "to", mode)
	o.deps.Events.Post(events.Event{
		Kind:    events.KindModeChanged,
		Level:   events.LevelInfo,
		Mode:    mode.String(),
		Message: fmt.Sprintf("%s -> %s", from, mode),
	})

	switch o.deps.Session.Step() {
	case StepCompleted, StepAdmin:
		return nil
	}
	return o.startSession("mode change")
}

// SubmitPasscode delivers a keypad entry to whatever is waiting for one:
// the sequential passcode step, the Any-mode arbiter, or the admin prompt.
func (o *Orchestrator) SubmitPasscode(code string) error {
	if !o.isRunning() {
		return ErrNotRunning
	}
	switch o.deps.Session.Step() {
	case StepPasscode:
		return o.sendPasscode(PasscodeInput{Code: code})
	case StepAnyAuth:
		return o.arbiter.SubmitPasscode(code)
	case StepAdmin:
		return o.admin.Submit(o.rootContext(), code)
	default:
		return ErrPasscodeNotExpected
	}
}

// CancelPasscode cancels keypad entry. In the sequential passcode step it
// restarts the session immediately; at the admin prompt it cancels the
// override.
func (o *Orchestrator) CancelPasscode() error {
	if !o.isRunning() {
		return ErrNotRunning
	}
	switch o.deps.Session.Step() {
	case StepPasscode:
		return o.sendPasscode(PasscodeInput{Cancel: true})
	case StepAdmin:
		return o.admin.Cancel(o.rootContext())
	default:
		return ErrPasscodeNotExpected
	}
}

func (o *Orchestrator) sendPasscode(in PasscodeInput) error {
	select {
	case o.passcodes <- in:
		return nil
	default:
		return fmt.Errorf("%w: previous entry still pending", ErrPasscodeNotExpected)
	}
}

// TriggerAdmin starts the admin override from the hotkey or the API.
func (o *Orchestrator) TriggerAdmin(source string) error {
	if !o.isRunning() {
		return ErrNotRunning
	}
	adminGen, err := o.deps.Session.EnterAdmin(o.deps.Session.Generation())
	if err != nil {
		return err
	}
	o.beginAdmin(adminGen, source)
	return nil
}

// SubmitAdminPasscode answers the admin prompt.
func (o *Orchestrator) SubmitAdminPasscode(ctx context.Context, code string) error {
	return o.admin.Submit(ctx, code)
}

// CancelAdmin closes the admin prompt.
func (o *Orchestrator) CancelAdmin(ctx context.Context) error {
	return o.admin.Cancel(ctx)
}

// Status returns the session and door state.
func (o *Orchestrator) Status() Status {
	st := o.deps.Session.Status()
	ds := o.lock.State()
	st.Door = DoorState{Locked: ds.Locked, Deadline: ds.Deadline, Fault: ds.Fault}
	st.Running = o.isRunning()
	return st
}

func (o *Orchestrator) isRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *Orchestrator) rootContext() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.root == nil {
		return context.Background()
	}
	return o.root
}

// startSession replaces the live session with a fresh one in the stored
// mode, reading a policy snapshot that stays fixed for the session.
func (o *Orchestrator) startSession(reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return ErrNotRunning
	}
	if o.restartTimer != nil {
		o.restartTimer.Stop()
		o.restartTimer = nil
	}
	if o.sessionStop != nil {
		o.sessionStop()
	}
	snap := o.store.Snapshot()
	mode := snap.Mode()
	gen := o.deps.Session.Reset(mode)
	sctx, cancel := context.WithCancel(o.root)
	o.sessionStop = cancel

	o.deps.Logger.Info("session started", "mode", mode, "generation", gen, "reason", reason)
	o.deps.Events.Post(events.Event{
		Kind:       events.KindSessionStarted,
		Mode:       mode.String(),
		Step:       string(firstStep(mode)),
		Message:    reason,
		Generation: gen,
	})

	if mode == policy.ModeAny {
		o.voice.Speak(voice.KeyModeAny, "")
		o.deps.Session.SetDetail(gen, "present any credential")
		o.arbiter.StartAll(sctx, gen, snap)
		return nil
	}

	o.arbiter.StopAll()
	o.voice.Speak(voice.KeyModeSequential, "")
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.onDecision(gen, o.sequential.Run(sctx, gen, snap))
	}()
	return nil
}

// onDecision acts on the terminal decision of a controller.
func (o *Orchestrator) onDecision(gen uint64, d Decision) {
	switch {
	case d.Stale:
	case d.Admin:
		o.beginAdmin(d.AdminGeneration, "admin_card")
	case d.Unlock:
		o.unlock(gen)
	case d.Restart:
		o.deps.Events.Post(events.Event{
			Kind:       events.KindSessionRestarted,
			Message:    restartReason(d),
			Generation: gen,
		})
		o.scheduleRestart(gen, d.Delay, "restart")
	}
}

func restartReason(d Decision) string {
	if d.Reason != nil {
		return d.Reason.Error()
	}
	return "restart"
}

// beginAdmin stops every factor worker and runs the admin prompt on behalf
// of the generation the override owns.
func (o *Orchestrator) beginAdmin(adminGen uint64, source string) {
	o.mu.Lock()
	if o.sessionStop != nil {
		o.sessionStop()
		o.sessionStop = nil
	}
	if o.restartTimer != nil {
		o.restartTimer.Stop()
		o.restartTimer = nil
	}
	ctx := o.root
	o.mu.Unlock()
	o.arbiter.StopAll()

	o.deps.Logger.Info("admin override started", "source", source, "generation", adminGen)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		d := o.admin.Run(ctx, adminGen, source)
		o.onDecision(adminGen, d)
	}()
}

// unlock opens the door for a committed session. A failed unlock leaves
// the door secured and restarts the session after the usual delay.
func (o *Orchestrator) unlock(gen uint64) {
	ctx := o.rootContext()
	recs := o.deps.Session.Successes()
	o.deps.Session.SetDetail(gen, "access granted")
	o.deps.Events.Post(events.Event{
		Kind:       events.KindCommitted,
		Level:      events.LevelSuccess,
		Mode:       o.deps.Session.Mode().String(),
		Factor:     committedFactors(recs),
		Outcome:    outcomeSuccess,
		Elapsed:    o.deps.Now().Sub(o.deps.Session.Status().StartedAt),
		Generation: gen,
	})

	if err := o.lock.Unlock(ctx); err != nil {
		o.deps.Logger.Error("door unlock failed", "error", err)
		o.deps.Session.SetDetail(gen, "door fault")
		o.voice.SpeakImmediate(voice.KeyDoorFault, "")
		o.lock.Beep(ctx, door.PatternFailure)
		o.deps.Events.Post(events.Event{
			Kind:       events.KindDoor,
			Level:      events.LevelCritical,
			Outcome:    "unlock_failed",
			Message:    err.Error(),
			Generation: gen,
		})
		o.scheduleRestart(gen, o.restartDelay, "unlock failed")
		return
	}
	o.voice.Speak(voice.KeyAccessGranted, "")
	o.voice.Speak(voice.KeyDoorUnlocked, "")
	o.lock.Beep(ctx, door.PatternSuccess)
}

func committedFactors(recs []SuccessRecord) string {
	if len(recs) == 1 {
		return string(recs[0].Method)
	}
	return "all"
}

// onRelocked hands control back after a door cycle. The session restarts
// in the same mode after the restart delay even when the relock faulted.
func (o *Orchestrator) onRelocked(st door.State) {
	gen := o.deps.Session.Generation()
	if o.deps.Session.Step() != StepCompleted {
		return
	}
	if st.Fault {
		o.deps.Session.SetDetail(gen, "door fault: manual intervention required")
		o.voice.SpeakImmediate(voice.KeyDoorFault, "")
	} else {
		o.voice.Speak(voice.KeyDoorLocked, "")
	}
	o.scheduleRestart(gen, o.restartDelay, "door relocked")
}

// scheduleRestart starts a new session after delay unless session gen has
// been superseded by then.
func (o *Orchestrator) scheduleRestart(gen uint64, delay time.Duration, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return
	}
	if o.restartTimer != nil {
		o.restartTimer.Stop()
	}
	o.restartTimer = time.AfterFunc(delay, func() {
		if o.deps.Session.Generation() != gen {
			return
		}
		if err := o.startSession(reason); err != nil && !errors.Is(err, ErrNotRunning) {
			o.deps.Logger.Warn("session restart failed", "error", err)
		}
	})
}
