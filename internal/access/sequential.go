package access

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/doorguard/internal/events"
	"github.com/nerrad567/doorguard/internal/policy"
	"github.com/nerrad567/doorguard/internal/voice"
)

// PasscodeInput is one keypad submission. Cancel carries no code.
type PasscodeInput struct {
	Code   string
	Cancel bool
}

var stepPrompts = map[Step]string{
	StepFace:        voice.KeyStepFace,
	StepFingerprint: voice.KeyStepFingerprint,
	StepRfid:        voice.KeyStepRfid,
	StepPasscode:    voice.KeyStepPasscode,
}

var verifiedCues = map[Factor]string{
	FactorFace:        voice.KeyFaceVerified,
	FactorFingerprint: voice.KeyFingerprintVerified,
	FactorRfid:        voice.KeyCardVerified,
	FactorPasscode:    voice.KeyPasscodeVerified,
}

var failedCues = map[Factor]string{
	FactorFingerprint: voice.KeyFingerprintFailed,
	FactorRfid:        voice.KeyCardFailed,
	FactorPasscode:    voice.KeyPasscodeFailed,
}

// Sequential drives the four-step policy. One Run call owns one session
// generation; its counters live in a per-run value so a superseded run
// still blocked in a sensor call cannot disturb the next one.
type Sequential struct {
	deps      Deps
	passcodes <-chan PasscodeInput
	adminCard policy.CardID
	hasAdmin  bool
}

// NewSequential creates the sequential controller. Passcode submissions are
// read from passcodes while the session waits at StepPasscode.
func NewSequential(deps Deps, passcodes <-chan PasscodeInput) (*Sequential, error) {
	deps = deps.withDefaults()
	card, ok, err := deps.adminCard()
	if err != nil {
		return nil, err
	}
	return &Sequential{deps: deps, passcodes: passcodes, adminCard: card, hasAdmin: ok}, nil
}

// sequentialRun is the state of one sequential session. Only the goroutine
// running it touches these fields.
type sequentialRun struct {
	*Sequential
	gen          uint64
	step         Step
	attempts     int
	faceMatches  int
	sensorErrors int
	pending      []SuccessRecord
	// settling is the step entered once the settle delay has passed.
	settling Step
}

func (s *Sequential) begin(gen uint64) *sequentialRun {
	return &sequentialRun{Sequential: s, gen: gen, step: StepFace}
}

// Run polls the sensors for session gen until the session completes,
// restarts, is handed to the admin override, or is superseded. The
// returned Decision says which.
func (s *Sequential) Run(ctx context.Context, gen uint64, snap policy.Snapshot) Decision {
	r := s.begin(gen)
	r.prompt(StepFace)

	for {
		if ctx.Err() != nil || !s.deps.Session.Licensed(gen) {
			return Decision{Stale: true}
		}
		res := r.poll(ctx, snap)
		if ctx.Err() != nil {
			return Decision{Stale: true}
		}
		d := r.OnResult(res)
		if !d.Continue {
			return d
		}
		if !sleep(ctx, d.Delay) {
			return Decision{Stale: true}
		}
		if !r.enterSettled() {
			return Decision{Stale: true}
		}
	}
}

// OnResult applies one observation to the session and decides the next
// move.
func (r *sequentialRun) OnResult(res StepResult) Decision {
	if !r.deps.Session.Licensed(r.gen) || !r.enterSettled() {
		return Decision{Stale: true}
	}
	cfg := r.deps.Config
	step := r.step
	factor := factorOf(step)

	if res.Err == nil {
		r.sensorErrors = 0
	}

	var ev Event
	switch {
	case res.AdminCard:
		ev = EventAdminCard
	case res.Err != nil:
		r.sensorErrors++
		if step == StepFace {
			// A failed frame breaks the run of consecutive matches.
			r.faceMatches = 0
			r.deps.Session.SetProgress(r.gen, factor, r.attempts, 0)
		}
		r.deps.Logger.Warn("sensor error", "step", step, "consecutive", r.sensorErrors, "error", res.Err)
		r.deps.attempt(r.gen, policy.ModeSequential, factor, outcomeSensorError, res.Err.Error())
		if r.sensorErrors < cfg.SensorErrorTolerance {
			return Decision{Next: step, Continue: true, Delay: cfg.SensorPollInterval}
		}
		r.sensorErrors = 0
		r.deps.Voice.Speak(voice.KeySensorError, "")
		ev = EventFailed
	case step == StepFace:
		if res.Matched {
			r.faceMatches++
		} else {
			r.faceMatches = 0
		}
		r.deps.Session.SetProgress(r.gen, factor, r.attempts, r.faceMatches)
		if r.faceMatches < cfg.FaceMatchThreshold {
			return Decision{Next: StepFace, Continue: true, Delay: cfg.FramePollInterval}
		}
		ev = EventMatched
	case res.Cancelled:
		ev = EventCancelled
	case res.Matched:
		ev = EventMatched
	default:
		ev = EventFailed
	}

	if ev == EventFailed {
		r.attempts++
		if r.attempts >= cfg.MaxAttempts {
			ev = EventExhausted
		}
	}
	if ev != EventAdminCard {
		r.deps.Session.SetProgress(r.gen, factor, r.attempts, r.faceMatches)
	}

	tr, ok := Lookup(policy.ModeSequential, step, ev)
	if !ok {
		r.deps.Logger.Warn("ignoring event with no transition", "step", step, "event", ev)
		return Decision{Next: step, Continue: true}
	}
	return r.apply(step, ev, tr, res)
}

func (r *sequentialRun) apply(step Step, ev Event, tr Transition, res StepResult) Decision {
	cfg := r.deps.Config
	session := r.deps.Session
	factor := factorOf(step)

	if tr.Effects.Has(EffectAdminHandoff) {
		adminGen, err := session.EnterAdmin(r.gen)
		if err != nil {
			return Decision{Stale: true}
		}
		r.deps.Logger.Info("admin card presented", "step", step)
		return Decision{Next: StepAdmin, Admin: true, AdminGeneration: adminGen}
	}

	switch ev {
	case EventMatched:
		r.pending = append(r.pending, SuccessRecord{
			Method:     factor,
			Identifier: res.Identifier,
			Details:    res.Details,
			At:         r.deps.Now(),
		})
		r.deps.attempt(r.gen, policy.ModeSequential, factor, outcomeSuccess, res.Details)
		r.deps.Voice.Speak(verifiedCues[factor], "")
	case EventFailed, EventExhausted:
		outcome := outcomeFailure
		if res.Details == detailTimeout {
			outcome = outcomeTimeout
		}
		r.deps.attempt(r.gen, policy.ModeSequential, factor, outcome,
			fmt.Sprintf("attempt %d/%d: %s", r.attempts, cfg.MaxAttempts, res.Details))
		if key := failedCues[factor]; key != "" && outcome == outcomeFailure {
			r.deps.Voice.Speak(key, "")
		} else if outcome == outcomeTimeout {
			r.deps.Voice.Speak(voice.KeyTimeout, "")
		}
	}

	if tr.Effects.Has(EffectResetAttempts) {
		r.attempts, r.faceMatches, r.sensorErrors = 0, 0, 0
	}

	d := Decision{Next: tr.Next}
	switch {
	case tr.Effects.Has(EffectCommit):
		if !session.CommitAll(r.gen, r.pending) {
			return Decision{Stale: true}
		}
		d.Unlock = tr.Effects.Has(EffectUnlock)
		return d
	case tr.Effects.Has(EffectRestartDelay):
		r.deps.Logger.Info("attempts exhausted, restarting session", "step", step)
		r.deps.Voice.Speak(voice.KeyAttemptsExhausted, "")
		session.SetDetail(r.gen, fmt.Sprintf("%s: too many attempts", step))
		d.Restart = true
		d.Delay = cfg.RestartDelay
		d.Reason = fmt.Errorf("%s: %w", step, ErrAttemptsExhausted)
		r.deps.Events.Post(events.Event{
			Kind:       events.KindAttempt,
			Level:      events.LevelDanger,
			Mode:       policy.ModeSequential.String(),
			Factor:     string(factor),
			Outcome:    outcomeExhausted,
			Message:    d.Reason.Error(),
			Generation: r.gen,
		})
		return d
	case tr.Effects.Has(EffectRestartNow):
		session.SetDetail(r.gen, "passcode cancelled")
		d.Restart = true
		return d
	case tr.Effects.Has(EffectRetryDelay):
		session.SetDetail(r.gen, fmt.Sprintf("%s: attempt %d of %d failed", step, r.attempts, cfg.MaxAttempts))
		d.Next = step
		d.Continue = true
		d.Delay = cfg.RetryDelay
		return d
	}

	d.Continue = true
	if tr.Effects.Has(EffectSettle) {
		r.settling = tr.Next
		session.SetDetail(r.gen, string(step)+" verified")
		d.Delay = cfg.FaceSettleDelay
		return d
	}
	if !r.enter(tr.Next) {
		return Decision{Stale: true}
	}
	return d
}

// enterSettled moves the session into the step held back by a settle
// delay, if any. It reports false once the run is superseded.
func (r *sequentialRun) enterSettled() bool {
	next := r.settling
	if next == "" {
		return true
	}
	r.settling = ""
	return r.enter(next)
}

func (r *sequentialRun) enter(next Step) bool {
	if next == StepPasscode {
		r.drainPasscodes()
	}
	if !r.deps.Session.Advance(r.gen, next) {
		return false
	}
	r.step = next
	r.deps.Session.SetProgress(r.gen, factorOf(next), 0, 0)
	r.prompt(next)
	return true
}

// drainPasscodes discards keypad entries made before the passcode prompt.
func (r *sequentialRun) drainPasscodes() {
	for {
		select {
		case <-r.passcodes:
		default:
			return
		}
	}
}

func (r *sequentialRun) prompt(step Step) {
	r.deps.Session.SetDetail(r.gen, "waiting for "+string(step))
	r.deps.Voice.Speak(stepPrompts[step], "")
	r.deps.Events.Post(events.Event{
		Kind:       events.KindStepChanged,
		Mode:       policy.ModeSequential.String(),
		Step:       string(step),
		Generation: r.gen,
	})
}

const (
	detailTimeout  = "timeout"
	detailNoMatch  = "no match"
	detailNotReady = "sensor not configured"
)

var errNotConfigured = fmt.Errorf("%w: %s", ErrSensorRead, detailNotReady)

// poll produces one observation for the current step.
func (r *sequentialRun) poll(ctx context.Context, snap policy.Snapshot) StepResult {
	switch r.step {
	case StepFace:
		return pollFace(ctx, r.deps.Sensors)
	case StepFingerprint:
		return pollFingerprint(ctx, r.deps, snap)
	case StepRfid:
		return pollCard(ctx, r.deps, snap, r.adminCard, r.hasAdmin)
	case StepPasscode:
		return r.pollPasscode(ctx, snap)
	default:
		return StepResult{Err: fmt.Errorf("%w: unexpected step %s", ErrSensorRead, r.step)}
	}
}

func pollFace(ctx context.Context, sensors Sensors) StepResult {
	if sensors.Camera == nil || sensors.Face == nil {
		return StepResult{Err: errNotConfigured}
	}
	frame, err := sensors.Camera.NextFrame(ctx)
	if err != nil {
		return StepResult{Err: sensorErr(err)}
	}
	res, err := sensors.Face.ProcessFrame(ctx, frame)
	if err != nil {
		return StepResult{Err: sensorErr(err)}
	}
	return StepResult{
		Matched:    res.Detected && res.Recognized,
		Identifier: res.Identity,
		Details:    "confidence " + strconv.FormatFloat(res.Confidence, 'f', 2, 64),
	}
}

// pollFingerprint polls until a finger is read or the attempt window closes.
func pollFingerprint(ctx context.Context, deps Deps, snap policy.Snapshot) StepResult {
	reader := deps.Sensors.Fingerprint
	if reader == nil {
		return StepResult{Err: errNotConfigured}
	}
	window, cancel := context.WithTimeout(ctx, deps.Config.FingerprintTimeout)
	defer cancel()
	for {
		read, err := reader.TryRead(window)
		switch {
		case ctx.Err() != nil:
			return StepResult{Err: ctx.Err()}
		case window.Err() != nil:
			return StepResult{Details: detailTimeout}
		case err != nil:
			return StepResult{Err: sensorErr(err)}
		case read.Touched && read.ID >= 0 && snap.HasFingerprint(read.ID):
			return StepResult{Matched: true, Identifier: strconv.Itoa(read.ID)}
		case read.Touched:
			return StepResult{Details: detailNoMatch}
		}
		if !sleep(window, deps.Config.SensorPollInterval) {
			if ctx.Err() != nil {
				return StepResult{Err: ctx.Err()}
			}
			return StepResult{Details: detailTimeout}
		}
	}
}

func pollCard(ctx context.Context, deps Deps, snap policy.Snapshot, admin policy.CardID, hasAdmin bool) StepResult {
	reader := deps.Sensors.Card
	if reader == nil {
		return StepResult{Err: errNotConfigured}
	}
	id, ok, err := reader.ReadWithTimeout(ctx, deps.Config.CardTimeout)
	if err != nil {
		return StepResult{Err: sensorErr(err)}
	}
	switch {
	case !ok:
		return StepResult{Details: detailTimeout}
	case hasAdmin && id == admin:
		return StepResult{AdminCard: true, Identifier: id.Redacted()}
	case snap.HasCard(id):
		return StepResult{Matched: true, Identifier: id.Redacted()}
	default:
		return StepResult{Details: "unknown card " + id.Redacted()}
	}
}

func (r *sequentialRun) pollPasscode(ctx context.Context, snap policy.Snapshot) StepResult {
	timer := time.NewTimer(r.deps.Config.PasscodeTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return StepResult{Err: ctx.Err()}
	case <-timer.C:
		return StepResult{Details: detailTimeout}
	case in := <-r.passcodes:
		switch {
		case in.Cancel:
			return StepResult{Cancelled: true}
		case snap.CheckPasscode(in.Code):
			return StepResult{Matched: true, Identifier: "****"}
		default:
			return StepResult{Details: "wrong passcode"}
		}
	}
}

// sensorErr makes sure a collaborator error carries one of the sensor
// sentinels.
func sensorErr(err error) error {
	if errors.Is(err, ErrSensorQuality) || errors.Is(err, ErrSensorRead) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSensorRead, err)
}
