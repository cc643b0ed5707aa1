package access

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/nerrad567/doorguard/internal/policy"
	"github.com/nerrad567/doorguard/internal/voice"
)

// DecisionFunc receives the terminal decision of a session. It is called
// from a worker goroutine and must not block on the arbiter.
type DecisionFunc func(gen uint64, d Decision)

// Arbiter runs the Any-mode race: one worker per sensor plus one per
// submitted passcode, all polling the same session. The first success to
// Commit wins; every other result is discarded. Ties go to whichever worker
// takes the session lock first.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Arbiter struct {
	deps      Deps
	onDone    DecisionFunc
	adminCard policy.CardID
	hasAdmin  bool

	mu     sync.Mutex
	gen    uint64
	snap   policy.Snapshot
	ctx    context.Context //nolint:containedctx // worker context for on-demand passcode workers
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewArbiter creates the Any-mode arbiter. onDone is told when a worker
// commits or the admin card hands the session over.
func NewArbiter(deps Deps, onDone DecisionFunc) (*Arbiter, error) {
	deps = deps.withDefaults()
	card, ok, err := deps.adminCard()
	if err != nil {
		return nil, err
	}
	if onDone == nil {
		onDone = func(uint64, Decision) {}
	}
	return &Arbiter{deps: deps, onDone: onDone, adminCard: card, hasAdmin: ok}, nil
}

// StartAll launches the sensor workers for session gen. Any workers of an
// earlier session are stopped first.
func (a *Arbiter) StartAll(ctx context.Context, gen uint64, snap policy.Snapshot) {
	a.StopAll()

	a.mu.Lock()
	defer a.mu.Unlock()
	wctx, cancel := context.WithCancel(ctx)
	a.gen, a.snap, a.ctx, a.cancel = gen, snap, wctx, cancel

	s := a.deps.Sensors
	if s.Camera != nil && s.Face != nil {
		a.spawn(func() { a.faceWorker(wctx, gen) })
	}
	if s.Fingerprint != nil {
		a.spawn(func() { a.fingerprintWorker(wctx, gen, snap) })
	}
	if s.Card != nil {
		a.spawn(func() { a.cardWorker(wctx, gen, snap) })
	}
	a.deps.Logger.Info("any-mode workers started", "generation", gen)
}

// SubmitPasscode starts a passcode worker for code.
func (a *Arbiter) SubmitPasscode(code string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx == nil || a.ctx.Err() != nil || !a.deps.Session.Licensed(a.gen) {
		return ErrPasscodeNotExpected
	}
	gen, snap := a.gen, a.snap
	a.spawn(func() { a.passcodeWorker(gen, snap, code) })
	return nil
}

// StopAll signals every worker to stop. In-flight sensor calls are not
// interrupted beyond their context; use Wait to join them.
func (a *Arbiter) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

// Wait blocks until every worker has exited.
func (a *Arbiter) Wait() {
	a.wg.Wait()
}

func (a *Arbiter) spawn(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// stopGeneration cancels the workers only if they still belong to gen.
func (a *Arbiter) stopGeneration(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen == gen && a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *Arbiter) licensed(ctx context.Context, gen uint64) bool {
	return ctx.Err() == nil && a.deps.Session.Licensed(gen)
}

// win tries to commit rec for gen. It returns false when another worker
// already won or the session moved on.
func (a *Arbiter) win(gen uint64, rec SuccessRecord) bool {
	tr, _ := Lookup(policy.ModeAny, StepAnyAuth, EventMatched)
	rec.At = a.deps.Now()
	if !a.deps.Session.Commit(gen, rec) {
		a.deps.Logger.Debug("discarding late success", "factor", rec.Method, "generation", gen)
		return false
	}
	if tr.Effects.Has(EffectStopWorkers) {
		a.stopGeneration(gen)
	}
	a.deps.Logger.Info("access granted", "factor", rec.Method, "generation", gen)
	a.deps.attempt(gen, policy.ModeAny, rec.Method, outcomeSuccess, rec.Details)
	a.deps.Voice.Speak(verifiedCues[rec.Method], "")
	a.onDone(gen, Decision{Next: tr.Next, Unlock: tr.Effects.Has(EffectUnlock)})
	return true
}

// fail reports a rejected credential. Sibling workers keep running.
func (a *Arbiter) fail(gen uint64, f Factor, outcome, detail string) {
	if !a.deps.Session.Licensed(gen) {
		return
	}
	a.deps.Session.SetDetail(gen, string(f)+": "+detail)
	a.deps.attempt(gen, policy.ModeAny, f, outcome, detail)
	if key := failedCues[f]; key != "" {
		a.deps.Voice.Speak(key, "")
	}
}

func (a *Arbiter) admin(gen uint64) {
	adminGen, err := a.deps.Session.EnterAdmin(gen)
	if err != nil {
		return
	}
	a.stopGeneration(gen)
	a.deps.Logger.Info("admin card presented", "generation", gen)
	a.onDone(gen, Decision{Next: StepAdmin, Admin: true, AdminGeneration: adminGen})
}

// sensorFault counts consecutive sensor errors. It reports a failure once
// the tolerance is reached and returns the new count.
func (a *Arbiter) sensorFault(gen uint64, f Factor, count int, err error) int {
	count++
	a.deps.Logger.Warn("sensor error", "factor", f, "consecutive", count, "error", err)
	if count < a.deps.Config.SensorErrorTolerance {
		return count
	}
	if !errors.Is(err, ErrSensorQuality) {
		a.deps.Voice.Speak(voice.KeySensorError, "")
	}
	a.fail(gen, f, outcomeSensorError, err.Error())
	return 0
}

func (a *Arbiter) faceWorker(ctx context.Context, gen uint64) {
	matches, faults := 0, 0
	for a.licensed(ctx, gen) {
		res := pollFace(ctx, a.deps.Sensors)
		if ctx.Err() != nil {
			return
		}
		if res.Err != nil {
			if matches > 0 {
				matches = 0
				a.deps.Session.SetProgress(gen, FactorFace, 0, 0)
			}
			faults = a.sensorFault(gen, FactorFace, faults, res.Err)
			sleep(ctx, a.deps.Config.SensorPollInterval)
			continue
		}
		faults = 0
		if !res.Matched {
			matches = 0
		} else {
			matches++
		}
		a.deps.Session.SetProgress(gen, FactorFace, 0, matches)
		if matches >= a.deps.Config.FaceMatchThreshold {
			a.win(gen, SuccessRecord{Method: FactorFace, Identifier: res.Identifier, Details: res.Details})
			return
		}
		sleep(ctx, a.deps.Config.FramePollInterval)
	}
}

func (a *Arbiter) fingerprintWorker(ctx context.Context, gen uint64, snap policy.Snapshot) {
	faults := 0
	for a.licensed(ctx, gen) {
		read, err := a.deps.Sensors.Fingerprint.TryRead(ctx)
		if ctx.Err() != nil {
			return
		}
		switch {
		case err != nil:
			faults = a.sensorFault(gen, FactorFingerprint, faults, sensorErr(err))
			sleep(ctx, a.deps.Config.SensorPollInterval)
		case !read.Touched:
			faults = 0
			sleep(ctx, a.deps.Config.SensorPollInterval)
		case read.ID >= 0 && snap.HasFingerprint(read.ID):
			a.win(gen, SuccessRecord{Method: FactorFingerprint, Identifier: strconv.Itoa(read.ID)})
			return
		default:
			faults = 0
			a.fail(gen, FactorFingerprint, outcomeFailure, detailNoMatch)
			sleep(ctx, a.deps.Config.RetryDelay)
		}
	}
}

func (a *Arbiter) cardWorker(ctx context.Context, gen uint64, snap policy.Snapshot) {
	faults := 0
	for a.licensed(ctx, gen) {
		res := pollCard(ctx, a.deps, snap, a.adminCard, a.hasAdmin)
		if ctx.Err() != nil {
			return
		}
		switch {
		case res.Err != nil:
			faults = a.sensorFault(gen, FactorRfid, faults, res.Err)
			sleep(ctx, a.deps.Config.SensorPollInterval)
		case res.AdminCard:
			a.admin(gen)
			return
		case res.Matched:
			a.win(gen, SuccessRecord{Method: FactorRfid, Identifier: res.Identifier})
			return
		case res.Details == detailTimeout:
			faults = 0
		default:
			faults = 0
			a.fail(gen, FactorRfid, outcomeFailure, res.Details)
			sleep(ctx, a.deps.Config.RetryDelay)
		}
	}
}

// passcodeWorker checks one submission. A wrong code is reported without
// stopping the sensor workers.
func (a *Arbiter) passcodeWorker(gen uint64, snap policy.Snapshot, code string) {
	if !a.deps.Session.Licensed(gen) {
		return
	}
	if snap.CheckPasscode(code) {
		a.win(gen, SuccessRecord{Method: FactorPasscode, Identifier: "****"})
		return
	}
	a.fail(gen, FactorPasscode, outcomeFailure, "wrong passcode")
}
