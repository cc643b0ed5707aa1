package access

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/doorguard/internal/events"
	"github.com/nerrad567/doorguard/internal/voice"
)

const defaultAdminPromptTimeout = 30 * time.Second

// Admin outcomes reported in events.
const (
	AdminOutcomePrompt    = "prompt"
	AdminOutcomeGranted   = "granted"
	AdminOutcomeDenied    = "denied"
	AdminOutcomeCancelled = "cancelled"
	AdminOutcomeTimeout   = "timeout"
	AdminOutcomeClosed    = "panel_closed"
)

type adminInput struct {
	code   string
	cancel bool
	reply  chan error
}

// adminPrompt is one open admin passcode prompt.
type adminPrompt struct {
	gen   uint64
	input chan adminInput
	done  chan struct{}
}

// AdminOverride prompts for the admin passcode and hands over to the admin
// panel. It is entered with a generation already owned through
// Session.EnterAdmin, so no factor worker can commit while it runs.
//
// Thread Safety:
//   - Submit and Cancel are safe to call from any goroutine while Run
//     is active.
type AdminOverride struct {
	deps     Deps
	verifier AdminVerifier
	panel    AdminPanel

	mu     sync.Mutex
	prompt *adminPrompt
}

// NewAdminOverride creates the admin path. panel may be nil, in which case
// a granted override ends immediately.
func NewAdminOverride(deps Deps, verifier AdminVerifier, panel AdminPanel) *AdminOverride {
	return &AdminOverride{deps: deps.withDefaults(), verifier: verifier, panel: panel}
}

// Active reports whether a prompt is open.
func (a *AdminOverride) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prompt != nil
}

// Run prompts for the admin passcode on behalf of session gen and blocks
// until the override ends. The returned Decision always restarts the normal
// session: after AdminFailureDelay on a wrong passcode, immediately on
// cancel, timeout or panel close.
func (a *AdminOverride) Run(ctx context.Context, gen uint64, source string) Decision {
	p := &adminPrompt{gen: gen, input: make(chan adminInput), done: make(chan struct{})}
	a.mu.Lock()
	a.prompt = p
	a.mu.Unlock()
	defer a.closePrompt(p)

	a.deps.Voice.SpeakImmediate(voice.KeyAdminPrompt, "")
	a.post(gen, events.LevelWarning, AdminOutcomePrompt, source)

	timeout := a.deps.Config.AdminPromptTimeout
	if timeout <= 0 {
		timeout = defaultAdminPromptTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var in adminInput
	select {
	case <-ctx.Done():
		return Decision{Stale: true}
	case <-timer.C:
		a.deps.Logger.Info("admin prompt timed out")
		a.post(gen, events.LevelInfo, AdminOutcomeTimeout, source)
		return Decision{Restart: true}
	case in = <-p.input:
	}

	if in.cancel {
		in.reply <- nil
		a.deps.Logger.Info("admin override cancelled")
		a.post(gen, events.LevelInfo, AdminOutcomeCancelled, source)
		return Decision{Restart: true}
	}

	ok, err := a.verify(in.code)
	if !ok {
		if err != nil {
			in.reply <- fmt.Errorf("%w: %w", ErrAdminDenied, err)
		} else {
			in.reply <- ErrAdminDenied
		}
		a.deps.Logger.Warn("admin passcode rejected", "source", source, "error", err)
		a.deps.Voice.SpeakImmediate(voice.KeyAdminDenied, "")
		a.post(gen, events.LevelDanger, AdminOutcomeDenied, source)
		return Decision{Restart: true, Delay: a.deps.Config.AdminFailureDelay, Reason: ErrAdminDenied}
	}

	in.reply <- nil
	a.closePrompt(p)
	a.deps.Logger.Info("admin access granted", "source", source)
	a.deps.Voice.SpeakImmediate(voice.KeyAdminGranted, "")
	a.post(gen, events.LevelSuccess, AdminOutcomeGranted, source)

	if a.panel != nil {
		if err := a.panel.Open(ctx); err != nil && ctx.Err() == nil {
			a.deps.Logger.Warn("admin panel failed", "error", err)
		}
	}
	if ctx.Err() != nil || a.deps.Session.Generation() != gen {
		return Decision{Stale: true}
	}
	a.post(gen, events.LevelInfo, AdminOutcomeClosed, source)
	return Decision{Restart: true}
}

func (a *AdminOverride) verify(code string) (bool, error) {
	if a.verifier == nil {
		return false, nil
	}
	return a.verifier.VerifyAdminPasscode(code)
}

// Submit hands code to the open prompt and waits for the verdict. It
// returns nil when the passcode was accepted, an error wrapping
// ErrAdminDenied when not, and ErrAdminNotActive when no prompt is open.
func (a *AdminOverride) Submit(ctx context.Context, code string) error {
	return a.send(ctx, adminInput{code: code})
}

// Cancel closes the open prompt and lets the normal session restart.
func (a *AdminOverride) Cancel(ctx context.Context) error {
	return a.send(ctx, adminInput{cancel: true})
}

func (a *AdminOverride) send(ctx context.Context, in adminInput) error {
	a.mu.Lock()
	p := a.prompt
	a.mu.Unlock()
	if p == nil {
		return ErrAdminNotActive
	}

	in.reply = make(chan error, 1)
	select {
	case p.input <- in:
	case <-p.done:
		return ErrAdminNotActive
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-in.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *AdminOverride) closePrompt(p *adminPrompt) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.prompt == p {
		a.prompt = nil
		close(p.done)
	}
}

func (a *AdminOverride) post(gen uint64, level events.Level, outcome, source string) {
	a.deps.Events.Post(events.Event{
		Kind:       events.KindAdmin,
		Level:      level,
		Outcome:    outcome,
		Source:     source,
		Generation: gen,
	})
}
