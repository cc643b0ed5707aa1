package access

import "github.com/nerrad567/doorguard/internal/policy"

// Event is an input to the transition table.
type Event string

const (
	EventMatched   Event = "matched"
	EventFailed    Event = "failed"
	EventExhausted Event = "exhausted"
	EventCancelled Event = "cancelled"
	EventAdminCard Event = "admin_card"
)

// Effect is a bit set of side effects attached to a transition.
type Effect uint16

const (
	// EffectResetAttempts zeroes the attempt and face-match counters.
	EffectResetAttempts Effect = 1 << iota
	// EffectSettle waits the face settle delay before the next step.
	EffectSettle
	// EffectRetryDelay re-issues the same step after the retry delay.
	EffectRetryDelay
	// EffectRestartDelay ends the session; a new one starts after the
	// restart delay.
	EffectRestartDelay
	// EffectRestartNow ends the session; a new one starts immediately.
	EffectRestartNow
	// EffectCommit records the session's successes and completes it.
	EffectCommit
	// EffectUnlock opens the door.
	EffectUnlock
	// EffectStopWorkers cancels every factor worker of the session.
	EffectStopWorkers
	// EffectAdminHandoff passes the session to the admin override.
	EffectAdminHandoff
)

// Has reports whether e includes f.
func (e Effect) Has(f Effect) bool { return e&f != 0 }

// Transition is one row of the table.
type Transition struct {
	Next    Step
	Effects Effect
}

type transitionKey struct {
	mode  policy.Mode
	step  Step
	event Event
}

var transitions = buildTransitions()

func buildTransitions() map[transitionKey]Transition {
	seq, anyMode := policy.ModeSequential, policy.ModeAny
	admin := Transition{Next: StepAdmin, Effects: EffectStopWorkers | EffectAdminHandoff}
	exhausted := Transition{Next: StepFace, Effects: EffectResetAttempts | EffectRestartDelay}

	t := map[transitionKey]Transition{
		{seq, StepFace, EventMatched}:        {StepFingerprint, EffectResetAttempts | EffectSettle},
		{seq, StepFingerprint, EventMatched}: {StepRfid, EffectResetAttempts},
		{seq, StepRfid, EventMatched}:        {StepPasscode, EffectResetAttempts},
		{seq, StepPasscode, EventMatched}:    {StepCompleted, EffectCommit | EffectUnlock},
		{seq, StepPasscode, EventCancelled}:  {StepFace, EffectResetAttempts | EffectRestartNow},

		{anyMode, StepAnyAuth, EventMatched}:   {StepCompleted, EffectCommit | EffectStopWorkers | EffectUnlock},
		{anyMode, StepAnyAuth, EventFailed}:    {StepAnyAuth, 0},
		{anyMode, StepAnyAuth, EventCancelled}: {StepAnyAuth, 0},
		{anyMode, StepAnyAuth, EventAdminCard}: admin,
	}
	for _, step := range sequentialOrder {
		t[transitionKey{seq, step, EventFailed}] = Transition{Next: step, Effects: EffectRetryDelay}
		t[transitionKey{seq, step, EventExhausted}] = exhausted
		t[transitionKey{seq, step, EventAdminCard}] = admin
	}
	return t
}

// Lookup returns the transition for event at (mode, step). ok is false for
// combinations the policy does not allow.
func Lookup(mode policy.Mode, step Step, event Event) (Transition, bool) {
	tr, ok := transitions[transitionKey{mode, step, event}]
	return tr, ok
}
