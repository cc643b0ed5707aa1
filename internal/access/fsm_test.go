package access

import (
	"testing"

	"github.com/nerrad567/doorguard/internal/policy"
)

func TestLookup(t *testing.T) {
	seq, anyMode := policy.ModeSequential, policy.ModeAny
	tests := []struct {
		name    string
		mode    policy.Mode
		step    Step
		event   Event
		next    Step
		effects Effect
	}{
		{"face verified settles", seq, StepFace, EventMatched, StepFingerprint, EffectResetAttempts | EffectSettle},
		{"fingerprint verified", seq, StepFingerprint, EventMatched, StepRfid, EffectResetAttempts},
		{"card verified", seq, StepRfid, EventMatched, StepPasscode, EffectResetAttempts},
		{"passcode completes", seq, StepPasscode, EventMatched, StepCompleted, EffectCommit | EffectUnlock},
		{"retry same step", seq, StepRfid, EventFailed, StepRfid, EffectRetryDelay},
		{"exhausted restarts from face", seq, StepPasscode, EventExhausted, StepFace, EffectResetAttempts | EffectRestartDelay},
		{"cancel restarts now", seq, StepPasscode, EventCancelled, StepFace, EffectResetAttempts | EffectRestartNow},
		{"admin card sequential", seq, StepRfid, EventAdminCard, StepAdmin, EffectStopWorkers | EffectAdminHandoff},
		{"any commit stops workers", anyMode, StepAnyAuth, EventMatched, StepCompleted, EffectCommit | EffectStopWorkers | EffectUnlock},
		{"any failure keeps racing", anyMode, StepAnyAuth, EventFailed, StepAnyAuth, 0},
		{"admin card any", anyMode, StepAnyAuth, EventAdminCard, StepAdmin, EffectStopWorkers | EffectAdminHandoff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, ok := Lookup(tt.mode, tt.step, tt.event)
			if !ok {
				t.Fatal("no transition")
			}
			if tr.Next != tt.next || tr.Effects != tt.effects {
				t.Errorf("Lookup() = %+v, want {%s %b}", tr, tt.next, tt.effects)
			}
		})
	}
}

func TestLookup_Undefined(t *testing.T) {
	tests := []struct {
		mode  policy.Mode
		step  Step
		event Event
	}{
		{policy.ModeSequential, StepFace, EventCancelled},
		{policy.ModeSequential, StepAnyAuth, EventMatched},
		{policy.ModeAny, StepFace, EventMatched},
		{policy.ModeAny, StepCompleted, EventMatched},
		{policy.ModeSequential, StepAdmin, EventAdminCard},
	}
	for _, tt := range tests {
		if _, ok := Lookup(tt.mode, tt.step, tt.event); ok {
			t.Errorf("Lookup(%s, %s, %s) defined", tt.mode, tt.step, tt.event)
		}
	}
}

func TestLookup_EverySequentialStepCanFail(t *testing.T) {
	for _, step := range sequentialOrder {
		for _, ev := range []Event{EventMatched, EventFailed, EventExhausted, EventAdminCard} {
			if _, ok := Lookup(policy.ModeSequential, step, ev); !ok {
				t.Errorf("no transition for (%s, %s)", step, ev)
			}
		}
	}
}
