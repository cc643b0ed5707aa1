package access

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/doorguard/internal/policy"
)

// Session is the single live authentication attempt.
//
// Counters are written only by the worker that owns them and are mirrored
// here for Status. The transition to StepCompleted together with its
// SuccessRecords is the one exclusive operation: Commit and CommitAll
// check the generation and the step under the session lock.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Session struct {
	now func() time.Time

	mu          sync.Mutex
	generation  uint64
	mode        policy.Mode
	step        Step
	attempts    map[Factor]int
	faceMatches int
	successes   []SuccessRecord
	detail      string
	startedAt   time.Time
}

// NewSession returns an idle session at generation zero.
func NewSession(now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{now: now, attempts: make(map[Factor]int)}
}

// Reset starts a fresh session in mode and returns its generation.
// Counters and records from the previous session are discarded.
func (s *Session) Reset(mode policy.Mode) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.mode = mode
	s.step = firstStep(mode)
	s.attempts = make(map[Factor]int)
	s.faceMatches = 0
	s.successes = nil
	s.detail = ""
	s.startedAt = s.now()
	return s.generation
}

// Generation returns the current generation.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Step returns the current step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Mode returns the mode of the current session.
func (s *Session) Mode() policy.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Licensed reports whether a worker started at gen may keep polling.
func (s *Session) Licensed(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.licensedLocked(gen)
}

func (s *Session) licensedLocked(gen uint64) bool {
	if gen != s.generation {
		return false
	}
	switch s.step {
	case StepCompleted, StepAdmin, "":
		return false
	default:
		return true
	}
}

// Advance moves a licensed sequential session to step. It returns false
// for a stale generation.
func (s *Session) Advance(gen uint64, step Step) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.licensedLocked(gen) {
		return false
	}
	s.step = step
	s.faceMatches = 0
	return true
}

// SetProgress mirrors a worker's counters.
func (s *Session) SetProgress(gen uint64, f Factor, attempts, faceMatches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	s.attempts[f] = attempts
	if f == FactorFace {
		s.faceMatches = faceMatches
	}
}

// SetDetail sets the human-readable status line.
func (s *Session) SetDetail(gen uint64, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation {
		s.detail = detail
	}
}

// Commit records the single winning factor of an Any-mode session.
// Only the first caller for a licensed generation succeeds; every later
// or stale caller gets false and must discard its result.
func (s *Session) Commit(gen uint64, rec SuccessRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.licensedLocked(gen) || s.mode != policy.ModeAny {
		return false
	}
	s.step = StepCompleted
	s.successes = []SuccessRecord{rec}
	return true
}

// CommitAll records the four verified factors of a sequential session.
// It panics if recs is not exactly face, fingerprint, rfid, passcode.
func (s *Session) CommitAll(gen uint64, recs []SuccessRecord) bool {
	if len(recs) != len(sequentialOrder) {
		panic(fmt.Sprintf("access: sequential commit with %d records", len(recs)))
	}
	for i, r := range recs {
		if r.Method != factorOf(sequentialOrder[i]) {
			panic(fmt.Sprintf("access: sequential commit out of order at %d: %s", i, r.Method))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.licensedLocked(gen) || s.mode != policy.ModeSequential || s.step != StepPasscode {
		return false
	}
	s.step = StepCompleted
	s.successes = slices.Clone(recs)
	return true
}

// EnterAdmin hands the session at gen to the admin override and returns
// the generation the override owns. Workers of gen lose their licence.
func (s *Session) EnterAdmin(gen uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return 0, ErrStaleGeneration
	}
	switch s.step {
	case StepCompleted:
		return 0, ErrDoorCycleActive
	case StepAdmin:
		return 0, ErrAdminActive
	}
	s.generation++
	s.step = StepAdmin
	s.detail = "admin override"
	return s.generation, nil
}

// Successes returns a copy of the committed records.
func (s *Session) Successes() []SuccessRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.successes)
}

// Status returns the session part of Status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	succ := slices.Clone(s.successes)
	if succ == nil {
		succ = []SuccessRecord{}
	}
	return Status{
		Generation:  s.generation,
		Mode:        s.mode,
		Step:        s.step,
		Attempts:    maps.Clone(s.attempts),
		FaceMatches: s.faceMatches,
		Successes:   succ,
		Detail:      s.detail,
		StartedAt:   s.startedAt,
	}
}
