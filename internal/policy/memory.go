package policy

import (
	"context"
	"slices"
	"sync"
)

// MemoryRepository implements Repository in process. Nothing survives a
// restart; it backs tests and the --memory bench mode.
type MemoryRepository struct {
	mu     sync.Mutex
	state  *State
	failOn error
}

// NewMemoryRepository returns an unseeded in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// FailWrites makes every subsequent write return err. Pass nil to clear.
func (m *MemoryRepository) FailWrites(err error) {
	m.mu.Lock()
	m.failOn = err
	m.mu.Unlock()
}

// Load returns a copy of the stored policy.
func (m *MemoryRepository) Load(_ context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, ErrNotSeeded
	}
	s := m.state.clone()
	return &s, nil
}

// Seed stores the initial policy.
func (m *MemoryRepository) Seed(_ context.Context, s *State) error {
	return m.write(func(_ *State) error {
		seeded := s.clone()
		seeded.History = nil
		m.state = &seeded
		return nil
	}, false)
}

// SetMode records a mode change.
func (m *MemoryRepository) SetMode(_ context.Context, change ModeChange, historyLimit int) error {
	return m.write(func(s *State) error {
		s.Mode = change.To
		s.History = append(s.History, change)
		if over := len(s.History) - historyLimit; over > 0 {
			s.History = slices.Delete(s.History, 0, over)
		}
		return nil
	}, true)
}

// SetPasscode replaces the door passcode.
func (m *MemoryRepository) SetPasscode(_ context.Context, code string) error {
	return m.write(func(s *State) error {
		s.Passcode = code
		return nil
	}, true)
}

// SetAdminPasscodeHash replaces the admin passcode hash.
func (m *MemoryRepository) SetAdminPasscodeHash(_ context.Context, hash string) error {
	return m.write(func(s *State) error {
		s.AdminPasscodeHash = hash
		return nil
	}, true)
}

// AddCard enrols a card.
func (m *MemoryRepository) AddCard(_ context.Context, id CardID) error {
	return m.write(func(s *State) error {
		if slices.Contains(s.Cards, id) {
			return ErrAlreadyEnrolled
		}
		s.Cards = append(s.Cards, id)
		return nil
	}, true)
}

// RemoveCard revokes a card.
func (m *MemoryRepository) RemoveCard(_ context.Context, id CardID) error {
	return m.write(func(s *State) error {
		i := slices.Index(s.Cards, id)
		if i < 0 {
			return ErrNotFound
		}
		s.Cards = slices.Delete(s.Cards, i, i+1)
		return nil
	}, true)
}

// AddFingerprint registers a fingerprint template id.
func (m *MemoryRepository) AddFingerprint(_ context.Context, id int) error {
	return m.write(func(s *State) error {
		if slices.Contains(s.Fingerprints, id) {
			return ErrAlreadyEnrolled
		}
		s.Fingerprints = append(s.Fingerprints, id)
		return nil
	}, true)
}

// RemoveFingerprint unregisters a fingerprint template id.
func (m *MemoryRepository) RemoveFingerprint(_ context.Context, id int) error {
	return m.write(func(s *State) error {
		i := slices.Index(s.Fingerprints, id)
		if i < 0 {
			return ErrNotFound
		}
		s.Fingerprints = slices.Delete(s.Fingerprints, i, i+1)
		return nil
	}, true)
}

// write applies fn to a copy and swaps it in only on success.
func (m *MemoryRepository) write(fn func(s *State) error, needSeed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failOn != nil {
		return m.failOn
	}
	if needSeed && m.state == nil {
		return ErrNotSeeded
	}

	var next State
	if m.state != nil {
		next = m.state.clone()
	}
	if err := fn(&next); err != nil {
		return err
	}
	if needSeed {
		m.state = &next
	}
	return nil
}
