package policy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/doorguard/internal/infrastructure/config"
)

// Logger is the logging surface the store needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Store is the process-wide policy singleton.
//
// Thread Safety:
//   - Reads take a shared lock and return copies.
//   - Writes are serialised, persisted first, then applied to the cache.
type Store struct {
	repo         Repository
	historyLimit int
	logger       Logger
	now          func() time.Time

	mu    sync.RWMutex
	state State
}

// Open loads the policy from repo, seeding it from cfg on first boot.
//
// An admin passcode in cfg is hashed before it is stored. If the store was
// seeded without one and cfg now provides it, it is set.
//
// Parameters:
//   - ctx: Context for repository calls
//   - repo: Persistence backend
//   - cfg: The policy section of config.yaml
//   - logger: Optional logger (nil for none)
//
// Returns:
//   - *Store: Loaded store
//   - error: If the seed values are invalid or the repository fails
func Open(ctx context.Context, repo Repository, cfg config.PolicyConfig, logger Logger) (*Store, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	limit := cfg.HistoryLimit
	if limit < 1 {
		limit = 50
	}

	s := &Store{repo: repo, historyLimit: limit, logger: logger, now: time.Now}

	state, err := repo.Load(ctx)
	if errors.Is(err, ErrNotSeeded) {
		seed, serr := seedState(cfg)
		if serr != nil {
			return nil, fmt.Errorf("seeding policy: %w", serr)
		}
		if serr = repo.Seed(ctx, seed); serr != nil {
			return nil, fmt.Errorf("seeding policy: %w", serr)
		}
		logger.Info("policy seeded from config",
			"mode", seed.Mode, "cards", len(seed.Cards), "fingerprints", len(seed.Fingerprints))
		state, err = repo.Load(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}
	s.state = *state

	if s.state.AdminPasscodeHash == "" && cfg.AdminPasscode != "" {
		if err := s.SetAdminPasscode(ctx, cfg.AdminPasscode); err != nil {
			return nil, err
		}
	}
	if s.state.Passcode == "" {
		logger.Warn("no door passcode configured, passcode factor will always fail")
	}
	if s.state.AdminPasscodeHash == "" {
		logger.Warn("no admin passcode configured, admin override cannot succeed")
	}

	return s, nil
}

func seedState(cfg config.PolicyConfig) (*State, error) {
	var errs []error

	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		errs = append(errs, err)
	}

	st := &State{Mode: mode}
	if cfg.Passcode != "" {
		if err := ValidatePasscode(cfg.Passcode); err != nil {
			errs = append(errs, err)
		}
		st.Passcode = cfg.Passcode
	}
	for _, raw := range cfg.Cards {
		id, err := ParseCardID(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !slices.Contains(st.Cards, id) {
			st.Cards = append(st.Cards, id)
		}
	}
	for _, f := range cfg.Fingerprints {
		if err := ValidateFingerprintID(f); err != nil {
			errs = append(errs, err)
			continue
		}
		if !slices.Contains(st.Fingerprints, f) {
			st.Fingerprints = append(st.Fingerprints, f)
		}
	}
	if cfg.AdminPasscode != "" {
		if err := ValidateAdminPasscode(cfg.AdminPasscode); err != nil {
			errs = append(errs, err)
		} else if st.AdminPasscodeHash, err = HashPasscode(cfg.AdminPasscode); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return st, nil
}

// Snapshot returns an immutable copy for a new session.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return NewSnapshot(s.state.Mode, s.state.Passcode, s.state.Cards, s.state.Fingerprints)
}

// Mode returns the current mode.
func (s *Store) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Mode
}

// Cards returns the enrolled cards sorted by UID.
func (s *Store) Cards() []CardID {
	s.mu.RLock()
	cards := slices.Clone(s.state.Cards)
	s.mu.RUnlock()
	slices.SortFunc(cards, func(a, b CardID) int { return bytes.Compare(a[:], b[:]) })
	return cards
}

// Fingerprints returns the registered template ids in ascending order.
func (s *Store) Fingerprints() []int {
	s.mu.RLock()
	ids := slices.Clone(s.state.Fingerprints)
	s.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// HasPasscode reports whether a door passcode is configured.
func (s *Store) HasPasscode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Passcode != ""
}

// History returns the mode changes, newest first.
func (s *Store) History() []ModeChange {
	s.mu.RLock()
	h := slices.Clone(s.state.History)
	s.mu.RUnlock()
	slices.Reverse(h)
	return h
}

// SetMode switches the authentication mode. It reports false without
// touching history when m is already in force.
func (s *Store) SetMode(ctx context.Context, m Mode) (bool, error) {
	if !m.Valid() {
		return false, fmt.Errorf("%w: unknown mode %q", ErrValidation, m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Mode == m {
		return false, nil
	}
	change := ModeChange{At: s.now().UTC(), From: s.state.Mode, To: m}
	if err := s.repo.SetMode(ctx, change, s.historyLimit); err != nil {
		return false, fmt.Errorf("persisting mode: %w", err)
	}

	s.state.Mode = m
	s.state.History = append(s.state.History, change)
	if over := len(s.state.History) - s.historyLimit; over > 0 {
		s.state.History = slices.Delete(s.state.History, 0, over)
	}
	s.logger.Info("mode changed", "from", change.From, "to", change.To)
	return true, nil
}

// SetPasscode replaces the door passcode.
func (s *Store) SetPasscode(ctx context.Context, code string) error {
	if err := ValidatePasscode(code); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.SetPasscode(ctx, code); err != nil {
		return fmt.Errorf("persisting passcode: %w", err)
	}
	s.state.Passcode = code
	s.logger.Info("door passcode changed")
	return nil
}

// SetAdminPasscode hashes and stores a new admin passcode.
func (s *Store) SetAdminPasscode(ctx context.Context, code string) error {
	if err := ValidateAdminPasscode(code); err != nil {
		return err
	}
	hash, err := HashPasscode(code)
	if err != nil {
		return fmt.Errorf("hashing admin passcode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.SetAdminPasscodeHash(ctx, hash); err != nil {
		return fmt.Errorf("persisting admin passcode: %w", err)
	}
	s.state.AdminPasscodeHash = hash
	s.logger.Info("admin passcode changed")
	return nil
}

// VerifyAdminPasscode checks code against the stored hash.
func (s *Store) VerifyAdminPasscode(code string) (bool, error) {
	s.mu.RLock()
	hash := s.state.AdminPasscodeHash
	s.mu.RUnlock()

	if hash == "" {
		return false, ErrAdminPasscodeNotSet
	}
	return VerifyPasscode(code, hash)
}

// AddCard enrols a card.
func (s *Store) AddCard(ctx context.Context, id CardID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.state.Cards, id) {
		return ErrAlreadyEnrolled
	}
	if err := s.repo.AddCard(ctx, id); err != nil {
		return fmt.Errorf("persisting card: %w", err)
	}
	s.state.Cards = append(s.state.Cards, id)
	s.logger.Info("card enrolled", "card", id.Redacted())
	return nil
}

// RemoveCard revokes a card.
func (s *Store) RemoveCard(ctx context.Context, id CardID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.Index(s.state.Cards, id)
	if i < 0 {
		return ErrNotFound
	}
	if err := s.repo.RemoveCard(ctx, id); err != nil {
		return fmt.Errorf("persisting card removal: %w", err)
	}
	s.state.Cards = slices.Delete(s.state.Cards, i, i+1)
	s.logger.Info("card revoked", "card", id.Redacted())
	return nil
}

// AddFingerprint registers a template id.
func (s *Store) AddFingerprint(ctx context.Context, id int) error {
	if err := ValidateFingerprintID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.state.Fingerprints, id) {
		return ErrAlreadyEnrolled
	}
	if err := s.repo.AddFingerprint(ctx, id); err != nil {
		return fmt.Errorf("persisting fingerprint: %w", err)
	}
	s.state.Fingerprints = append(s.state.Fingerprints, id)
	s.logger.Info("fingerprint registered", "fingerprint_id", id)
	return nil
}

// RemoveFingerprint unregisters a template id.
func (s *Store) RemoveFingerprint(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.Index(s.state.Fingerprints, id)
	if i < 0 {
		return ErrNotFound
	}
	if err := s.repo.RemoveFingerprint(ctx, id); err != nil {
		return fmt.Errorf("persisting fingerprint removal: %w", err)
	}
	s.state.Fingerprints = slices.Delete(s.state.Fingerprints, i, i+1)
	s.logger.Info("fingerprint removed", "fingerprint_id", id)
	return nil
}
