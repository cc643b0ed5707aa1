package policy

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Mode is the authentication policy in force.
type Mode string

const (
	// ModeSequential requires face, fingerprint, card and passcode in order.
	ModeSequential Mode = "sequential"

	// ModeAny unlocks on the first factor that verifies.
	ModeAny Mode = "any"
)

// ParseMode converts a config or API string into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown mode %q", ErrValidation, s)
	}
	return m, nil
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeSequential || m == ModeAny
}

func (m Mode) String() string { return string(m) }

// CardIDLen is the length of a proximity card UID in bytes.
const CardIDLen = 4

// CardID is a proximity card UID.
type CardID [CardIDLen]byte

// ParseCardID parses a hex UID. Colons, dashes and spaces between bytes are
// ignored, so "DE:AD:BE:EF", "de-ad-be-ef" and "DEADBEEF" are equal.
func ParseCardID(s string) (CardID, error) {
	var id CardID
	clean := strings.NewReplacer(":", "", "-", "", " ", "").Replace(strings.TrimSpace(s))
	if len(clean) != hex.EncodedLen(CardIDLen) {
		return id, fmt.Errorf("%w: card id %q must be %d hex bytes", ErrValidation, s, CardIDLen)
	}
	if _, err := hex.Decode(id[:], []byte(clean)); err != nil {
		return id, fmt.Errorf("%w: card id %q: %w", ErrValidation, s, err)
	}
	return id, nil
}

// CardIDFromBytes converts a raw reader UID. Readers that append a check
// byte deliver CardIDLen+1 bytes; the trailing byte is dropped.
func CardIDFromBytes(b []byte) (CardID, error) {
	var id CardID
	switch len(b) {
	case CardIDLen, CardIDLen + 1:
		copy(id[:], b[:CardIDLen])
		return id, nil
	default:
		return id, fmt.Errorf("%w: card uid has %d bytes, want %d", ErrValidation, len(b), CardIDLen)
	}
}

// String returns the upper-case hex form, e.g. "DEADBEEF".
func (c CardID) String() string {
	return strings.ToUpper(hex.EncodeToString(c[:]))
}

// Redacted returns the form safe for logs: only the last two bytes.
func (c CardID) Redacted() string {
	s := c.String()
	return "****" + s[len(s)-4:]
}

// MarshalText implements encoding.TextMarshaler.
func (c CardID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CardID) UnmarshalText(b []byte) error {
	id, err := ParseCardID(string(b))
	if err != nil {
		return err
	}
	*c = id
	return nil
}

// ModeChange is one entry of the mode history.
type ModeChange struct {
	At   time.Time `json:"at"`
	From Mode      `json:"from"`
	To   Mode      `json:"to"`
}

// State is the persisted policy.
type State struct {
	Mode              Mode
	Passcode          string
	Cards             []CardID
	Fingerprints      []int
	AdminPasscodeHash string
	// History is ordered oldest first.
	History []ModeChange
}

func (s *State) clone() State {
	return State{
		Mode:              s.Mode,
		Passcode:          s.Passcode,
		Cards:             slices.Clone(s.Cards),
		Fingerprints:      slices.Clone(s.Fingerprints),
		AdminPasscodeHash: s.AdminPasscodeHash,
		History:           slices.Clone(s.History),
	}
}

// Snapshot is an immutable copy of the policy taken at session start.
type Snapshot struct {
	mode         Mode
	passcode     string
	cards        map[CardID]struct{}
	fingerprints map[int]struct{}
}

// NewSnapshot builds a Snapshot from explicit values.
func NewSnapshot(mode Mode, passcode string, cards []CardID, fingerprints []int) Snapshot {
	s := Snapshot{
		mode:         mode,
		passcode:     passcode,
		cards:        make(map[CardID]struct{}, len(cards)),
		fingerprints: make(map[int]struct{}, len(fingerprints)),
	}
	for _, c := range cards {
		s.cards[c] = struct{}{}
	}
	for _, f := range fingerprints {
		s.fingerprints[f] = struct{}{}
	}
	return s
}

// Mode returns the mode in force when the snapshot was taken.
func (s Snapshot) Mode() Mode { return s.mode }

// CheckPasscode compares code against the door passcode in constant time.
// An unset passcode never matches.
func (s Snapshot) CheckPasscode(code string) bool {
	if s.passcode == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(s.passcode)) == 1
}

// HasCard reports whether id is enrolled.
func (s Snapshot) HasCard(id CardID) bool {
	_, ok := s.cards[id]
	return ok
}

// HasFingerprint reports whether a template id is registered.
func (s Snapshot) HasFingerprint(id int) bool {
	_, ok := s.fingerprints[id]
	return ok
}

// CardCount returns the number of enrolled cards.
func (s Snapshot) CardCount() int { return len(s.cards) }

// FingerprintCount returns the number of registered fingerprints.
func (s Snapshot) FingerprintCount() int { return len(s.fingerprints) }
