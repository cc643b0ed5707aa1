package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository persists the policy. Every method is atomic: it either fully
// applies or leaves the stored policy unchanged.
type Repository interface {
	// Load returns the stored policy or ErrNotSeeded.
	Load(ctx context.Context) (*State, error)
	// Seed writes the initial policy. History in s is ignored.
	Seed(ctx context.Context, s *State) error
	// SetMode updates the mode and appends change to the history, trimming
	// it to the newest historyLimit entries.
	SetMode(ctx context.Context, change ModeChange, historyLimit int) error
	SetPasscode(ctx context.Context, code string) error
	SetAdminPasscodeHash(ctx context.Context, hash string) error
	AddCard(ctx context.Context, id CardID) error
	RemoveCard(ctx context.Context, id CardID) error
	AddFingerprint(ctx context.Context, id int) error
	RemoveFingerprint(ctx context.Context, id int) error
}

// SQLiteRepository implements Repository on the Doorguard database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Load reads the full policy.
func (r *SQLiteRepository) Load(ctx context.Context) (*State, error) {
	var s State
	var mode string
	err := r.db.QueryRowContext(ctx,
		"SELECT passcode, mode, admin_passcode_hash FROM policy WHERE id = 1",
	).Scan(&s.Passcode, &mode, &s.AdminPasscodeHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotSeeded
	}
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}
	s.Mode = Mode(mode)

	if s.Cards, err = r.loadCards(ctx); err != nil {
		return nil, err
	}
	if s.Fingerprints, err = r.loadFingerprints(ctx); err != nil {
		return nil, err
	}
	if s.History, err = r.loadHistory(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteRepository) loadCards(ctx context.Context) ([]CardID, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT card_id FROM policy_cards ORDER BY card_id")
	if err != nil {
		return nil, fmt.Errorf("loading cards: %w", err)
	}
	defer rows.Close()

	var cards []CardID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning card: %w", err)
		}
		id, err := ParseCardID(raw)
		if err != nil {
			return nil, fmt.Errorf("stored card %q: %w", raw, err)
		}
		cards = append(cards, id)
	}
	return cards, rows.Err()
}

func (r *SQLiteRepository) loadFingerprints(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT fingerprint_id FROM policy_fingerprints ORDER BY fingerprint_id")
	if err != nil {
		return nil, fmt.Errorf("loading fingerprints: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning fingerprint: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) loadHistory(ctx context.Context) ([]ModeChange, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT changed_at, from_mode, to_mode FROM mode_history ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("loading mode history: %w", err)
	}
	defer rows.Close()

	var history []ModeChange
	for rows.Next() {
		var at, from, to string
		if err := rows.Scan(&at, &from, &to); err != nil {
			return nil, fmt.Errorf("scanning mode history: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parsing mode history timestamp %q: %w", at, err)
		}
		history = append(history, ModeChange{At: t, From: Mode(from), To: Mode(to)})
	}
	return history, rows.Err()
}

// Seed writes the initial policy in one transaction.
func (r *SQLiteRepository) Seed(ctx context.Context, s *State) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		ts := now()
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO policy (id, passcode, mode, admin_passcode_hash, updated_at) VALUES (1, ?, ?, ?, ?)",
			s.Passcode, string(s.Mode), s.AdminPasscodeHash, ts,
		); err != nil {
			return fmt.Errorf("seeding policy: %w", err)
		}
		for _, c := range s.Cards {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO policy_cards (card_id, created_at) VALUES (?, ?)", c.String(), ts,
			); err != nil {
				return fmt.Errorf("seeding card: %w", err)
			}
		}
		for _, f := range s.Fingerprints {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO policy_fingerprints (fingerprint_id, created_at) VALUES (?, ?)", f, ts,
			); err != nil {
				return fmt.Errorf("seeding fingerprint: %w", err)
			}
		}
		return nil
	})
}

// SetMode updates the mode and history in one transaction.
func (r *SQLiteRepository) SetMode(ctx context.Context, change ModeChange, historyLimit int) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := updatePolicy(ctx, tx, "mode", string(change.To)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO mode_history (changed_at, from_mode, to_mode) VALUES (?, ?, ?)",
			change.At.UTC().Format(time.RFC3339Nano), string(change.From), string(change.To),
		); err != nil {
			return fmt.Errorf("recording mode change: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM mode_history WHERE id NOT IN (SELECT id FROM mode_history ORDER BY id DESC LIMIT ?)",
			historyLimit,
		); err != nil {
			return fmt.Errorf("trimming mode history: %w", err)
		}
		return nil
	})
}

// SetPasscode replaces the door passcode.
func (r *SQLiteRepository) SetPasscode(ctx context.Context, code string) error {
	return updatePolicy(ctx, r.db, "passcode", code)
}

// SetAdminPasscodeHash replaces the admin passcode hash.
func (r *SQLiteRepository) SetAdminPasscodeHash(ctx context.Context, hash string) error {
	return updatePolicy(ctx, r.db, "admin_passcode_hash", hash)
}

// AddCard enrols a card.
func (r *SQLiteRepository) AddCard(ctx context.Context, id CardID) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO policy_cards (card_id, created_at) VALUES (?, ?)", id.String(), now())
	if isUniqueViolation(err) {
		return ErrAlreadyEnrolled
	}
	if err != nil {
		return fmt.Errorf("adding card: %w", err)
	}
	return nil
}

// RemoveCard revokes a card.
func (r *SQLiteRepository) RemoveCard(ctx context.Context, id CardID) error {
	return deleteOne(ctx, r.db, "DELETE FROM policy_cards WHERE card_id = ?", id.String())
}

// AddFingerprint registers a fingerprint template id.
func (r *SQLiteRepository) AddFingerprint(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO policy_fingerprints (fingerprint_id, created_at) VALUES (?, ?)", id, now())
	if isUniqueViolation(err) {
		return ErrAlreadyEnrolled
	}
	if err != nil {
		return fmt.Errorf("adding fingerprint: %w", err)
	}
	return nil
}

// RemoveFingerprint unregisters a fingerprint template id.
func (r *SQLiteRepository) RemoveFingerprint(ctx context.Context, id int) error {
	return deleteOne(ctx, r.db, "DELETE FROM policy_fingerprints WHERE fingerprint_id = ?", id)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// updatePolicy sets one column of the policy row. column is always a
// constant from this file.
func updatePolicy(ctx context.Context, db execer, column, value string) error {
	res, err := db.ExecContext(ctx,
		"UPDATE policy SET "+column+" = ?, updated_at = ? WHERE id = 1", //nolint:gosec // column is a package constant
		value, now(),
	)
	if err != nil {
		return fmt.Errorf("updating policy %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports rows affected
		return ErrNotSeeded
	}
	return nil
}

func deleteOne(ctx context.Context, db execer, query string, arg any) error {
	res, err := db.ExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("deleting enrolment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports rows affected
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
