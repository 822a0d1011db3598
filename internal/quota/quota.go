// Package quota meters free-tier calculations per visitor identity.
//
// Both limiters make the check and the increment a single atomic step, so
// two concurrent requests can never both consume the last free slot.
package quota

import (
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// QuotaExceededError reports that an identity has used up its free
// calculations. Handlers render it as a prompt to upgrade.
type QuotaExceededError struct {
	Identity    string
	Limit       int
	UpgradePath string
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("free limit of %d calculations reached", e.Limit)
}

// Memory is an in-process limiter keyed by identity. Counts last only for
// the lifetime of the process; a restart grants everyone a fresh allowance.
type Memory struct {
	limit int

	mu   sync.Mutex
	used map[string]int
}

func NewMemory(limit int) *Memory {
	return &Memory{limit: limit, used: make(map[string]int)}
}

// CheckAndConsume admits one calculation for the identity, or fails with a
// QuotaExceededError once the limit is reached. The test and the increment
// happen under one lock.
func (m *Memory) CheckAndConsume(identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.used[identity] >= m.limit {
		return &QuotaExceededError{Identity: identity, Limit: m.limit, UpgradePath: "/upgrade"}
	}
	m.used[identity]++
	return nil
}

// Reset clears the identity's count, re-admitting it up to the limit.
func (m *Memory) Reset(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.used, identity)
}

// Used reports how many calculations the identity has consumed.
func (m *Memory) Used(identity string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used[identity]
}

const timeLayout = "2006-01-02 15:04:05"

// Store meters calculations against the users table, so counts survive
// restarts and hold across server processes. The allowance comes from the
// settings row on every check, so an admin edit takes effect immediately.
// Identities with an active, unexpired subscription are not metered.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) freeLimit() (int, error) {
	var limit int
	err := s.db.QueryRow(`SELECT free_limit FROM settings WHERE id = 1`).Scan(&limit)
	if err != nil {
		return 0, fmt.Errorf("read free limit: %w", err)
	}
	return limit, nil
}

// Status is an identity's standing against the free allowance.
type Status struct {
	Used       int
	Limit      int
	Subscribed bool
	Expires    time.Time
}

// Remaining is the number of free calculations left, never negative.
func (st Status) Remaining() int {
	if left := st.Limit - st.Used; left > 0 {
		return left
	}
	return 0
}

func (s *Store) ensure(identity string) error {
	_, err := s.db.Exec(`
		INSERT INTO users (identity) VALUES (?)
		ON CONFLICT(identity) DO NOTHING
	`, identity)
	if err != nil {
		return fmt.Errorf("ensure user %s: %w", identity, err)
	}
	return nil
}

// CheckAndConsume admits one calculation for the identity, creating its row
// on first sight. Subscribers pass without being counted. For everyone else
// the increment is a single conditional UPDATE: the WHERE clause re-checks
// the limit, so the last free slot cannot be consumed twice.
func (s *Store) CheckAndConsume(identity string) error {
	if err := s.ensure(identity); err != nil {
		return err
	}

	var subscribed bool
	err := s.db.QueryRow(`
		SELECT subscription_active = 1
		   AND (subscription_expires IS NULL OR datetime(subscription_expires) > datetime('now'))
		FROM users
		WHERE identity = ?
	`, identity).Scan(&subscribed)
	if err != nil {
		return fmt.Errorf("read subscription for %s: %w", identity, err)
	}
	if subscribed {
		return nil
	}

	res, err := s.db.Exec(`
		UPDATE users
		SET calculations_used = calculations_used + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE identity = ?
		  AND calculations_used < (SELECT free_limit FROM settings WHERE id = 1)
	`, identity)
	if err != nil {
		return fmt.Errorf("consume calculation for %s: %w", identity, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume calculation for %s: %w", identity, err)
	}
	if affected == 0 {
		limit, err := s.freeLimit()
		if err != nil {
			return err
		}
		return &QuotaExceededError{Identity: identity, Limit: limit, UpgradePath: "/upgrade"}
	}
	return nil
}

// Activate records a paid subscription until the given time and restores
// the free allowance, so a lapsed subscriber falls back to a full set of
// free calculations.
func (s *Store) Activate(identity string, until time.Time) error {
	if err := s.ensure(identity); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		UPDATE users
		SET subscription_active = 1,
			subscription_expires = ?,
			calculations_used = 0,
			updated_at = CURRENT_TIMESTAMP
		WHERE identity = ?
	`, until.UTC().Format(timeLayout), identity)
	if err != nil {
		return fmt.Errorf("activate subscription for %s: %w", identity, err)
	}
	return nil
}

// Reset zeroes the identity's count without touching its subscription.
func (s *Store) Reset(identity string) error {
	if err := s.ensure(identity); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		UPDATE users
		SET calculations_used = 0, updated_at = CURRENT_TIMESTAMP
		WHERE identity = ?
	`, identity)
	if err != nil {
		return fmt.Errorf("reset quota for %s: %w", identity, err)
	}
	return nil
}

// Status reports the identity's usage, creating its row on first sight.
func (s *Store) Status(identity string) (Status, error) {
	if err := s.ensure(identity); err != nil {
		return Status{}, err
	}

	limit, err := s.freeLimit()
	if err != nil {
		return Status{}, err
	}

	st := Status{Limit: limit}
	var expires sql.NullString
	err = s.db.QueryRow(`
		SELECT calculations_used,
		       subscription_active = 1
		         AND (subscription_expires IS NULL OR datetime(subscription_expires) > datetime('now')),
		       subscription_expires
		FROM users
		WHERE identity = ?
	`, identity).Scan(&st.Used, &st.Subscribed, &expires)
	if err != nil {
		return Status{}, fmt.Errorf("read quota status for %s: %w", identity, err)
	}

	if expires.Valid {
		ts, err := time.Parse(timeLayout, expires.String)
		if err != nil {
			return Status{}, fmt.Errorf("parse subscription expiry %q: %w", expires.String, err)
		}
		st.Expires = ts
	}
	return st, nil
}
