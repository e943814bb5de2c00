package domain

import "time"

// MaxRetryAttempts is the per-fingerprint attempt ceiling. A record at the
// ceiling is permanently exhausted and never selected again.
const MaxRetryAttempts = 3

// RetryRecord is the persisted retry state for one log entry fingerprint.
// It is created on the first attempt, not on the first sighting of a
// failure, and is never deleted.
type RetryRecord struct {
	Fingerprint   string
	AttemptCount  int
	LastAttemptAt *time.Time
	NextAttemptAt *time.Time
	LastSucceeded bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Exhausted reports whether no further attempts may be made.
func (r RetryRecord) Exhausted() bool {
	return r.AttemptCount >= MaxRetryAttempts
}

// DueAt reports whether the record is eligible for an attempt at the given
// instant. A zero record (no attempts yet) is immediately eligible.
func (r RetryRecord) DueAt(now time.Time) bool {
	if r.Exhausted() {
		return false
	}
	if r.NextAttemptAt == nil {
		return r.AttemptCount == 0
	}
	return !r.NextAttemptAt.After(now)
}
