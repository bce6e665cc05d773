package ledger

import "errors"

var (
	// ErrNoActiveEntry is returned when a correction targets a source
	// entity whose lineage has no active entry (either nothing was ever
	// recorded, or every entry has been superseded).
	ErrNoActiveEntry = errors.New("ledger: no active entry for source entity")

	// ErrLockTimeout is returned when the caller's deadline expired while
	// waiting to enter an account's critical section. No state has been
	// mutated; the caller may retry.
	ErrLockTimeout = errors.New("ledger: timed out waiting for account section")
)
