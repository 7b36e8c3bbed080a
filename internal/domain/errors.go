package domain

import "errors"

// Sentinel errors for the core error taxonomy.
// Callers classify failures with errors.Is; layers add context with fmt.Errorf("...: %w", err).
var (
	// ErrNotFound indicates a batch, account, portfolio or holding that is
	// missing or not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates an operation attempted against a batch that
	// has already left the staged state.
	ErrInvalidState = errors.New("invalid batch state")

	// ErrValidation indicates unparseable or malformed input, such as a bad
	// date or amount in a staged row.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientShares indicates a sell for more shares than the
	// holding currently has (including selling with no holding at all).
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrConflict indicates a lost-update race on a holding. The operation
	// is safe to retry.
	ErrConflict = errors.New("concurrency conflict")
)
