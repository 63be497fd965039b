package domain

import "errors"

// Sentinel errors shared across components. Only an unreachable tool server
// (after the full retry budget) or a broken session store are ever fatal to
// a request; everything else degrades into transcript messages.
var (
	// ErrServerUnreachable means one tool server could not be reached after
	// exhausting connection retries. Scoped to that server only.
	ErrServerUnreachable = errors.New("tool server unreachable")

	// ErrOracleUnavailable means the reasoning service failed even after the
	// adapter's own retry. The current round terminates with the fallback
	// answer.
	ErrOracleUnavailable = errors.New("reasoning service unavailable")

	// ErrEmptyQuery rejects blank user input before it reaches the loop.
	ErrEmptyQuery = errors.New("query cannot be empty")
)
