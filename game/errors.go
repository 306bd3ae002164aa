/*
errors.go - Centralized error types for the game engine

PURPOSE:
  All error kinds the engine surfaces, in one place. Callers classify
  errors with errors.Is / errors.As and the helpers at the bottom; the
  HTTP layer maps these classes to status codes.

ERROR KINDS:
  NotFound          Round (or user) identity does not exist. Never retried.
  InvalidState      Round not yet ACTIVE, or already FINISHED, at tap time.
                    Retrying cannot help: the outcome is clock-driven.
  Forbidden         Non-admin attempting round creation.
  TransientConflict Serialization conflict during tap admission. Retried
                    internally with bounded attempts before surfacing.

SEE ALSO:
  - ledger.go: Retry loop around TransientConflict
  - api/handlers.go: HTTP status mapping
*/
package game

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRoundNotFound is returned when a round identity does not exist.
	ErrRoundNotFound = errors.New("round not found")

	// ErrRoundNotStarted is returned when tapping a round still in cooldown.
	ErrRoundNotStarted = errors.New("round not started")

	// ErrRoundFinished is returned when tapping a round past its end date.
	ErrRoundFinished = errors.New("round already ended")

	// ErrForbidden is returned when a non-admin attempts round creation.
	ErrForbidden = errors.New("forbidden")

	// ErrTxConflict is returned when the storage layer reports a
	// serialization conflict. Expected under load; retried before surfacing.
	ErrTxConflict = errors.New("transaction conflict")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RoundStateError reports a tap rejected because the round was not ACTIVE.
// It unwraps to ErrRoundNotStarted or ErrRoundFinished.
type RoundStateError struct {
	RoundID RoundID
	Status  RoundStatus
}

func (e *RoundStateError) Error() string {
	return fmt.Sprintf("round %s is %s: %v", e.RoundID, e.Status, e.Unwrap())
}

func (e *RoundStateError) Unwrap() error {
	if e.Status == StatusCooldown {
		return ErrRoundNotStarted
	}
	return ErrRoundFinished
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTxConflict)
}

// IsClientError returns true if the error is a user-facing rejection.
func IsClientError(err error) bool {
	return errors.Is(err, ErrRoundNotStarted) ||
		errors.Is(err, ErrRoundFinished) ||
		errors.Is(err, ErrForbidden)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRoundNotFound)
}
