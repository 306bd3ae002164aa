/*
Package game contains the core round and tap engine.

PURPOSE:
  This package holds the domain logic for timed tap rounds: deriving a
  round's temporal state from wall-clock time, admitting taps through a
  serializable transaction, and resolving a winner exactly once when a
  round finishes. Persistence is behind the Store interfaces in store.go;
  HTTP, credentials, and configuration live in their own packages.

KEY CONCEPTS IN THIS FILE (types.go):
  - Round: A time-boxed scoring session (cooldown -> active -> finished)
  - Tap: One immutable scoring event submitted by a user within a round
  - RoundStatus: Derived state; never stored, recomputed on every read
  - StatusAt: The pure function that derives RoundStatus from timestamps

DESIGN PRINCIPLES:
  1. Derived state: A round has no status column. Status is a pure function
     of (startDate, endDate, now), so it can never go stale and no
     background job is needed to flip rounds between states.
  2. Immutability: Tap rows are created once and never modified.
  3. Cached aggregate: Round.TotalScore is a denormalized sum of tap
     scores, updated in the same transaction as the tap that caused it.
     It is a cache. The tap rows remain the source of truth.
  4. Type safety: Distinct ID types prevent mixing rounds, taps and users.

SEE ALSO:
  - scoring.go: The per-tap scoring policy
  - ledger.go: The tap admission transaction
  - winner.go: Lazy, idempotent winner resolution
  - store.go: Persistence contracts
*/
package game

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RoundID string
type TapID string
type UserID string

// NewRoundID returns a fresh random round identifier.
func NewRoundID() RoundID { return RoundID(uuid.NewString()) }

// NewTapID returns a fresh random tap identifier.
func NewTapID() TapID { return TapID(uuid.NewString()) }

// =============================================================================
// ROUND STATUS - Pure function of time, never persisted
// =============================================================================

type RoundStatus string

const (
	StatusCooldown RoundStatus = "COOLDOWN"
	StatusActive   RoundStatus = "ACTIVE"
	StatusFinished RoundStatus = "FINISHED"
)

// StatusAt derives the status of a round from its active window and the
// current time. Boundary semantics: startDate is inclusive of ACTIVE,
// endDate is exclusive of ACTIVE (a round is FINISHED at exactly endDate).
func StatusAt(startDate, endDate, now time.Time) RoundStatus {
	if now.Before(startDate) {
		return StatusCooldown
	}
	if now.Before(endDate) {
		return StatusActive
	}
	return StatusFinished
}

// =============================================================================
// ROUND - Time-boxed scoring session
// =============================================================================

// Round is a scoring session. TotalScore is a denormalized running sum of
// all tap scores in the round; WinnerID is nil until resolution and is
// written at most once.
type Round struct {
	ID         RoundID
	StartDate  time.Time
	EndDate    time.Time
	CreatedAt  time.Time
	TotalScore int64
	WinnerID   *UserID
}

// Status returns the round's derived status at the given time.
func (r Round) Status(now time.Time) RoundStatus {
	return StatusAt(r.StartDate, r.EndDate, now)
}

// =============================================================================
// TAP - One scoring event, immutable once created
// =============================================================================

// Tap records a single admitted tap. TapNumber is 1-based and strictly
// contiguous per (user, round); CreatedAt is the server-side admission time
// and is the winner tie-break key.
type Tap struct {
	ID        TapID
	RoundID   RoundID
	UserID    UserID
	Score     int64
	TapNumber int
	CreatedAt time.Time
}

// =============================================================================
// VIEWS - Returned to callers of the engine
// =============================================================================

// TapResult is what a successful tap admission returns to the caller.
type TapResult struct {
	TapID     TapID
	Score     int64
	MyScore   int64
	TapNumber int
}

// RoundSummary annotates a round with its derived status for list views.
type RoundSummary struct {
	Round
	Status RoundStatus
}

// RoundDetail is the single-round view. MyScore is the caller's own running
// total, always computed fresh; WinnerScore is the resolved winner's total,
// 0 when the round has no winner.
type RoundDetail struct {
	Round
	Status      RoundStatus
	MyScore     int64
	WinnerScore int64
}
