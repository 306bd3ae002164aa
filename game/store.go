/*
store.go - Persistence contracts for rounds and taps

PURPOSE:
  Defines the interface between the engine and the database. The engine's
  correctness is delegated to the store's transaction guarantees: WithTx
  must run the callback under serializable isolation, and
  IncrementRoundScore must be an atomic read-modify-write.

TAP IMMUTABILITY:
  Taps are append-only. There is no UpdateTap or DeleteTap; a tap row is
  owned exclusively by the admission transaction that created it.

WINNER WRITE-ONCE:
  SetWinnerIfUnset is a conditional update ("set winner only if still
  null"). Concurrent resolvers racing on a finished round all compute the
  same answer; only the first write applies and the rest are no-ops.

IMPLEMENTATIONS:
  - store/sqlite: Production store. SQLite transactions are serializable,
    which satisfies the isolation contract directly.

SEE ALSO:
  - ledger.go: Uses WithTx for tap admission
  - winner.go: Uses WinnerAggregates and SetWinnerIfUnset
*/
package game

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Round and tap persistence
// =============================================================================

// Store is the persistence surface the engine needs. Implementations return
// (nil, nil) from GetRound when the round does not exist.
type Store interface {
	// InsertRound persists a newly scheduled round.
	InsertRound(ctx context.Context, round Round) error

	// GetRound returns a round by identity, or nil if absent.
	GetRound(ctx context.Context, id RoundID) (*Round, error)

	// ListRounds returns all rounds, newest first.
	ListRounds(ctx context.Context) ([]Round, error)

	// LastTapNumber returns the highest tap number the user holds in the
	// round, 0 when they have not tapped yet.
	LastTapNumber(ctx context.Context, roundID RoundID, userID UserID) (int, error)

	// InsertTap appends a tap row. Taps are immutable; this is the only
	// tap write operation.
	InsertTap(ctx context.Context, tap Tap) error

	// IncrementRoundScore atomically adds delta to the round's total score.
	IncrementRoundScore(ctx context.Context, roundID RoundID, delta int64) error

	// UserRoundScore returns the sum of the user's tap scores in the round.
	// Inside a transaction this reflects writes made earlier in the same
	// transaction (read-after-write).
	UserRoundScore(ctx context.Context, roundID RoundID, userID UserID) (int64, error)

	// WinnerAggregates returns, per user with taps in the round, their
	// score sum and earliest tap time. Order is unspecified; the resolver
	// ranks candidates itself.
	WinnerAggregates(ctx context.Context, roundID RoundID) ([]UserAggregate, error)

	// SetWinnerIfUnset writes the winner only when winner_id is still null.
	// Returns whether the write applied.
	SetWinnerIfUnset(ctx context.Context, roundID RoundID, winnerID UserID) (bool, error)
}

// TxStore extends Store with a serializable transaction runner.
type TxStore interface {
	Store

	// WithTx executes fn within a serializable transaction. If fn returns
	// an error the transaction is rolled back and nothing fn did is
	// visible; otherwise it is committed. A serialization conflict
	// surfaces as ErrTxConflict.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// AGGREGATES
// =============================================================================

// UserAggregate is one winner candidate: a user's total score in a round
// and the time of their first tap (the tie-break key).
type UserAggregate struct {
	UserID     UserID
	TotalScore int64
	FirstTapAt time.Time
}
