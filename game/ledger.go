/*
ledger.go - The tap admission transaction

PURPOSE:
  Admits one tap: validates the round is ACTIVE, assigns the caller's next
  per-round sequence number, scores the tap, appends the tap row, and bumps
  the round's running total. All of it happens inside a single serializable
  transaction so that the sequence invariant and the total-score cache
  cannot be corrupted by concurrent callers.

WHY ONE TRANSACTION?
  Two concurrent taps from the same user could otherwise read the same
  "last tap number" and both compute the same next number, breaking the
  contiguous 1..k sequence. Two taps from different users could both read
  a stale total and silently lose an increment. Serializable isolation
  makes both interleavings impossible; a conflict aborts one transaction,
  which is retried here.

RETRIES:
  Serialization conflicts are expected under load and are not user errors.
  Tap retries the whole transaction up to MaxAttempts times and only then
  surfaces ErrTxConflict. State rejections (cooldown/finished) and missing
  rounds are never retried: the clock will not change its mind.

SEE ALSO:
  - scoring.go: Score assignment
  - store.go: Transaction contract
*/
package game

import (
	"context"
	"time"
)

// =============================================================================
// TAP LEDGER - Admission path for tap events
// =============================================================================

// TapLedger admits taps into rounds. Safe for concurrent use.
type TapLedger struct {
	Store TxStore

	// Clock supplies the admission timestamp; overridable in tests.
	Clock func() time.Time

	// MaxAttempts bounds internal retries on serialization conflicts.
	MaxAttempts int
}

// NewTapLedger returns a ledger with the default clock and retry budget.
func NewTapLedger(store TxStore) *TapLedger {
	return &TapLedger{
		Store:       store,
		Clock:       time.Now,
		MaxAttempts: 3,
	}
}

// Tap admits one tap for userID in roundID. Exempt callers go through the
// full admission path - their tap row is persisted with a zero score and
// still occupies a sequence number - but the round total is left untouched.
//
// Exactly one tap row is created per successful call. On error, nothing is.
func (l *TapLedger) Tap(ctx context.Context, roundID RoundID, userID UserID, exempt bool) (*TapResult, error) {
	attempts := l.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var result *TapResult
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err = l.admit(ctx, roundID, userID, exempt)
		if err == nil || !IsRetryable(err) {
			return result, err
		}
	}
	return nil, err
}

// admit runs the admission steps once, inside a single transaction.
func (l *TapLedger) admit(ctx context.Context, roundID RoundID, userID UserID, exempt bool) (*TapResult, error) {
	now := l.Clock().UTC()

	var result *TapResult
	err := l.Store.WithTx(ctx, func(s Store) error {
		round, err := s.GetRound(ctx, roundID)
		if err != nil {
			return err
		}
		if round == nil {
			return ErrRoundNotFound
		}

		// State is checked against the transaction's observation time.
		if status := round.Status(now); status != StatusActive {
			return &RoundStateError{RoundID: roundID, Status: status}
		}

		last, err := s.LastTapNumber(ctx, roundID, userID)
		if err != nil {
			return err
		}
		tapNumber := last + 1
		score := Score(tapNumber, exempt)

		tap := Tap{
			ID:        NewTapID(),
			RoundID:   roundID,
			UserID:    userID,
			Score:     score,
			TapNumber: tapNumber,
			CreatedAt: now,
		}
		if err := s.InsertTap(ctx, tap); err != nil {
			return err
		}

		// Zero-score taps skip the increment so the exempt role does not
		// contend on the hottest row in the system.
		if score > 0 {
			if err := s.IncrementRoundScore(ctx, roundID, score); err != nil {
				return err
			}
		}

		// Read-after-write: includes the tap inserted above.
		myScore, err := s.UserRoundScore(ctx, roundID, userID)
		if err != nil {
			return err
		}

		result = &TapResult{
			TapID:     tap.ID,
			Score:     score,
			MyScore:   myScore,
			TapNumber: tapNumber,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
