/*
winner.go - Lazy, idempotent winner resolution

PURPOSE:
  A finished round gets its winner the first time somebody reads it - not
  from a scheduler. Resolution aggregates the round's immutable tap data,
  so every resolver computes the same answer; the persistence step is a
  conditional write that only applies while winner_id is still null, which
  makes concurrent resolution attempts converge safely.

WINNER POLICY:
  Highest score sum wins. Ties break by the earliest first-tap timestamp
  (the user who started scoring sooner). A round where nobody scored a
  positive total stays winner-less permanently.

SEE ALSO:
  - rounds.go: Triggers resolution from the detail read path
  - store.go: SetWinnerIfUnset contract
*/
package game

import (
	"context"
	"sort"
)

// =============================================================================
// WINNER RESOLVER
// =============================================================================

// WinnerResolver computes and persists round winners.
type WinnerResolver struct {
	Store Store
}

// Resolve picks the winner of a finished round from its tap data and
// persists it once. Returns the winner (resolved now or by a concurrent
// resolver moments earlier), or nil when the round has no winner.
//
// Resolve assumes the round is FINISHED; callers gate on status.
func (r *WinnerResolver) Resolve(ctx context.Context, roundID RoundID) (*UserID, error) {
	aggs, err := r.Store.WinnerAggregates(ctx, roundID)
	if err != nil {
		return nil, err
	}

	winnerID, ok := PickWinner(aggs)
	if !ok {
		return nil, nil
	}

	if _, err := r.Store.SetWinnerIfUnset(ctx, roundID, winnerID); err != nil {
		return nil, err
	}

	// Whether or not our write applied, the persisted winner is the answer:
	// a racing resolver saw the same immutable taps.
	round, err := r.Store.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, ErrRoundNotFound
	}
	return round.WinnerID, nil
}

// PickWinner ranks candidates by score sum (desc), then earliest first tap,
// then user ID as a final deterministic tie-break. Returns false when there
// is no candidate with a positive total.
func PickWinner(aggs []UserAggregate) (UserID, bool) {
	if len(aggs) == 0 {
		return "", false
	}

	ranked := make([]UserAggregate, len(aggs))
	copy(ranked, aggs)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TotalScore != ranked[j].TotalScore {
			return ranked[i].TotalScore > ranked[j].TotalScore
		}
		if !ranked[i].FirstTapAt.Equal(ranked[j].FirstTapAt) {
			return ranked[i].FirstTapAt.Before(ranked[j].FirstTapAt)
		}
		return ranked[i].UserID < ranked[j].UserID
	})

	if ranked[0].TotalScore <= 0 {
		return "", false
	}
	return ranked[0].UserID, true
}
