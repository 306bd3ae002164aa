/*
rounds.go - Round lifecycle operations

PURPOSE:
  The round service: scheduling new rounds (admin only), listing rounds
  with their derived status, and the detail read that lazily triggers
  winner resolution. The tap path lives in ledger.go.

LIFECYCLE:
  A round is created with a future start date (now + cooldown) and a
  derived end date (start + duration). After that the only mutations are
  tap-driven total increments and the one-time winner write. Rounds are
  never deleted.

SEE ALSO:
  - winner.go: Resolution triggered from Get
  - ledger.go: Tap admission
*/
package game

import (
	"context"
	"time"
)

const (
	DefaultCooldown = 30 * time.Second
	DefaultDuration = 60 * time.Second
)

// =============================================================================
// ROUND SERVICE
// =============================================================================

// RoundService implements the round read and create operations.
type RoundService struct {
	Store    TxStore
	Resolver *WinnerResolver

	// Clock supplies observation time; overridable in tests.
	Clock func() time.Time

	// Cooldown is the delay before a new round opens; Duration its length.
	Cooldown time.Duration
	Duration time.Duration
}

// NewRoundService returns a service with default cooldown and duration.
func NewRoundService(store TxStore) *RoundService {
	return &RoundService{
		Store:    store,
		Resolver: &WinnerResolver{Store: store},
		Clock:    time.Now,
		Cooldown: DefaultCooldown,
		Duration: DefaultDuration,
	}
}

// Create schedules a new round. Only admins may create rounds; everyone
// else gets ErrForbidden and no row is written.
func (s *RoundService) Create(ctx context.Context, callerIsAdmin bool) (*RoundSummary, error) {
	if !callerIsAdmin {
		return nil, ErrForbidden
	}

	now := s.Clock().UTC()
	round := Round{
		ID:        NewRoundID(),
		StartDate: now.Add(s.Cooldown),
		CreatedAt: now,
	}
	round.EndDate = round.StartDate.Add(s.Duration)

	if err := s.Store.InsertRound(ctx, round); err != nil {
		return nil, err
	}
	return &RoundSummary{Round: round, Status: round.Status(now)}, nil
}

// List returns all rounds annotated with their derived status, newest
// first. No side effects: winner resolution only happens on detail reads.
func (s *RoundService) List(ctx context.Context) ([]RoundSummary, error) {
	rounds, err := s.Store.ListRounds(ctx)
	if err != nil {
		return nil, err
	}

	now := s.Clock().UTC()
	summaries := make([]RoundSummary, len(rounds))
	for i, r := range rounds {
		summaries[i] = RoundSummary{Round: r, Status: r.Status(now)}
	}
	return summaries, nil
}

// Get returns the detail view of one round for the calling user. If the
// round is FINISHED and has no winner yet, resolution runs here as a side
// effect; concurrent readers race harmlessly on the conditional write.
func (s *RoundService) Get(ctx context.Context, roundID RoundID, callerID UserID) (*RoundDetail, error) {
	round, err := s.Store.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, ErrRoundNotFound
	}

	now := s.Clock().UTC()
	status := round.Status(now)

	if status == StatusFinished && round.WinnerID == nil {
		if _, err := s.Resolver.Resolve(ctx, roundID); err != nil {
			return nil, err
		}
		// Reload to observe whichever resolver's write landed.
		round, err = s.Store.GetRound(ctx, roundID)
		if err != nil {
			return nil, err
		}
		if round == nil {
			return nil, ErrRoundNotFound
		}
	}

	myScore, err := s.Store.UserRoundScore(ctx, roundID, callerID)
	if err != nil {
		return nil, err
	}

	var winnerScore int64
	if round.WinnerID != nil {
		winnerScore, err = s.Store.UserRoundScore(ctx, roundID, *round.WinnerID)
		if err != nil {
			return nil, err
		}
	}

	return &RoundDetail{
		Round:       *round,
		Status:      status,
		MyScore:     myScore,
		WinnerScore: winnerScore,
	}, nil
}
