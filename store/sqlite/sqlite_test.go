package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guss/tap-arena/game"
	"github.com/guss/tap-arena/store/sqlite"
	"github.com/guss/tap-arena/users"
)

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRound(now time.Time) game.Round {
	return game.Round{
		ID:        game.NewRoundID(),
		StartDate: now.Add(30 * time.Second),
		EndDate:   now.Add(90 * time.Second),
		CreatedAt: now,
	}
}

// =============================================================================
// ROUNDS
// =============================================================================

func TestStore_RoundRoundTrip(t *testing.T) {
	// GIVEN: A persisted round
	// WHEN: Reading it back
	// THEN: All fields survive, including sub-second timestamps

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 123456789, time.UTC)

	round := testRound(now)
	require.NoError(t, store.InsertRound(ctx, round))

	got, err := store.GetRound(ctx, round.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, round.ID, got.ID)
	assert.True(t, round.StartDate.Equal(got.StartDate))
	assert.True(t, round.EndDate.Equal(got.EndDate))
	assert.True(t, round.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, int64(0), got.TotalScore)
	assert.Nil(t, got.WinnerID)
}

func TestStore_GetRoundAbsent(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Reading an unknown round
	// THEN: (nil, nil), not an error

	store := newTestStore(t)

	got, err := store.GetRound(context.Background(), "no-such-round")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_ListRoundsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	older := testRound(now.Add(-time.Hour))
	newer := testRound(now)
	require.NoError(t, store.InsertRound(ctx, older))
	require.NoError(t, store.InsertRound(ctx, newer))

	rounds, err := store.ListRounds(ctx)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, newer.ID, rounds[0].ID)
	assert.Equal(t, older.ID, rounds[1].ID)
}

func TestStore_IncrementRoundScoreAccumulates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	round := testRound(now)
	require.NoError(t, store.InsertRound(ctx, round))

	require.NoError(t, store.IncrementRoundScore(ctx, round.ID, 1))
	require.NoError(t, store.IncrementRoundScore(ctx, round.ID, 10))

	got, err := store.GetRound(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.TotalScore)
}

// =============================================================================
// TAPS
// =============================================================================

func TestStore_DuplicateTapNumberIsConflict(t *testing.T) {
	// GIVEN: A persisted tap
	// WHEN: Inserting another tap with the same (round, user, number)
	// THEN: The unique sequence index reports a retryable conflict

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	round := testRound(now)
	require.NoError(t, store.InsertRound(ctx, round))

	tap := game.Tap{
		ID:        game.NewTapID(),
		RoundID:   round.ID,
		UserID:    "u1",
		Score:     1,
		TapNumber: 1,
		CreatedAt: now,
	}
	require.NoError(t, store.InsertTap(ctx, tap))

	dup := tap
	dup.ID = game.NewTapID()
	err := store.InsertTap(ctx, dup)
	assert.ErrorIs(t, err, game.ErrTxConflict)
}

func TestStore_WinnerAggregatesMinCreatedAt(t *testing.T) {
	// GIVEN: A user with taps at different sub-second timestamps
	// WHEN: Aggregating
	// THEN: FirstTapAt is the earliest, compared correctly despite being
	//       stored as text

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 500000000, time.UTC)

	round := testRound(now)
	require.NoError(t, store.InsertRound(ctx, round))

	early := now.Add(-time.Second).Add(5 * time.Nanosecond)
	require.NoError(t, store.InsertTap(ctx, game.Tap{
		ID: game.NewTapID(), RoundID: round.ID, UserID: "u1",
		Score: 1, TapNumber: 1, CreatedAt: early,
	}))
	require.NoError(t, store.InsertTap(ctx, game.Tap{
		ID: game.NewTapID(), RoundID: round.ID, UserID: "u1",
		Score: 10, TapNumber: 2, CreatedAt: now,
	}))

	aggs, err := store.WinnerAggregates(ctx, round.ID)
	require.NoError(t, err)
	require.Len(t, aggs, 1)

	assert.Equal(t, game.UserID("u1"), aggs[0].UserID)
	assert.Equal(t, int64(11), aggs[0].TotalScore)
	assert.True(t, early.Equal(aggs[0].FirstTapAt))
}

func TestStore_CorruptTimestampSurfacesError(t *testing.T) {
	// GIVEN: Rows whose timestamps were corrupted out-of-band
	// WHEN: Reading the round and aggregating its taps
	// THEN: The parse failure surfaces instead of silently becoming the
	//       zero time (which would misrank the winner tie-break)

	path := filepath.Join(t.TempDir(), "arena.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	round := testRound(now)
	require.NoError(t, store.InsertRound(ctx, round))
	require.NoError(t, store.InsertTap(ctx, game.Tap{
		ID: game.NewTapID(), RoundID: round.ID, UserID: "u1",
		Score: 1, TapNumber: 1, CreatedAt: now,
	}))

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec(`UPDATE rounds SET start_date = 'garbage'`)
	require.NoError(t, err)
	_, err = raw.Exec(`UPDATE taps SET created_at = 'garbage'`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, err = store.GetRound(ctx, round.ID)
	assert.Error(t, err)

	_, err = store.WinnerAggregates(ctx, round.ID)
	assert.Error(t, err)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that inserts a tap and then fails
	// WHEN: WithTx returns
	// THEN: Nothing the callback did is visible

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	round := testRound(now)
	require.NoError(t, store.InsertRound(ctx, round))

	boom := assert.AnError
	err := store.WithTx(ctx, func(s game.Store) error {
		insertErr := s.InsertTap(ctx, game.Tap{
			ID: game.NewTapID(), RoundID: round.ID, UserID: "u1",
			Score: 1, TapNumber: 1, CreatedAt: now,
		})
		require.NoError(t, insertErr)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	last, err := store.LastTapNumber(ctx, round.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, last, "rolled-back tap must not persist")
}

func TestStore_WithTxReadAfterWrite(t *testing.T) {
	// GIVEN: A transaction that inserts a tap
	// WHEN: Reading the user's score inside the same transaction
	// THEN: The just-written tap is visible

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	round := testRound(now)
	require.NoError(t, store.InsertRound(ctx, round))

	err := store.WithTx(ctx, func(s game.Store) error {
		if err := s.InsertTap(ctx, game.Tap{
			ID: game.NewTapID(), RoundID: round.ID, UserID: "u1",
			Score: 1, TapNumber: 1, CreatedAt: now,
		}); err != nil {
			return err
		}

		score, err := s.UserRoundScore(ctx, round.ID, "u1")
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), score)
		return nil
	})
	require.NoError(t, err)
}

// =============================================================================
// USERS
// =============================================================================

func TestStore_UserRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	u := users.User{
		ID:           "user-1",
		Username:     "alice",
		PasswordHash: "$2a$10$hash",
		Role:         users.RoleSurvivor,
		CreatedAt:    now,
	}
	require.NoError(t, store.SaveUser(ctx, u))

	byName, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, u.ID, byName.ID)
	assert.Equal(t, u.Role, byName.Role)

	byID, err := store.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "alice", byID.Username)

	absent, err := store.GetUserByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestStore_DuplicateUsernameRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	u := users.User{ID: "user-1", Username: "alice", PasswordHash: "h", Role: users.RoleSurvivor, CreatedAt: now}
	require.NoError(t, store.SaveUser(ctx, u))

	dup := users.User{ID: "user-2", Username: "alice", PasswordHash: "h", Role: users.RoleSurvivor, CreatedAt: now}
	err := store.SaveUser(ctx, dup)
	assert.ErrorIs(t, err, users.ErrUsernameTaken)
}
