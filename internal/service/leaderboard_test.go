package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/etherroyale/minigames-api/internal/domain"
)

func seedRecord(t *testing.T, store *fakeStore, day domain.DayID, game domain.GameType, nftID uint64, score int64) {
	t.Helper()
	require.NoError(t, store.InsertScore(context.Background(), &domain.ScoreRecord{
		GameType: game,
		DayID:    day,
		NFTID:    nftID,
		Score:    score,
	}))
}

func TestLeaderboardReducesToBestScorePerNFT(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.SetActiveGame(context.Background(), domain.GameTypeWanted))
	svc := NewLeaderboardService(store, testLogger())

	seedRecord(t, store, "day-1", domain.GameTypeWanted, 7, 10)
	seedRecord(t, store, "day-1", domain.GameTypeWanted, 7, 35)
	seedRecord(t, store, "day-1", domain.GameTypeWanted, 9, 20)

	entries, err := svc.Leaderboard(context.Background(), "day-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, uint64(7), entries[0].NFTID)
	require.Equal(t, int64(35), entries[0].Score)
	require.Equal(t, uint64(9), entries[1].NFTID)
	require.Equal(t, int64(20), entries[1].Score)
}

func TestLeaderboardScopedToDayAndActiveGame(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.SetActiveGame(context.Background(), domain.GameTypeWanted))
	svc := NewLeaderboardService(store, testLogger())

	seedRecord(t, store, "day-1", domain.GameTypeWanted, 7, 10)
	seedRecord(t, store, "day-2", domain.GameTypeWanted, 8, 50)
	seedRecord(t, store, "day-1", domain.GameTypeBrickBreaker, 9, 99)

	entries, err := svc.Leaderboard(context.Background(), "day-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, uint64(7), entries[0].NFTID)
}

func TestLeaderboardTieBreaksByEarliestRecord(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.SetActiveGame(context.Background(), domain.GameTypeWanted))
	svc := NewLeaderboardService(store, testLogger())

	seedRecord(t, store, "day-1", domain.GameTypeWanted, 5, 40)
	seedRecord(t, store, "day-1", domain.GameTypeWanted, 3, 40)

	entries, err := svc.Leaderboard(context.Background(), "day-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, uint64(5), entries[0].NFTID)
	require.Equal(t, uint64(3), entries[1].NFTID)
}

func TestLeaderboardWithoutActiveGame(t *testing.T) {
	store := newFakeStore()
	svc := NewLeaderboardService(store, testLogger())

	seedRecord(t, store, "day-1", domain.GameTypeWanted, 7, 10)

	// Unavailable, not an empty ranking.
	_, err := svc.Leaderboard(context.Background(), "day-1")
	require.ErrorIs(t, err, domain.ErrNoActiveGame)
}

func TestAdminConfigOperations(t *testing.T) {
	store := newFakeStore()
	svc := NewLeaderboardService(store, testLogger())

	_, err := svc.CurrentDay(context.Background())
	require.ErrorIs(t, err, domain.ErrNoActiveDay)
	_, err = svc.ActiveGame(context.Background())
	require.ErrorIs(t, err, domain.ErrNoActiveGame)

	require.ErrorIs(t, svc.StartNewDay(context.Background(), ""), domain.ErrInvalidRequest)
	require.ErrorIs(t, svc.SwitchGame(context.Background(), ""), domain.ErrInvalidRequest)

	require.NoError(t, svc.StartNewDay(context.Background(), "day-1"))
	require.NoError(t, svc.SwitchGame(context.Background(), domain.GameTypeBrickBreaker))

	day, err := svc.CurrentDay(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.DayID("day-1"), day)

	game, err := svc.ActiveGame(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.GameTypeBrickBreaker, game)
}
