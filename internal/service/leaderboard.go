package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/etherroyale/minigames-api/internal/domain"
)

// LeaderboardService provides the day-scoped leaderboard read path and the
// administrative day/game configuration operations.
type LeaderboardService struct {
	store  Store
	logger *slog.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(store Store, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{
		store:  store,
		logger: logger,
	}
}

// Leaderboard returns the ranked best scores per NFT for the given day and
// the currently active game type. With no active game type set it returns
// domain.ErrNoActiveGame rather than a misleading empty ranking.
func (s *LeaderboardService) Leaderboard(ctx context.Context, day domain.DayID) ([]domain.LeaderboardEntry, error) {
	game, err := s.store.ActiveGame(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.DayLeaderboard(ctx, day, game)
	if err != nil {
		return nil, fmt.Errorf("aggregating leaderboard: %w", err)
	}
	return entries, nil
}

// CurrentDay returns the current day id, or domain.ErrNoActiveDay.
func (s *LeaderboardService) CurrentDay(ctx context.Context) (domain.DayID, error) {
	return s.store.CurrentDay(ctx)
}

// ActiveGame returns the active game type, or domain.ErrNoActiveGame.
func (s *LeaderboardService) ActiveGame(ctx context.Context) (domain.GameType, error) {
	return s.store.ActiveGame(ctx)
}

// StartNewDay sets a new current day id
func (s *LeaderboardService) StartNewDay(ctx context.Context, day domain.DayID) error {
	if day == "" {
		return domain.ErrInvalidRequest
	}
	if err := s.store.SetCurrentDay(ctx, day); err != nil {
		return fmt.Errorf("starting new day: %w", err)
	}
	s.logger.Info("new day started", "day_id", day)
	return nil
}

// SwitchGame sets the active game type
func (s *LeaderboardService) SwitchGame(ctx context.Context, game domain.GameType) error {
	if game == "" {
		return domain.ErrInvalidRequest
	}
	if err := s.store.SetActiveGame(ctx, game); err != nil {
		return fmt.Errorf("switching game: %w", err)
	}
	s.logger.Info("active game switched", "game_type", game)
	return nil
}
