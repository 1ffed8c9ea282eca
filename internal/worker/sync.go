package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/etherroyale/minigames-api/internal/config"
	"github.com/etherroyale/minigames-api/internal/domain"
)

// ConfigSource exposes the current day and game plus the authoritative best
// scores derived from the score records.
type ConfigSource interface {
	GetConfig(ctx context.Context) (domain.GameConfig, error)
	BestScores(ctx context.Context, day domain.DayID, game domain.GameType) (map[uint64]int64, error)
}

// CacheTarget is the realtime view being rebuilt.
type CacheTarget interface {
	Rebuild(ctx context.Context, day domain.DayID, game domain.GameType, scores map[uint64]int64) error
}

// SyncWorker periodically rebuilds the current day's realtime leaderboard
// cache from the Postgres aggregation, recovering from cache loss or drift.
type SyncWorker struct {
	source  ConfigSource
	cache   CacheTarget
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(source ConfigSource, cache CacheTarget, cfg *config.SyncConfig, logger *slog.Logger) *SyncWorker {
	return &SyncWorker{
		source: source,
		cache:  cache,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background sync process
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sync worker stopped")
	return nil
}

// run is the main worker loop
func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.SyncCurrentDay(ctx)
		}
	}
}

// SyncCurrentDay rebuilds the cache for the current day and active game.
// A half-configured system (no day or no game yet) is simply nothing to sync.
func (w *SyncWorker) SyncCurrentDay(ctx context.Context) {
	cfg, err := w.source.GetConfig(ctx)
	if err != nil {
		w.logger.Warn("sync: failed to read config", "error", err)
		return
	}
	if cfg.CurrentDay == nil || cfg.ActiveGame == nil {
		return
	}
	day, game := *cfg.CurrentDay, *cfg.ActiveGame

	scores, err := w.source.BestScores(ctx, day, game)
	if err != nil {
		w.logger.Warn("sync: failed to aggregate scores", "day_id", day, "error", err)
		return
	}

	if err := w.cache.Rebuild(ctx, day, game, scores); err != nil {
		w.logger.Warn("sync: failed to rebuild cache", "day_id", day, "error", err)
		return
	}

	w.logger.Debug("leaderboard cache synced", "day_id", day, "game_type", game, "entries", len(scores))
}
