package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/etherroyale/minigames-api/internal/config"
	"github.com/etherroyale/minigames-api/internal/domain"
)

// Cache keeps a realtime sorted-set view of each day's leaderboard. It is
// advisory: the Postgres aggregation over score records stays authoritative,
// the cache only feeds live broadcasts and cheap top-N reads.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCache creates a new Redis leaderboard cache
func NewCache(cfg *config.RedisConfig, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Cache{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// dayKey returns the Redis key for one day's leaderboard sorted set
func (c *Cache) dayKey(day domain.DayID, game domain.GameType) string {
	return fmt.Sprintf("leaderboard:%s:%s", day, game)
}

// RecordScore folds an accepted score into the day's sorted set, keeping the
// best score per NFT (ZADD GT never lowers an existing member).
func (c *Cache) RecordScore(ctx context.Context, day domain.DayID, game domain.GameType, nftID uint64, score int64) error {
	key := c.dayKey(day, game)
	err := c.client.ZAddGT(ctx, key, redis.Z{
		Score:  float64(score),
		Member: strconv.FormatUint(nftID, 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("recording score: %w", err)
	}
	return nil
}

// TopN returns the best N entries of the day's leaderboard, rank-ordered.
func (c *Cache) TopN(ctx context.Context, day domain.DayID, game domain.GameType, n int) ([]domain.LeaderboardEntry, error) {
	key := c.dayKey(day, game)
	results, err := c.client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(results))
	for i, result := range results {
		nftID, err := strconv.ParseUint(result.Member.(string), 10, 64)
		if err != nil {
			c.logger.Warn("skipping malformed cache member", "member", result.Member)
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			Rank:  int64(i + 1),
			NFTID: nftID,
			Score: int64(result.Score),
		})
	}
	return entries, nil
}

// Rebuild replaces the day's sorted set with the given best scores, in one
// pipeline so readers never observe a half-built set for long.
func (c *Cache) Rebuild(ctx context.Context, day domain.DayID, game domain.GameType, scores map[uint64]int64) error {
	key := c.dayKey(day, game)

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	for nftID, score := range scores {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(score),
			Member: strconv.FormatUint(nftID, 10),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rebuilding leaderboard cache: %w", err)
	}
	return nil
}
