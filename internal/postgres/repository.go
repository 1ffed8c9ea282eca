package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/etherroyale/minigames-api/internal/config"
	"github.com/etherroyale/minigames-api/internal/domain"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS game_config (
			id INT PRIMARY KEY CHECK (id = 1),
			current_day_id TEXT,
			active_game_type TEXT,
			updated_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS play_states (
			nft_id BIGINT PRIMARY KEY,
			last_played_day TEXT NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS score_records (
			id BIGSERIAL PRIMARY KEY,
			game_type TEXT NOT NULL,
			day_id TEXT NOT NULL,
			nft_id BIGINT NOT NULL,
			score BIGINT NOT NULL,
			signature TEXT NOT NULL,
			origin_ip TEXT,
			origin_user_agent TEXT,
			created_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_score_records_day_game ON score_records(day_id, game_type)`,
		`CREATE INDEX IF NOT EXISTS idx_score_records_nft ON score_records(nft_id, created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// GetConfig reads the singleton configuration row. A missing row or NULL
// fields mean the corresponding value has never been set.
func (r *Repository) GetConfig(ctx context.Context) (domain.GameConfig, error) {
	query := `SELECT current_day_id, active_game_type FROM game_config WHERE id = 1`

	var dayID, gameType *string
	err := r.pool.QueryRow(ctx, query).Scan(&dayID, &gameType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.GameConfig{}, nil
		}
		return domain.GameConfig{}, fmt.Errorf("getting config: %w", err)
	}

	var cfg domain.GameConfig
	if dayID != nil {
		d := domain.DayID(*dayID)
		cfg.CurrentDay = &d
	}
	if gameType != nil {
		g := domain.GameType(*gameType)
		cfg.ActiveGame = &g
	}
	return cfg, nil
}

// CurrentDay returns the current day id, or ErrNoActiveDay if it is unset.
func (r *Repository) CurrentDay(ctx context.Context) (domain.DayID, error) {
	cfg, err := r.GetConfig(ctx)
	if err != nil {
		return "", err
	}
	if cfg.CurrentDay == nil {
		return "", domain.ErrNoActiveDay
	}
	return *cfg.CurrentDay, nil
}

// ActiveGame returns the active game type, or ErrNoActiveGame if it is unset.
func (r *Repository) ActiveGame(ctx context.Context) (domain.GameType, error) {
	cfg, err := r.GetConfig(ctx)
	if err != nil {
		return "", err
	}
	if cfg.ActiveGame == nil {
		return "", domain.ErrNoActiveGame
	}
	return *cfg.ActiveGame, nil
}

// SetCurrentDay starts a new day
func (r *Repository) SetCurrentDay(ctx context.Context, day domain.DayID) error {
	query := `
		INSERT INTO game_config (id, current_day_id, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET current_day_id = $1, updated_at = now()
	`
	if _, err := r.pool.Exec(ctx, query, string(day)); err != nil {
		return fmt.Errorf("setting current day: %w", err)
	}
	return nil
}

// SetActiveGame switches the active game type
func (r *Repository) SetActiveGame(ctx context.Context, game domain.GameType) error {
	query := `
		INSERT INTO game_config (id, active_game_type, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET active_game_type = $1, updated_at = now()
	`
	if _, err := r.pool.Exec(ctx, query, string(game)); err != nil {
		return fmt.Errorf("setting active game: %w", err)
	}
	return nil
}

// TryAdmit decides whether nftID may play on day and, if so, commits the new
// play state in the same statement. The check and the write are one atomic
// unit: the guarded upsert re-evaluates its condition against the current row
// under the row lock, so of N concurrent attempts for the same (nft, day)
// exactly one returns admitted.
func (r *Repository) TryAdmit(ctx context.Context, nftID uint64, day domain.DayID) (domain.AdmitResult, error) {
	query := `
		WITH prior AS (
			SELECT last_played_day FROM play_states WHERE nft_id = $1
		), admit AS (
			INSERT INTO play_states (nft_id, last_played_day, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (nft_id) DO UPDATE
				SET last_played_day = EXCLUDED.last_played_day, updated_at = now()
				WHERE play_states.last_played_day <> EXCLUDED.last_played_day
			RETURNING nft_id
		)
		SELECT (SELECT last_played_day FROM prior), EXISTS(SELECT 1 FROM admit)
	`

	var lastPlayed *string
	var admitted bool
	err := r.pool.QueryRow(ctx, query, int64(nftID), string(day)).Scan(&lastPlayed, &admitted)
	if err != nil {
		return domain.AdmitResult{}, fmt.Errorf("admitting play: %w", err)
	}

	result := domain.AdmitResult{Admitted: admitted}
	if lastPlayed != nil {
		d := domain.DayID(*lastPlayed)
		result.LastPlayed = &d
	}
	return result, nil
}

// LastPlayed returns the day nftID last played, or nil if it never has.
func (r *Repository) LastPlayed(ctx context.Context, nftID uint64) (*domain.DayID, error) {
	query := `SELECT last_played_day FROM play_states WHERE nft_id = $1`

	var lastPlayed string
	err := r.pool.QueryRow(ctx, query, int64(nftID)).Scan(&lastPlayed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting play state: %w", err)
	}
	d := domain.DayID(lastPlayed)
	return &d, nil
}

// InsertScore appends a score record. Records are immutable facts: they are
// never updated or deleted, and the leaderboard is derived from the history.
func (r *Repository) InsertScore(ctx context.Context, record *domain.ScoreRecord) error {
	query := `
		INSERT INTO score_records (game_type, day_id, nft_id, score, signature, origin_ip, origin_user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	record.CreatedAt = time.Now()
	err := r.pool.QueryRow(ctx, query,
		string(record.GameType),
		string(record.DayID),
		int64(record.NFTID),
		record.Score,
		record.Signature,
		record.Origin.IP,
		record.Origin.UserAgent,
		record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("inserting score record: %w", err)
	}
	return nil
}

// DayLeaderboard aggregates the best score per NFT for the given day and game
// type, ordered by score descending. Ties rank by earliest accepted record.
// An NFT can only hold multiple records for one day if something upstream
// misbehaved; the aggregation reduces to one entry per NFT regardless.
func (r *Repository) DayLeaderboard(ctx context.Context, day domain.DayID, game domain.GameType) ([]domain.LeaderboardEntry, error) {
	query := `
		SELECT nft_id, MAX(score) AS best
		FROM score_records
		WHERE day_id = $1 AND game_type = $2
		GROUP BY nft_id
		ORDER BY best DESC, MIN(id) ASC
	`
	rows, err := r.pool.Query(ctx, query, string(day), string(game))
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var nftID, score int64
		if err := rows.Scan(&nftID, &score); err != nil {
			return nil, fmt.Errorf("scanning leaderboard entry: %w", err)
		}
		entries = append(entries, domain.LeaderboardEntry{
			Rank:  int64(len(entries) + 1),
			NFTID: uint64(nftID),
			Score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading leaderboard rows: %w", err)
	}
	return entries, nil
}

// BestScores returns the best score per NFT for a day and game type, keyed by
// NFT id (for cache resync).
func (r *Repository) BestScores(ctx context.Context, day domain.DayID, game domain.GameType) (map[uint64]int64, error) {
	query := `
		SELECT nft_id, MAX(score)
		FROM score_records
		WHERE day_id = $1 AND game_type = $2
		GROUP BY nft_id
	`
	rows, err := r.pool.Query(ctx, query, string(day), string(game))
	if err != nil {
		return nil, fmt.Errorf("querying best scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[uint64]int64)
	for rows.Next() {
		var nftID, score int64
		if err := rows.Scan(&nftID, &score); err != nil {
			return nil, fmt.Errorf("scanning best score: %w", err)
		}
		scores[uint64(nftID)] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading best score rows: %w", err)
	}
	return scores, nil
}
