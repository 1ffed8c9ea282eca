package domain

import "time"

// GameType identifies which minigame a score belongs to. It is an opaque tag:
// new game types can be introduced by configuration alone, nothing in the
// gating or aggregation logic branches on specific values.
type GameType string

// Known game types at the time of writing, for documentation and tooling.
// The system accepts any non-empty tag.
const (
	GameTypeWanted       GameType = "wanted"
	GameTypeBrickBreaker GameType = "brickbreaker"
)

// DayID is an opaque, administratively-assigned token for "the current day".
// Days are advanced by an admin call, not by the clock, and only equality is
// meaningful.
type DayID string

// GameConfig is the single row of global configuration. Nil fields mean the
// value has never been set, which is a valid (if degraded) state: callers get
// ErrNoActiveDay / ErrNoActiveGame rather than a default.
type GameConfig struct {
	CurrentDay *DayID
	ActiveGame *GameType
}

// Origin captures where a submission came from, for auditing.
type Origin struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

// Submission is one incoming score submission, before any checks.
type Submission struct {
	GameType  GameType `json:"game_type"`
	NFTID     uint64   `json:"nft_id"`
	Score     int64    `json:"score"`
	Signature string   `json:"signature"`
	Origin    Origin   `json:"origin"`
}

// ScoreRecord is the immutable fact of one accepted submission. Records are
// append-only; the leaderboard derives best scores from the full history.
type ScoreRecord struct {
	ID        int64     `json:"id"`
	GameType  GameType  `json:"game_type"`
	DayID     DayID     `json:"day_id"`
	NFTID     uint64    `json:"nft_id"`
	Score     int64     `json:"score"`
	Signature string    `json:"signature"`
	Origin    Origin    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
}

// AdmitResult is the outcome of the daily play gate.
type AdmitResult struct {
	Admitted bool
	// LastPlayed is the day the NFT previously played, nil if it never has.
	LastPlayed *DayID
}

// PlayStatus is the read-only view of an NFT's play state for the current day.
type PlayStatus struct {
	LastPlayed  *DayID `json:"lastPlayed"`
	PlayedToday bool   `json:"playedToday"`
}

// LeaderboardEntry is one ranked row of a daily leaderboard: the best score an
// NFT achieved on that day for the active game type.
type LeaderboardEntry struct {
	Rank  int64  `json:"rank"`
	NFTID uint64 `json:"nftId"`
	Score int64  `json:"score"`
}

// PlayEvent is published downstream after a submission has been accepted.
type PlayEvent struct {
	NFTID      uint64    `json:"nft_id"`
	DayID      DayID     `json:"day_id"`
	GameType   GameType  `json:"game_type"`
	Score      int64     `json:"score"`
	AcceptedAt time.Time `json:"accepted_at"`
}
