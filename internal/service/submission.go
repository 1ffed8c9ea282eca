package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/etherroyale/minigames-api/internal/domain"
)

// Verifier proves that a signature was produced by a token's current owner.
type Verifier interface {
	Verify(ctx context.Context, signature string, tokenID uint64) bool
}

// Store is the persistence surface the workflows depend on.
type Store interface {
	CurrentDay(ctx context.Context) (domain.DayID, error)
	ActiveGame(ctx context.Context) (domain.GameType, error)
	SetCurrentDay(ctx context.Context, day domain.DayID) error
	SetActiveGame(ctx context.Context, game domain.GameType) error
	TryAdmit(ctx context.Context, nftID uint64, day domain.DayID) (domain.AdmitResult, error)
	LastPlayed(ctx context.Context, nftID uint64) (*domain.DayID, error)
	InsertScore(ctx context.Context, record *domain.ScoreRecord) error
	DayLeaderboard(ctx context.Context, day domain.DayID, game domain.GameType) ([]domain.LeaderboardEntry, error)
}

// Notifier informs the main API that an NFT has played.
type Notifier interface {
	MarkPlayed(ctx context.Context, nftID uint64)
}

// EventPublisher streams accepted plays downstream.
type EventPublisher interface {
	PublishPlayEvent(event domain.PlayEvent)
}

// LiveCache is the realtime leaderboard view fed after each acceptance.
type LiveCache interface {
	RecordScore(ctx context.Context, day domain.DayID, game domain.GameType, nftID uint64, score int64) error
	TopN(ctx context.Context, day domain.DayID, game domain.GameType, n int) ([]domain.LeaderboardEntry, error)
}

// Broadcaster pushes live updates to connected spectators.
type Broadcaster interface {
	BroadcastScoreAccepted(day domain.DayID, game domain.GameType, nftID uint64, score int64)
	BroadcastLeaderboardUpdate(day domain.DayID, game domain.GameType, entries []domain.LeaderboardEntry)
}

// broadcastTopN is the snapshot size pushed to websocket subscribers after an
// accepted submission.
const broadcastTopN = 10

// sideEffectTimeout bounds the post-acceptance background work.
const sideEffectTimeout = 30 * time.Second

// SubmissionService runs the score submission workflow: ownership proof, the
// daily play gate, and persistence, in that order, short-circuiting on the
// first failure. Side effects after acceptance are dispatched in the
// background and never affect the caller's outcome.
type SubmissionService struct {
	verifier Verifier
	store    Store
	notifier Notifier
	events   EventPublisher
	cache    LiveCache
	hub      Broadcaster
	logger   *slog.Logger
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(verifier Verifier, store Store, notifier Notifier, logger *slog.Logger) *SubmissionService {
	return &SubmissionService{
		verifier: verifier,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// SetEvents attaches the optional play-event publisher
func (s *SubmissionService) SetEvents(events EventPublisher) {
	s.events = events
}

// SetCache attaches the optional realtime leaderboard cache
func (s *SubmissionService) SetCache(cache LiveCache) {
	s.cache = cache
}

// SetHub attaches the optional websocket broadcaster
func (s *SubmissionService) SetHub(hub Broadcaster) {
	s.hub = hub
}

// Submit processes one score submission. It returns nil when the score was
// accepted and recorded; domain.ErrOwnershipProof / domain.ErrAlreadyPlayed
// for the expected rejections; domain.ErrNoActiveDay when no day has been
// started; any other error is a storage fault, not a rejection.
func (s *SubmissionService) Submit(ctx context.Context, sub domain.Submission) error {
	if sub.GameType == "" || sub.Signature == "" || sub.Score < 0 {
		return domain.ErrInvalidRequest
	}

	if !s.verifier.Verify(ctx, sub.Signature, sub.NFTID) {
		return domain.ErrOwnershipProof
	}

	day, err := s.store.CurrentDay(ctx)
	if err != nil {
		return err
	}

	admit, err := s.store.TryAdmit(ctx, sub.NFTID, day)
	if err != nil {
		return fmt.Errorf("admitting play: %w", err)
	}
	if !admit.Admitted {
		return domain.ErrAlreadyPlayed
	}

	record := &domain.ScoreRecord{
		GameType:  sub.GameType,
		DayID:     day,
		NFTID:     sub.NFTID,
		Score:     sub.Score,
		Signature: sub.Signature,
		Origin:    sub.Origin,
	}
	if err := s.store.InsertScore(ctx, record); err != nil {
		return fmt.Errorf("persisting score record: %w", err)
	}

	s.logger.Info("score accepted",
		"game_type", sub.GameType,
		"day_id", day,
		"nft_id", sub.NFTID,
		"score", sub.Score,
	)

	go s.afterAccept(record)

	return nil
}

// afterAccept runs the fire-and-forget side effects of an accepted
// submission: the main-API notification, the play event, the realtime cache
// and the websocket broadcast. The submission is already committed, so every
// failure here is logged and discarded.
func (s *SubmissionService) afterAccept(record *domain.ScoreRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	if s.notifier != nil {
		s.notifier.MarkPlayed(ctx, record.NFTID)
	}

	if s.events != nil {
		s.events.PublishPlayEvent(domain.PlayEvent{
			NFTID:      record.NFTID,
			DayID:      record.DayID,
			GameType:   record.GameType,
			Score:      record.Score,
			AcceptedAt: record.CreatedAt,
		})
	}

	if s.cache != nil {
		if err := s.cache.RecordScore(ctx, record.DayID, record.GameType, record.NFTID, record.Score); err != nil {
			s.logger.Warn("failed to update leaderboard cache", "nft_id", record.NFTID, "error", err)
		}
	}

	if s.hub != nil {
		s.hub.BroadcastScoreAccepted(record.DayID, record.GameType, record.NFTID, record.Score)
		if s.cache != nil {
			if top, err := s.cache.TopN(ctx, record.DayID, record.GameType, broadcastTopN); err == nil {
				s.hub.BroadcastLeaderboardUpdate(record.DayID, record.GameType, top)
			}
		}
	}
}

// ValidateSignature reports whether signature proves current ownership of the
// token. Read-only; used by the public validation endpoint.
func (s *SubmissionService) ValidateSignature(ctx context.Context, signature string, nftID uint64) bool {
	return s.verifier.Verify(ctx, signature, nftID)
}

// PlayStatus returns when the NFT last played and whether that was today.
// Requires a current day to be set: an unset day never compares equal to
// anything, it is surfaced as ErrNoActiveDay instead.
func (s *SubmissionService) PlayStatus(ctx context.Context, nftID uint64) (domain.PlayStatus, error) {
	day, err := s.store.CurrentDay(ctx)
	if err != nil {
		return domain.PlayStatus{}, err
	}

	lastPlayed, err := s.store.LastPlayed(ctx, nftID)
	if err != nil {
		return domain.PlayStatus{}, fmt.Errorf("reading play state: %w", err)
	}

	return domain.PlayStatus{
		LastPlayed:  lastPlayed,
		PlayedToday: lastPlayed != nil && *lastPlayed == day,
	}, nil
}
