package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/etherroyale/minigames-api/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeVerifier approves or denies every proof.
type fakeVerifier struct {
	valid bool
}

func (f *fakeVerifier) Verify(ctx context.Context, signature string, tokenID uint64) bool {
	return f.valid
}

// fakeStore is an in-memory Store with the same admission semantics as the
// SQL implementation: the check and the play-state write happen atomically.
type fakeStore struct {
	mu         sync.Mutex
	day        *domain.DayID
	game       *domain.GameType
	playStates map[uint64]domain.DayID
	records    []domain.ScoreRecord
	insertErr  error
	admitErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{playStates: make(map[uint64]domain.DayID)}
}

func (f *fakeStore) CurrentDay(ctx context.Context) (domain.DayID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.day == nil {
		return "", domain.ErrNoActiveDay
	}
	return *f.day, nil
}

func (f *fakeStore) ActiveGame(ctx context.Context) (domain.GameType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.game == nil {
		return "", domain.ErrNoActiveGame
	}
	return *f.game, nil
}

func (f *fakeStore) SetCurrentDay(ctx context.Context, day domain.DayID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.day = &day
	return nil
}

func (f *fakeStore) SetActiveGame(ctx context.Context, game domain.GameType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.game = &game
	return nil
}

func (f *fakeStore) TryAdmit(ctx context.Context, nftID uint64, day domain.DayID) (domain.AdmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.admitErr != nil {
		return domain.AdmitResult{}, f.admitErr
	}

	prev, played := f.playStates[nftID]
	if played && prev == day {
		p := prev
		return domain.AdmitResult{Admitted: false, LastPlayed: &p}, nil
	}
	f.playStates[nftID] = day
	result := domain.AdmitResult{Admitted: true}
	if played {
		p := prev
		result.LastPlayed = &p
	}
	return result, nil
}

func (f *fakeStore) LastPlayed(ctx context.Context, nftID uint64) (*domain.DayID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, ok := f.playStates[nftID]; ok {
		p := prev
		return &p, nil
	}
	return nil, nil
}

func (f *fakeStore) InsertScore(ctx context.Context, record *domain.ScoreRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	record.ID = int64(len(f.records) + 1)
	record.CreatedAt = time.Now()
	f.records = append(f.records, *record)
	return nil
}

// DayLeaderboard mirrors the SQL aggregation: best score per NFT, ordered by
// score descending, ties broken by the earliest record.
func (f *fakeStore) DayLeaderboard(ctx context.Context, day domain.DayID, game domain.GameType) ([]domain.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	best := make(map[uint64]int64)
	firstID := make(map[uint64]int64)
	for _, record := range f.records {
		if record.DayID != day || record.GameType != game {
			continue
		}
		if _, ok := best[record.NFTID]; !ok {
			best[record.NFTID] = record.Score
			firstID[record.NFTID] = record.ID
			continue
		}
		if record.Score > best[record.NFTID] {
			best[record.NFTID] = record.Score
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(best))
	for nftID, score := range best {
		entries = append(entries, domain.LeaderboardEntry{NFTID: nftID, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return firstID[entries[i].NFTID] < firstID[entries[j].NFTID]
	})
	for i := range entries {
		entries[i].Rank = int64(i + 1)
	}
	return entries, nil
}

func (f *fakeStore) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeStore) lastPlayedDay(nftID uint64) (domain.DayID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	day, ok := f.playStates[nftID]
	return day, ok
}

// captureNotifier records mark-as-played calls.
type captureNotifier struct {
	calls chan uint64
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{calls: make(chan uint64, 16)}
}

func (n *captureNotifier) MarkPlayed(ctx context.Context, nftID uint64) {
	select {
	case n.calls <- nftID:
	default:
	}
}

var errStorageDown = errors.New("storage down")
