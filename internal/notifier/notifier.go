package notifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/etherroyale/minigames-api/internal/config"
)

// Notifier tells the main API that an NFT has played, via
// PATCH /nfts/{id}/mark-as-played. Calls are best effort with a small bounded
// number of attempts; the caller's submission is already accepted by the time
// a notification goes out, so failures are logged and discarded.
type Notifier struct {
	baseURL    string
	apiKey     string
	attempts   int
	retryDelay time.Duration
	client     *http.Client
	logger     *slog.Logger
}

// New creates a new main-API notifier
func New(cfg *config.NotifierConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		attempts:   cfg.Attempts,
		retryDelay: cfg.RetryDelay,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// MarkPlayed notifies the main API that nftID has played today. Retries up to
// the configured number of attempts, then gives up.
func (n *Notifier) MarkPlayed(ctx context.Context, nftID uint64) {
	url := fmt.Sprintf("%s/nfts/%d/mark-as-played", n.baseURL, nftID)

	var lastErr error
	for attempt := 1; attempt <= n.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				n.logger.Warn("mark-as-played abandoned", "nft_id", nftID, "error", ctx.Err())
				return
			case <-time.After(n.retryDelay):
			}
		}

		if lastErr = n.send(ctx, url); lastErr == nil {
			return
		}
		n.logger.Debug("mark-as-played attempt failed",
			"nft_id", nftID,
			"attempt", attempt,
			"error", lastErr,
		)
	}

	n.logger.Warn("mark-as-played gave up", "nft_id", nftID, "attempts", n.attempts, "error", lastErr)
}

func (n *Notifier) send(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("x-api-key", n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("main api returned %d", resp.StatusCode)
	}
	return nil
}
