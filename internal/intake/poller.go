package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"curator/internal/config"
	"curator/internal/host"
	"curator/internal/logging"
	"curator/internal/services"
)

// StreamSource reports host item details including media streams.
type StreamSource interface {
	GetItemDetails(ctx context.Context, id string, fields ...string) (*host.Item, error)
}

// PollResult summarises one readiness wait.
type PollResult struct {
	ItemID   string
	Ready    bool
	Attempts int
	Item     *host.Item
}

// Poller waits for newly added items to expose a valid video stream. All
// concurrent waits share one semaphore.
type Poller struct {
	source     StreamSource
	sem        *semaphore.Weighted
	interval   time.Duration
	maxRetries int
	logger     *slog.Logger
}

// NewPoller builds a poller from configuration.
func NewPoller(source StreamSource, cfg config.Poller, logger *slog.Logger) *Poller {
	permits := cfg.Concurrency
	if permits <= 0 {
		permits = 1
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	return &Poller{
		source:     source,
		sem:        semaphore.NewWeighted(int64(permits)),
		interval:   time.Duration(cfg.IntervalSeconds) * time.Second,
		maxRetries: retries,
		logger:     logging.NewComponentLogger(logger, "poller"),
	}
}

// WithInterval overrides the poll spacing.
func (p *Poller) WithInterval(interval time.Duration) *Poller {
	p.interval = interval
	return p
}

// Await polls until the item is ready. A host NotFound abandons the item and
// is returned as-is. Exhausting the retries returns a result with Ready false
// and an error wrapping services.ErrPollTimeout; callers pass such items on.
func (p *Poller) Await(ctx context.Context, itemID string) (PollResult, error) {
	res := PollResult{ItemID: itemID}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return res, services.Cancelled(err)
	}
	defer p.sem.Release(1)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		res.Attempts = attempt
		item, err := p.source.GetItemDetails(ctx, itemID, "MediaStreams")
		switch {
		case err == nil && item.HasValidVideo():
			res.Ready, res.Item = true, item
			return res, nil
		case errors.Is(err, services.ErrNotFound):
			return res, err
		case err != nil && ctx.Err() != nil:
			return res, services.Cancelled(ctx.Err())
		case err != nil:
			p.logger.Debug("stream poll failed", logging.String("item_id", itemID), logging.Int("attempt", attempt), logging.Error(err))
		default:
			res.Item = item
		}
		if attempt == p.maxRetries {
			break
		}
		timer.Reset(p.interval)
		select {
		case <-ctx.Done():
			return res, services.Cancelled(ctx.Err())
		case <-timer.C:
		}
	}

	logging.WarnWithContext(p.logger, "stream validity not confirmed", "poll_timeout",
		logging.String("item_id", itemID),
		logging.Int("attempts", res.Attempts),
		logging.String(logging.FieldErrorHint, "check the file finished copying and is playable"),
		logging.String(logging.FieldImpact, "item enqueued anyway and flagged for review"),
	)
	return res, fmt.Errorf("%w: item %s after %d attempts", services.ErrPollTimeout, itemID, res.Attempts)
}
