package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/creator-xp/internal/service"
)

// Publisher creates or updates the leaderboard message in a channel
type Publisher interface {
	Publish(ctx context.Context, channelID string) (*service.PublishResult, error)
}

// Refresher republishes the leaderboard on a fixed interval
type Refresher struct {
	publisher Publisher
	channelID string
	interval  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewRefresher creates a new refresher
func NewRefresher(
	publisher Publisher,
	channelID string,
	interval time.Duration,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Refresher {
	return &Refresher{
		publisher: publisher,
		channelID: channelID,
		interval:  interval,
		clock:     clock,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background refresh loop
func (w *Refresher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("leaderboard refresher started", "interval", w.interval, "channel_id", w.channelID)

	go w.run(ctx)
	return nil
}

// Stop stops the background refresh loop
func (w *Refresher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.logger.Info("leaderboard refresher stopped")
	return nil
}

// run is the main worker loop
func (w *Refresher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.Chan():
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("scheduled leaderboard publish failed", "error", err)
			}
		}
	}
}

// RunOnce publishes immediately
func (w *Refresher) RunOnce(ctx context.Context) error {
	start := w.clock.Now()
	res, err := w.publisher.Publish(ctx, w.channelID)
	if err != nil {
		return err
	}
	w.logger.Debug("leaderboard refreshed",
		"message_id", res.MessageID,
		"action", res.Action,
		"duration", w.clock.Since(start),
	)
	return nil
}
