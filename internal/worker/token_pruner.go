package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dawei41468/LOSMAX/internal/metrics"
	"github.com/dawei41468/LOSMAX/pkg/logger"
	"go.uber.org/zap"
)

// RefreshTokenPruner removes expired refresh token entries
type RefreshTokenPruner interface {
	PruneExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// TokenPrunerWorker periodically strips expired refresh tokens from user records
type TokenPrunerWorker struct {
	store    RefreshTokenPruner
	interval time.Duration
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewTokenPrunerWorker creates a new pruner; interval defaults to one hour
func NewTokenPrunerWorker(store RefreshTokenPruner, interval time.Duration, m *metrics.Metrics) *TokenPrunerWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &TokenPrunerWorker{
		store:    store,
		interval: interval,
		metrics:  m,
		log:      logger.Get(),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the pruner
func (w *TokenPrunerWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("token pruner already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting refresh token pruner", zap.Duration("interval", w.interval))

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		// Run immediately on start
		w.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				w.RunOnce(ctx)
			}
		}
	}()

	return nil
}

// Stop stops the pruner
func (w *TokenPrunerWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Refresh token pruner stopped")
}

// RunOnce prunes once and returns the number of users touched
func (w *TokenPrunerWorker) RunOnce(ctx context.Context) int64 {
	n, err := w.store.PruneExpiredRefreshTokens(ctx, w.now())
	if err != nil {
		w.log.Error("Failed to prune refresh tokens", zap.Error(err))
		return 0
	}
	if n > 0 {
		w.metrics.RecordPruned(n)
		w.log.Info("Pruned expired refresh tokens", zap.Int64("users", n))
	}
	return n
}
