// Package worker runs the recurring settlement sweep.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/bakongpay/internal/logger"
	"github.com/example/bakongpay/internal/payment"
)

// ErrSweepInProgress is returned by RunOnce when another sweep holds the lock.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Sweeper runs one reconciliation pass.
type Sweeper interface {
	Run(ctx context.Context) (payment.SweepReport, error)
}

// ReconcileWorker triggers sweeps on an interval and on demand. At most one
// sweep runs at a time.
type ReconcileWorker struct {
	Sweeper  Sweeper
	Interval time.Duration

	mu sync.Mutex
}

// NewReconcileWorker constructs a worker. A non-positive interval defaults to one minute.
func NewReconcileWorker(sweeper Sweeper, interval time.Duration) *ReconcileWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReconcileWorker{Sweeper: sweeper, Interval: interval}
}

// Start runs a sweep immediately and then on every tick until ctx is done.
// It returns a channel closed once the loop has exited.
func (w *ReconcileWorker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.loop(ctx)
	}()
	return done
}

func (w *ReconcileWorker) loop(ctx context.Context) {
	log := logger.SW("component", "reconcile-worker")
	log.Infow("reconcile worker started", "interval", w.Interval.String())

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("reconcile worker stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ReconcileWorker) tick(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrSweepInProgress) || errors.Is(err, context.Canceled) {
			return
		}
		logger.SW("component", "reconcile-worker").Errorw("sweep failed", "error", err)
	}
}

// RunOnce performs one sweep unless another is already running.
func (w *ReconcileWorker) RunOnce(ctx context.Context) (payment.SweepReport, error) {
	if !w.mu.TryLock() {
		return payment.SweepReport{}, ErrSweepInProgress
	}
	defer w.mu.Unlock()
	return w.Sweeper.Run(ctx)
}
