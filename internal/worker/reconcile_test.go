package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bakongpay/internal/payment"
)

type countingSweeper struct {
	runs    atomic.Int32
	block   chan struct{}
	started chan struct{}
}

func (s *countingSweeper) Run(ctx context.Context) (payment.SweepReport, error) {
	s.runs.Add(1)
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return payment.SweepReport{}, ctx.Err()
		}
	}
	return payment.SweepReport{Checked: 1}, nil
}

func TestStart_SweepsImmediatelyAndOnTick(t *testing.T) {
	sweeper := &countingSweeper{}
	w := NewReconcileWorker(sweeper, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := w.Start(ctx)

	require.Eventually(t, func() bool { return sweeper.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestRunOnce_DoesNotOverlap(t *testing.T) {
	sweeper := &countingSweeper{block: make(chan struct{}), started: make(chan struct{}, 1)}
	w := NewReconcileWorker(sweeper, time.Hour)

	result := make(chan error, 1)
	go func() {
		_, err := w.RunOnce(context.Background())
		result <- err
	}()
	<-sweeper.started

	_, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)

	close(sweeper.block)
	require.NoError(t, <-result)

	sweeper.block = nil
	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, int32(2), sweeper.runs.Load())
}

func TestNewReconcileWorker_DefaultInterval(t *testing.T) {
	w := NewReconcileWorker(&countingSweeper{}, 0)
	assert.Equal(t, time.Minute, w.Interval)
}
