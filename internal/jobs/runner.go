package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/tgapp/chatguard/internal/infra/metrics"
)

var ErrBusy = errors.New("previous run is still active")

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Locker coordinates ticks across instances. A false ok means another
// instance holds the lock.
type Locker interface {
	TryLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, name, token string) error
}

type runIDKey struct{}

// RunID returns the correlation id of the current tick.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Runner runs a job on a fixed interval. A tick is skipped, not queued, while
// the previous run is still active.
type Runner struct {
	job      Job
	interval time.Duration
	locker   Locker
	lockTTL  time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger

	busy atomic.Bool
	wg   sync.WaitGroup
}

func NewRunner(job Job, interval time.Duration, logger *zap.Logger) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		job:      job,
		interval: interval,
		logger:   logger.With(zap.String("job", job.Name())),
	}
}

func (r *Runner) AttachLocker(locker Locker, ttl time.Duration) {
	r.locker = locker
	if ttl <= 0 {
		ttl = 2 * r.interval
	}
	r.lockTTL = ttl
}

func (r *Runner) AttachMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// Start ticks until ctx is done, then waits for the in-flight run.
func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer r.wg.Wait()

	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick starts a run in the background unless one is active.
func (r *Runner) Tick(ctx context.Context) bool {
	if !r.busy.CompareAndSwap(false, true) {
		r.logger.Debug("tick skipped, previous run still active")
		r.metrics.JobRun(r.job.Name(), "skipped", 0)
		return false
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.busy.Store(false)
		_ = r.run(ctx)
	}()
	return true
}

// RunOnce runs the job synchronously. It returns ErrBusy while another run is active.
func (r *Runner) RunOnce(ctx context.Context) error {
	if !r.busy.CompareAndSwap(false, true) {
		r.metrics.JobRun(r.job.Name(), "skipped", 0)
		return ErrBusy
	}
	defer r.busy.Store(false)
	return r.run(ctx)
}

func (r *Runner) run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID))
	ctx = context.WithValue(ctx, runIDKey{}, runID)

	if r.locker != nil {
		ok, err := r.locker.TryLock(ctx, r.job.Name(), runID, r.lockTTL)
		if err != nil {
			logger.Warn("acquire job lock failed", zap.Error(err))
			r.metrics.JobRun(r.job.Name(), "error", 0)
			return err
		}
		if !ok {
			logger.Debug("tick skipped, lock held by another instance")
			r.metrics.JobRun(r.job.Name(), "skipped", 0)
			return ErrBusy
		}
		defer func() {
			unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := r.locker.Unlock(unlockCtx, r.job.Name(), runID); err != nil {
				logger.Warn("release job lock failed", zap.Error(err))
			}
		}()
	}

	started := time.Now()
	err := r.job.Run(ctx)
	took := time.Since(started)
	if err != nil {
		logger.Error("job run failed", zap.Error(err), zap.Duration("took", took))
		r.metrics.JobRun(r.job.Name(), "error", took)
		return err
	}

	logger.Debug("job run completed", zap.Duration("took", took))
	r.metrics.JobRun(r.job.Name(), "ok", took)
	return nil
}
