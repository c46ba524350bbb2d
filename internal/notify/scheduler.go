// internal/notify/scheduler.go
package notify

import (
	"context"
	"time"

	cmnerrors "donation-payments/internal/common/errors"
	"donation-payments/internal/common/logger"
	"donation-payments/internal/common/metrics"
	"donation-payments/internal/common/observability"
	"donation-payments/internal/lock"
)

// Scheduler wraps the dispatcher in the distributed mutex so that at
// most one process instance runs the job at a time.
type Scheduler struct {
	dispatcher *Dispatcher
	mutex      lock.Mutex
	lockKey    string
	lockTTL    time.Duration
	obs        *observability.Observability
	logger     logger.Logger
}

func NewScheduler(dispatcher *Dispatcher, mutex lock.Mutex, lockKey string, lockTTL time.Duration, log logger.Logger) *Scheduler {
	return &Scheduler{
		dispatcher: dispatcher,
		mutex:      mutex,
		lockKey:    lockKey,
		lockTTL:    lockTTL,
		logger:     log,
	}
}

// WithObservability attaches the OTel run instruments.
func (s *Scheduler) WithObservability(obs *observability.Observability) *Scheduler {
	s.obs = obs
	return s
}

// RunOnce attempts one guarded dispatch run. A held lock is a normal
// outcome (another instance won this interval), reported as skipped.
// The lock is released unconditionally; a release failure is only
// logged since the TTL will expire the key anyway.
func (s *Scheduler) RunOnce(ctx context.Context) (*RunSummary, bool, error) {
	acquired, err := s.mutex.TryAcquire(ctx, s.lockKey, s.lockTTL)
	if err != nil {
		metrics.LockAcquisitions.WithLabelValues("error").Inc()
		return nil, false, err
	}
	if !acquired {
		metrics.LockAcquisitions.WithLabelValues("contended").Inc()
		s.logger.WithError(cmnerrors.NewLockHeldError(s.lockKey)).
			Info("dispatch skipped, lock held by another instance", map[string]interface{}{
				"lock_key": s.lockKey,
			})
		return nil, true, nil
	}
	metrics.LockAcquisitions.WithLabelValues("acquired").Inc()

	defer func() {
		if err := s.mutex.Release(ctx, s.lockKey); err != nil {
			s.logger.WithError(err).Warn("lock release failed, relying on TTL expiry", map[string]interface{}{
				"lock_key": s.lockKey,
			})
		}
	}()

	summary, err := s.dispatcher.Run(ctx)
	if s.obs != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		s.obs.RecordRun(ctx, outcome)
		if summary != nil {
			s.obs.RecordRunDuration(ctx, summary.Duration, outcome)
		}
	}
	return summary, false, err
}

// Start runs the job on a fixed interval until the context is done.
// The first run fires immediately.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Scheduler) runAndLog(ctx context.Context) {
	if _, skipped, err := s.RunOnce(ctx); err != nil {
		s.logger.WithError(err).Error("dispatch run failed", nil)
	} else if skipped {
		s.logger.Debug("dispatch run skipped", nil)
	}
}
