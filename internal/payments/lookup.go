// internal/payments/lookup.go
package payments

import (
	"context"
	"errors"
	"time"

	"donation-payments/internal/common/config"
	cmnerrors "donation-payments/internal/common/errors"
	"donation-payments/internal/common/logger"
	"donation-payments/internal/common/metrics"
)

// RetryConfig bounds the lookup backoff schedule.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryConfig returns the production backoff schedule.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     5 * time.Second,
	}
}

// RetryConfigFromLookup builds a RetryConfig from the config file section.
func RetryConfigFromLookup(cfg config.LookupConfig) RetryConfig {
	return RetryConfig{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: config.GetDuration(cfg.InitialDelay),
		Multiplier:   cfg.Multiplier,
		MaxDelay:     config.GetDuration(cfg.MaxDelay),
	}
}

// Delay returns the backoff delay before retry number attempt (0-based).
func (c RetryConfig) Delay(attempt int) time.Duration {
	delay := float64(c.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= c.Multiplier
	}
	if max := float64(c.MaxDelay); delay > max {
		delay = max
	}
	return time.Duration(delay)
}

// SleepFunc suspends between attempts; tests inject an instant one.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Lookup resolves a transaction by gateway reference, tolerating the race
// where the webhook arrives before the transaction row is visible.
type Lookup struct {
	store  TransactionStore
	cfg    RetryConfig
	sleep  SleepFunc
	logger logger.Logger
}

func NewLookup(store TransactionStore, cfg RetryConfig, log logger.Logger) *Lookup {
	// A schedule with no attempts would report neither a hit nor a miss.
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Lookup{
		store:  store,
		cfg:    cfg,
		sleep:  defaultSleep,
		logger: log,
	}
}

// WithSleep replaces the sleep function. For tests.
func (l *Lookup) WithSleep(sleep SleepFunc) *Lookup {
	l.sleep = sleep
	return l
}

// FindByGatewayReference looks up by the gateway-assigned reference, then
// falls back to treating the reference as the internal id (some callers
// historically passed the internal id). Misses and storage failures both
// retry on the backoff schedule; ErrNotFound after the final attempt is
// an expected outcome the caller must handle, not an error condition.
func (l *Lookup) FindByGatewayReference(ctx context.Context, reference string) (*Transaction, error) {
	var lastErr error

	for attempt := 0; attempt < l.cfg.MaxAttempts; attempt++ {
		tx, err := l.findOnce(ctx, reference)
		if err == nil {
			l.logger.Debug("transaction resolved", map[string]interface{}{
				"reference": reference,
				"attempt":   attempt + 1,
			})
			metrics.LookupAttempts.WithLabelValues("true").Observe(float64(attempt + 1))
			return tx, nil
		}

		lastErr = err
		l.logger.Warn("transaction lookup attempt failed", map[string]interface{}{
			"reference":   reference,
			"attempt":     attempt + 1,
			"maxAttempts": l.cfg.MaxAttempts,
			"notFound":    errors.Is(err, ErrNotFound),
			"error":       err.Error(),
		})

		if attempt < l.cfg.MaxAttempts-1 {
			if serr := l.sleep(ctx, l.cfg.Delay(attempt)); serr != nil {
				return nil, serr
			}
		}
	}

	metrics.LookupAttempts.WithLabelValues("false").Observe(float64(l.cfg.MaxAttempts))
	if errors.Is(lastErr, ErrNotFound) {
		stdErr := cmnerrors.NewTransactionNotFoundError(reference, l.cfg.MaxAttempts)
		stdErr.Cause = lastErr
		return nil, stdErr
	}
	return nil, lastErr
}

func (l *Lookup) findOnce(ctx context.Context, reference string) (*Transaction, error) {
	tx, err := l.store.FindByGatewayReference(ctx, reference)
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Compatibility fallback: the reference may be the internal id.
	return l.store.FindByID(ctx, reference)
}
