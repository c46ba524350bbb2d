// Package lock provides the distributed mutex that keeps the scheduled
// notification job from running concurrently across process instances.
package lock

import (
	"context"
	"fmt"
	"os"
	"time"

	"donation-payments/internal/common/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Mutex is the coordination collaborator. The backing store must offer
// an atomic set-if-absent-with-ttl; a check-then-set pair reintroduces
// the race this exists to prevent.
type Mutex interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisMutex implements Mutex on a single Redis key with SET NX PX.
// A crashed holder self-heals through TTL expiry.
type RedisMutex struct {
	client *redis.Client
	holder string
	logger logger.Logger
}

func NewRedisMutex(client *redis.Client, log logger.Logger) *RedisMutex {
	hostname, _ := os.Hostname()
	return &RedisMutex{
		client: client,
		holder: fmt.Sprintf("%s-%s", hostname, uuid.New().String()),
		logger: log,
	}
}

// TryAcquire attempts the single atomic set-if-absent. It never blocks
// and never retries; contention means another instance is running.
func (m *RedisMutex) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := m.client.SetNX(ctx, key, m.holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock acquire failed: %w", err)
	}

	if acquired {
		m.logger.Debug("lock acquired", map[string]interface{}{
			"key":    key,
			"holder": m.holder,
			"ttl":    ttl.String(),
		})
	} else {
		m.logger.Info("lock already held elsewhere", map[string]interface{}{"key": key})
	}

	return acquired, nil
}

// Release deletes the key. Callers log failures and move on; the TTL is
// the fallback for a release that never lands.
func (m *RedisMutex) Release(ctx context.Context, key string) error {
	if err := m.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("lock release failed: %w", err)
	}
	m.logger.Debug("lock released", map[string]interface{}{"key": key})
	return nil
}
