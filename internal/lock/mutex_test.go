// internal/lock/mutex_test.go
package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"donation-payments/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisMutex(t *testing.T) (*RedisMutex, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisMutex(client, logger.NewTestLogger(t)), mr
}

func TestRedisMutex_AcquireAndRelease(t *testing.T) {
	m, _ := newMiniredisMutex(t)
	ctx := context.Background()

	acquired, err := m.TryAcquire(ctx, "dispatch:lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	require.NoError(t, m.Release(ctx, "dispatch:lock"))

	acquired, err = m.TryAcquire(ctx, "dispatch:lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestRedisMutex_SecondHolderIsRefused(t *testing.T) {
	mr := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer clientA.Close()
	defer clientB.Close()

	a := NewRedisMutex(clientA, logger.NewTestLogger(t))
	b := NewRedisMutex(clientB, logger.NewTestLogger(t))
	ctx := context.Background()

	acquired, err := a.TryAcquire(ctx, "dispatch:lock", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = b.TryAcquire(ctx, "dispatch:lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestRedisMutex_ConcurrentAcquireYieldsExactlyOneWinner(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	const contenders = 10
	results := make([]bool, contenders)
	var wg sync.WaitGroup

	for i := 0; i < contenders; i++ {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()
		m := NewRedisMutex(client, logger.NewNoOpLogger())

		wg.Add(1)
		go func(idx int, m *RedisMutex) {
			defer wg.Done()
			acquired, err := m.TryAcquire(ctx, "dispatch:lock", time.Minute)
			assert.NoError(t, err)
			results[idx] = acquired
		}(i, m)
	}
	wg.Wait()

	winners := 0
	for _, acquired := range results {
		if acquired {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestRedisMutex_TTLSelfHeal(t *testing.T) {
	m, mr := newMiniredisMutex(t)
	ctx := context.Background()

	acquired, err := m.TryAcquire(ctx, "dispatch:lock", 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	// Holder crashed without releasing; the TTL expires the key.
	mr.FastForward(51 * time.Millisecond)

	acquired, err = m.TryAcquire(ctx, "dispatch:lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestRedisMutex_AcquireErrorIsSurfaced(t *testing.T) {
	client, mock := redismock.NewClientMock()
	m := NewRedisMutex(client, logger.NewNoOpLogger())

	mock.Regexp().ExpectSetNX("dispatch:lock", `.*`, time.Minute).
		SetErr(errors.New("connection refused"))

	acquired, err := m.TryAcquire(context.Background(), "dispatch:lock", time.Minute)
	assert.False(t, acquired)
	require.Error(t, err)
}

func TestRedisMutex_ReleaseErrorIsSurfaced(t *testing.T) {
	client, mock := redismock.NewClientMock()
	m := NewRedisMutex(client, logger.NewNoOpLogger())

	mock.ExpectDel("dispatch:lock").SetErr(errors.New("connection refused"))

	err := m.Release(context.Background(), "dispatch:lock")
	require.Error(t, err)
}
