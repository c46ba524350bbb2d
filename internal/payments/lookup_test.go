// internal/payments/lookup_test.go
package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	cmnerrors "donation-payments/internal/common/errors"
	"donation-payments/internal/common/logger"
	"donation-payments/internal/gateway/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

// fakeStore is an in-memory TransactionStore with programmable failures.
type fakeStore struct {
	mu           sync.Mutex
	byReference  map[string]*Transaction
	byID         map[string]*Transaction
	findErr      error
	failuresLeft int
	updateErr    error
	lookups      int
	updates      []struct {
		ID     string
		Status status.Status
	}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byReference: map[string]*Transaction{},
		byID:        map[string]*Transaction{},
	}
}

func (f *fakeStore) put(tx *Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx.GatewayReference != "" {
		f.byReference[tx.GatewayReference] = tx
	}
	f.byID[tx.ID] = tx
}

func (f *fakeStore) FindByGatewayReference(_ context.Context, reference string) (*Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.findErr != nil && f.failuresLeft != 0 {
		if f.failuresLeft > 0 {
			f.failuresLeft--
		}
		return nil, f.findErr
	}
	if tx, ok := f.byReference[reference]; ok {
		return tx, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) FindByID(_ context.Context, id string) (*Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx, ok := f.byID[id]; ok {
		return tx, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) UpdateStatus(_ context.Context, id string, newStatus status.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	tx, ok := f.byID[id]
	if !ok {
		return ErrNotFound
	}
	tx.Status = newStatus
	f.updates = append(f.updates, struct {
		ID     string
		Status status.Status
	}{id, newStatus})
	return nil
}

func instantSleep(recorded *[]time.Duration) SleepFunc {
	return func(_ context.Context, d time.Duration) error {
		if recorded != nil {
			*recorded = append(*recorded, d)
		}
		return nil
	}
}

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     5 * time.Second,
	}
}

func testTransaction(id, reference string, st status.Status) *Transaction {
	return &Transaction{
		ID:               id,
		GatewayReference: reference,
		Status:           st,
		Amount:           150.0,
		PaymentMethod:    "credit_card",
		ContributorID:    "contrib-1",
		CompanyID:        "company-1",
		CreatedAt:        time.Now().UTC(),
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestLookup_FoundOnFirstAttempt(t *testing.T) {
	store := newFakeStore()
	store.put(testTransaction("tx-1", "ref-1", status.Pending))

	lookup := NewLookup(store, testRetryConfig(), logger.NewTestLogger(t)).WithSleep(instantSleep(nil))

	tx, err := lookup.FindByGatewayReference(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", tx.ID)
	assert.Equal(t, 1, store.lookups)
}

func TestLookup_InternalIDFallback(t *testing.T) {
	store := newFakeStore()
	// Row exists but the gateway reference column was never filled in.
	store.put(testTransaction("tx-2", "", status.Pending))

	lookup := NewLookup(store, testRetryConfig(), logger.NewTestLogger(t)).WithSleep(instantSleep(nil))

	tx, err := lookup.FindByGatewayReference(context.Background(), "tx-2")
	require.NoError(t, err)
	assert.Equal(t, "tx-2", tx.ID)
}

func TestLookup_NotFoundAfterExhaustion(t *testing.T) {
	store := newFakeStore()
	var delays []time.Duration

	lookup := NewLookup(store, testRetryConfig(), logger.NewTestLogger(t)).WithSleep(instantSleep(&delays))

	tx, err := lookup.FindByGatewayReference(context.Background(), "missing-ref")
	assert.Nil(t, tx)
	require.ErrorIs(t, err, ErrNotFound)

	// The miss is reported as the structured early-arrival error.
	var stdErr *cmnerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, cmnerrors.ErrCodeTransactionNotFound, stdErr.Code)
	assert.True(t, stdErr.Retryable)

	assert.Equal(t, 5, store.lookups)
	// Exponential backoff between attempts, one fewer sleep than attempts.
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}, delays)
}

func TestLookup_DelayCappedAtMaxDelay(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:  8,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     5 * time.Second,
	}

	assert.Equal(t, 100*time.Millisecond, cfg.Delay(0))
	assert.Equal(t, 3200*time.Millisecond, cfg.Delay(5))
	assert.Equal(t, 5*time.Second, cfg.Delay(6))
	assert.Equal(t, 5*time.Second, cfg.Delay(7))
}

func TestLookup_TransientStorageErrorRetried(t *testing.T) {
	store := newFakeStore()
	store.put(testTransaction("tx-3", "ref-3", status.Pending))
	store.findErr = errors.New("connection reset")
	store.failuresLeft = 2

	lookup := NewLookup(store, testRetryConfig(), logger.NewTestLogger(t)).WithSleep(instantSleep(nil))

	tx, err := lookup.FindByGatewayReference(context.Background(), "ref-3")
	require.NoError(t, err)
	assert.Equal(t, "tx-3", tx.ID)
	assert.Equal(t, 3, store.lookups)
}

func TestLookup_PersistentStorageErrorSurfacedAfterRetries(t *testing.T) {
	store := newFakeStore()
	store.findErr = errors.New("connection refused")
	store.failuresLeft = -1 // never recovers

	lookup := NewLookup(store, testRetryConfig(), logger.NewTestLogger(t)).WithSleep(instantSleep(nil))

	tx, err := lookup.FindByGatewayReference(context.Background(), "ref-x")
	assert.Nil(t, tx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 5, store.lookups)
}

func TestLookup_NonPositiveMaxAttemptsClampedToOne(t *testing.T) {
	store := newFakeStore()
	store.put(testTransaction("tx-1", "ref-1", status.Pending))

	lookup := NewLookup(store, RetryConfig{}, logger.NewTestLogger(t)).WithSleep(instantSleep(nil))

	tx, err := lookup.FindByGatewayReference(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", tx.ID)
	assert.Equal(t, 1, store.lookups)

	// A miss must still resolve to an error, never a nil/nil pair.
	tx, err = lookup.FindByGatewayReference(context.Background(), "missing")
	assert.Nil(t, tx)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_CancelledContextStopsRetrying(t *testing.T) {
	store := newFakeStore()

	ctx, cancel := context.WithCancel(context.Background())
	lookup := NewLookup(store, testRetryConfig(), logger.NewTestLogger(t)).WithSleep(
		func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	)

	_, err := lookup.FindByGatewayReference(ctx, "missing")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, store.lookups)
}
