// internal/payments/reconciler_test.go
package payments

import (
	"context"
	"errors"
	"testing"

	"donation-payments/internal/common/logger"
	"donation-payments/internal/gateway"
	"donation-payments/internal/gateway/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(t *testing.T, store *fakeStore) *Reconciler {
	log := logger.NewTestLogger(t)
	lookup := NewLookup(store, testRetryConfig(), log).WithSleep(instantSleep(nil))
	return NewReconciler(lookup, store, log)
}

func TestReconcile_OverwritesStoredStatus(t *testing.T) {
	store := newFakeStore()
	store.put(testTransaction("tx-1", "ref-1", status.Pending))
	r := newTestReconciler(t, store)

	result := r.Reconcile(context.Background(), "ref-1", status.Approved)

	assert.Equal(t, OutcomeUpdated, result.Outcome)
	assert.True(t, result.Success)
	assert.True(t, result.TransactionFound)
	assert.True(t, result.StatusUpdated)
	assert.Equal(t, status.Pending, result.PreviousStatus)
	assert.Equal(t, status.Approved, result.NewStatus)
	assert.Equal(t, "tx-1", result.TransactionID)
}

func TestReconcile_SecondDeliveryIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.put(testTransaction("tx-1", "ref-1", status.Pending))
	r := newTestReconciler(t, store)

	first := r.Reconcile(context.Background(), "ref-1", status.Approved)
	require.True(t, first.StatusUpdated)

	second := r.Reconcile(context.Background(), "ref-1", status.Approved)
	assert.Equal(t, OutcomeNoOp, second.Outcome)
	assert.True(t, second.Success)
	assert.False(t, second.StatusUpdated)
	assert.Len(t, store.updates, 1)
}

func TestReconcile_LastWriteWinsOnConflict(t *testing.T) {
	// A refund report arriving after approval simply overwrites it:
	// the gateway's current report is the source of truth.
	store := newFakeStore()
	store.put(testTransaction("tx-1", "ref-1", status.Approved))
	r := newTestReconciler(t, store)

	result := r.Reconcile(context.Background(), "ref-1", status.Refunded)

	assert.True(t, result.StatusUpdated)
	assert.Equal(t, status.Approved, result.PreviousStatus)
	assert.Equal(t, status.Refunded, result.NewStatus)
	assert.Equal(t, status.Refunded, store.byID["tx-1"].Status)
}

func TestReconcile_EarlyArrival(t *testing.T) {
	store := newFakeStore()
	r := newTestReconciler(t, store)

	result := r.Reconcile(context.Background(), "unseen-ref", status.Approved)

	assert.Equal(t, OutcomeNotFound, result.Outcome)
	assert.False(t, result.Success)
	assert.False(t, result.TransactionFound)
	assert.False(t, result.StatusUpdated)
	assert.Empty(t, result.Error)
	// All retry attempts were used before giving up.
	assert.Equal(t, 5, store.lookups)
}

func TestReconcile_InvalidInput(t *testing.T) {
	store := newFakeStore()
	store.put(testTransaction("tx-1", "ref-1", status.Pending))
	r := newTestReconciler(t, store)

	tests := []struct {
		name      string
		reference string
		reported  status.Status
	}{
		{"unknown status value", "ref-1", status.Status("cancelled")},
		{"empty status", "ref-1", status.Status("")},
		{"missing reference", "", status.Approved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.Reconcile(context.Background(), tt.reference, tt.reported)
			assert.Equal(t, OutcomeInvalidInput, result.Outcome)
			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Error)
			// Validation failures never hit storage.
			assert.Equal(t, 0, store.lookups)
		})
	}
}

func TestReconcile_UpdateFailureIsStructured(t *testing.T) {
	store := newFakeStore()
	store.put(testTransaction("tx-1", "ref-1", status.Pending))
	store.updateErr = errors.New("write timeout")
	r := newTestReconciler(t, store)

	result := r.Reconcile(context.Background(), "ref-1", status.Approved)

	assert.Equal(t, OutcomeInternalError, result.Outcome)
	assert.False(t, result.Success)
	assert.True(t, result.TransactionFound)
	assert.False(t, result.StatusUpdated)
	assert.Contains(t, result.Error, "write timeout")
}

func TestReconcile_LookupStorageFailureIsStructured(t *testing.T) {
	store := newFakeStore()
	store.findErr = errors.New("connection refused")
	store.failuresLeft = -1
	r := newTestReconciler(t, store)

	result := r.Reconcile(context.Background(), "ref-1", status.Approved)

	assert.Equal(t, OutcomeInternalError, result.Outcome)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestProcessWebhook_DrivesReconciliation(t *testing.T) {
	store := newFakeStore()
	store.put(testTransaction("tx-1", "pay_123", status.Pending))
	r := newTestReconciler(t, store)

	event, err := gateway.ParseWebhook(status.ProviderAsaas,
		[]byte(`{"event": "PAYMENT_CONFIRMED", "payment": {"id": "pay_123"}}`))
	require.NoError(t, err)

	result := r.ProcessWebhook(context.Background(), event)

	assert.True(t, result.StatusUpdated)
	assert.Equal(t, status.Approved, result.NewStatus)
}
