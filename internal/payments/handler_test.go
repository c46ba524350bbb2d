// internal/payments/handler_test.go
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"donation-payments/internal/common/logger"
	"donation-payments/internal/gateway/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postWebhook(t *testing.T, handler http.HandlerFunc, path, body string) (*httptest.ResponseRecorder, Result) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	var result Result
	_ = json.Unmarshal(rec.Body.Bytes(), &result)
	return rec, result
}

func TestWebhookHandler_AsaasConfirmation(t *testing.T) {
	store := newFakeStore()
	store.put(testTransaction("tx-1", "pay_123", status.Pending))
	handler := WebhookHandler(newTestReconciler(t, store), logger.NewTestLogger(t))

	rec, result := postWebhook(t, handler, "/webhooks/asaas",
		`{"event": "PAYMENT_CONFIRMED", "payment": {"id": "pay_123"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, OutcomeUpdated, result.Outcome)
	assert.Equal(t, status.Approved, store.byID["tx-1"].Status)
}

func TestWebhookHandler_CieloNumericCode(t *testing.T) {
	store := newFakeStore()
	store.put(testTransaction("tx-1", "sale-9", status.Pending))
	handler := WebhookHandler(newTestReconciler(t, store), logger.NewTestLogger(t))

	rec, result := postWebhook(t, handler, "/webhooks/cielo",
		`{"paymentId": "sale-9", "status": 2}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, status.Approved, result.NewStatus)
}

func TestWebhookHandler_SchemaViolation(t *testing.T) {
	handler := WebhookHandler(newTestReconciler(t, newFakeStore()), logger.NewTestLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/cielo",
		strings.NewReader(`{"status": "not-an-int"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The rejection carries the error taxonomy so the caller knows not
	// to redeliver the same payload.
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION", body["category"])
	assert.Equal(t, false, body["retryable"])
	assert.NotEmpty(t, body["error"])
}

func TestWebhookHandler_UnknownGateway(t *testing.T) {
	handler := WebhookHandler(newTestReconciler(t, newFakeStore()), logger.NewTestLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookHandler_EarlyArrivalSignalsRedelivery(t *testing.T) {
	handler := WebhookHandler(newTestReconciler(t, newFakeStore()), logger.NewTestLogger(t))

	rec, result := postWebhook(t, handler, "/webhooks/asaas",
		`{"event": "PAYMENT_CONFIRMED", "payment": {"id": "unseen"}}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, OutcomeNotFound, result.Outcome)
}

func TestWebhookHandler_GetIsRejected(t *testing.T) {
	handler := WebhookHandler(newTestReconciler(t, newFakeStore()), logger.NewTestLogger(t))

	req := httptest.NewRequest(http.MethodGet, "/webhooks/cielo", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type fakeQuerier struct {
	status status.Status
	err    error
	asked  []string
}

func (f *fakeQuerier) QueryStatus(ctx context.Context, paymentID string) (status.Status, error) {
	f.asked = append(f.asked, paymentID)
	return f.status, f.err
}

func TestVerifyHandler_ReconcilesAgainstGatewayTruth(t *testing.T) {
	store := newFakeStore()
	store.put(testTransaction("tx-1", "sale-9", status.Pending))
	querier := &fakeQuerier{status: status.Approved}
	handler := VerifyHandler(newTestReconciler(t, store),
		map[status.Provider]StatusQuerier{status.ProviderCielo: querier},
		logger.NewTestLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/verify/cielo/sale-9", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sale-9"}, querier.asked)
	assert.Equal(t, status.Approved, store.byID["tx-1"].Status)
}

func TestVerifyHandler_GatewayFailure(t *testing.T) {
	querier := &fakeQuerier{err: errors.New("gateway unreachable")}
	handler := VerifyHandler(newTestReconciler(t, newFakeStore()),
		map[status.Provider]StatusQuerier{status.ProviderCielo: querier},
		logger.NewTestLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/verify/cielo/sale-9", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestVerifyHandler_MissingPaymentID(t *testing.T) {
	handler := VerifyHandler(newTestReconciler(t, newFakeStore()),
		map[status.Provider]StatusQuerier{}, logger.NewTestLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/verify/cielo", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
