// internal/payments/handler.go
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	cmnerrors "donation-payments/internal/common/errors"
	"donation-payments/internal/common/logger"
	"donation-payments/internal/gateway"
	"donation-payments/internal/gateway/status"
)

// StatusQuerier fetches the current canonical status straight from a
// gateway's query API, bypassing webhook delivery.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, paymentID string) (status.Status, error)
}

func parseProvider(name string) (status.Provider, bool) {
	switch status.Provider(name) {
	case status.ProviderCielo:
		return status.ProviderCielo, true
	case status.ProviderAsaas:
		return status.ProviderAsaas, true
	default:
		return "", false
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func resultStatusCode(result *Result) int {
	switch result.Outcome {
	case OutcomeInvalidInput:
		return http.StatusBadRequest
	case OutcomeNotFound:
		// Non-2xx so the gateway redelivers once the transaction lands.
		return http.StatusNotFound
	case OutcomeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// WebhookHandler serves POST /webhooks/{provider}. The payload is
// validated against the provider's schema before reconciliation.
func WebhookHandler(r *Reconciler, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}

		provider, ok := parseProvider(strings.TrimPrefix(req.URL.Path, "/webhooks/"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown gateway"})
			return
		}

		payload, err := io.ReadAll(req.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
			return
		}

		event, err := gateway.ParseWebhook(provider, payload)
		if err != nil {
			body := map[string]interface{}{"error": err.Error()}
			var stdErr *cmnerrors.StandardError
			if errors.As(err, &stdErr) {
				body["error"] = stdErr.Details
				body["category"] = cmnerrors.GetErrorCategory(stdErr.Code)
				body["retryable"] = cmnerrors.IsRetryableErrorCode(stdErr.Code)
			}
			log.Warn("webhook payload rejected", map[string]interface{}{
				"gateway": string(provider),
				"detail":  body["error"],
			})
			writeJSON(w, http.StatusBadRequest, body)
			return
		}

		result := r.ProcessWebhook(req.Context(), event)
		writeJSON(w, resultStatusCode(result), result)
	}
}

// VerifyHandler serves POST /verify/{provider}/{paymentId}: it asks the
// gateway's query API for the current status and reconciles against it.
// Useful when webhook delivery is suspected lost or out of order.
func VerifyHandler(r *Reconciler, queriers map[status.Provider]StatusQuerier, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}

		parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/verify/"), "/", 2)
		if len(parts) != 2 || parts[1] == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expected /verify/{gateway}/{paymentId}"})
			return
		}

		provider, ok := parseProvider(parts[0])
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown gateway"})
			return
		}
		querier, ok := queriers[provider]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "gateway not configured"})
			return
		}

		reference := parts[1]
		current, err := querier.QueryStatus(req.Context(), reference)
		if err != nil {
			log.WithError(err).Error("gateway status query failed", map[string]interface{}{
				"gateway":   string(provider),
				"reference": reference,
			})
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}

		result := r.Reconcile(req.Context(), reference, current)
		writeJSON(w, resultStatusCode(result), result)
	}
}
