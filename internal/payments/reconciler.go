// internal/payments/reconciler.go
package payments

import (
	"context"
	"errors"

	cmnerrors "donation-payments/internal/common/errors"
	"donation-payments/internal/common/logger"
	"donation-payments/internal/common/metrics"
	"donation-payments/internal/gateway"
	"donation-payments/internal/gateway/status"
)

// Reconciler resolves the stored transaction status against the latest
// gateway report. Last reconciled report wins: gateways are the source
// of truth and their delivery order is not guaranteed.
type Reconciler struct {
	lookup *Lookup
	store  TransactionStore
	logger logger.Logger
}

func NewReconciler(lookup *Lookup, store TransactionStore, log logger.Logger) *Reconciler {
	return &Reconciler{
		lookup: lookup,
		store:  store,
		logger: log,
	}
}

// ProcessWebhook validates, reconciles and records metrics for one parsed
// gateway event.
func (r *Reconciler) ProcessWebhook(ctx context.Context, event *gateway.WebhookEvent) *Result {
	result := r.Reconcile(ctx, event.Reference, event.CanonicalStatus())
	metrics.WebhooksProcessed.WithLabelValues(string(event.Gateway), result.Outcome).Inc()
	return result
}

// Reconcile drives the status state machine for a single event. Every
// branch returns a structured result; storage errors never escape this
// component, so one bad event cannot abort a batch of webhooks.
func (r *Reconciler) Reconcile(ctx context.Context, reference string, reported status.Status) *Result {
	if reference == "" {
		stdErr := cmnerrors.NewMissingReferenceError()
		r.logger.Warn("reconcile rejected", map[string]interface{}{"error": stdErr.Error()})
		return &Result{Outcome: OutcomeInvalidInput, Error: stdErr.Error()}
	}
	if !status.IsValid(reported) {
		stdErr := cmnerrors.NewInvalidStatusError(string(reported))
		r.logger.Warn("reconcile rejected", map[string]interface{}{
			"reference": reference,
			"error":     stdErr.Error(),
		})
		return &Result{Outcome: OutcomeInvalidInput, Error: stdErr.Error()}
	}

	tx, err := r.lookup.FindByGatewayReference(ctx, reference)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Early arrival: the webhook beat the transaction row. The
			// caller surfaces this so the gateway redelivers later.
			r.logger.Info("transaction not yet visible, early arrival", map[string]interface{}{
				"reference": reference,
				"status":    string(reported),
			})
			return &Result{
				Outcome:          OutcomeNotFound,
				TransactionFound: false,
			}
		}

		r.logger.Error("transaction lookup failed", map[string]interface{}{
			"reference": reference,
			"error":     err.Error(),
		})
		return &Result{
			Outcome: OutcomeInternalError,
			Error:   err.Error(),
		}
	}

	if tx.Status == reported {
		// Idempotent no-op for duplicate or redelivered webhooks.
		return &Result{
			Outcome:          OutcomeNoOp,
			Success:          true,
			TransactionFound: true,
			StatusUpdated:    false,
			PreviousStatus:   tx.Status,
			NewStatus:        tx.Status,
			TransactionID:    tx.ID,
		}
	}

	previous := tx.Status
	if err := r.store.UpdateStatus(ctx, tx.ID, reported); err != nil {
		r.logger.Error("status update failed", map[string]interface{}{
			"transactionId": tx.ID,
			"reference":     reference,
			"from":          string(previous),
			"to":            string(reported),
			"error":         err.Error(),
		})
		return &Result{
			Outcome:          OutcomeInternalError,
			TransactionFound: true,
			PreviousStatus:   previous,
			TransactionID:    tx.ID,
			Error:            cmnerrors.NewStatusUpdateFailedError(reference, err).Error(),
		}
	}

	metrics.StatusUpdates.WithLabelValues(string(reported)).Inc()
	r.logger.Info("transaction status reconciled", map[string]interface{}{
		"transactionId": tx.ID,
		"reference":     reference,
		"from":          string(previous),
		"to":            string(reported),
	})

	return &Result{
		Outcome:          OutcomeUpdated,
		Success:          true,
		TransactionFound: true,
		StatusUpdated:    true,
		PreviousStatus:   previous,
		NewStatus:        reported,
		TransactionID:    tx.ID,
	}
}
