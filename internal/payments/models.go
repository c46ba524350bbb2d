// internal/payments/models.go
package payments

import (
	"time"

	"donation-payments/internal/gateway/status"
)

// Transaction is a donation payment as stored by the backend. The payment
// initiation flow creates it with status pending, possibly before the
// gateway has assigned a reference; only the reconciler mutates it after
// that, and only the status column.
type Transaction struct {
	ID               string        `json:"id"`
	GatewayReference string        `json:"gatewayReference,omitempty"` // empty until the gateway assigns one
	Status           status.Status `json:"status"`
	Amount           float64       `json:"amount"`
	PaymentMethod    string        `json:"paymentMethod"`
	ContributorID    string        `json:"contributorId"`
	CompanyID        string        `json:"companyId"`
	DueDate          time.Time     `json:"dueDate"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// Reconciliation outcomes.
const (
	OutcomeNotFound      = "not_found"
	OutcomeNoOp          = "no_op"
	OutcomeUpdated       = "updated"
	OutcomeInvalidInput  = "invalid_input"
	OutcomeInternalError = "internal_error"
)

// Result is the structured outcome of reconciling one webhook event.
// Callers branch on StatusUpdated plus NewStatus, never on raw statuses,
// so redelivered no-ops cannot trigger duplicate side effects.
type Result struct {
	Outcome          string        `json:"outcome"`
	Success          bool          `json:"success"`
	TransactionFound bool          `json:"transactionFound"`
	StatusUpdated    bool          `json:"statusUpdated"`
	PreviousStatus   status.Status `json:"previousStatus,omitempty"`
	NewStatus        status.Status `json:"newStatus,omitempty"`
	TransactionID    string        `json:"transactionId,omitempty"`
	Error            string        `json:"error,omitempty"`
}
