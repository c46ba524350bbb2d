// internal/gateway/asaas.go
package gateway

import (
	"context"
	"fmt"

	"donation-payments/internal/common/config"
	cmnerrors "donation-payments/internal/common/errors"
	cmnhttp "donation-payments/internal/common/http"
	"donation-payments/internal/common/logger"
	"donation-payments/internal/gateway/status"
)

// AsaasClient queries the current status of a payment on the Asaas API.
type AsaasClient struct {
	cfg    config.AsaasConfig
	http   *cmnhttp.Client
	logger logger.Logger
}

func NewAsaasClient(cfg config.AsaasConfig, log logger.Logger) *AsaasClient {
	return &AsaasClient{
		cfg:    cfg,
		http:   cmnhttp.NewClient(config.GetDuration(cfg.Timeout)),
		logger: log.WithFields(map[string]interface{}{"gateway": "asaas"}),
	}
}

type asaasPaymentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// The query API reports payment statuses, not webhook events. Translate
// into the event code space so one mapping table covers both paths.
var asaasQueryStatusToEvent = map[string]string{
	"CONFIRMED":              "PAYMENT_CONFIRMED",
	"RECEIVED":               "PAYMENT_RECEIVED",
	"PENDING":                "PAYMENT_CREATED",
	"OVERDUE":                "PAYMENT_OVERDUE",
	"REFUNDED":               "PAYMENT_REFUNDED",
	"REFUND_REQUESTED":       "PAYMENT_REFUNDED",
	"CHARGEBACK_REQUESTED":   "PAYMENT_CHARGEBACK_REQUESTED",
	"AWAITING_RISK_ANALYSIS": "PAYMENT_AWAITING_RISK_ANALYSIS",
}

// QueryStatus fetches the current canonical status for a payment ID.
func (c *AsaasClient) QueryStatus(ctx context.Context, paymentID string) (status.Status, error) {
	url := fmt.Sprintf("%s/payments/%s", c.cfg.BaseURL, paymentID)
	headers := map[string]string{
		"access_token": c.cfg.APIKey,
	}

	var resp asaasPaymentResponse
	code, err := c.http.GetJSON(ctx, url, headers, &resp)
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn("status query timed out", map[string]interface{}{"paymentId": paymentID})
			return status.Pending, cmnerrors.NewGatewayQueryTimeoutError("asaas")
		}
		return status.Pending, cmnerrors.NewGatewayQueryFailedError("asaas", err)
	}
	if code < 200 || code >= 300 {
		return status.Pending, cmnerrors.NewGatewayQueryFailedError("asaas", fmt.Errorf("unexpected http status %d", code))
	}

	event, ok := asaasQueryStatusToEvent[resp.Status]
	if !ok {
		// Unknown query statuses behave like unknown events: transient.
		event = resp.Status
	}

	canonical := status.FromAsaas(event)
	c.logger.Debug("status query completed", map[string]interface{}{
		"paymentId":      paymentID,
		"providerStatus": resp.Status,
		"canonical":      string(canonical),
	})
	return canonical, nil
}
