// internal/gateway/cielo.go
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"

	"donation-payments/internal/common/config"
	cmnerrors "donation-payments/internal/common/errors"
	cmnhttp "donation-payments/internal/common/http"
	"donation-payments/internal/common/logger"
	"donation-payments/internal/gateway/status"
)

// CieloClient queries the current status of a sale on the Cielo query API.
// Webhook delivery order is not guaranteed; this query always reflects
// current truth and is the authoritative fallback.
type CieloClient struct {
	cfg    config.CieloConfig
	http   *cmnhttp.Client
	logger logger.Logger
}

func NewCieloClient(cfg config.CieloConfig, log logger.Logger) *CieloClient {
	return &CieloClient{
		cfg:    cfg,
		http:   cmnhttp.NewClient(config.GetDuration(cfg.Timeout)),
		logger: log.WithFields(map[string]interface{}{"gateway": "cielo"}),
	}
}

type cieloSaleResponse struct {
	Payment struct {
		Status int `json:"Status"`
	} `json:"Payment"`
}

// QueryStatus fetches the current canonical status for a payment ID.
func (c *CieloClient) QueryStatus(ctx context.Context, paymentID string) (status.Status, error) {
	url := fmt.Sprintf("%s/1/sales/%s", c.cfg.QueryURL, paymentID)
	headers := map[string]string{
		"MerchantId":  c.cfg.MerchantID,
		"MerchantKey": c.cfg.APIKey,
	}

	var resp cieloSaleResponse
	code, err := c.http.GetJSON(ctx, url, headers, &resp)
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn("status query timed out", map[string]interface{}{"paymentId": paymentID})
			return status.Pending, cmnerrors.NewGatewayQueryTimeoutError("cielo")
		}
		return status.Pending, cmnerrors.NewGatewayQueryFailedError("cielo", err)
	}
	if code < 200 || code >= 300 {
		return status.Pending, cmnerrors.NewGatewayQueryFailedError("cielo", fmt.Errorf("unexpected http status %d", code))
	}

	canonical := status.FromCielo(resp.Payment.Status)
	c.logger.Debug("status query completed", map[string]interface{}{
		"paymentId":      paymentID,
		"providerStatus": resp.Payment.Status,
		"canonical":      string(canonical),
	})
	return canonical, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
