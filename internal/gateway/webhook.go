// internal/gateway/webhook.go
package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	cmnerrors "donation-payments/internal/common/errors"
	"donation-payments/internal/gateway/status"

	"github.com/xeipuuv/gojsonschema"
)

// WebhookEvent is a gateway status report after payload validation,
// still carrying the provider-native code.
type WebhookEvent struct {
	Gateway   status.Provider `json:"gateway"`
	Reference string          `json:"reference"`
	Code      string          `json:"code"`
}

// CanonicalStatus normalizes the provider code.
func (e *WebhookEvent) CanonicalStatus() status.Status {
	return status.Normalize(e.Gateway, e.Code)
}

const cieloWebhookSchema = `{
	"type": "object",
	"properties": {
		"paymentId": {"type": "string", "minLength": 1},
		"status":    {"type": "integer"}
	},
	"required": ["paymentId", "status"],
	"additionalProperties": true
}`

const asaasWebhookSchema = `{
	"type": "object",
	"properties": {
		"event": {"type": "string", "minLength": 1},
		"payment": {
			"type": "object",
			"properties": {
				"id": {"type": "string", "minLength": 1}
			},
			"required": ["id"]
		}
	},
	"required": ["event", "payment"],
	"additionalProperties": true
}`

var (
	cieloSchema = gojsonschema.NewStringLoader(cieloWebhookSchema)
	asaasSchema = gojsonschema.NewStringLoader(asaasWebhookSchema)
)

type cieloWebhookPayload struct {
	PaymentID string `json:"paymentId"`
	Status    int    `json:"status"`
}

type asaasWebhookPayload struct {
	Event   string `json:"event"`
	Payment struct {
		ID string `json:"id"`
	} `json:"payment"`
}

// ParseWebhook validates a raw gateway payload against the provider's
// schema and extracts the reference and provider-native code. Schema
// violations are the caller's fault and are not retried.
func ParseWebhook(provider status.Provider, payload []byte) (*WebhookEvent, error) {
	var schema gojsonschema.JSONLoader
	switch provider {
	case status.ProviderCielo:
		schema = cieloSchema
	case status.ProviderAsaas:
		schema = asaasSchema
	default:
		return nil, cmnerrors.NewInvalidPayloadError(fmt.Sprintf("unsupported gateway: %s", provider))
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return nil, cmnerrors.NewInvalidPayloadError(err.Error())
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, cmnerrors.NewInvalidPayloadError(strings.Join(details, "; "))
	}

	switch provider {
	case status.ProviderCielo:
		var p cieloWebhookPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, cmnerrors.NewInvalidPayloadError(err.Error())
		}
		return &WebhookEvent{
			Gateway:   status.ProviderCielo,
			Reference: p.PaymentID,
			Code:      strconv.Itoa(p.Status),
		}, nil
	default:
		var p asaasWebhookPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, cmnerrors.NewInvalidPayloadError(err.Error())
		}
		return &WebhookEvent{
			Gateway:   status.ProviderAsaas,
			Reference: p.Payment.ID,
			Code:      p.Event,
		}, nil
	}
}
