// Package status maps provider-specific payment codes to the canonical
// transaction vocabulary used everywhere else in the system.
package status

// Status is the canonical transaction status.
type Status string

const (
	Pending  Status = "pending"
	Approved Status = "approved"
	Refused  Status = "refused"
	Refunded Status = "refunded"
)

// IsValid reports whether s is one of the four canonical values.
func IsValid(s Status) bool {
	switch s {
	case Pending, Approved, Refused, Refunded:
		return true
	}
	return false
}

// Provider identifies a supported gateway code space.
type Provider string

const (
	ProviderCielo Provider = "cielo"
	ProviderAsaas Provider = "asaas"
)

// Cielo reports payment state as a small integer enum.
var cieloStatusMap = map[int]Status{
	0:  Pending,  // not finished
	1:  Approved, // authorized
	2:  Approved, // payment confirmed
	3:  Refused,  // denied
	10: Refunded, // voided
	11: Refunded, // refunded
	12: Pending,  // waiting gateway
	13: Refused,  // aborted
	20: Pending,  // scheduled
}

// Asaas reports payment state as webhook event names.
var asaasEventMap = map[string]Status{
	"PAYMENT_CONFIRMED":                  Approved,
	"PAYMENT_RECEIVED":                   Approved,
	"PAYMENT_APPROVED_BY_RISK_ANALYSIS":  Approved,
	"PAYMENT_REPROVED_BY_RISK_ANALYSIS":  Refused,
	"PAYMENT_DENIED":                     Refused,
	"PAYMENT_ABORTED":                    Refused,
	"PAYMENT_REFUNDED":                   Refunded,
	"PAYMENT_CHARGEBACK_REQUESTED":       Refunded,
	"PAYMENT_VOIDED":                     Refunded,
	"PAYMENT_CREATED":                    Pending,
	"PAYMENT_UPDATED":                    Pending,
	"PAYMENT_AWAITING_RISK_ANALYSIS":     Pending,
	"PAYMENT_OVERDUE":                    Pending,
	"PAYMENT_ANTICIPATION_ITEM_CANCELED": Pending,
}

// FromCielo maps a Cielo status code to a canonical status. Unknown codes
// map to Pending; gateways may introduce new transient codes at any time.
func FromCielo(code int) Status {
	if s, ok := cieloStatusMap[code]; ok {
		return s
	}
	return Pending
}

// FromAsaas maps an Asaas webhook event to a canonical status. Unknown
// events map to Pending.
func FromAsaas(event string) Status {
	if s, ok := asaasEventMap[event]; ok {
		return s
	}
	return Pending
}

// Normalize maps a provider code in string form to a canonical status.
// Cielo codes are numeric strings; anything unparseable maps to Pending.
func Normalize(provider Provider, code string) Status {
	switch provider {
	case ProviderCielo:
		n := 0
		for _, r := range code {
			if r < '0' || r > '9' {
				return Pending
			}
			n = n*10 + int(r-'0')
		}
		if code == "" {
			return Pending
		}
		return FromCielo(n)
	case ProviderAsaas:
		return FromAsaas(code)
	default:
		return Pending
	}
}
