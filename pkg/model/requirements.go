package model

// X402Version is the protocol version this service speaks.
const X402Version = 1

// SchemeExact is the only payment scheme issued requirements ever carry:
// the client pays exactly the quoted amount.
const SchemeExact = "exact"

// PaymentRequirements defines the payment terms a resource server accepts,
// as embedded in a 402 response and handed to the facilitator for
// verification.
type PaymentRequirements struct {
	// Scheme of the payment protocol, e.g. "exact".
	Scheme string `json:"scheme"`

	// Network of the blockchain to pay on, e.g. "base-sepolia".
	Network string `json:"network"`

	// MaxAmountRequired is the amount in atomic units of the asset,
	// serialized as a string (uint256 range).
	MaxAmountRequired string `json:"maxAmountRequired"`

	// Resource is the canonical URL of the resource being paid for.
	Resource string `json:"resource"`

	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`

	// PayTo is the address the payment must be sent to.
	PayTo string `json:"payTo"`

	// MaxTimeoutSeconds is the maximum time the server takes to respond.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds"`

	// Asset is the token contract address.
	Asset string `json:"asset"`

	// Extra carries scheme-specific details, e.g. the EIP-712 domain
	// name/version for exact-scheme EVM payments.
	Extra map[string]any `json:"extra,omitempty"`
}

// RequirementsTemplate is the partial, per-route configuration of payment
// terms: everything except the request-specific resource URL and the
// quote-specific amount. Templates are immutable after startup.
type RequirementsTemplate struct {
	Scheme            string
	Network           string
	NominalAmount     string // base units presented before a valid quote
	Description       string
	MimeType          string
	PayTo             string
	MaxTimeoutSeconds int
	Asset             string
	Extra             map[string]any
}

// Requirements materializes the template for a resource URL with the given
// base-unit amount.
func (t RequirementsTemplate) Requirements(resource, amount string) PaymentRequirements {
	return PaymentRequirements{
		Scheme:            t.Scheme,
		Network:           t.Network,
		MaxAmountRequired: amount,
		Resource:          resource,
		Description:       t.Description,
		MimeType:          t.MimeType,
		PayTo:             t.PayTo,
		MaxTimeoutSeconds: t.MaxTimeoutSeconds,
		Asset:             t.Asset,
		Extra:             t.Extra,
	}
}

// Nominal materializes the template with its nominal amount. This is the
// shape shown to callers who have not presented a valid quote.
func (t RequirementsTemplate) Nominal(resource string) PaymentRequirements {
	return t.Requirements(resource, t.NominalAmount)
}
