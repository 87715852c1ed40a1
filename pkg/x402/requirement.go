package x402

import (
	"github.com/relay402/server/internal/money"
)

// BuildRequirement constructs the single payment requirement for an endpoint.
// Amounts are expressed in atomic USDC units (micro-dollars).
func BuildRequirement(price money.USD, payTo string, testnet bool, maxTimeoutSeconds int) PaymentRequirement {
	if maxTimeoutSeconds <= 0 {
		maxTimeoutSeconds = DefaultMaxTimeoutSeconds
	}
	return PaymentRequirement{
		Scheme:            "exact",
		Network:           NetworkFor(testnet),
		Amount:            price.Atomic(),
		PayTo:             payTo,
		Asset:             AssetFor(testnet),
		MaxTimeoutSeconds: maxTimeoutSeconds,
		Extra: AssetExtra{
			Name:    "USDC",
			Version: "2",
		},
	}
}

// NewPaymentRequired assembles a 402 response body for a resource.
func NewPaymentRequired(resource Resource, accepts ...PaymentRequirement) PaymentRequired {
	return PaymentRequired{
		X402Version: ProtocolVersion,
		Resource:    resource,
		Accepts:     accepts,
	}
}
