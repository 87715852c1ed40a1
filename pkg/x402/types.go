// Package x402 implements the x402 payment protocol: machine-readable 402
// responses, payment header parsing, and the facilitator verify/settle client.
package x402

import "encoding/json"

// ProtocolVersion is the x402 protocol version this server speaks.
const ProtocolVersion = 2

// Networks in CAIP-2 form.
const (
	NetworkBase        = "eip155:8453"
	NetworkBaseSepolia = "eip155:84532"
)

// EVM chain IDs for the supported networks.
const (
	ChainIDBase        = 8453
	ChainIDBaseSepolia = 84532
)

// Canonical USDC contract addresses.
const (
	DefaultUSDCBase        = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	DefaultUSDCBaseSepolia = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
)

// DefaultMaxTimeoutSeconds is the authorization validity window advertised to
// payers when the endpoint does not override it.
const DefaultMaxTimeoutSeconds = 300

// Payment headers. Both spellings are accepted inbound and emitted outbound
// because client libraries disagree on the X- prefix.
const (
	HeaderPaymentSignature    = "X-Payment-Signature"
	HeaderPaymentSignatureAlt = "Payment-Signature"
	HeaderPaymentResponse     = "X-Payment-Response"
	HeaderPaymentResponseAlt  = "Payment-Response"
)

// AssetExtra carries EIP-712 domain fields for the payment asset.
type AssetExtra struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// PaymentRequirement describes one acceptable way to pay for a resource.
type PaymentRequirement struct {
	Scheme            string     `json:"scheme"`
	Network           string     `json:"network"`
	Amount            string     `json:"amount"` // atomic units, decimal string
	PayTo             string     `json:"payTo"`
	Asset             string     `json:"asset"`
	MaxTimeoutSeconds int        `json:"maxTimeoutSeconds"`
	Extra             AssetExtra `json:"extra"`
}

// Resource identifies the thing being paid for.
type Resource struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// PaymentRequired is the body of a 402 response.
type PaymentRequired struct {
	X402Version int                  `json:"x402Version"`
	Resource    Resource             `json:"resource"`
	Accepts     []PaymentRequirement `json:"accepts"`
}

// PaymentPayload is the decoded payment header a client sends back.
// The inner payload stays raw; its structure belongs to the payment scheme and
// only the facilitator interprets it.
type PaymentPayload struct {
	X402Version int                 `json:"x402Version"`
	Payload     json.RawMessage     `json:"payload"`
	Accepted    *PaymentRequirement `json:"accepted,omitempty"`
	Resource    *Resource           `json:"resource,omitempty"`
}

// VerifyResult is the facilitator's answer to a verify call.
type VerifyResult struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResult is the facilitator's answer to a settle call.
type SettleResult struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
}

// NetworkFor returns the CAIP-2 network identifier for an endpoint.
func NetworkFor(testnet bool) string {
	if testnet {
		return NetworkBaseSepolia
	}
	return NetworkBase
}

// ChainIDFor returns the EVM chain ID for an endpoint.
func ChainIDFor(testnet bool) int {
	if testnet {
		return ChainIDBaseSepolia
	}
	return ChainIDBase
}

// AssetFor returns the USDC contract address for an endpoint.
func AssetFor(testnet bool) string {
	if testnet {
		return DefaultUSDCBaseSepolia
	}
	return DefaultUSDCBase
}
