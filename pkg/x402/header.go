package x402

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/relay402/server/internal/logger"
)

// ParsePaymentHeader extracts and decodes the payment payload from a request.
// It checks both header spellings, X-Payment-Signature first. Returns nil when
// no header is present or the value cannot be decoded; a malformed payment is
// treated the same as no payment, the client just gets the 402 again.
func ParsePaymentHeader(r *http.Request) *PaymentPayload {
	raw := r.Header.Get(HeaderPaymentSignature)
	if raw == "" {
		raw = r.Header.Get(HeaderPaymentSignatureAlt)
	}
	if raw == "" {
		return nil
	}

	log := logger.FromContext(r.Context())

	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		log.Debug().Err(err).Msg("x402.payment_header_not_base64")
		return nil
	}

	var payload PaymentPayload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		log.Debug().Err(err).Msg("x402.payment_header_not_json")
		return nil
	}

	if payload.X402Version != ProtocolVersion {
		log.Debug().Int("version", payload.X402Version).Msg("x402.payment_header_version_mismatch")
		return nil
	}

	return &payload
}

// EncodeSettlementHeader renders a settle result as the base64 JSON value for
// the payment response headers.
func EncodeSettlementHeader(settlement SettleResult) string {
	data, err := json.Marshal(settlement)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// ExtractPayer pulls the payer address out of a verify result, falling back to
// fields of the raw scheme payload when the facilitator omits it.
func ExtractPayer(verify VerifyResult, payload *PaymentPayload) string {
	if verify.Payer != "" {
		return verify.Payer
	}
	if payload == nil || len(payload.Payload) == 0 {
		return "unknown"
	}

	var inner struct {
		From          string `json:"from"`
		Sender        string `json:"sender"`
		Payer         string `json:"payer"`
		Authorization struct {
			From string `json:"from"`
		} `json:"authorization"`
	}
	if err := json.Unmarshal(payload.Payload, &inner); err != nil {
		return "unknown"
	}

	switch {
	case inner.From != "":
		return inner.From
	case inner.Authorization.From != "":
		return inner.Authorization.From
	case inner.Sender != "":
		return inner.Sender
	case inner.Payer != "":
		return inner.Payer
	}
	return "unknown"
}
