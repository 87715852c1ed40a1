package x402

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/relay402/server/internal/circuitbreaker"
	"github.com/relay402/server/internal/httputil"
	"github.com/relay402/server/internal/logger"
)

// DefaultFacilitatorURL is the public x402 facilitator.
const DefaultFacilitatorURL = "https://x402.org/facilitator"

// Facilitator abstracts the verify/settle RPC surface so the proxy can be
// tested against a fake.
type Facilitator interface {
	Verify(ctx context.Context, payload *PaymentPayload, requirement PaymentRequirement) VerifyResult
	Settle(ctx context.Context, payload *PaymentPayload, requirement PaymentRequirement) SettleResult
}

// FacilitatorClient talks to an x402 facilitator over HTTP.
// Neither call ever returns a Go error: transport failures, non-2xx statuses,
// and undecodable bodies all collapse into a failed result with a generic
// reason. The detail goes to the log, never to the paying client.
type FacilitatorClient struct {
	baseURL  string
	client   *http.Client
	breakers *circuitbreaker.Manager
}

// FacilitatorOption configures a FacilitatorClient.
type FacilitatorOption func(*FacilitatorClient)

// WithHTTPClient overrides the HTTP client used for facilitator calls.
func WithHTTPClient(c *http.Client) FacilitatorOption {
	return func(f *FacilitatorClient) {
		f.client = c
	}
}

// WithBreakers wraps facilitator calls in the given circuit breaker manager.
func WithBreakers(m *circuitbreaker.Manager) FacilitatorOption {
	return func(f *FacilitatorClient) {
		f.breakers = m
	}
}

// NewFacilitatorClient creates a facilitator client for the given base URL.
func NewFacilitatorClient(baseURL string, opts ...FacilitatorOption) *FacilitatorClient {
	if baseURL == "" {
		baseURL = DefaultFacilitatorURL
	}
	f := &FacilitatorClient{
		baseURL: baseURL,
		client:  httputil.NewClient(30 * time.Second),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// facilitatorRequest is the wire body for both verify and settle.
type facilitatorRequest struct {
	X402Version         int                `json:"x402Version"`
	PaymentPayload      *PaymentPayload    `json:"paymentPayload"`
	PaymentRequirements PaymentRequirement `json:"paymentRequirements"`
}

// Verify asks the facilitator whether the payment authorization is valid.
func (f *FacilitatorClient) Verify(ctx context.Context, payload *PaymentPayload, requirement PaymentRequirement) VerifyResult {
	var result VerifyResult
	err := f.post(ctx, "/verify", payload, requirement, &result)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("x402.facilitator_verify_failed")
		return VerifyResult{IsValid: false, InvalidReason: "payment verification unavailable"}
	}
	return result
}

// Settle asks the facilitator to execute the transfer on chain.
func (f *FacilitatorClient) Settle(ctx context.Context, payload *PaymentPayload, requirement PaymentRequirement) SettleResult {
	var result SettleResult
	err := f.post(ctx, "/settle", payload, requirement, &result)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("x402.facilitator_settle_failed")
		return SettleResult{Success: false, ErrorReason: "settlement unavailable"}
	}
	return result
}

// post sends one facilitator RPC and decodes the response into out.
func (f *FacilitatorClient) post(ctx context.Context, path string, payload *PaymentPayload, requirement PaymentRequirement, out any) error {
	call := func() (interface{}, error) {
		body, err := json.Marshal(facilitatorRequest{
			X402Version:         ProtocolVersion,
			PaymentPayload:      payload,
			PaymentRequirements: requirement,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal facilitator request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build facilitator request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("facilitator %s: %w", path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read facilitator response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("facilitator %s returned status %d", path, resp.StatusCode)
		}

		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("decode facilitator response: %w", err)
		}
		return nil, nil
	}

	var err error
	if f.breakers != nil {
		_, err = f.breakers.Execute(circuitbreaker.ServiceFacilitator, call)
	} else {
		_, err = call()
	}
	return err
}
