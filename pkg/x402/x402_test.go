package x402

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/relay402/server/internal/money"
)

func encodePayload(t *testing.T, payload PaymentPayload) string {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(data)
}

func TestParsePaymentHeader(t *testing.T) {
	valid := encodePayload(t, PaymentPayload{
		X402Version: ProtocolVersion,
		Payload:     json.RawMessage(`{"signature":"0xabc"}`),
	})

	tests := []struct {
		name    string
		header  string
		value   string
		wantNil bool
	}{
		{"canonical header", HeaderPaymentSignature, valid, false},
		{"alternate header", HeaderPaymentSignatureAlt, valid, false},
		{"absent", "", "", true},
		{"not base64", HeaderPaymentSignature, "!!not-base64!!", true},
		{"not json", HeaderPaymentSignature, base64.StdEncoding.EncodeToString([]byte("hello")), true},
		{"wrong version", HeaderPaymentSignature, encodePayload(t, PaymentPayload{X402Version: 1}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set(tt.header, tt.value)
			}
			got := ParsePaymentHeader(r)
			if (got == nil) != tt.wantNil {
				t.Errorf("ParsePaymentHeader() = %v, wantNil %v", got, tt.wantNil)
			}
		})
	}
}

func TestParsePaymentHeaderPrefersCanonical(t *testing.T) {
	canonical := encodePayload(t, PaymentPayload{
		X402Version: ProtocolVersion,
		Payload:     json.RawMessage(`{"which":"canonical"}`),
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderPaymentSignature, canonical)
	r.Header.Set(HeaderPaymentSignatureAlt, "garbage")

	got := ParsePaymentHeader(r)
	if got == nil {
		t.Fatal("expected payload from canonical header")
	}
}

func TestBuildRequirement(t *testing.T) {
	price, _ := money.ParseUSD("0.01")
	req := BuildRequirement(price, "0xrecipient", false, 0)

	if req.Scheme != "exact" {
		t.Errorf("scheme = %q", req.Scheme)
	}
	if req.Network != NetworkBase {
		t.Errorf("network = %q, want %q", req.Network, NetworkBase)
	}
	if req.Amount != "10000" {
		t.Errorf("amount = %q, want 10000", req.Amount)
	}
	if req.Asset != DefaultUSDCBase {
		t.Errorf("asset = %q", req.Asset)
	}
	if req.MaxTimeoutSeconds != DefaultMaxTimeoutSeconds {
		t.Errorf("maxTimeoutSeconds = %d, want %d", req.MaxTimeoutSeconds, DefaultMaxTimeoutSeconds)
	}
	if req.Extra.Name != "USDC" || req.Extra.Version != "2" {
		t.Errorf("extra = %+v", req.Extra)
	}

	testnet := BuildRequirement(price, "0xrecipient", true, 60)
	if testnet.Network != NetworkBaseSepolia {
		t.Errorf("testnet network = %q", testnet.Network)
	}
	if testnet.Asset != DefaultUSDCBaseSepolia {
		t.Errorf("testnet asset = %q", testnet.Asset)
	}
	if testnet.MaxTimeoutSeconds != 60 {
		t.Errorf("override maxTimeoutSeconds = %d", testnet.MaxTimeoutSeconds)
	}
}

func TestExtractPayer(t *testing.T) {
	tests := []struct {
		name    string
		verify  VerifyResult
		payload *PaymentPayload
		want    string
	}{
		{
			name:   "from verify result",
			verify: VerifyResult{Payer: "0xverify"},
			want:   "0xverify",
		},
		{
			name:    "from authorization",
			payload: &PaymentPayload{Payload: json.RawMessage(`{"authorization":{"from":"0xauth"}}`)},
			want:    "0xauth",
		},
		{
			name:    "from top-level from",
			payload: &PaymentPayload{Payload: json.RawMessage(`{"from":"0xfrom"}`)},
			want:    "0xfrom",
		},
		{
			name:    "nothing available",
			payload: &PaymentPayload{Payload: json.RawMessage(`{}`)},
			want:    "unknown",
		},
		{
			name: "nil payload",
			want: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractPayer(tt.verify, tt.payload); got != tt.want {
				t.Errorf("ExtractPayer() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFacilitatorVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req facilitatorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.X402Version != ProtocolVersion {
			t.Errorf("x402Version = %d", req.X402Version)
		}
		json.NewEncoder(w).Encode(VerifyResult{IsValid: true, Payer: "0xpayer"})
	}))
	defer srv.Close()

	client := NewFacilitatorClient(srv.URL)
	result := client.Verify(context.Background(), &PaymentPayload{X402Version: ProtocolVersion}, PaymentRequirement{})
	if !result.IsValid {
		t.Errorf("IsValid = false, reason %q", result.InvalidReason)
	}
	if result.Payer != "0xpayer" {
		t.Errorf("payer = %q", result.Payer)
	}
}

func TestFacilitatorUnreachable(t *testing.T) {
	client := NewFacilitatorClient("http://127.0.0.1:1")

	verify := client.Verify(context.Background(), nil, PaymentRequirement{})
	if verify.IsValid {
		t.Error("verify should fail when facilitator is unreachable")
	}
	if verify.InvalidReason == "" {
		t.Error("expected generic invalid reason")
	}

	settle := client.Settle(context.Background(), nil, PaymentRequirement{})
	if settle.Success {
		t.Error("settle should fail when facilitator is unreachable")
	}
}

func TestFacilitatorNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewFacilitatorClient(srv.URL)
	result := client.Settle(context.Background(), nil, PaymentRequirement{})
	if result.Success {
		t.Error("settle should fail on 500")
	}
	if result.ErrorReason != "settlement unavailable" {
		t.Errorf("error reason = %q, internal detail must not leak", result.ErrorReason)
	}
}

func TestEncodeSettlementHeader(t *testing.T) {
	header := EncodeSettlementHeader(SettleResult{Success: true, Transaction: "0xtx", Network: NetworkBase})

	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		t.Fatalf("header not base64: %v", err)
	}
	var result SettleResult
	if err := json.Unmarshal(decoded, &result); err != nil {
		t.Fatalf("header not json: %v", err)
	}
	if result.Transaction != "0xtx" {
		t.Errorf("transaction = %q", result.Transaction)
	}
}
