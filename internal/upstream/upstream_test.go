package upstream

import (
	"context"
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/relay402/server/internal/storage"
)

func testLookup(_ context.Context, name string) (string, bool) {
	known := map[string]string{
		"API_KEY":  "sk-resolved",
		"PASSWORD": "hunter2",
	}
	v, ok := known[name]
	return v, ok
}

func TestBuildAuthBearer(t *testing.T) {
	ep := storage.Endpoint{
		AuthKind:   storage.AuthBearer,
		AuthConfig: map[string]string{"token": "{{SECRET:API_KEY}}"},
	}
	headers, query, err := BuildAuth(context.Background(), ep, testLookup)
	if err != nil {
		t.Fatalf("BuildAuth: %v", err)
	}
	if got := headers.Get("Authorization"); got != "Bearer sk-resolved" {
		t.Errorf("Authorization = %q", got)
	}
	if len(query) != 0 {
		t.Errorf("unexpected query params %v", query)
	}
}

func TestBuildAuthHeaderKey(t *testing.T) {
	ep := storage.Endpoint{
		AuthKind:   storage.AuthHeaderKey,
		AuthConfig: map[string]string{"header": "X-Custom-Key", "value": "literal-key"},
	}
	headers, _, err := BuildAuth(context.Background(), ep, testLookup)
	if err != nil {
		t.Fatalf("BuildAuth: %v", err)
	}
	if got := headers.Get("X-Custom-Key"); got != "literal-key" {
		t.Errorf("X-Custom-Key = %q", got)
	}

	// Default header name
	ep.AuthConfig = map[string]string{"value": "k"}
	headers, _, _ = BuildAuth(context.Background(), ep, testLookup)
	if got := headers.Get("X-API-Key"); got != "k" {
		t.Errorf("default header = %q", got)
	}
}

func TestBuildAuthQueryKey(t *testing.T) {
	ep := storage.Endpoint{
		AuthKind:   storage.AuthQueryKey,
		AuthConfig: map[string]string{"param": "apikey", "value": "{{SECRET:API_KEY}}"},
	}
	_, query, err := BuildAuth(context.Background(), ep, testLookup)
	if err != nil {
		t.Fatalf("BuildAuth: %v", err)
	}
	if got := query.Get("apikey"); got != "sk-resolved" {
		t.Errorf("apikey = %q", got)
	}
}

func TestBuildAuthBasic(t *testing.T) {
	ep := storage.Endpoint{
		AuthKind:   storage.AuthBasic,
		AuthConfig: map[string]string{"username": "svc", "password": "{{SECRET:PASSWORD}}"},
	}
	headers, _, err := BuildAuth(context.Background(), ep, testLookup)
	if err != nil {
		t.Fatalf("BuildAuth: %v", err)
	}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("svc:hunter2"))
	if got := headers.Get("Authorization"); got != want {
		t.Errorf("Authorization = %q, want %q", got, want)
	}
}

func TestBuildAuthCustomHeaders(t *testing.T) {
	ep := storage.Endpoint{
		AuthKind: storage.AuthCustomHeaders,
		AuthConfig: map[string]string{
			"X-Client-Id":     "abc",
			"X-Client-Secret": "{{SECRET:API_KEY}}",
		},
	}
	headers, _, err := BuildAuth(context.Background(), ep, testLookup)
	if err != nil {
		t.Fatalf("BuildAuth: %v", err)
	}
	if headers.Get("X-Client-Id") != "abc" || headers.Get("X-Client-Secret") != "sk-resolved" {
		t.Errorf("headers = %v", headers)
	}
}

func TestBuildAuthErrors(t *testing.T) {
	tests := []struct {
		name string
		ep   storage.Endpoint
	}{
		{"bearer without token", storage.Endpoint{AuthKind: storage.AuthBearer}},
		{"header-key without value", storage.Endpoint{AuthKind: storage.AuthHeaderKey}},
		{"query-key without value", storage.Endpoint{AuthKind: storage.AuthQueryKey}},
		{"basic without credentials", storage.Endpoint{AuthKind: storage.AuthBasic}},
		{"unknown kind", storage.Endpoint{AuthKind: "oauth-dance"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := BuildAuth(context.Background(), tt.ep, testLookup); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBuildAuthNone(t *testing.T) {
	headers, query, err := BuildAuth(context.Background(), storage.Endpoint{AuthKind: storage.AuthNone}, testLookup)
	if err != nil {
		t.Fatalf("BuildAuth: %v", err)
	}
	if len(headers) != 0 || len(query) != 0 {
		t.Errorf("none auth produced headers=%v query=%v", headers, query)
	}
}

func TestBuildTargetURL(t *testing.T) {
	tests := []struct {
		name     string
		upstream string
		rest     string
		inbound  url.Values
		auth     url.Values
		want     string
	}{
		{
			name:     "bare upstream",
			upstream: "https://api.example.com/v1",
			want:     "https://api.example.com/v1",
		},
		{
			name:     "trailing slash trimmed",
			upstream: "https://api.example.com/v1/",
			rest:     "forecast/today",
			want:     "https://api.example.com/v1/forecast/today",
		},
		{
			name:     "inbound query preserved",
			upstream: "https://api.example.com",
			rest:     "search",
			inbound:  url.Values{"q": {"golang"}},
			want:     "https://api.example.com/search?q=golang",
		},
		{
			name:     "auth query wins over inbound",
			upstream: "https://api.example.com",
			inbound:  url.Values{"api_key": {"client-supplied"}},
			auth:     url.Values{"api_key": {"real-key"}},
			want:     "https://api.example.com?api_key=real-key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := storage.Endpoint{UpstreamURL: tt.upstream}
			got, err := BuildTargetURL(ep, tt.rest, tt.inbound, tt.auth)
			if err != nil {
				t.Fatalf("BuildTargetURL: %v", err)
			}
			if got != tt.want {
				t.Errorf("BuildTargetURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		allowLoopback bool
		allowSchemes  bool
		wantErr       bool
	}{
		{"https ok", "https://api.example.com", false, false, false},
		{"http ok", "http://api.example.com", false, false, false},
		{"localhost rejected", "http://localhost:3000", false, false, true},
		{"loopback ip rejected", "http://127.0.0.1:3000", false, false, true},
		{"localhost allowed in dev", "http://localhost:3000", true, false, false},
		{"ftp rejected", "ftp://files.example.com", false, false, true},
		{"ftp allowed when opted in", "ftp://files.example.com", false, true, false},
		{"missing scheme", "api.example.com", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.raw, tt.allowLoopback, tt.allowSchemes)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}
