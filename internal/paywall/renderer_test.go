package paywall

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/relay402/server/internal/money"
	"github.com/relay402/server/internal/storage"
	"github.com/relay402/server/pkg/x402"
)

var metaPattern = regexp.MustCompile(`<meta name="x-paywall-config" content="([^"]+)">`)

func testEndpoint() storage.Endpoint {
	price, _ := money.ParseUSD("0.01")
	return storage.Endpoint{
		ID:          "e1",
		TenantID:    "t1",
		Slug:        "weather",
		Name:        "Weather API",
		Description: "Hourly forecasts",
		PriceUSD:    price,
		Active:      true,
	}
}

func testRequirement(ep storage.Endpoint) x402.PaymentRequired {
	req := x402.BuildRequirement(ep.PriceUSD, "0xrecipient", ep.Testnet, 0)
	return x402.NewPaymentRequired(x402.Resource{URL: "https://relay.example/t1/weather"}, req)
}

func decodeConfig(t *testing.T, body string) PageConfig {
	t.Helper()
	m := metaPattern.FindStringSubmatch(body)
	if m == nil {
		t.Fatal("page has no x-paywall-config meta tag")
	}
	raw, err := base64.StdEncoding.DecodeString(m[1])
	if err != nil {
		t.Fatalf("meta content not base64: %v", err)
	}
	var cfg PageConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("meta content not json: %v", err)
	}
	return cfg
}

func TestRenderDefaultPage(t *testing.T) {
	r := NewRenderer("light", "wc-project")
	ep := testEndpoint()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/acme/weather", nil)
	r.Render(rec, req, ep, testRequirement(ep))

	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("status = %d, want 402", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "Weather API") {
		t.Error("page missing endpoint name")
	}
	if !strings.Contains(body, "$0.01") {
		t.Error("page missing display price")
	}

	cfg := decodeConfig(t, body)
	if len(cfg.PaymentRequired.Accepts) != 1 {
		t.Fatalf("accepts length = %d", len(cfg.PaymentRequired.Accepts))
	}
	if cfg.PaymentRequired.Accepts[0].Amount != "10000" {
		t.Errorf("embedded amount = %q, want 10000", cfg.PaymentRequired.Accepts[0].Amount)
	}
	if cfg.ChainID != x402.ChainIDBase {
		t.Errorf("chainId = %d", cfg.ChainID)
	}
	if cfg.WalletConnectProjectID != "wc-project" {
		t.Errorf("walletConnectProjectId = %q", cfg.WalletConnectProjectID)
	}
}

func TestRenderCustomTemplate(t *testing.T) {
	r := NewRenderer("light", "")
	ep := testEndpoint()
	ep.CustomTemplate = `<html><body data-config="` + ConfigMarker + `">custom</body></html>`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/acme/weather", nil)
	r.Render(rec, req, ep, testRequirement(ep))

	body := rec.Body.String()
	if strings.Contains(body, ConfigMarker) {
		t.Error("config marker not substituted")
	}
	if !strings.Contains(body, "custom") {
		t.Error("custom template content lost")
	}
	if !strings.Contains(body, `data-config="`) {
		t.Error("substitution target missing")
	}
}

func TestRenderCustomTemplateAllMarkers(t *testing.T) {
	r := NewRenderer("light", "")
	ep := testEndpoint()
	ep.CustomTemplate = `<html><head><meta content="` + ConfigMarker + `"></head>` +
		`<body data-config="` + ConfigMarker + `"></body></html>`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/acme/weather", nil)
	r.Render(rec, req, ep, testRequirement(ep))

	body := rec.Body.String()
	if strings.Contains(body, ConfigMarker) {
		t.Fatal("a config marker survived substitution")
	}
	if got := strings.Count(body, encodeTestConfig(t, ep)); got != 2 {
		t.Errorf("config substituted %d times, want 2", got)
	}
}

func encodeTestConfig(t *testing.T, ep storage.Endpoint) string {
	t.Helper()
	return BuildPageConfig(ep, testRequirement(ep), "").Encode()
}

func TestRenderThemeAndBrandingOverrides(t *testing.T) {
	r := NewRenderer("light", "")
	ep := testEndpoint()
	ep.Paywall = storage.PaywallBranding{
		Title:       "Premium Forecasts",
		Theme:       "midnight",
		AccentColor: "#ff00aa",
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/acme/weather", nil)
	r.Render(rec, req, ep, testRequirement(ep))

	body := rec.Body.String()
	if !strings.Contains(body, "Premium Forecasts") {
		t.Error("branding title not used")
	}
	if !strings.Contains(body, "#0b1120") {
		t.Error("midnight theme background missing")
	}
	if !strings.Contains(body, "#ff00aa") {
		t.Error("accent override missing")
	}
}

func TestRenderTestnetNetworkLabel(t *testing.T) {
	r := NewRenderer("light", "")
	ep := testEndpoint()
	ep.Testnet = true

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/acme/weather", nil)
	r.Render(rec, req, ep, testRequirement(ep))

	if !strings.Contains(rec.Body.String(), "Base Sepolia") {
		t.Error("testnet network label missing")
	}
	cfg := decodeConfig(t, rec.Body.String())
	if cfg.ChainID != x402.ChainIDBaseSepolia {
		t.Errorf("chainId = %d", cfg.ChainID)
	}
}
