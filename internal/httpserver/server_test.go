package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/relay402/server/internal/audit"
	"github.com/relay402/server/internal/config"
	"github.com/relay402/server/internal/metrics"
	"github.com/relay402/server/internal/money"
	"github.com/relay402/server/internal/paywall"
	"github.com/relay402/server/internal/proxy"
	"github.com/relay402/server/internal/ratelimit"
	"github.com/relay402/server/internal/routes"
	"github.com/relay402/server/internal/storage"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Address = ":0"
	cfg.Server.AppBaseURL = "https://relay.example"
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()

	if err := store.CreateTenant(context.Background(), storage.Tenant{
		ID: "t1", Name: "Acme", Slug: "acme", DefaultPayTo: "0xacme",
	}); err != nil {
		t.Fatal(err)
	}
	price, _ := money.ParseUSD("0.01")
	if err := store.CreateEndpoint(context.Background(), storage.Endpoint{
		ID: "e1", TenantID: "t1", Slug: "weather", Name: "Weather API",
		UpstreamURL: "https://api.example.com", PriceUSD: price,
		CNAME: "api.custom.dev", Active: true,
	}); err != nil {
		t.Fatal(err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	proxyHandler := proxy.NewHandler(
		proxy.Config{AppBaseURL: cfg.Server.AppBaseURL, MaxTimeoutSeconds: 300},
		routes.NewResolver(store),
		ratelimit.New(),
		nil,
		paywall.NewRenderer("light", ""),
		audit.NewWriter(store),
		store,
		nil,
		m,
		&http.Client{Timeout: time.Second},
	)

	return New(cfg, proxyHandler, m, registry, zerolog.Nop()), store
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/relay-health", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestHealthReachableOnAnyHost(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/relay-health", nil)
	req.Host = "lb-internal.example"
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMetricsAdminKey(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AdminMetricsAPIKey = "sekrit"
	srv, _ := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Host = "relay.example"
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Host = "relay.example"
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d", rec.Code)
	}
}

func TestMetricsOpenWithoutKey(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Host = "relay.example"
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProxyRouteOnAppHost(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/acme/weather", nil)
	req.Host = "relay.example"
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402 for unpaid request", rec.Code)
	}
}

func TestCustomDomainDispatch(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "api.custom.dev"
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	// The endpoint is priced and the request unpaid, so reaching the payment
	// challenge proves the CNAME resolved.
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
}

func TestUnknownCustomDomain404(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "nobody.example"
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGlobalRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.GlobalEnabled = true
	cfg.RateLimit.GlobalLimit = 2
	cfg.RateLimit.GlobalWindow = config.Duration{Duration: time.Minute}
	srv, _ := newTestServer(t, cfg)

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/relay-health", nil)
		req.Host = "relay.example"
		req.RemoteAddr = "198.51.100.7:1234"
		rec := httptest.NewRecorder()
		srv.httpServer.Handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", last)
	}
}

func TestStripPort(t *testing.T) {
	cases := map[string]string{
		"relay.example":      "relay.example",
		"relay.example:8080": "relay.example",
		"[::1]:8080":         "[::1]",
		"[::1]":              "[::1]",
	}
	for in, want := range cases {
		if got := stripPort(in); got != want {
			t.Errorf("stripPort(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSecurityHeadersOnProxyError(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/acme/ghost", nil)
	req.Host = "relay.example"
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing on error response")
	}
	if !strings.Contains(rec.Body.String(), "endpoint_not_found") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
