package relay402

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relay402/server/internal/config"
	"github.com/relay402/server/internal/money"
	"github.com/relay402/server/internal/storage"
)

func TestNewAppDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}

	app, err := NewApp(cfg, WithRegistry(prometheus.NewRegistry()))
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	if app.Store == nil {
		t.Error("store not wired")
	}
	if app.Facilitator == nil {
		t.Error("facilitator not wired")
	}
	if app.Proxy == nil {
		t.Error("proxy not wired")
	}
}

func TestNewAppRequiresConfig(t *testing.T) {
	if _, err := NewApp(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNewHandlerServesRoutes(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.RateLimit.GlobalEnabled = false

	store := storage.NewMemoryStore()
	if err := store.CreateTenant(context.Background(), storage.Tenant{
		ID: "t1", Slug: "acme", DefaultPayTo: "0xacme",
	}); err != nil {
		t.Fatal(err)
	}
	price, _ := money.ParseUSD("0.05")
	if err := store.CreateEndpoint(context.Background(), storage.Endpoint{
		ID: "e1", TenantID: "t1", Slug: "data", UpstreamURL: "https://api.example.com",
		PriceUSD: price, Active: true,
	}); err != nil {
		t.Fatal(err)
	}

	handler, shutdown, err := NewHandler(cfg,
		WithStore(store),
		WithRegistry(prometheus.NewRegistry()),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer shutdown(context.Background())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/relay-health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/acme/data", nil))
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("unpaid endpoint status = %d", rec.Code)
	}
}
