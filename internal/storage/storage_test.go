package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/relay402/server/internal/money"
)

func seedTenant(t *testing.T, store Store) Tenant {
	t.Helper()
	tenant := Tenant{
		ID:           NewID(),
		Name:         "Acme Data",
		Slug:         "acme",
		DefaultPayTo: "0xacme",
	}
	if err := store.CreateTenant(context.Background(), tenant); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	return tenant
}

func TestMemoryStoreTenants(t *testing.T) {
	store := NewMemoryStore()
	tenant := seedTenant(t, store)

	got, err := store.GetTenantBySlug(context.Background(), "acme")
	if err != nil {
		t.Fatalf("GetTenantBySlug: %v", err)
	}
	if got.ID != tenant.ID {
		t.Errorf("tenant ID = %q, want %q", got.ID, tenant.ID)
	}

	if _, err := store.GetTenantBySlug(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("missing tenant error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreEndpoints(t *testing.T) {
	store := NewMemoryStore()
	tenant := seedTenant(t, store)

	price, _ := money.ParseUSD("0.05")
	ep := Endpoint{
		ID:          NewID(),
		TenantID:    tenant.ID,
		Slug:        "weather",
		UpstreamURL: "https://api.example.com/v1",
		AuthKind:    AuthBearer,
		AuthConfig:  map[string]string{"token": "{{SECRET:API_KEY}}"},
		PriceUSD:    price,
		CNAME:       "Weather.Example.COM",
		Active:      true,
	}
	if err := store.CreateEndpoint(context.Background(), ep); err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}

	got, err := store.GetEndpoint(context.Background(), tenant.ID, "weather")
	if err != nil {
		t.Fatalf("GetEndpoint: %v", err)
	}
	if got.UpstreamURL != ep.UpstreamURL {
		t.Errorf("upstream = %q", got.UpstreamURL)
	}
	if got.AuthConfig["token"] != "{{SECRET:API_KEY}}" {
		t.Errorf("auth config = %v", got.AuthConfig)
	}

	// CNAME lookup is case insensitive
	byCNAME, err := store.GetEndpointByCNAME(context.Background(), "weather.example.com")
	if err != nil {
		t.Fatalf("GetEndpointByCNAME: %v", err)
	}
	if byCNAME.ID != ep.ID {
		t.Errorf("cname lookup returned %q", byCNAME.ID)
	}

	// Update moves the slug and cname indexes
	ep.Slug = "weather-v2"
	ep.CNAME = "wx.example.com"
	if err := store.UpdateEndpoint(context.Background(), ep); err != nil {
		t.Fatalf("UpdateEndpoint: %v", err)
	}
	if _, err := store.GetEndpoint(context.Background(), tenant.ID, "weather"); err != ErrNotFound {
		t.Errorf("old slug still resolves, err = %v", err)
	}
	if _, err := store.GetEndpointByCNAME(context.Background(), "weather.example.com"); err != ErrNotFound {
		t.Errorf("old cname still resolves, err = %v", err)
	}
	if _, err := store.GetEndpoint(context.Background(), tenant.ID, "weather-v2"); err != nil {
		t.Errorf("new slug does not resolve: %v", err)
	}
}

func TestMemoryStoreSecrets(t *testing.T) {
	store := NewMemoryStore()
	tenant := seedTenant(t, store)

	secret := Secret{
		ID:         NewID(),
		TenantID:   tenant.ID,
		Name:       "API_KEY",
		Ciphertext: []byte{1, 2, 3},
		Nonce:      []byte{4, 5, 6},
	}
	if err := store.UpsertSecret(context.Background(), secret); err != nil {
		t.Fatalf("UpsertSecret: %v", err)
	}

	got, err := store.GetSecret(context.Background(), tenant.ID, "API_KEY")
	if err != nil {
		t.Fatalf("GetSecret: %v", err)
	}
	if string(got.Ciphertext) != string(secret.Ciphertext) {
		t.Error("ciphertext mismatch")
	}

	// Upsert replaces the value but keeps the identity
	replacement := secret
	replacement.ID = NewID()
	replacement.Ciphertext = []byte{9, 9, 9}
	if err := store.UpsertSecret(context.Background(), replacement); err != nil {
		t.Fatalf("UpsertSecret replace: %v", err)
	}
	got, _ = store.GetSecret(context.Background(), tenant.ID, "API_KEY")
	if got.ID != secret.ID {
		t.Errorf("upsert changed secret ID: %q -> %q", secret.ID, got.ID)
	}
	if string(got.Ciphertext) != "\x09\x09\x09" {
		t.Error("upsert did not replace ciphertext")
	}

	if err := store.DeleteSecret(context.Background(), tenant.ID, "API_KEY"); err != nil {
		t.Fatalf("DeleteSecret: %v", err)
	}
	if _, err := store.GetSecret(context.Background(), tenant.ID, "API_KEY"); err != ErrNotFound {
		t.Errorf("deleted secret error = %v", err)
	}
}

func TestMemoryStorePayments(t *testing.T) {
	store := NewMemoryStore()
	tenant := seedTenant(t, store)

	price, _ := money.ParseUSD("0.01")
	payment := Payment{
		ID:         NewID(),
		EndpointID: NewID(),
		TenantID:   tenant.ID,
		Payer:      "0xpayer",
		AmountUSD:  price,
		Network:    "eip155:8453",
		Status:     PaymentVerified,
		Payload:    json.RawMessage(`{"signature":"0xsig"}`),
	}
	if err := store.RecordPayment(context.Background(), payment); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	settledAt := time.Now().UTC()
	update := PaymentUpdate{
		Status:     PaymentSettled,
		TxHash:     "0xtx",
		Settlement: json.RawMessage(`{"success":true}`),
		SettledAt:  &settledAt,
	}
	if err := store.UpdatePayment(context.Background(), payment.ID, update); err != nil {
		t.Fatalf("UpdatePayment: %v", err)
	}

	got, err := store.GetPayment(context.Background(), payment.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if got.Status != PaymentSettled {
		t.Errorf("status = %q", got.Status)
	}
	if got.TxHash != "0xtx" {
		t.Errorf("txHash = %q", got.TxHash)
	}
	if got.SettledAt == nil {
		t.Error("settledAt not recorded")
	}
	// Fields absent from the update are untouched
	if got.Payer != "0xpayer" {
		t.Errorf("payer = %q", got.Payer)
	}

	if err := store.UpdatePayment(context.Background(), "missing", update); err != ErrNotFound {
		t.Errorf("update of missing payment error = %v", err)
	}

	list, err := store.ListPayments(context.Background(), tenant.ID, 10)
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("len(list) = %d", len(list))
	}
}

func TestMemoryStoreRequestLogs(t *testing.T) {
	store := NewMemoryStore()
	tenant := seedTenant(t, store)

	for i := 0; i < 5; i++ {
		entry := RequestLog{
			ID:       NewID(),
			TenantID: tenant.ID,
			Path:     "/acme/weather",
			Method:   "GET",
			Status:   200,
			Paid:     true,
		}
		if err := store.RecordRequestLog(context.Background(), entry); err != nil {
			t.Fatalf("RecordRequestLog: %v", err)
		}
	}

	logs, err := store.ListRequestLogs(context.Background(), tenant.ID, 3)
	if err != nil {
		t.Fatalf("ListRequestLogs: %v", err)
	}
	if len(logs) != 3 {
		t.Errorf("len(logs) = %d, want limit 3 applied", len(logs))
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if len(id) != 32 {
			t.Fatalf("id length = %d, want 32 hex chars", len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
