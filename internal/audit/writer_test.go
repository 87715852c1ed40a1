package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/relay402/server/internal/storage"
)

// failingStore wraps a MemoryStore and fails every write.
type failingStore struct {
	*storage.MemoryStore
}

var errBoom = errors.New("boom")

func (f *failingStore) RecordPayment(context.Context, storage.Payment) error   { return errBoom }
func (f *failingStore) UpdatePayment(context.Context, string, storage.PaymentUpdate) error {
	return errBoom
}
func (f *failingStore) RecordRequestLog(context.Context, storage.RequestLog) error { return errBoom }

func TestWriterRecordsPayment(t *testing.T) {
	store := storage.NewMemoryStore()
	w := NewWriter(store)

	id := w.RecordPayment(context.Background(), storage.Payment{
		TenantID: "t1",
		Status:   storage.PaymentVerified,
	})
	if id == "" {
		t.Fatal("no payment ID returned")
	}

	got, err := store.GetPayment(context.Background(), id)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if got.Status != storage.PaymentVerified {
		t.Errorf("status = %q", got.Status)
	}
}

func TestWriterSwallowsStorageErrors(t *testing.T) {
	w := NewWriter(&failingStore{storage.NewMemoryStore()})

	// None of these may panic or propagate the error.
	id := w.RecordPayment(context.Background(), storage.Payment{TenantID: "t1"})
	if id == "" {
		t.Error("ID should be assigned even when the write fails")
	}
	w.UpdatePayment(context.Background(), id, storage.PaymentUpdate{Status: storage.PaymentFailed})
	w.RecordRequest(context.Background(), storage.RequestLog{TenantID: "t1"})
}
